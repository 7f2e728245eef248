package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle stage of one import.
type State string

const (
	StateSelecting    State = "selecting"
	StateParsing      State = "parsing"
	StateParsed       State = "parsed"
	StateCommitting   State = "committing"
	StateCommitted    State = "committed"
	StateUndoComplete State = "undo_complete"
	StateExpired      State = "expired"
)

// ErrInvalidTransition is returned for a transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid import state transition")

// ErrUndoUnavailable is returned when undo is requested outside the committed state.
var ErrUndoUnavailable = errors.New("undo is no longer available")

var transitions = map[State][]State{
	StateSelecting:  {StateParsing},
	StateParsing:    {StateParsed, StateSelecting},
	StateParsed:     {StateCommitting, StateSelecting},
	StateCommitting: {StateCommitted, StateParsed},
	StateCommitted:  {StateUndoComplete, StateExpired},
}

// Session tracks one import from file selection to undo or expiry.
type Session struct {
	ID      string
	OwnerID string
	File    string

	mu        sync.Mutex
	state     State
	undo      *Undo
	updatedAt time.Time
}

// NewSession starts a session in the selecting state.
func NewSession(id, ownerID, file string) *Session {
	return &Session{ID: id, OwnerID: ownerID, File: file, state: StateSelecting, updatedAt: time.Now()}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next if the lifecycle allows it.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(next)
}

func (s *Session) transitionLocked(next State) error {
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			s.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
}

// Committed records the compensating action and enters the committed state.
func (s *Session) Committed(undo *Undo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(StateCommitted); err != nil {
		return err
	}
	s.undo = undo
	return nil
}

// Undo runs the compensating action once. Undoing an already undone
// session is a no-op.
func (s *Session) Undo(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUndoComplete:
		return nil
	case StateCommitted:
	default:
		return fmt.Errorf("%w: import is %s", ErrUndoUnavailable, s.state)
	}

	if s.undo != nil {
		if err := s.undo.Run(ctx); err != nil {
			return err
		}
	}
	return s.transitionLocked(StateUndoComplete)
}

// Expire drops the compensating action. Only committed sessions expire.
func (s *Session) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCommitted {
		_ = s.transitionLocked(StateExpired)
		s.undo = nil
	}
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID        string    `json:"import_id"`
	OwnerID   string    `json:"owner_id"`
	File      string    `json:"file"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{ID: s.ID, OwnerID: s.OwnerID, File: s.File, State: s.state, UpdatedAt: s.updatedAt}
}
