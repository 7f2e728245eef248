package pipeline

import "time"

// Defaults used when the importer configuration leaves a value unset.
const (
	// DefaultUndoWindow is how long clients should offer the undo action.
	DefaultUndoWindow = 5 * time.Second

	// DefaultTimezone is the zone statement timestamps are read in.
	DefaultTimezone = "Asia/Shanghai"
)
