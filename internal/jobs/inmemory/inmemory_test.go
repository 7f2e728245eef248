package inmemory

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/statement-import/internal/jobs"
)

func waitFor(t *testing.T, store *Store, id string, status jobs.JobStatus) *jobs.ImportJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, status)
	return nil
}

func TestQueue_CompletesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	if err := q.Start(ctx, func(ctx context.Context, job *jobs.ImportJob) error {
		job.ImportID = "imp-1"
		job.Committed = 3
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ImportJob{OwnerID: "u1", Provider: "wechat", GCSURI: "gs://b/x.csv", Password: "secret"}
	if err := q.PublishImport(ctx, job); err != nil {
		t.Fatalf("PublishImport: %v", err)
	}

	got := waitFor(t, store, job.JobID, jobs.JobStatusCompleted)
	if got.ImportID != "imp-1" || got.Committed != 3 {
		t.Errorf("outcome not saved: %+v", got)
	}
}

func TestQueue_PermanentErrorIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.backoff = time.Millisecond
	defer q.Close()

	var calls atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job *jobs.ImportJob) error {
		calls.Add(1)
		return jobs.Permanent(errors.New("header not found"))
	})

	job := &jobs.ImportJob{OwnerID: "u1"}
	_ = q.PublishImport(ctx, job)

	got := waitFor(t, store, job.JobID, jobs.JobStatusFailed)
	if got.RetryCount != 0 || calls.Load() != 1 {
		t.Errorf("retried a permanent error: retries=%d calls=%d", got.RetryCount, calls.Load())
	}
}

func TestQueue_RetriesTransientError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.backoff = time.Millisecond
	defer q.Close()

	var calls atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job *jobs.ImportJob) error {
		if calls.Add(1) == 1 {
			return errors.New("store unavailable")
		}
		return nil
	})

	job := &jobs.ImportJob{OwnerID: "u1"}
	_ = q.PublishImport(ctx, job)

	got := waitFor(t, store, job.JobID, jobs.JobStatusCompleted)
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
}

func TestStore_ListJobsFiltersByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.SaveJob(ctx, &jobs.ImportJob{JobID: "a", OwnerID: "u1", CreatedAt: base})
	_ = s.SaveJob(ctx, &jobs.ImportJob{JobID: "b", OwnerID: "u1", CreatedAt: base.Add(time.Minute)})
	_ = s.SaveJob(ctx, &jobs.ImportJob{JobID: "c", OwnerID: "u2", CreatedAt: base})

	got, err := s.ListJobs(ctx, jobs.JobFilter{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 || got[0].JobID != "b" {
		t.Errorf("ListJobs = %+v, want newest u1 job first", got)
	}

	got, _ = s.ListJobs(ctx, jobs.JobFilter{OwnerID: "u1", Offset: 1, Limit: 1})
	if len(got) != 1 || got[0].JobID != "a" {
		t.Errorf("paged ListJobs = %+v", got)
	}

	if _, err := s.GetJob(ctx, "zzz"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob unknown = %v", err)
	}
}

func TestQueue_StoppedDuringBackoffFailsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.backoff = 200 * time.Millisecond

	_ = q.Start(ctx, func(ctx context.Context, job *jobs.ImportJob) error {
		return errors.New("store unavailable")
	})

	job := &jobs.ImportJob{OwnerID: "u1"}
	_ = q.PublishImport(ctx, job)
	waitFor(t, store, job.JobID, jobs.JobStatusRetrying)

	if err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := waitFor(t, store, job.JobID, jobs.JobStatusFailed)
	if !strings.HasPrefix(got.Error, "requeue: ") {
		t.Errorf("Error = %q, want requeue failure", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not stamped on failure")
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.SaveJob(ctx, &jobs.ImportJob{JobID: "a", OwnerID: "u1", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "a", jobs.JobStatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	got, _ := s.GetJob(ctx, "a")
	if got.CompletedAt != nil {
		t.Error("CompletedAt stamped for a running job")
	}

	if err := s.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	got, _ = s.GetJob(ctx, "a")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" || got.CompletedAt == nil {
		t.Errorf("job = %+v, want failed with error and completion time", got)
	}

	if err := s.UpdateJobStatus(ctx, "zzz", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus unknown = %v, want ErrJobNotFound", err)
	}
}
