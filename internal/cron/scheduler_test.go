package cron

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// testJob is a configurable Job for scheduler tests.
type testJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	block    chan struct{} // when non-nil, Run blocks until closed
}

func (j *testJob) Name() string     { return j.name }
func (j *testJob) Schedule() string { return j.schedule }

func (j *testJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
		}
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterJob_Duplicate(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	if err := s.RegisterJob(&testJob{name: "job", schedule: "@every 1h"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterJob(&testJob{name: "job", schedule: "@every 1h"}); err == nil {
		t.Fatal("expected error for duplicate job name")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	if err := s.RegisterJob(&testJob{name: "bad", schedule: "not a schedule"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStart_AcceptsEverySeconds(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	// The interval form the poll delay uses.
	if err := s.RegisterJob(&testJob{name: "poll", schedule: "@every 300s"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_RunsJob(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	job := &testJob{name: "tick", schedule: "@every 1s"}
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for job.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	job := &testJob{name: "slow", schedule: "@every 1s", block: make(chan struct{})}
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// Let several ticks elapse while the first run is still blocked.
	time.Sleep(3500 * time.Millisecond)
	if got := job.runs.Load(); got != 1 {
		t.Errorf("job ran %d times while blocked, want 1", got)
	}

	close(job.block)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStop_CancelsJobContext(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()

	job := &testJob{name: "ctx", schedule: "@every 1s", block: make(chan struct{})}
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// Wait for the job to start, then stop without closing the block
	// channel: Stop must cancel the context and return.
	for job.runs.Load() == 0 {
		time.Sleep(20 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		_ = s.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return; job context was not cancelled")
	}
}
