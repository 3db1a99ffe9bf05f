package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutor-match/internal/domain/swipe"

	"github.com/google/uuid"
)

type fakePresence struct {
	maxAge time.Duration
	calls  int
}

func (f *fakePresence) CleanupStalePresence(_ context.Context, maxAge time.Duration) (int64, error) {
	f.calls++
	f.maxAge = maxAge
	return 2, nil
}

type fakeFinder struct {
	pairs []swipe.Pair
	since time.Time
	limit int
	err   error
}

func (f *fakeFinder) MutualLikesWithoutMatch(_ context.Context, since time.Time, limit int) ([]swipe.Pair, error) {
	f.since = since
	f.limit = limit
	return f.pairs, f.err
}

type fakeReconciler struct {
	got []swipe.Pair
}

func (f *fakeReconciler) ReconcileMutualLikes(_ context.Context, pairs []swipe.Pair) (int, error) {
	f.got = append(f.got, pairs...)
	return len(pairs), nil
}

func TestNewSchedulerRegistersConfiguredJobs(t *testing.T) {
	cfg := Config{PresenceCleanupSpec: "@every 1m", ReconcileMatchesSpec: "@every 5m"}

	s, err := NewScheduler(cfg, &fakePresence{}, &fakeFinder{}, &fakeReconciler{}, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Fatalf("expected 2 jobs, got %d", n)
	}

	s, err = NewScheduler(cfg, nil, &fakeFinder{}, &fakeReconciler{}, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("presence job should be skipped without redis, got %d jobs", n)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(Config{ReconcileMatchesSpec: "every now and then"}, nil, &fakeFinder{}, &fakeReconciler{}, nil)
	if err == nil {
		t.Fatalf("expected invalid cron spec to fail")
	}
}

func TestCleanupPresenceUsesTTL(t *testing.T) {
	presence := &fakePresence{}
	s, err := NewScheduler(Config{PresenceTTL: 90 * time.Second}, presence, nil, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.CleanupPresence(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if presence.calls != 1 || presence.maxAge != 90*time.Second {
		t.Fatalf("unexpected cleanup call: %+v", presence)
	}
}

func TestReconcileMatches(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pair := swipe.Pair{StudentID: uuid.New(), TutorID: uuid.New()}
	finder := &fakeFinder{pairs: []swipe.Pair{pair}}
	reconciler := &fakeReconciler{}

	s, err := NewScheduler(Config{}, nil, finder, reconciler, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.clock = func() time.Time { return now }

	if err := s.ReconcileMatches(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !finder.since.Equal(now.Add(-reconcileLookback)) || finder.limit != reconcileBatchSize {
		t.Fatalf("unexpected scan window since=%v limit=%d", finder.since, finder.limit)
	}
	if len(reconciler.got) != 1 || reconciler.got[0] != pair {
		t.Fatalf("expected pair to be reconciled, got %+v", reconciler.got)
	}

	finder.err = errors.New("db down")
	if err := s.ReconcileMatches(context.Background()); err == nil {
		t.Fatalf("expected finder error to surface")
	}
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(Config{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
