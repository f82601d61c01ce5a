// Package jobs runs scheduled maintenance work.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"murmur/internal/middleware"
	"murmur/internal/observability"

	"github.com/robfig/cron/v3"
)

// DefaultReconcileTimeout bounds a single reconciliation run.
const DefaultReconcileTimeout = 2 * time.Minute

// FollowerReconciler recomputes stored follower counters from follow edges.
type FollowerReconciler interface {
	ReconcileFollowers(ctx context.Context) ([]uint, error)
}

// Scheduler runs follower reconciliation on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	repo    FollowerReconciler
	timeout time.Duration

	// running guards against overlapping runs when one outlasts the interval.
	running sync.Mutex
}

// NewScheduler parses spec (standard cron syntax or descriptors such as
// "@every 1h"). An empty spec returns nil, which disables the job.
func NewScheduler(spec string, repo FollowerReconciler) (*Scheduler, error) {
	if spec == "" {
		return nil, nil
	}

	s := &Scheduler{
		cron:    cron.New(),
		repo:    repo,
		timeout: DefaultReconcileTimeout,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid follower reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	middleware.Logger.Info("follower reconcile job scheduled", slog.Int("entries", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop stops the schedule and waits for a running job, at most until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single reconciliation. A run that overlaps a previous
// one is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.TryLock() {
		observability.FollowerReconcileRuns.WithLabelValues("skipped").Inc()
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "jobs", "ReconcileFollowers")
	repaired, err := s.repo.ReconcileFollowers(ctx)
	observability.EndSpan(span, err)

	if err != nil {
		observability.FollowerReconcileRuns.WithLabelValues("error").Inc()
		middleware.Logger.ErrorContext(ctx, "follower reconcile failed", slog.String("error", err.Error()))
		return
	}

	observability.FollowerReconcileRuns.WithLabelValues("ok").Inc()
	observability.FollowerCountersRepaired.Add(float64(len(repaired)))
	if len(repaired) > 0 {
		middleware.Logger.InfoContext(ctx, "repaired follower counters", slog.Int("users", len(repaired)))
	}
}
