package jobs

import (
	"context"
	"fmt"
	"time"

	"tutor-match/internal/domain/swipe"
	"tutor-match/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	jobTimeout         = 30 * time.Second
	reconcileLookback  = 24 * time.Hour
	reconcileBatchSize = 100
	defaultPresenceTTL = 5 * time.Minute
)

// PresenceCleaner drops users whose heartbeat went stale.
type PresenceCleaner interface {
	CleanupStalePresence(ctx context.Context, maxAge time.Duration) (int64, error)
}

type MutualLikeFinder interface {
	MutualLikesWithoutMatch(ctx context.Context, since time.Time, limit int) ([]swipe.Pair, error)
}

type MatchReconciler interface {
	ReconcileMutualLikes(ctx context.Context, pairs []swipe.Pair) (int, error)
}

type Config struct {
	PresenceCleanupSpec  string
	PresenceTTL          time.Duration
	ReconcileMatchesSpec string
}

// Scheduler runs periodic maintenance on a cron clock.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	presence PresenceCleaner
	finder   MutualLikeFinder
	matches  MatchReconciler
	log      *logger.Logger
	clock    func() time.Time
}

// NewScheduler registers every job whose collaborators are present. presence may be nil when redis is disabled.
func NewScheduler(cfg Config, presence PresenceCleaner, finder MutualLikeFinder, matches MatchReconciler, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = defaultPresenceTTL
	}
	s := &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		presence: presence,
		finder:   finder,
		matches:  matches,
		log:      log.Named("jobs"),
		clock:    time.Now,
	}

	if presence != nil && cfg.PresenceCleanupSpec != "" {
		if _, err := s.cron.AddFunc(cfg.PresenceCleanupSpec, s.wrap("presence_cleanup", s.CleanupPresence)); err != nil {
			return nil, fmt.Errorf("schedule presence cleanup: %w", err)
		}
	}
	if finder != nil && matches != nil && cfg.ReconcileMatchesSpec != "" {
		if _, err := s.cron.AddFunc(cfg.ReconcileMatchesSpec, s.wrap("reconcile_matches", s.ReconcileMatches)); err != nil {
			return nil, fmt.Errorf("schedule match reconciliation: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Logger.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Logger.Warn("job scheduler stop timed out")
	}
}

func (s *Scheduler) wrap(name string, job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		ctx = context.WithValue(ctx, logger.RequestIdKey, "job-"+name+"-"+uuid.NewString()[:8])

		started := s.clock()
		if err := job(ctx); err != nil {
			s.log.Ctx(ctx).Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Ctx(ctx).Debug("job finished", zap.String("job", name), zap.Duration("took", s.clock().Sub(started)))
	}
}

func (s *Scheduler) CleanupPresence(ctx context.Context) error {
	removed, err := s.presence.CleanupStalePresence(ctx, s.cfg.PresenceTTL)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.log.Ctx(ctx).Info("stale presence cleared", zap.Int64("users", removed))
	}
	return nil
}

// ReconcileMatches creates matches for recent mutual likes that never got one.
func (s *Scheduler) ReconcileMatches(ctx context.Context) error {
	pairs, err := s.finder.MutualLikesWithoutMatch(ctx, s.clock().Add(-reconcileLookback), reconcileBatchSize)
	if err != nil {
		return fmt.Errorf("find mutual likes: %w", err)
	}
	if len(pairs) == 0 {
		return nil
	}
	created, err := s.matches.ReconcileMutualLikes(ctx, pairs)
	if err != nil {
		return fmt.Errorf("reconcile matches: %w", err)
	}
	s.log.Ctx(ctx).Info("matches reconciled", zap.Int("pairs", len(pairs)), zap.Int("created", created))
	return nil
}
