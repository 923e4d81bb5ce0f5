package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/taskhive/taskhive-be/internal/marketplace/storage"
)

// Sweep task names double as distributed lock keys.
const (
	TaskPenaltyExpiry     = "penalty-expiry"
	TaskJobExpiration     = "job-expiration"
	TaskNotificationRetry = "notification-retry"
	TaskGeoSyncRetry      = "geo-sync-retry"
)

// JobExpirer closes jobs that outlived their start window.
type JobExpirer interface {
	ExpireDueJobs(ctx context.Context) (int, error)
}

// RetryStore is the retry-ledger and penalty surface the sweeps consume.
type RetryStore interface {
	UnblockExpiredWorkers(ctx context.Context, now time.Time) (int64, error)
	ListRetryableNotifications(ctx context.Context, maxRetries, limit int) ([]storage.FailedNotification, error)
	MarkNotificationAttempt(ctx context.Context, id, lastError string, now time.Time) error
	MarkNotificationResolved(ctx context.Context, id string, now time.Time) error
	ListRetryableGeoSyncs(ctx context.Context, maxRetries, limit int) ([]storage.FailedGeoSync, error)
	MarkGeoSyncAttempt(ctx context.Context, id, lastError string, now time.Time) error
	MarkGeoSyncResolved(ctx context.Context, id string, now time.Time) error
}

// Replayer re-attempts failed side effects recorded in the retry ledger.
type Replayer interface {
	Replay(ctx context.Context, rec *storage.FailedNotification) error
	ReplayGeoSync(ctx context.Context, rec *storage.FailedGeoSync) error
}

// Config holds sweep cadence and retry policy. All values come from
// configuration rather than constants.
type Config struct {
	Schedule         string        // cron spec shared by all sweeps, e.g. "@every 1m"
	LockTTL          time.Duration // distributed lock lifetime per sweep run
	SweepTimeout     time.Duration // per-run context deadline
	MaxRetries       int           // retry budget per ledger record
	BatchSize        int           // records processed per cycle
	RetryConcurrency int64         // concurrent replays within a cycle
}

// Sweeper runs the scheduled consistency-repair passes: worker
// unblocking, job expiration, and retry of failed notifications and
// geo-index pushes. Every pass runs under a distributed lock so only
// one instance executes it per cycle.
type Sweeper struct {
	locker   Locker
	expirer  JobExpirer
	store    RetryStore
	replayer Replayer
	cfg      Config
	cron     *cron.Cron
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a new Sweeper.
func NewSweeper(locker Locker, expirer JobExpirer, store RetryStore, replayer Replayer, cfg Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		locker:   locker,
		expirer:  expirer,
		store:    store,
		replayer: replayer,
		cfg:      cfg,
		cron:     cron.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the sweeps and starts the scheduler.
func (s *Sweeper) Start() error {
	sweeps := map[string]func(ctx context.Context) error{
		TaskPenaltyExpiry:     s.sweepPenalties,
		TaskJobExpiration:     s.sweepExpiredJobs,
		TaskNotificationRetry: s.sweepFailedNotifications,
		TaskGeoSyncRetry:      s.sweepFailedGeoSyncs,
	}

	for name, fn := range sweeps {
		if _, err := s.cron.AddFunc(s.cfg.Schedule, s.exclusively(name, fn)); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("Sweeper started",
		slog.String("schedule", s.cfg.Schedule),
		slog.Int("sweeps", len(sweeps)),
	)

	return nil
}

// Stop stops the scheduler and waits for running sweeps to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Sweeper stopped")
}

// exclusively wraps a sweep in lock acquisition and a run deadline.
func (s *Sweeper) exclusively(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepTimeout)
		defer cancel()

		if !s.locker.TryAcquire(ctx, name, s.cfg.LockTTL) {
			s.logger.Debug("Sweep skipped, lock held elsewhere",
				slog.String("task", name),
			)
			return
		}
		defer s.locker.Release(ctx, name)

		if err := fn(ctx); err != nil {
			s.logger.Error("Sweep failed",
				slog.String("task", name),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Sweeper) sweepPenalties(ctx context.Context) error {
	unblocked, err := s.store.UnblockExpiredWorkers(ctx, s.now())
	if err != nil {
		return err
	}

	if unblocked > 0 {
		s.logger.Info("Penalty sweep completed",
			slog.Int64("unblocked", unblocked),
		)
	}

	return nil
}

func (s *Sweeper) sweepExpiredJobs(ctx context.Context) error {
	expired, err := s.expirer.ExpireDueJobs(ctx)
	if err != nil {
		return err
	}

	if expired > 0 {
		s.logger.Info("Expiration sweep completed",
			slog.Int("expired", expired),
		)
	}

	return nil
}

func (s *Sweeper) sweepFailedNotifications(ctx context.Context) error {
	recs, err := s.store.ListRetryableNotifications(ctx, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(s.cfg.RetryConcurrency)
	for i := range recs {
		rec := recs[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}

		go func() {
			defer sem.Release(1)

			if err := s.replayer.Replay(ctx, &rec); err != nil {
				s.logger.Warn("Notification retry failed",
					slog.String("id", rec.ID),
					slog.String("kind", rec.Kind),
					slog.Int("retry_count", rec.RetryCount+1),
					slog.Any("error", err),
				)
				if markErr := s.store.MarkNotificationAttempt(ctx, rec.ID, err.Error(), s.now()); markErr != nil {
					s.logger.Error("Failed to record notification attempt",
						slog.String("id", rec.ID),
						slog.Any("error", markErr),
					)
				}
				return
			}

			if err := s.store.MarkNotificationResolved(ctx, rec.ID, s.now()); err != nil {
				s.logger.Error("Failed to mark notification resolved",
					slog.String("id", rec.ID),
					slog.Any("error", err),
				)
			}
		}()
	}

	// Wait for in-flight replays before releasing the sweep lock.
	return sem.Acquire(ctx, s.cfg.RetryConcurrency)
}

func (s *Sweeper) sweepFailedGeoSyncs(ctx context.Context) error {
	recs, err := s.store.ListRetryableGeoSyncs(ctx, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range recs {
		rec := recs[i]

		if err := s.replayer.ReplayGeoSync(ctx, &rec); err != nil {
			s.logger.Warn("Geo-sync retry failed",
				slog.String("id", rec.ID),
				slog.String("job_id", rec.JobID),
				slog.Int("retry_count", rec.RetryCount+1),
				slog.Any("error", err),
			)
			if markErr := s.store.MarkGeoSyncAttempt(ctx, rec.ID, err.Error(), s.now()); markErr != nil {
				s.logger.Error("Failed to record geo-sync attempt",
					slog.String("id", rec.ID),
					slog.Any("error", markErr),
				)
			}
			continue
		}

		if err := s.store.MarkGeoSyncResolved(ctx, rec.ID, s.now()); err != nil {
			s.logger.Error("Failed to mark geo sync resolved",
				slog.String("id", rec.ID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}
