// Package jobs runs periodic background work of the server.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

const archiveJobName = "archive-replays"

// BatchRunner processes one batch of work per call.
type BatchRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Scheduler wraps a gocron scheduler with the server's logger.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("jobs")
	sched, err := gocron.NewScheduler(
		gocron.WithLogger(gocronLogger{logger.Sugar()}),
		gocron.WithStopTimeout(30*time.Second),
	)
	if err != nil {
		return nil, errors.NewInternalErrorFromErr(err, "create scheduler", nil)
	}
	return &Scheduler{sched: sched, logger: logger}, nil
}

// AddArchival schedules runner every interval, starting immediately. Runs never
// overlap: a run still in progress when the next one is due delays it.
func (s *Scheduler) AddArchival(ctx context.Context, interval time.Duration, runner BatchRunner) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := runner.RunOnce(ctx); err != nil && ctx.Err() == nil {
				errors.Log(s.logger, errors.Wrap(err, "archive replays", nil))
			}
		}),
		gocron.WithName(archiveJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
				s.logger.Error("job panicked",
					zap.String("job_id", jobID.String()),
					zap.String("job", jobName),
					zap.Any("panic", recoverData),
				)
			}),
		),
	)
	if err != nil {
		return errors.NewInternalErrorFromErr(err, "schedule archival", errors.Details{"interval": interval.String()})
	}
	s.logger.Info("archival scheduled", zap.Duration("interval", interval))
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sched.Start()
	<-ctx.Done()
	if err := s.sched.Shutdown(); err != nil {
		return errors.NewInternalErrorFromErr(err, "shutdown scheduler", nil)
	}
	return nil
}

// gocronLogger adapts zap to gocron.Logger.
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Debugw(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
