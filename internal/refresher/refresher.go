package refresher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Target is refreshed on every tick. *linkcache.Cache satisfies it.
type Target interface {
	Refresh(ctx context.Context) error
}

type Refresher struct {
	cron    *cron.Cron
	target  Target
	timeout time.Duration
	logger  *slog.Logger
}

// New schedules target using a standard cron spec or a descriptor such as
// "@every 50m". Each run is bounded by timeout.
func New(schedule string, target Target, timeout time.Duration, logger *slog.Logger) (*Refresher, error) {
	cl := cronLogger{logger: logger}
	r := &Refresher{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		target:  target,
		timeout: timeout,
		logger:  logger,
	}

	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	return r, nil
}

// Start runs the schedule until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.cron.Start()
	r.logger.Info("Cache refresher started")

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
		r.logger.Info("Cache refresher stopped")
	}()
}

// RunOnce refreshes the target immediately.
func (r *Refresher) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.target.Refresh(ctx); err != nil {
		r.logger.Warn("Scheduled refresh failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	r.logger.Debug("Scheduled refresh done", slog.Duration("duration", time.Since(start)))
	return nil
}

func (r *Refresher) run() {
	_ = r.RunOnce(context.Background())
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
