// Package scheduler runs periodic background jobs.  Today that is the
// sweeper which closes out bookings whose window has ended.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper closes out ended bookings and reports how many it touched.
type Sweeper interface {
	CompleteExpired(ctx context.Context) (int, error)
	ExpirePending(ctx context.Context) (int, error)
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	cron gocron.Scheduler
	log  *slog.Logger
}

func New(log *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cron: s, log: log}, nil
}

// ScheduleSweep runs sw every interval.  Runs never overlap; a run that
// is still busy when the next one is due pushes it back.
func (s *Scheduler) ScheduleSweep(interval time.Duration, sw Sweeper) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { Sweep(context.Background(), sw, s.log) }),
		gocron.WithName("sweep-ended-bookings"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.cron.Jobs()) }

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Shutdown() error { return s.cron.Shutdown() }

// Sweep runs one completion pass and one pending-expiry pass and logs
// the outcome.  A failing pass does not stop the other.
func Sweep(ctx context.Context, sw Sweeper, log *slog.Logger) {
	n, err := sw.CompleteExpired(ctx)
	if err != nil {
		log.Error("sweep ended bookings failed", "completed", n, "error", err)
	} else if n > 0 {
		log.Info("completed ended bookings", "count", n)
	}

	n, err = sw.ExpirePending(ctx)
	if err != nil {
		log.Error("expire pending bookings failed", "rejected", n, "error", err)
	} else if n > 0 {
		log.Info("rejected stale pending bookings", "count", n)
	}
}
