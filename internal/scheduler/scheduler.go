package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	RunAtStart   bool
}

// Scheduler drives periodic execution of the monitor check. Tick errors are
// logged and the loop keeps going; only context cancellation stops it.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled. With RunAtStart the tick also fires once after the startup delay.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.RunAtStart {
		s.logger.Info().Msg("executing startup tick")
		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("startup tick failed")
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		s.logger.Debug().Time("tick", next).Msg("executing scheduled tick")
		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Time("tick", next).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}
