package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/infra/metrics"
	"telegram-channel-autopilot/internal/infra/redis"
	"telegram-channel-autopilot/internal/usecase"
)

const (
	dispatchLockKey = "dispatch:tick"
	// lockTTL outlives any sane tick; it only matters when a process
	// dies holding the lock.
	lockTTL     = 90 * time.Second
	tickTimeout = 55 * time.Second
)

// DispatchWorker drives the dispatch engine: one tick per interval,
// serialized across replicas by a redis lock. A tick that cannot take
// the lock is skipped entirely; the bots it would have served are
// handled by whichever replica holds it.
type DispatchWorker struct {
	interval time.Duration
	dispatch usecase.DispatchUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewDispatchWorker(interval time.Duration, dispatch usecase.DispatchUseCase, locker redis.Locker, logger *zerolog.Logger) *DispatchWorker {
	wLog := logger.With().Str("component", "DispatchWorker").Logger()
	return &DispatchWorker{
		interval: interval,
		dispatch: dispatch,
		locker:   locker,
		log:      &wLog,
	}
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting dispatch worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping dispatch worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx, time.Now())
		}
	}
}

// tick runs one lock-guarded dispatch pass. Split from Run so tests can
// drive it without the ticker.
func (w *DispatchWorker) tick(ctx context.Context, now time.Time) {
	token, err := w.locker.TryLock(ctx, dispatchLockKey, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			metrics.IncTickSkipped()
			w.log.Debug().Msg("dispatch lock held elsewhere, skipping tick")
			return
		}
		w.log.Error().Err(err).Msg("dispatch lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, dispatchLockKey, token); err != nil {
			w.log.Error().Err(err).Msg("dispatch unlock failed")
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	start := time.Now()
	rep, err := w.dispatch.RunTick(tickCtx, now)
	metrics.IncTick()
	metrics.ObserveTickDuration(time.Since(start))
	if err != nil {
		w.log.Error().Err(err).Msg("dispatch tick failed")
		return
	}
	metrics.AddPosts("success", rep.Succeeded)
	metrics.AddPosts("error", rep.Failed)
	if rep.Attempted > 0 {
		w.log.Info().
			Int("attempted", rep.Attempted).
			Int("succeeded", rep.Succeeded).
			Int("failed", rep.Failed).
			Msg("dispatch tick done")
	}
}
