package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/connectivity"
	"github.com/and161185/medizone/internal/errs"
)

// Backoff returns the delay before retry number attempt (0-based): the base interval
// doubled per attempt, capped at limit.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= limit || d <= 0 {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

// Watch runs passes on every offline to online transition of sig, and keeps retrying
// with backoff while online with pending records. It blocks until ctx is done.
func (r *Reconciler) Watch(ctx context.Context, sig connectivity.Signal) {
	changes, cancel := sig.Subscribe()
	defer cancel()

	var (
		timer    *time.Timer
		timerC   <-chan time.Time
		failures int
		online   = sig.Online()
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stopTimer()

	trigger := func(reason string) {
		stopTimer()
		res, err := r.Run(ctx)
		switch {
		case errors.Is(err, errs.ErrSyncInProgress):
			// someone else's pass will pick up our work
		case err != nil:
			failures++
		default:
			failures = 0
		}
		r.log.Debug("sync pass",
			zap.String("trigger", reason),
			zap.Int("promoted", res.Promoted),
			zap.Int("rejected", res.Rejected),
			zap.Int("remaining", res.Remaining),
			zap.Int("failures", failures),
			zap.Error(err),
		)

		if !online || ctx.Err() != nil {
			return
		}
		if r.Status().Pending == 0 {
			return
		}
		if r.opts.MaxRetries > 0 && failures >= r.opts.MaxRetries {
			r.log.Warn("sync retries exhausted, waiting for reconnect", zap.Int("failures", failures))
			return
		}
		delay := Backoff(r.opts.RetryInterval, r.opts.MaxRetryInterval, failures-1)
		timer = time.NewTimer(delay)
		timerC = timer.C
	}

	if online {
		trigger("start")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case on := <-changes:
			// Monitor only publishes changes, so a received true always follows an
			// offline period, even when the false was coalesced away.
			online = on
			if on {
				failures = 0
				trigger("online")
			} else {
				stopTimer()
			}
		case <-timerC:
			timer, timerC = nil, nil
			trigger("retry")
		}
	}
}
