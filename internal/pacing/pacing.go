// Package pacing spaces out calls to the Telegram API.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer waits before an outbound call. The Limiter caps the sustained rate;
// jitter adds a random pause on top so calls do not land on a fixed cadence.
type Pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
	randDur func(limit time.Duration) time.Duration
}

// New creates a Pacer allowing perSecond calls with the given burst and a
// random extra delay in [0, jitter). perSecond <= 0 disables the limiter.
func New(perSecond float64, burst int, jitter time.Duration) *Pacer {
	p := &Pacer{jitter: jitter, randDur: randomDuration}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return p
}

// Wait blocks until the next call may proceed or ctx is done.
// A nil Pacer never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if p.jitter <= 0 {
		return nil
	}

	d := p.randDur(p.jitter)
	if d <= 0 {
		return nil
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

func randomDuration(limit time.Duration) time.Duration {
	return rand.N(limit)
}
