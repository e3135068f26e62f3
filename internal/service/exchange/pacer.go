package exchange

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out page requests and inserts a longer pause every N records.
type Pacer struct {
	limiter *rate.Limiter
	every   int
	pause   time.Duration
	seen    int
}

// NewPacer allows one page per pageDelay. A zero pageDelay disables spacing,
// a zero every disables pauses.
func NewPacer(pageDelay time.Duration, every int, pause time.Duration) *Pacer {
	lim := rate.Inf
	if pageDelay > 0 {
		lim = rate.Every(pageDelay)
	}
	return &Pacer{limiter: rate.NewLimiter(lim, 1), every: every, pause: pause}
}

// Wait blocks until the next page may be requested.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Add accounts for n newly received records and pauses each time the running
// total crosses a multiple of the pause interval.
func (p *Pacer) Add(ctx context.Context, n int) error {
	before := p.seen
	p.seen += n
	if p.every <= 0 || p.pause <= 0 || p.seen/p.every == before/p.every {
		return nil
	}
	t := time.NewTimer(p.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
