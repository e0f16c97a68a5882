package leaderboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// pacer runs work in fixed-size batches. Items inside a batch run
// concurrently; successive batch starts are spaced by at least pause. The
// limiter is shared by every computation on the engine, so concurrent
// leaderboards together stay within one batch per pause.
type pacer struct {
	size    int
	limiter *rate.Limiter
}

func newPacer(size int, pause time.Duration) *pacer {
	if size < 1 {
		size = 1
	}
	limit := rate.Inf
	if pause > 0 {
		limit = rate.Every(pause)
	}
	return &pacer{size: size, limiter: rate.NewLimiter(limit, 1)}
}

// run calls fn(i) for every i in [0, n). It returns early when ctx is
// cancelled while waiting for the next batch slot, and reports ctx.Err() when
// ctx ended during the last batch.
func (p *pacer) run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	for start := 0; start < n; start += p.size {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		end := min(start+p.size, n)

		var g errgroup.Group
		g.SetLimit(p.size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}
	return ctx.Err()
}
