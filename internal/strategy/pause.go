package strategy

import "context"

type pauseWaiterKey struct{}

// WithPauseWaiter attaches a pause suspension-point callback to ctx: wait
// blocks until the task owning ctx is resumed, or ctx itself is done,
// whichever comes first. The executor installs this before calling a
// Strategy's Copy; a ctx with none installed makes waitIfPaused a no-op,
// so calling a Strategy directly (as the package's own tests do) is
// unaffected.
func WithPauseWaiter(ctx context.Context, wait func(context.Context) error) context.Context {
	return context.WithValue(ctx, pauseWaiterKey{}, wait)
}

// waitIfPaused is the suspension point a strategy's per-chunk loop calls
// alongside its ctx.Err() check, so a task Paused mid-copy genuinely
// stops making progress instead of running to completion behind the
// status flag (§3: only Running transitions to Paused, only Paused back
// to Running).
func waitIfPaused(ctx context.Context) error {
	wait, ok := ctx.Value(pauseWaiterKey{}).(func(context.Context) error)
	if !ok || wait == nil {
		return nil
	}
	return wait(ctx)
}
