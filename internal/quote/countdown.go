package quote

import (
	"context"
	"time"
)

// countdownRate is the number of countdown updates per second.
const countdownRate = 30

// runCountdown reports the remaining fraction of interval, from 1 down to 0, until ctx is done.
// The last report has done set.
func runCountdown(ctx context.Context, interval time.Duration, report func(fraction float64, done bool)) {
	steps := int(interval.Seconds() * countdownRate)
	if steps < 1 {
		steps = 1
	}
	ticker := time.NewTicker(interval / time.Duration(steps))
	defer ticker.Stop()

	report(1, false)
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		report(1-float64(i)/float64(steps), i == steps)
	}
}
