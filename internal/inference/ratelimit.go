package inference

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// globalLimiter replaces the teacher's hand-rolled token-bucket
// (internal/ratelimit/rate_limiter.go) with golang.org/x/time/rate, while
// keeping the same global-singleton wrapper-function idiom at call sites.
var globalLimiter = rate.NewLimiter(rate.Every(time.Second/5), 12)

// WaitForRateLimit blocks until a token is available or ctx is done,
// mirroring the teacher's WaitForRateLimit() call-site shape.
func WaitForRateLimit(ctx context.Context) error {
	return globalLimiter.Wait(ctx)
}
