package feed

import (
	"golang.org/x/time/rate"
)

// Kite allows three historical requests per second per API key.
const (
	kiteRequestsPerSecond = 3
	kiteBurst             = 3
)

// newKiteLimiter returns the limiter shared by every request of a
// KiteProvider.
func newKiteLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(kiteRequestsPerSecond), kiteBurst)
}
