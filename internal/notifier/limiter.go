package notifier

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// recipientLimiter tracks send rate limits per recipient.
type recipientLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
	disabled   bool
}

// newRecipientLimiter allows perMinute sends per recipient with a 10% burst.
// A non-positive perMinute disables limiting.
func newRecipientLimiter(perMinute int) *recipientLimiter {
	return &recipientLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute/10),
		disabled:   perMinute <= 0,
	}
}

func (l *recipientLimiter) Allow(userID string) bool {
	if l.disabled {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[userID] = limiter
	}
	l.lastAccess[userID] = time.Now()
	return limiter.Allow()
}

// Evict removes limiters that haven't been accessed within maxAge.
func (l *recipientLimiter) Evict(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for id, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, id)
			delete(l.lastAccess, id)
		}
	}
}

// Len returns the number of tracked recipients.
func (l *recipientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
