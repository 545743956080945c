package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterPruneAt = 1024

// userLimiter applies a token bucket per user id.
type userLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	byUser  map[int64]*rate.Limiter
	enabled bool
}

// newUserLimiter allows perMinute lookups per user; perMinute <= 0 disables limiting.
func newUserLimiter(perMinute int) *userLimiter {
	if perMinute <= 0 {
		return &userLimiter{}
	}
	return &userLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   min(perMinute, 3),
		byUser:  make(map[int64]*rate.Limiter),
		enabled: true,
	}
}

// Allow reports whether userID may start another lookup now.
func (l *userLimiter) Allow(userID int64) bool {
	if !l.enabled {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.byUser[userID]
	if !ok {
		if len(l.byUser) >= limiterPruneAt {
			l.pruneLocked()
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.byUser[userID] = lim
	}
	return lim.Allow()
}

// pruneLocked drops limiters whose bucket has refilled. Caller must hold l.mu.
func (l *userLimiter) pruneLocked() {
	for id, lim := range l.byUser {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.byUser, id)
		}
	}
}
