package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds the limits applied to detection uploads.
type RateLimitConfig struct {
	RequestsPerMinute int
	MaxDataPerDay     int64 // bytes, 0 disables the quota
}

// RateLimiter tracks per-client request rates and daily upload quotas.
type RateLimiter struct {
	mu  sync.Mutex
	cfg RateLimitConfig

	clients map[string]*clientUsage
}

type clientUsage struct {
	minuteStart    time.Time
	requestsMinute int

	dayStart  time.Time
	dataToday int64
}

// RateLimitError indicates a request rate limit was exceeded.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s (limit %d, retry after %s)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError indicates a daily quota was exceeded.
type QuotaExceededError struct {
	Type   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s (used %d of %d, resets %s)", e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientUsage),
	}
}

// Check reports whether a request from the given client is allowed and,
// if so, records it.
func (rl *RateLimiter) Check(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{minuteStart: now, dayStart: now}
		rl.clients[clientID] = usage
	}

	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.minuteStart = now
		usage.requestsMinute = 0
	}
	if now.Sub(usage.dayStart) >= 24*time.Hour {
		usage.dayStart = now
		usage.dataToday = 0
	}

	if rl.cfg.RequestsPerMinute > 0 && usage.requestsMinute >= rl.cfg.RequestsPerMinute {
		return &RateLimitError{
			Type:       "requests_per_minute",
			Limit:      rl.cfg.RequestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.minuteStart),
		}
	}
	if rl.cfg.MaxDataPerDay > 0 && usage.dataToday+dataSize > rl.cfg.MaxDataPerDay {
		return &QuotaExceededError{
			Type:   "max_data_per_day",
			Limit:  rl.cfg.MaxDataPerDay,
			Used:   usage.dataToday,
			Resets: usage.dayStart.Add(24 * time.Hour),
		}
	}

	usage.requestsMinute++
	usage.dataToday += dataSize
	return nil
}

// Stats returns the number of tracked clients.
func (rl *RateLimiter) Stats() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
