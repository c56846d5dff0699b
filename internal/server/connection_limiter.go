package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// globalStreamLimiter caps total concurrent stream connections per instance.
type globalStreamLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalStreamLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalStreamLimiter) release() {
	l.current.Add(-1)
}

// ipStreamLimiter caps concurrent stream connections per client IP.
type ipStreamLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func (l *ipStreamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipStreamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count := l.ips[ip]; count > 0 {
		l.ips[ip] = count - 1
		if l.ips[ip] == 0 {
			delete(l.ips, ip)
		}
	}
}

// streamRateLimiter caps the rate of new stream connections per IP with a
// token bucket per IP. Idle buckets are swept every few minutes.
type streamRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const rateLimiterCleanupInterval = 5 * time.Minute

func (l *streamRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-2 * rateLimiterCleanupInterval)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.cleanupAt = now.Add(rateLimiterCleanupInterval)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// LimitReason describes why a stream connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// StreamLimits combines the global, per-IP, and rate limiters guarding the
// SSE and WebSocket endpoints.
type StreamLimits struct {
	global *globalStreamLimiter
	perIP  *ipStreamLimiter
	rate   *streamRateLimiter
}

func NewStreamLimits(globalMax int64, perIPMax int, connsPerSecond float64, burst int) *StreamLimits {
	return &StreamLimits{
		global: &globalStreamLimiter{max: globalMax},
		perIP:  &ipStreamLimiter{ips: make(map[string]int), maxPer: perIPMax},
		rate: &streamRateLimiter{
			limiters:  make(map[string]*rateLimiterEntry),
			rate:      rate.Limit(connsPerSecond),
			burst:     burst,
			cleanupAt: time.Now().Add(rateLimiterCleanupInterval),
		},
	}
}

// Acquire claims a stream slot for the given IP. On failure it reports which
// limit rejected the connection; nothing is held.
func (l *StreamLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.allow(ip) {
		return false, LimitReasonRate
	}
	if !l.global.acquire() {
		return false, LimitReasonGlobal
	}
	if !l.perIP.acquire(ip) {
		l.global.release()
		return false, LimitReasonPerIP
	}
	return true, ""
}

// Release returns the slot claimed by a successful Acquire.
func (l *StreamLimits) Release(ip string) {
	l.perIP.release(ip)
	l.global.release()
}

// CurrentConnections returns the number of held stream slots.
func (l *StreamLimits) CurrentConnections() int64 {
	return l.global.current.Load()
}
