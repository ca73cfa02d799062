package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens added per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket
// capacity: maximum burst
// refillRate: tokens added per second
func NewTokenBucket(capacity int, refillRate float64, now func() time.Time) *TokenBucket {
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now
}

// Take spends one token. Returns false if none was available.
func (tb *TokenBucket) Take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Exhausted reports whether no whole token is available, without spending.
func (tb *TokenBucket) Exhausted() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens < 1.0
}

// RetryAfter returns how long until one token is available.
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration((1.0 - tb.tokens) / tb.refillRate * float64(time.Second))
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// Limiter keeps one bucket per key
type Limiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration
	now        func() time.Time
	mu         sync.Mutex
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewLimiter creates a keyed limiter. Buckets idle for longer than ttl are
// dropped by a background sweep; ttl 0 keeps them forever.
func NewLimiter(capacity int, refillRate float64, ttl time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	l := &Limiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		now:        now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go l.cleanup()
	}
	return l
}

func (l *Limiter) bucket(key string, create bool) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok && create {
		b = NewTokenBucket(l.capacity, l.refillRate, l.now)
		l.buckets[key] = b
	}
	return b
}

// Take spends a token for key.
func (l *Limiter) Take(key string) bool {
	return l.bucket(key, true).Take()
}

// Exhausted reports whether key has no token left. Unknown keys are not
// exhausted.
func (l *Limiter) Exhausted(key string) bool {
	b := l.bucket(key, false)
	return b != nil && b.Exhausted()
}

// RetryAfter returns how long key stays exhausted.
func (l *Limiter) RetryAfter(key string) time.Duration {
	b := l.bucket(key, false)
	if b == nil {
		return 0
	}
	return b.RetryAfter()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.idleSince()) > l.ttl {
			delete(l.buckets, key)
		}
	}
}
