package ipsum

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrCacheWrite wraps any cache write failure inside the admission path.
// It is fatal for the request: the limiter never admits on a failed write.
var ErrCacheWrite = errors.New("rate limit cache write failed")

// Decision is the outcome of RateLimiter.Admit.
type Decision int

const (
	Admit Decision = iota
	RejectMissingIdentity
	RejectThrottled
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case RejectMissingIdentity:
		return "missing_identity"
	case RejectThrottled:
		return "throttled"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// LimiterConfig holds the admission thresholds.
type LimiterConfig struct {
	// Threshold is the number of admitted requests allowed per identity
	// inside one counter bucket. Request Threshold+1 imposes a block.
	Threshold int
	// CounterTTL is re-armed on every counter write.
	CounterTTL time.Duration
	// BlockDuration is how long a blocked identity stays blocked.
	BlockDuration time.Duration
	// Strict serializes the read-take-set sequence per identity so that
	// concurrent requests from one identity cannot lose an increment.
	Strict bool
}

// DefaultLimiterConfig: 7 per bucket, 2s counter TTL, 300s block.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Threshold:     7,
		CounterTTL:    2 * time.Second,
		BlockDuration: 300 * time.Second,
	}
}

// RateLimiter gates requests per client identity using a per-second counter
// and a block entry, both stored in a Cache.
//
// Flow on Admit:
//  1. Reject an empty identity.
//  2. If the block entry exists, reject as throttled; the counter is not touched.
//  3. Take the counter for the current epoch second. Absent: write 1.
//     Present: increment; past the threshold write the block entry and
//     reject, otherwise write the new count back with a fresh TTL.
//
// Without Strict, two concurrent requests from the same identity can both
// Take before either Sets, losing one increment (undercount, never overcount).
type RateLimiter struct {
	cache Cache
	cfg   LimiterConfig
	now   Clock
	log   *log.Logger
	locks *stripedMutex
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock sets the time source used for bucketing.
func WithLimiterClock(c Clock) LimiterOption {
	return func(l *RateLimiter) { l.now = c }
}

// WithLimiterLogger sets the logger for debug output.
func WithLimiterLogger(lg *log.Logger) LimiterOption {
	return func(l *RateLimiter) { l.log = lg }
}

// NewRateLimiter builds a RateLimiter on top of c. Zero fields in cfg fall
// back to DefaultLimiterConfig.
func NewRateLimiter(c Cache, cfg LimiterConfig, opts ...LimiterOption) *RateLimiter {
	if c == nil {
		panic("rate limiter cache is required")
	}
	def := DefaultLimiterConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.CounterTTL <= 0 {
		cfg.CounterTTL = def.CounterTTL
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = def.BlockDuration
	}
	l := &RateLimiter{cache: c, cfg: cfg, now: time.Now, log: log.Default()}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.Strict {
		l.locks = newStripedMutex(64)
	}
	return l
}

// Config returns the effective configuration.
func (l *RateLimiter) Config() LimiterConfig { return l.cfg }

// Admit decides whether a request from identity may proceed. The returned
// error is non-nil only for cache write failures and always wraps ErrCacheWrite.
// A non-nil error takes precedence over the Decision, which is then
// RejectThrottled so that a caller ignoring the error still refuses.
func (l *RateLimiter) Admit(identity string) (Decision, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return RejectMissingIdentity, nil
	}
	if l.locks != nil {
		mu := l.locks.get(identity)
		mu.Lock()
		defer mu.Unlock()
	}

	blockKey := BlockKey(identity)
	if _, ok := l.cache.Get(blockKey); ok {
		return RejectThrottled, nil
	}

	now := l.now()
	sec := now.Unix()
	counterKey := CounterKey(identity, sec)

	v, ok := l.cache.Take(counterKey)
	count, isInt := v.(int)
	if !ok || !isInt {
		if err := l.set(counterKey, 1, l.cfg.CounterTTL); err != nil {
			return RejectThrottled, err
		}
		return Admit, nil
	}

	count++
	if count > l.cfg.Threshold {
		until := sec + int64(l.cfg.BlockDuration/time.Second)
		if err := l.set(blockKey, until, l.cfg.BlockDuration); err != nil {
			return RejectThrottled, err
		}
		l.log.Info("identity blocked", "identity", identity, "until", until)
		return RejectThrottled, nil
	}

	if err := l.set(counterKey, count, l.cfg.CounterTTL); err != nil {
		return RejectThrottled, err
	}
	return Admit, nil
}

func (l *RateLimiter) set(key string, v any, ttl time.Duration) error {
	if err := l.cache.Set(key, v, ttl); err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrCacheWrite, key, err)
	}
	l.log.Debug("cache key was set", "key", key)
	return nil
}

// stripedMutex maps identities onto a fixed set of mutexes.
type stripedMutex struct {
	stripes []sync.Mutex
}

func newStripedMutex(n int) *stripedMutex {
	return &stripedMutex{stripes: make([]sync.Mutex, n)}
}

func (s *stripedMutex) get(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}
