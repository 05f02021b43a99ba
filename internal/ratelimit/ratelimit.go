// Package ratelimit implements per-identity fixed-window admission control.
//
// Every key is the pair (identity, route class). Distinct route classes
// carry independently configured limits so a burst against login does not
// consume the generic budget. Counters are updated under one mutex, which
// keeps admission exact under concurrent requests from the same identity:
// the effective limit is never exceeded.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type RouteClass string

const (
	ClassGeneric RouteClass = "generic"
	ClassLogin   RouteClass = "login"
	ClassChat    RouteClass = "chat"
)

type WindowConfig struct {
	Limit  int
	Window time.Duration
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	Remaining  int
}

// LimitError is returned up the middleware chain for rejected requests and
// mapped to a 429 envelope by the error handler.
type LimitError struct {
	Class      RouteClass
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Class, e.RetryAfter)
}

type key struct {
	identity string
	class    RouteClass
}

type window struct {
	count    int
	start    time.Time
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	windows map[key]*window
	limits  map[RouteClass]WindowConfig
	log     *zap.SugaredLogger

	// now is swapped out in tests
	now func() time.Time

	sweepPeriod time.Duration
	idleAfter   time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

func New(log *zap.SugaredLogger, limits map[RouteClass]WindowConfig, sweepPeriod, idleAfter time.Duration) *Limiter {
	l := &Limiter{
		windows:     map[key]*window{},
		limits:      limits,
		log:         log,
		now:         time.Now,
		sweepPeriod: sweepPeriod,
		idleAfter:   idleAfter,
		done:        make(chan struct{}),
	}
	if sweepPeriod > 0 {
		go l.sweepLoop()
	}
	return l
}

// Admit records one request for (identity, class) and decides admission.
// Windows are created lazily on first request and reset atomically once
// elapsed time reaches the configured window.
func (l *Limiter) Admit(identity string, class RouteClass) Decision {
	cfg, ok := l.limits[class]
	if !ok {
		cfg = l.limits[ClassGeneric]
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		// Misconfigured class fails closed.
		return Decision{Allowed: false, RetryAfter: time.Minute}
	}

	now := l.now()
	k := key{identity: identity, class: class}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[k]
	if !exists || now.Sub(w.start) >= cfg.Window {
		l.windows[k] = &window{count: 1, start: now, lastSeen: now}
		return Decision{Allowed: true, Limit: cfg.Limit, Remaining: cfg.Limit - 1}
	}

	w.lastSeen = now
	w.count++
	if w.count > cfg.Limit {
		return Decision{
			Allowed:    false,
			RetryAfter: cfg.Window - now.Sub(w.start),
			Limit:      cfg.Limit,
		}
	}
	return Decision{Allowed: true, Limit: cfg.Limit, Remaining: cfg.Limit - w.count}
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep evicts windows idle past idleAfter. Lazy reset in Admit keeps
// correctness without it; this only reclaims memory.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.idleAfter)
	l.mu.Lock()
	evicted := 0
	for k, w := range l.windows {
		if w.lastSeen.Before(cutoff) {
			delete(l.windows, k)
			evicted++
		}
	}
	l.mu.Unlock()
	if evicted > 0 {
		l.log.Debugw("Evicted idle rate limit windows", "count", evicted)
	}
}

func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}
