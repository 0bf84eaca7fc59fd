// internal/app/system/ratelimit/ratelimit.go
// Package ratelimit throttles login and registration attempts per client
// address and per account email.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/normalize"
)

// Limiter is a fixed-window counter keyed by string. Expired windows are
// swept lazily on Allow, so no background goroutine is needed.
type Limiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	duration  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit hits per key per duration.
func New(limit int, duration time.Duration) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// RetryAfter is how long key must wait before its window resets.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	if d := w.expiresAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < 2*l.duration {
		return
	}
	l.lastSweep = now
	for key, w := range l.windows {
		if now.After(w.expiresAt) {
			delete(l.windows, key)
		}
	}
}

// ClientIP extracts the client IP, preferring X-Forwarded-For and X-Real-IP
// set by the reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter combines a per-IP and a per-email limiter, covering both
// spraying from one address and targeting one account.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

// Config sizes a LoginLimiter. Zero fields take the defaults of
// NewLoginLimiter.
type Config struct {
	IPLimit     int
	IPWindow    time.Duration
	EmailLimit  int
	EmailWindow time.Duration
}

// NewLoginLimiter allows 10 attempts per IP per minute and 5 per email per
// 5 minutes unless cfg says otherwise.
func NewLoginLimiter(cfg Config) *LoginLimiter {
	if cfg.IPLimit <= 0 {
		cfg.IPLimit = 10
	}
	if cfg.IPWindow <= 0 {
		cfg.IPWindow = time.Minute
	}
	if cfg.EmailLimit <= 0 {
		cfg.EmailLimit = 5
	}
	if cfg.EmailWindow <= 0 {
		cfg.EmailWindow = 5 * time.Minute
	}
	return &LoginLimiter{
		ip:    New(cfg.IPLimit, cfg.IPWindow),
		email: New(cfg.EmailLimit, cfg.EmailWindow),
	}
}

// Check counts one attempt and returns apperr.ErrTooManyAttempts with the
// wait duration when either limit is exceeded.
func (ll *LoginLimiter) Check(r *http.Request, email string) (time.Duration, error) {
	ip := ClientIP(r)
	if !ll.ip.Allow(ip) {
		return ll.ip.RetryAfter(ip), apperr.ErrTooManyAttempts
	}
	if key := normalize.Email(email); key != "" {
		if !ll.email.Allow(key) {
			return ll.email.RetryAfter(key), apperr.ErrTooManyAttempts
		}
	}
	return 0, nil
}

// Succeeded clears the email window after a successful login.
func (ll *LoginLimiter) Succeeded(email string) {
	if key := normalize.Email(email); key != "" {
		ll.email.Reset(key)
	}
}
