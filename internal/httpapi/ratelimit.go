package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// fixedWindowLimiter throttles credential guessing on the login
// endpoint, keyed by client IP.
type fixedWindowLimiter struct {
	mu      sync.Mutex
	win     time.Duration
	max     int
	buckets map[string]*bucket
}

func newFixedWindowLimiter(max int, window time.Duration) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		win:     window,
		max:     max,
		buckets: make(map[string]*bucket),
	}
}

func (l *fixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || now.After(b.resetAt) {
		b = &bucket{resetAt: now.Add(l.win)}
		l.buckets[key] = b
		// Drop stale buckets opportunistically to bound the map.
		for k, old := range l.buckets {
			if now.After(old.resetAt) {
				delete(l.buckets, k)
			}
		}
	}
	b.count++
	if b.count <= l.max {
		return true, 0
	}
	return false, time.Until(b.resetAt)
}

// withLoginLimit rejects clients that exceeded the login attempt
// budget for the current window.
func (s *Server) withLoginLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retry := s.loginLimiter.Allow(clientIP(r))
		if !ok {
			w.Header().Set("retry-after", retryAfterSeconds(retry))
			writeError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
			return
		}
		next(w, r)
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
