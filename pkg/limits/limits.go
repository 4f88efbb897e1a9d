// Package limits caps concurrent connections per client address.
package limits

import (
	"net"
	"net/http"
	"sync"
)

// ConnLimiter limits concurrent connections per IP. The zero max means
// unlimited.
type ConnLimiter struct {
	max     int
	counts  map[string]int
	blocked int64
	mu      sync.Mutex
}

// NewConnLimiter creates a limiter allowing max connections per IP.
func NewConnLimiter(max int) *ConnLimiter {
	return &ConnLimiter{max: max, counts: make(map[string]int)}
}

// Acquire takes a slot for ip. It returns false when ip is at the limit.
func (l *ConnLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.counts[ip] >= l.max {
		l.blocked++
		return false
	}
	l.counts[ip]++
	return true
}

// Release returns a slot taken by Acquire.
func (l *ConnLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch n := l.counts[ip]; {
	case n <= 1:
		delete(l.counts, ip)
	default:
		l.counts[ip] = n - 1
	}
}

// Count returns the open connections for ip.
func (l *ConnLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ip]
}

// Blocked returns how many Acquire calls were refused.
func (l *ConnLimiter) Blocked() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocked
}

// ClientIP returns the host part of r.RemoteAddr. Behind a proxy, mount
// chi's RealIP middleware first so RemoteAddr holds the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
