package api

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

// deniedLimiter backs off clients that keep hitting session-gated routes
// without a session. Every such request costs a lookup on the
// authentication service, so a locked-out client is answered with 429
// before the lookup happens.
type deniedLimiter struct {
	mu       sync.Mutex
	attempts map[string]*denialRecord

	maxDenials  int
	baseLockout time.Duration
	maxLockout  time.Duration
	expiry      time.Duration
	maxTracked  int
	now         func() time.Time
}

type denialRecord struct {
	denials     int
	lastDenial  time.Time
	lockedUntil time.Time
}

const (
	defaultMaxDenials  = 30
	defaultBaseLockout = 30 * time.Second
	defaultMaxLockout  = 15 * time.Minute
	denialExpiry       = 1 * time.Hour
	// defaultMaxTracked is the record count that triggers a sweep of idle
	// records when a new client is denied.
	defaultMaxTracked = 10000
)

func newDeniedLimiter() *deniedLimiter {
	return &deniedLimiter{
		attempts:    make(map[string]*denialRecord),
		maxDenials:  defaultMaxDenials,
		baseLockout: defaultBaseLockout,
		maxLockout:  defaultMaxLockout,
		expiry:      denialExpiry,
		maxTracked:  defaultMaxTracked,
		now:         time.Now,
	}
}

func (rl *deniedLimiter) check(ip string) (blocked bool, retryAfter time.Duration) {
	if ip == "" {
		return false, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[ip]
	if !ok {
		return false, 0
	}
	now := rl.now()
	if now.Sub(rec.lastDenial) > rl.expiry {
		delete(rl.attempts, ip)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

func (rl *deniedLimiter) recordDenial(ip string) {
	if ip == "" {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rec, ok := rl.attempts[ip]
	if !ok {
		if len(rl.attempts) >= rl.maxTracked {
			rl.sweep(now)
		}
		rec = &denialRecord{}
		rl.attempts[ip] = rec
	}
	rec.denials++
	rec.lastDenial = now

	if rec.denials >= rl.maxDenials {
		lockout := rl.baseLockout
		for i := rl.maxDenials; i < rec.denials && lockout < rl.maxLockout; i++ {
			lockout *= 2
		}
		rec.lockedUntil = now.Add(min(lockout, rl.maxLockout))
	}
}

func (rl *deniedLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// sweep drops records idle for longer than the expiry. rl.mu must be held.
func (rl *deniedLimiter) sweep(now time.Time) {
	for ip, rec := range rl.attempts {
		if now.Sub(rec.lastDenial) > rl.expiry {
			delete(rl.attempts, ip)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := max(int(retryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "too many unauthenticated requests; try again later")
}

// clientIP returns the address a request is rate limited by. Proxy
// headers count only when the direct peer is inside trustedProxies;
// otherwise RemoteAddr is used.
func clientIP(r *http.Request, trustedProxies []netip.Prefix) string {
	remote, _ := parseIP(r.RemoteAddr)
	if remote == "" || len(trustedProxies) == 0 {
		return remote
	}
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return remote
	}
	trusted := false
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			trusted = true
			break
		}
	}
	if !trusted {
		return remote
	}

	for part := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
		if ip, ok := parseIP(part); ok {
			return ip
		}
	}
	for elem := range strings.SplitSeq(r.Header.Get("Forwarded"), ",") {
		for param := range strings.SplitSeq(elem, ";") {
			param = strings.TrimSpace(param)
			if len(param) > 4 && strings.EqualFold(param[:4], "for=") {
				if ip, ok := parseIP(param[4:]); ok {
					return ip
				}
			}
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	return remote
}

func parseIP(raw string) (string, bool) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
