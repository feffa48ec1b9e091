package common

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultLimiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterPool hands out one token bucket per client key. Buckets unused for
// idleTTL are swept on a later call.
type LimiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &LimiterPool{
		m:       make(map[string]*limiterEntry),
		rps:     rps,
		burst:   burst,
		idleTTL: DefaultLimiterIdleTTL,
		now:     time.Now,
	}
}

// WithIdleTTL sets how long an unused bucket is kept.
func (p *LimiterPool) WithIdleTTL(ttl time.Duration) *LimiterPool {
	if ttl > 0 {
		p.idleTTL = ttl
	}
	return p
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= p.idleTTL {
		p.sweep(now)
	}

	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{limiter: l, lastSeen: now}
	return l
}

// sweep drops idle buckets. Callers hold p.mu.
func (p *LimiterPool) sweep(now time.Time) {
	for key, e := range p.m {
		if now.Sub(e.lastSeen) >= p.idleTTL {
			delete(p.m, key)
		}
	}
	p.lastSweep = now
}

func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Len reports how many buckets are held.
func (p *LimiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// ClientKeyFunc derives the rate limit key of a request.
type ClientKeyFunc func(r *http.Request) string

// ClientKey identifies the caller by its remote address. X-Forwarded-For is
// ignored; use TrustedClientKey behind a reverse proxy.
func ClientKey(r *http.Request) string {
	return remoteHost(r)
}

// TrustedClientKey honours X-Forwarded-For only when the connection comes
// from one of the trusted proxies. The chain is walked right to left and the
// first hop that is not itself a trusted proxy is the client.
func TrustedClientKey(trusted []string) (ClientKeyFunc, error) {
	nets, err := parseNetworks(trusted)
	if err != nil {
		return nil, err
	}
	if len(nets) == 0 {
		return ClientKey, nil
	}

	isTrusted := func(host string) bool {
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		remote := remoteHost(r)
		if !isTrusted(remote) {
			return remote
		}
		hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if net.ParseIP(hop) == nil {
				return remote
			}
			if !isTrusted(hop) {
				return hop
			}
		}
		return remote
	}, nil
}

func parseNetworks(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
