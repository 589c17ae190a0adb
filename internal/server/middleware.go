package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// GetRealIP attempts to determine the client's real IP address, trusting
// headers like CF-Connecting-IP or X-Forwarded-For if configured to do so.
func GetRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
			return strings.TrimSpace(cf)
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// ipLimiters holds one token bucket per client IP.
type ipLimiters struct {
	clients map[string]*ipClient
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
}

type ipClient struct {
	lastSeen time.Time
	limiter  *rate.Limiter
}

func newIPLimiters(count int, window time.Duration) *ipLimiters {
	if count < 1 {
		count = 1
	}
	limit := rate.Inf
	if window > 0 {
		limit = rate.Limit(float64(count) / window.Seconds())
	}

	return &ipLimiters{
		clients: make(map[string]*ipClient),
		limit:   limit,
		burst:   count,
	}
}

func (l *ipLimiters) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	cli, found := l.clients[ip]
	if !found {
		cli = &ipClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cli
	}
	cli.lastSeen = now
	limiter := cli.limiter
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// forget drops clients idle for longer than idle.
func (l *ipLimiters) forget(now time.Time, idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(l.clients, ip)
		}
	}
}

// RateLimitMiddleware applies the per-IP hard rate limit shared by every
// wrapped route. It rejects requests with "429 Too Many Requests".
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	limiters := s.limiters

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiters.allow(GetRealIP(r, s.trustProxy), time.Now()) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status, client IP and duration of each request.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metricRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metricRequestSeconds.WithLabelValues(r.Method).Observe(elapsed.Seconds())

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Str("ip", GetRealIP(r, s.trustProxy)).
			Dur("duration", elapsed).
			Msg("Request handled")
	})
}

// AdminAuthMiddleware protects endpoints by requiring a valid Bearer token in the Authorization header.
func AdminAuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authorized reports whether r carries the bearer token. An empty token authorizes nobody.
func authorized(r *http.Request, token string) bool {
	if token == "" {
		return false
	}

	got := []byte(r.Header.Get("Authorization"))
	return subtle.ConstantTimeCompare(got, []byte("Bearer "+token)) == 1
}
