// Package server implements the HTTP API over stored servers, live A2S
// proxies and the announce queue.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/woozymasta/sonar/internal/config"
	"github.com/woozymasta/sonar/internal/game"
	"github.com/woozymasta/sonar/internal/geoip"
)

const queueSize = 1000

// New creates a Server. geo may be nil.
func New(store Store, query game.Querier, geo geoip.Resolver, cfg config.Server) *Server {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Server{
		storage:      store,
		query:        query,
		geoip:        geo,
		authToken:    cfg.AuthToken,
		maxBody:      cfg.MaxBodySize,
		trustProxy:   cfg.TrustProxy,
		softLimitDur: cfg.SoftLimit,
		workers:      workers,
		limiters:     newIPLimiters(cfg.RateLimitCount, cfg.RateLimitWindow),

		queue:    make(chan announceJob, queueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the announce workers and the soft-limit cache cleanup.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.wg.Add(1)
	go s.gcSoftLimitCache()
}

// StopWorkers drains the queue and waits for the background goroutines.
func (s *Server) StopWorkers() {
	s.queueMu.Lock()
	if s.stopped {
		s.queueMu.Unlock()
		return
	}
	s.stopped = true
	close(s.queue)
	s.queueMu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
}

// enqueue hands job to the workers without blocking. It reports false when
// the queue is full or the workers are stopped.
func (s *Server) enqueue(job announceJob) (queued, stopped bool) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.stopped {
		return false, true
	}

	select {
	case s.queue <- job:
		return true, false
	default:
		return false, false
	}
}

// Handler configures the HTTP routes and returns the root handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	limited := s.RateLimitMiddleware

	mux.Handle("GET /api/servers", limited(http.HandlerFunc(s.handleListServers)))
	mux.Handle("GET /api/servers/{ip}/{port}", limited(http.HandlerFunc(s.handleGetServer)))
	mux.Handle("GET /api/a2s/{kind}", limited(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /api/announce", limited(http.HandlerFunc(s.handleAnnounce)))
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.authToken != "" {
		mux.Handle("GET /api/stats", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleStats)))
		mux.Handle("DELETE /api/servers/{ip}/{port}", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))
	}

	return s.LoggingMiddleware(mux)
}

// gcSoftLimitCache periodically drops expired soft-limit entries.
func (s *Server) gcSoftLimitCache() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.expireSeen(now)
			s.limiters.forget(now, 10*time.Minute)
		}
	}
}

func (s *Server) expireSeen(now time.Time) {
	s.seenCache.Range(func(key, value any) bool {
		if t, ok := value.(time.Time); !ok || now.Sub(t) > s.softLimitDur {
			s.seenCache.Delete(key)
		}
		return true
	})
}
