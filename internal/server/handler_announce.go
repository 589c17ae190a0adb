package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/models"
)

// AnnounceRequest is the body a game server posts to register its query port.
type AnnounceRequest struct {
	Port int `json:"port"`
}

// handleAnnounce queues the caller's address for an A2S_INFO query. The
// server is stored by a background worker once it answers.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	ip, err := netip.ParseAddr(GetRealIP(r, s.trustProxy))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot determine client address")
		return
	}
	ip = ip.Unmap()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req AnnounceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Str("ip", ip.String()).Msg("Invalid announce body")
		metricAnnounces.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Port < 1 || req.Port > 65535 {
		metricAnnounces.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid port")
		return
	}

	addr := netip.AddrPortFrom(ip, uint16(req.Port))
	key := xxhash.Sum64String(addr.String())

	now := time.Now()
	if val, ok := s.seenCache.Load(key); ok {
		if last, ok := val.(time.Time); ok && now.Sub(last) < s.softLimitDur {
			log.Trace().Str("addr", addr.String()).Msg("Dropped by soft limit hit")
			metricAnnounces.WithLabelValues("ignored").Inc()
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
	}

	queued, stopped := s.enqueue(announceJob{Addr: addr})
	switch {
	case queued:
		s.seenCache.Store(key, now)
		metricQueueLength.Set(float64(len(s.queue)))
		metricAnnounces.WithLabelValues("queued").Inc()
		log.Trace().Str("addr", addr.String()).Msg("Announce queued")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case stopped:
		metricAnnounces.WithLabelValues("dropped").Inc()
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		log.Warn().Str("addr", addr.String()).Msg("Queue full, announce dropped")
		metricAnnounces.WithLabelValues("dropped").Inc()
		writeError(w, http.StatusServiceUnavailable, "queue full")
	}
}

// worker processes announce jobs until the queue is closed.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		metricQueueLength.Set(float64(len(s.queue)))
		s.processJob(context.Background(), job)
	}
}

// processJob queries an announced server, resolves its country and stores it.
func (s *Server) processJob(ctx context.Context, job announceJob) {
	addr := job.Addr

	info, err := s.query.Info(ctx, addr.String())
	if err != nil {
		log.Debug().Err(err).Str("addr", addr.String()).Msg("Announced server did not answer")
		return
	}

	srv := models.NewServer(addr, info, time.Now())
	if s.geoip != nil {
		srv.CountryCode = s.geoip.CountryCode(addr.Addr())
	}

	if err := s.storage.UpsertServer(srv); err != nil {
		log.Error().Err(err).Str("addr", addr.String()).Msg("Failed to save announced server")
		return
	}

	log.Debug().Str("addr", addr.String()).Str("name", srv.Name).Msg("Announced server saved")
}
