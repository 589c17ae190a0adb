package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/models"
	"github.com/woozymasta/sonar/internal/storage"
	"github.com/woozymasta/sonar/internal/vars"
	"github.com/woozymasta/sonar/pkg/transport"
	"github.com/woozymasta/sonar/pkg/wire"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleListServers returns stored servers.
// Query params: game, map, country, app_id, not_empty, limit, offset.
func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ServerFilter{
		Game:     q.Get("game"),
		Map:      q.Get("map"),
		Country:  q.Get("country"),
		NotEmpty: q.Get("not_empty") == "true" || q.Get("not_empty") == "1",
		Limit:    defaultPageSize,
	}

	var err error
	if filter.AppID, err = intParam(q.Get("app_id"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid app_id")
		return
	}
	if filter.Limit, err = intParam(q.Get("limit"), defaultPageSize); err != nil || filter.Limit < 1 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	filter.Limit = min(filter.Limit, maxPageSize)
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil || filter.Offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	servers, err := s.storage.GetServers(filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, servers)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// serverKey reads and validates the {ip} and {port} path values.
func serverKey(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	ip, err := netip.ParseAddr(r.PathValue("ip"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ip")
		return "", 0, false
	}

	port, err := models.ParsePort(r.PathValue("port"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid port")
		return "", 0, false
	}

	return ip.Unmap().String(), port, true
}

// handleGetServer returns one stored server.
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	ip, port, ok := serverKey(w, r)
	if !ok {
		return
	}

	srv, err := s.storage.GetServer(ip, port)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, srv)
}

// handleDeleteServer removes a stored server. Protected by AdminAuthMiddleware.
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	ip, port, ok := serverKey(w, r)
	if !ok {
		return
	}

	err := s.storage.DeleteServer(ip, port)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("ip", ip).Int("port", port).Msg("Failed to delete server")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	log.Info().Str("ip", ip).Int("port", port).Msg("Server deleted manually")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery performs a live A2S query and returns the decoded reply.
// Path: /api/a2s/{info|players|rules}?addr=host:port
// Without the admin token only stored servers can be queried.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("addr")
	if err := transport.ValidateAddress(addr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !authorized(r, s.authToken) && !s.isStored(w, addr) {
		return
	}

	var (
		reply any
		err   error
	)
	switch r.PathValue("kind") {
	case "info":
		reply, err = s.query.Info(r.Context(), addr)
	case "players":
		reply, err = s.query.Players(r.Context(), addr)
	case "rules":
		reply, err = s.query.Rules(r.Context(), addr)
	default:
		writeError(w, http.StatusNotFound, "unknown query kind")
		return
	}

	if err != nil {
		log.Debug().Err(err).Str("addr", addr).Msg("Live query failed")
		writeError(w, queryErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// isStored checks that addr is a stored server and writes the error response otherwise.
func (s *Server) isStored(w http.ResponseWriter, addr string) bool {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		writeError(w, http.StatusForbidden, "only stored servers can be queried by IP address")
		return false
	}

	_, err = s.storage.GetServer(ap.Addr().Unmap().String(), int(ap.Port()))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusForbidden, "server is not stored")
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server")
		writeError(w, http.StatusInternalServerError, "database error")
		return false
	}

	return true
}

func queryErrorStatus(err error) int {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, wire.ErrMalformed), errors.Is(err, transport.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, transport.ErrInvalidAddress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleStats reports the stored server count and announce queue depth.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	count, err := s.storage.CountServers()
	if err != nil {
		log.Error().Err(err).Msg("Failed to count servers")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"servers": count,
		"queued":  int64(len(s.queue)),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
