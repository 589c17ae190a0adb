package server

import (
	"net/netip"
	"sync"
	"time"

	"github.com/woozymasta/sonar/internal/game"
	"github.com/woozymasta/sonar/internal/geoip"
	"github.com/woozymasta/sonar/internal/models"
)

// Store is the repository surface used by the HTTP API.
type Store interface {
	GetServers(f models.ServerFilter) ([]models.Server, error)
	GetServer(ip string, port int) (models.Server, error)
	UpsertServer(s models.Server) error
	DeleteServer(ip string, port int) error
	CountServers() (int64, error)
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background announce processing.
type Server struct {
	// storage provides access to stored servers.
	storage Store

	// query runs live A2S requests for the proxy routes and announce workers.
	query game.Querier

	// geoip resolves announcing addresses to country codes. It can be nil.
	geoip geoip.Resolver

	// queue passes announce jobs from HTTP handlers to background workers.
	queue chan announceJob

	// queueMu guards sends on queue against StopWorkers closing it while a
	// handler outlives the HTTP shutdown.
	queueMu sync.RWMutex

	// stopped is set once queue is closed.
	stopped bool

	// shutdown broadcasts a stop signal to background goroutines.
	shutdown chan struct{}

	// seenCache tracks recently announced servers keyed by the xxhash of
	// their address; announces within softLimitDur are dropped.
	seenCache sync.Map

	// limiters holds the per-IP buckets shared by every rate-limited route.
	limiters *ipLimiters

	// authToken protects administrative routes. Empty disables them.
	authToken string

	wg sync.WaitGroup

	// maxBody bounds announce request bodies.
	maxBody int64

	softLimitDur time.Duration

	workers int

	// trustProxy makes GetRealIP honour CF-Connecting-IP and X-Forwarded-For.
	trustProxy bool
}

// announceJob is one server to query and store.
type announceJob struct {
	Addr netip.AddrPort
}
