// Package crawler discovers servers through a master server, queries their
// A2S_INFO with a bounded worker pool and stores every server that answers.
package crawler

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/game"
	"github.com/woozymasta/sonar/internal/geoip"
	"github.com/woozymasta/sonar/internal/models"
	"github.com/woozymasta/sonar/pkg/master"
	"golang.org/x/time/rate"
)

// Store receives every server that answered.
type Store interface {
	UpsertServer(s models.Server) error
}

// Config describes one crawl.
type Config struct {
	Filter        *master.Filter
	Master        string
	MasterOptions []master.Option
	Rate          rate.Limit
	Workers       int
	Region        master.Region
}

// Stats summarizes a finished crawl.
type Stats struct {
	Duration   time.Duration `json:"duration"`
	Discovered int64         `json:"discovered"`
	Duplicates int64         `json:"duplicates"`
	Queried    int64         `json:"queried"`
	Failed     int64         `json:"failed"`
	Saved      int64         `json:"saved"`
	StoreErrs  int64         `json:"store_errors"`
}

type counters struct {
	discovered, duplicates, queried, failed, saved, storeErrs atomic.Int64
}

func (c *counters) snapshot(elapsed time.Duration) Stats {
	return Stats{
		Duration:   elapsed,
		Discovered: c.discovered.Load(),
		Duplicates: c.duplicates.Load(),
		Queried:    c.queried.Load(),
		Failed:     c.failed.Load(),
		Saved:      c.saved.Load(),
		StoreErrs:  c.storeErrs.Load(),
	}
}

// Crawler runs crawls. It is safe to reuse sequentially.
type Crawler struct {
	query game.Querier
	store Store
	geo   geoip.Resolver
	now   func() time.Time
	cfg   Config
}

// New returns a Crawler. geo may be nil to skip country lookup.
func New(cfg Config, query game.Querier, store Store, geo geoip.Resolver) *Crawler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Rate == 0 {
		cfg.Rate = rate.Inf
	}

	return &Crawler{
		cfg:   cfg,
		query: query,
		store: store,
		geo:   geo,
		now:   time.Now,
	}
}

// Run enumerates the master server and queries every unique address.
// A master failure stops discovery, but addresses already discovered are
// still queried; the failure is returned with the statistics.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	var (
		stats   counters
		wg      sync.WaitGroup
		seen    = newAddrSet()
		jobs    = make(chan netip.AddrPort, c.cfg.Workers*2)
		limiter = rate.NewLimiter(c.cfg.Rate, c.cfg.Workers)
	)

	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					continue
				}
				c.process(ctx, addr, &stats)
			}
		}()
	}

	var masterErr error
	for addr, err := range master.Servers(ctx, c.cfg.Master, c.cfg.Region, c.cfg.Filter, c.cfg.MasterOptions...) {
		if err != nil {
			masterErr = err
			break
		}

		if !seen.add(addr) {
			stats.duplicates.Add(1)
			metricServers.WithLabelValues(resultDuplicate).Inc()
			continue
		}
		stats.discovered.Add(1)
		metricServers.WithLabelValues(resultDiscovered).Inc()

		select {
		case jobs <- addr:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	result := stats.snapshot(time.Since(start))
	metricLastRun.SetToCurrentTime()
	log.Info().
		Int64("discovered", result.Discovered).
		Int64("duplicates", result.Duplicates).
		Int64("saved", result.Saved).
		Int64("failed", result.Failed).
		Dur("took", result.Duration).
		Msg("Crawl finished")

	if masterErr == nil && ctx.Err() != nil {
		masterErr = ctx.Err()
	}

	return result, masterErr
}

func (c *Crawler) process(ctx context.Context, addr netip.AddrPort, stats *counters) {
	logCtx := log.With().Str("addr", addr.String()).Logger()
	stats.queried.Add(1)

	info, err := c.query.Info(ctx, addr.String())
	if err != nil {
		stats.failed.Add(1)
		metricServers.WithLabelValues(resultFailed).Inc()
		if !errors.Is(err, context.Canceled) {
			logCtx.Debug().Err(err).Msg("Server did not answer")
		}
		return
	}

	s := models.NewServer(addr, info, c.now())
	if c.geo != nil {
		s.CountryCode = c.geo.CountryCode(addr.Addr())
	}

	if err := c.store.UpsertServer(s); err != nil {
		stats.storeErrs.Add(1)
		metricServers.WithLabelValues(resultStoreError).Inc()
		logCtx.Error().Err(err).Msg("Failed to store server")
		return
	}

	stats.saved.Add(1)
	metricServers.WithLabelValues(resultSaved).Inc()
	logCtx.Trace().Str("name", s.Name).Msg("Server stored")
}

// addrSet remembers addresses by their 64-bit xxhash digest.
type addrSet struct {
	m map[uint64]struct{}
}

func newAddrSet() *addrSet {
	return &addrSet{m: make(map[uint64]struct{})}
}

// add reports whether addr was not yet present.
func (s *addrSet) add(addr netip.AddrPort) bool {
	var buf [18]byte
	b, _ := addr.AppendBinary(buf[:0])
	key := xxhash.Sum64(b)

	if _, ok := s.m[key]; ok {
		return false
	}
	s.m[key] = struct{}{}
	return true
}
