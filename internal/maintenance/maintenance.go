// Package maintenance re-checks and prunes stored servers.
package maintenance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/game"
	"github.com/woozymasta/sonar/internal/models"
	"golang.org/x/time/rate"
)

// Store is the part of the repository maintenance needs.
type Store interface {
	GetServers(f models.ServerFilter) ([]models.Server, error)
	UpsertServer(s models.Server) error
	DeleteServer(ip string, port int) error
	DeleteStale(before time.Time) (int64, error)
}

// Options tunes a refresh.
type Options struct {
	// OnlyStale limits the refresh to servers not seen within the duration.
	OnlyStale time.Duration

	Rate    rate.Limit
	Workers int

	// KeepOffline keeps rows of servers that did not answer.
	KeepOffline bool
}

// Result counts what a refresh did.
type Result struct {
	Checked int64 `json:"checked"`
	Updated int64 `json:"updated"`
	Deleted int64 `json:"deleted"`
	Offline int64 `json:"offline"`
}

// Prune deletes servers not seen within maxAge.
func Prune(store Store, maxAge time.Duration) (int64, error) {
	log.Info().Dur("max_age", maxAge).Msg("Pruning stale servers")

	n, err := store.DeleteStale(time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	log.Info().Int64("deleted", n).Msg("Prune finished")
	return n, nil
}

// Refresh re-queries stored servers. Reachable servers are updated, the
// others are deleted unless opts.KeepOffline is set.
func Refresh(ctx context.Context, store Store, query game.Querier, opts Options) (Result, error) {
	var filter models.ServerFilter
	if opts.OnlyStale > 0 {
		filter.SeenBefore = time.Now().Add(-opts.OnlyStale)
	}

	servers, err := store.GetServers(filter)
	if err != nil {
		return Result{}, err
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return Result{}, nil
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Rate == 0 {
		opts.Rate = rate.Inf
	}

	log.Info().Int("count", len(servers)).Int("workers", opts.Workers).Msg("Refreshing stored servers")

	var (
		res     result
		wg      sync.WaitGroup
		jobs    = make(chan models.Server, len(servers))
		limiter = rate.NewLimiter(opts.Rate, opts.Workers)
	)

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					continue
				}
				refreshServer(ctx, s, store, query, opts.KeepOffline, &res)
			}
		}()
	}

	for _, s := range servers {
		jobs <- s
	}
	close(jobs)
	wg.Wait()

	out := Result{
		Checked: res.checked.Load(),
		Updated: res.updated.Load(),
		Deleted: res.deleted.Load(),
		Offline: res.offline.Load(),
	}
	log.Info().
		Int64("checked", out.Checked).
		Int64("updated", out.Updated).
		Int64("deleted", out.Deleted).
		Msg("Maintenance task completed")

	return out, ctx.Err()
}

type result struct {
	checked, updated, deleted, offline atomic.Int64
}

func refreshServer(ctx context.Context, s models.Server, store Store, query game.Querier, keepOffline bool, res *result) {
	logCtx := log.With().
		Str("ip", s.IP).
		Int("port", s.Port).
		Logger()

	res.checked.Add(1)

	info, err := query.Info(ctx, s.Address())
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		res.offline.Add(1)
		if keepOffline {
			logCtx.Debug().Err(err).Msg("Server unreachable, keeping")
			return
		}

		logCtx.Debug().Err(err).Msg("Server unreachable, deleting")
		if err := store.DeleteServer(s.IP, s.Port); err != nil {
			logCtx.Error().Err(err).Msg("Failed to delete unreachable server")
			return
		}
		res.deleted.Add(1)
		return
	}

	fresh := models.NewServer(s.AddrPort(), info, time.Now())
	fresh.FirstSeen = s.FirstSeen
	fresh.CountryCode = s.CountryCode

	if err := store.UpsertServer(fresh); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
		return
	}

	res.updated.Add(1)
	logCtx.Trace().Msg("Server updated")
}
