package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/config"
	"github.com/woozymasta/sonar/internal/crawler"
	"github.com/woozymasta/sonar/internal/fake"
	"github.com/woozymasta/sonar/internal/game"
	"github.com/woozymasta/sonar/internal/geoip"
	"github.com/woozymasta/sonar/internal/maintenance"
	"github.com/woozymasta/sonar/internal/server"
	"github.com/woozymasta/sonar/internal/storage"
	"github.com/woozymasta/sonar/pkg/master"
)

func dispatch(ctx context.Context, cfg *config.Config, command string, out io.Writer) error {
	switch command {
	case "info", "players", "rules":
		return runQuery(ctx, cfg, command, out)
	case "master":
		return runMaster(ctx, cfg, out)
	case "crawl":
		return runCrawl(ctx, cfg, out)
	case "refresh":
		return runRefresh(ctx, cfg, out)
	case "serve":
		return runServe(ctx, cfg)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runQuery(ctx context.Context, cfg *config.Config, kind string, out io.Writer) error {
	client, err := game.New(cfg.A2S.TransportOptions()...)
	if err != nil {
		return err
	}

	var reply any
	switch kind {
	case "info":
		reply, err = client.Info(ctx, cfg.Info.Args.Address)
	case "players":
		reply, err = client.Players(ctx, cfg.Players.Args.Address)
	case "rules":
		reply, err = client.Rules(ctx, cfg.Rules.Args.Address)
	}
	if err != nil {
		return err
	}

	return printJSON(out, reply)
}

func runMaster(ctx context.Context, cfg *config.Config, out io.Writer) error {
	m := cfg.Master.Master
	filter, err := m.Filter()
	if err != nil {
		return err
	}

	var count int
	for addr, err := range master.Servers(ctx, m.Address, m.Region, filter, m.Options(cfg.A2S)...) {
		if err != nil {
			return fmt.Errorf("after %d addresses: %w", count, err)
		}
		if _, err := fmt.Fprintln(out, addr); err != nil {
			return err
		}
		count++
	}

	log.Debug().Int("count", count).Msg("Master enumeration finished")
	return nil
}

func openStorage(cfg config.Storage) (*storage.Repository, error) {
	store, err := storage.New(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
	}
	return store, nil
}

func closeStorage(store *storage.Repository) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}

// openGeoIP refreshes and opens the country database. Failures only disable
// country lookup; the returned closer is never nil.
func openGeoIP(ctx context.Context, cfg config.GeoIP) (geoip.Resolver, func()) {
	if cfg.Path == "" {
		return nil, func() {}
	}

	if cfg.URL != "" {
		client := &http.Client{Timeout: 2 * time.Minute}
		if err := geoip.EnsureDB(ctx, client, cfg.Path, cfg.URL, cfg.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil, func() {}
	}

	return provider, func() {
		if err := provider.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}
}

func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer) error {
	c := cfg.Crawl

	filter, err := c.Master.Filter()
	if err != nil {
		return err
	}

	client, err := game.New(cfg.A2S.TransportOptions()...)
	if err != nil {
		return err
	}

	store, err := openStorage(c.Storage)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if c.Storage.GenerateCount > 0 {
		fake.GenerateServers(store, c.Storage.GenerateCount, nil)
		return nil
	}

	geo, closeGeo := openGeoIP(ctx, c.GeoIP)
	defer closeGeo()

	log.Info().
		Str("master", c.Master.Address).
		Stringer("region", c.Master.Region).
		Str("filter", filter.String()).
		Int("workers", c.Crawler.Workers).
		Msg("Starting crawl")

	cr := crawler.New(crawler.Config{
		Master:        c.Master.Address,
		Region:        c.Master.Region,
		Filter:        filter,
		MasterOptions: c.Master.Options(cfg.A2S),
		Workers:       c.Crawler.Workers,
		Rate:          c.Crawler.Limit(),
	}, client, store, geo)

	stats, err := cr.Run(ctx)
	if perr := printJSON(out, stats); perr != nil {
		return errors.Join(err, perr)
	}

	return err
}

func runRefresh(ctx context.Context, cfg *config.Config, out io.Writer) error {
	r := cfg.Refresh

	store, err := openStorage(r.Storage)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if r.PruneStale > 0 {
		n, err := maintenance.Prune(store, r.PruneStale)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]int64{"deleted": n})
	}

	client, err := game.New(cfg.A2S.TransportOptions()...)
	if err != nil {
		return err
	}

	res, err := maintenance.Refresh(ctx, store, client, maintenance.Options{
		Workers:     r.Crawler.Workers,
		Rate:        r.Crawler.Limit(),
		OnlyStale:   r.OnlyStale,
		KeepOffline: r.KeepOffline,
	})
	if perr := printJSON(out, res); perr != nil {
		return errors.Join(err, perr)
	}

	return err
}

func runServe(ctx context.Context, cfg *config.Config) error {
	s := cfg.Serve

	client, err := game.New(cfg.A2S.TransportOptions()...)
	if err != nil {
		return err
	}

	store, err := openStorage(s.Storage)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if s.Storage.GenerateCount > 0 {
		fake.GenerateServers(store, s.Storage.GenerateCount, nil)
	}

	geo, closeGeo := openGeoIP(ctx, s.GeoIP)
	defer closeGeo()

	if s.Server.AuthToken == "" {
		log.Warn().Msg("No auth token configured, admin routes are disabled")
	}

	srvHandler := server.New(store, client, geo, s.Server)
	srvHandler.StartWorkers()
	defer srvHandler.StopWorkers()

	httpServer := &http.Server{
		Addr:         s.Server.Address,
		Handler:      srvHandler.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}
