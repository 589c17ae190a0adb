// Package geoip downloads MaxMind GeoLite2 country databases and resolves server addresses to countries.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/vars"
)

// ErrDownload is returned when the database URL answers with a non-200 status.
var ErrDownload = errors.New("geoip download failed")

// EnsureDB downloads the database to path when it is missing or older than maxAge.
func EnsureDB(ctx context.Context, client *http.Client, path, url string, maxAge time.Duration) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if time.Since(info.ModTime()) < maxAge {
			log.Debug().Str("path", path).Msg("GeoIP database is up to date")
			return nil
		}
		log.Info().Str("path", path).Dur("age", time.Since(info.ModTime())).Msg("GeoIP database is outdated, updating")
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading")
	default:
		return err
	}

	if client == nil {
		client = http.DefaultClient
	}

	return download(ctx, client, path, url)
}

// download writes url to path through a temporary file renamed into place.
func download(ctx context.Context, client *http.Client, path, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", vars.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrDownload, resp.Status)
	}

	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}
