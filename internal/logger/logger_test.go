package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info().Str("addr", "1.2.3.4:27015").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["message"])
	require.Equal(t, "1.2.3.4:27015", entry["addr"])
	require.Contains(t, entry, "time")
}

func TestNewConsoleNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Warn().Msg("plain")

	require.Contains(t, buf.String(), "plain")
	require.NotContains(t, buf.String(), "\x1b[")
}

func TestSetupFile(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	path := filepath.Join(t.TempDir(), "sonar.log")
	closer, err := Setup(Config{Level: "DEBUG", Format: "json", Output: path})
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.Debug().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
}

func TestSetupErrors(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prevLevel) })

	_, err := Setup(Config{Level: "loud"})
	require.Error(t, err)

	_, err = Setup(Config{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
