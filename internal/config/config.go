// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/sonar/internal/logger"
	"github.com/woozymasta/sonar/internal/vars"
	"github.com/woozymasta/sonar/pkg/master"
	"github.com/woozymasta/sonar/pkg/transport"
	"golang.org/x/time/rate"
)

// ErrNoCommand is returned when neither a command nor --version was given.
var ErrNoCommand = errors.New("please specify one command")

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Logger logger.Config `group:"Logger Options" namespace:"log" env-namespace:"SONAR_LOG"`
	A2S    A2S           `group:"A2S Options" namespace:"a2s" env-namespace:"SONAR_A2S"`

	Info    QueryCommand   `command:"info" description:"Query A2S_INFO of a server and print JSON"`
	Players QueryCommand   `command:"players" description:"Query A2S_PLAYER of a server and print JSON"`
	Rules   QueryCommand   `command:"rules" description:"Query A2S_RULES of a server and print JSON"`
	Master  MasterCommand  `command:"master" description:"List server addresses from a master server"`
	Crawl   CrawlCommand   `command:"crawl" description:"Enumerate a master server and store every responding server"`
	Refresh RefreshCommand `command:"refresh" description:"Re-query stored servers and drop unreachable ones"`
	Serve   ServeCommand   `command:"serve" description:"Serve the HTTP API"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// QueryCommand takes the address of a single server.
type QueryCommand struct {
	Args struct {
		Address string `positional-arg-name:"host:port" description:"Server query address"`
	} `positional-args:"yes" required:"yes"`
}

// MasterCommand lists addresses.
type MasterCommand struct {
	Master Master `group:"Master Options" namespace:"master" env-namespace:"SONAR_MASTER"`
}

// CrawlCommand fills the database from a master server.
type CrawlCommand struct {
	// betteralign:ignore

	Master  Master  `group:"Master Options" namespace:"master" env-namespace:"SONAR_MASTER"`
	Crawler Crawler `group:"Crawler Options" namespace:"crawler" env-namespace:"SONAR_CRAWLER"`
	Storage Storage `group:"Storage Options" namespace:"db" env-namespace:"SONAR_DB"`
	GeoIP   GeoIP   `group:"GeoIP Options" namespace:"geoip" env-namespace:"SONAR_GEOIP"`
}

// RefreshCommand re-checks stored servers.
type RefreshCommand struct {
	// betteralign:ignore

	Crawler Crawler `group:"Crawler Options" namespace:"crawler" env-namespace:"SONAR_CRAWLER"`
	Storage Storage `group:"Storage Options" namespace:"db" env-namespace:"SONAR_DB"`

	PruneStale  time.Duration `long:"prune-stale" env:"SONAR_PRUNE_STALE" description:"Only delete servers not seen within this duration, without querying"`
	OnlyStale   time.Duration `long:"only-stale" env:"SONAR_ONLY_STALE" description:"Re-query only servers not seen within this duration"`
	KeepOffline bool          `long:"keep-offline" env:"SONAR_KEEP_OFFLINE" description:"Keep servers that do not answer instead of deleting them"`
}

// ServeCommand runs the HTTP API.
type ServeCommand struct {
	// betteralign:ignore

	Server  Server  `group:"Server Options" env-namespace:"SONAR"`
	Storage Storage `group:"Storage Options" namespace:"db" env-namespace:"SONAR_DB"`
	GeoIP   GeoIP   `group:"GeoIP Options" namespace:"geoip" env-namespace:"SONAR_GEOIP"`
}

// A2S holds Source Query protocol configuration.
type A2S struct {
	// betteralign:ignore

	Timeout    time.Duration   `long:"timeout" env:"TIMEOUT" description:"Per-attempt query timeout" default:"1s"`
	Timeouts   []time.Duration `long:"timeouts" env:"TIMEOUTS" env-delim:"," description:"Per-attempt timeouts, one per attempt (repeatable)"`
	Attempts   int             `long:"attempts" env:"ATTEMPTS" description:"Send attempts per request (0 derives it from --timeouts, else 1)" default:"0"`
	BufferSize int             `long:"buffer-size" env:"BUFFER_SIZE" description:"Receive buffer size" default:"4096"`
}

// TransportOptions converts the group into transport options.
func (a A2S) TransportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithTimeout(a.Timeout),
		transport.WithBufferSize(a.BufferSize),
	}
	if a.Attempts != 0 {
		opts = append(opts, transport.WithAttempts(a.Attempts))
	}
	if len(a.Timeouts) > 0 {
		opts = append(opts, transport.WithTimeouts(a.Timeouts...))
	}

	return opts
}

// Master holds master server query configuration.
type Master struct {
	// betteralign:ignore

	Address  string        `long:"address" env:"ADDRESS" description:"Master server address" default:"hl2master.steampowered.com:27011"`
	Region   master.Region `long:"region" env:"REGION" description:"Region (us-east, us-west, south-america, europe, asia, australia, middle-east, africa, all)" default:"all"`
	Filters  []string      `long:"filter" env:"FILTER" env-delim:";" description:"Filter key=value, a bare key means key=1 (repeatable)"`
	Nor      []string      `long:"nor" env:"NOR" env-delim:";" description:"Exclude servers matching any key=value (repeatable)"`
	Nand     []string      `long:"nand" env:"NAND" env-delim:";" description:"Exclude servers matching all key=value (repeatable)"`
	MaxPages int           `long:"max-pages" env:"MAX_PAGES" description:"Stop after this many pages (0 = unbounded)" default:"0"`
	Rate     float64       `long:"rate" env:"RATE" description:"Page requests per second (0 = unlimited)" default:"1"`
}

// Filter builds the master filter from the configured key=value lists.
func (m Master) Filter() (*master.Filter, error) {
	f, err := parseFilter(m.Filters)
	if err != nil {
		return nil, err
	}

	if len(m.Nor) > 0 {
		sub, err := parseFilter(m.Nor)
		if err != nil {
			return nil, err
		}
		f.Nor(sub)
	}

	if len(m.Nand) > 0 {
		sub, err := parseFilter(m.Nand)
		if err != nil {
			return nil, err
		}
		f.Nand(sub)
	}

	return f, nil
}

// Options converts the group into enumeration options sharing the A2S transport settings.
func (m Master) Options(a A2S) []master.Option {
	opts := []master.Option{
		master.WithMaxPages(m.MaxPages),
		master.WithTransport(a.TransportOptions()...),
	}
	if m.Rate > 0 {
		opts = append(opts, master.WithLimiter(rate.NewLimiter(rate.Limit(m.Rate), 1)))
	}

	return opts
}

func parseFilter(entries []string) (*master.Filter, error) {
	f := master.NewFilter()
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsRune(entry, '\\') {
			return nil, fmt.Errorf("invalid filter %q", entry)
		}

		if !found {
			f.Set(key, master.Bool(true))
			continue
		}
		f.Set(key, master.String(value))
	}

	return f, nil
}

// Crawler holds worker pool configuration shared by crawl and refresh.
type Crawler struct {
	// betteralign:ignore

	Workers int     `long:"workers" env:"WORKERS" description:"Concurrent A2S queries" default:"32"`
	Rate    float64 `long:"rate" env:"RATE" description:"A2S queries per second (0 = unlimited)" default:"200"`
}

// Limit returns the query rate as a limiter value.
func (c Crawler) Limit() rate.Limit {
	if c.Rate <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.Rate)
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"sonar.db"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (empty disables country lookup)" default:"sonar.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Re-download the database when older than this" default:"168h"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address         string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken       string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin token; DELETE routes are disabled without it"`
	RateLimitCount  int           `long:"rate-limit-count" env:"RATE_LIMIT_COUNT" description:"Requests allowed per IP within the window" default:"60"`
	RateLimitWindow time.Duration `long:"rate-limit-window" env:"RATE_LIMIT_WINDOW" description:"Rate limit window" default:"1m"`
	SoftLimit       time.Duration `long:"soft-limit" env:"SOFT_LIMIT" description:"Ignore announces of a server seen within this duration" default:"5m"`
	MaxBodySize     int64         `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"512"`
	Workers         int           `long:"workers" env:"WORKERS" description:"Background workers querying announced servers" default:"4"`
	TrustProxy      bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Parse reads the configuration from flags and environment variables and
// returns it with the name of the selected command.
// It terminates the application if the configuration is invalid, help was
// requested or the version was printed.
func Parse() (*Config, string) {
	cfg, command, err := ParseArgs(os.Args[1:], flags.Default)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if errors.Is(err, ErrNoCommand) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print(os.Stdout)
		os.Exit(0)
	}

	return cfg, command
}

// ParseArgs parses args with the given go-flags options.
func ParseArgs(args []string, options flags.Options) (*Config, string, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, options)
	parser.NamespaceDelimiter = "-"
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, "", err
	}

	if cfg.Version {
		return &cfg, "", nil
	}

	if parser.Active == nil {
		return nil, "", ErrNoCommand
	}

	if err := cfg.validate(parser.Active.Name); err != nil {
		return nil, "", err
	}

	return &cfg, parser.Active.Name, nil
}

func (c *Config) validate(command string) error {
	if _, err := transport.NewOptions(c.A2S.TransportOptions()...); err != nil {
		return fmt.Errorf("a2s options: %w", err)
	}

	var crawler *Crawler
	switch command {
	case "master":
		if _, err := c.Master.Master.Filter(); err != nil {
			return err
		}
	case "crawl":
		if _, err := c.Crawl.Master.Filter(); err != nil {
			return err
		}
		crawler = &c.Crawl.Crawler
	case "refresh":
		crawler = &c.Refresh.Crawler
	case "serve":
		if c.Serve.Server.RateLimitCount < 1 || c.Serve.Server.RateLimitWindow <= 0 {
			return errors.New("rate limit count and window must be positive")
		}
		if c.Serve.Server.Workers < 1 {
			return fmt.Errorf("server workers must be positive, got %d", c.Serve.Server.Workers)
		}
	}

	if crawler != nil && crawler.Workers < 1 {
		return fmt.Errorf("crawler workers must be positive, got %d", crawler.Workers)
	}

	return nil
}
