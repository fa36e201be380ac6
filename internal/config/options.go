// Package config holds process options and the identities document.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"

	DefaultInterval = 5 * time.Hour
)

type Options struct {
	ConfigPath string
	StatePath  string
	Interval   time.Duration
	Once       bool

	// Store selects the poll state backend, StoreFile or StorePostgres.
	Store       string
	DatabaseURL string

	RedisURL     string
	RedisChannel string
	WebhookURL   string

	StatusAddr string
	APIURL     string
	ProfileDir string

	LogLevel slog.Level
	LogJSON  bool
}

// ParseFlags reads options from args. Flags default to environment
// variables, and a .env file in the working directory is loaded first when
// present. pflag.ErrHelp is returned unchanged for --help.
func ParseFlags(args []string) (*Options, error) {
	_ = godotenv.Load()

	interval, err := envDuration("POLLVOTER_INTERVAL", DefaultInterval)
	if err != nil {
		return nil, err
	}
	once, err := envBool("POLLVOTER_ONCE")
	if err != nil {
		return nil, err
	}

	var opts Options
	var logLevel string

	fs := pflag.NewFlagSet("pollvoter", pflag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", envOr("POLLVOTER_CONFIG", "config.json"), "identities document (YAML or JSON)")
	fs.StringVar(&opts.StatePath, "state", envOr("POLLVOTER_STATE", "poll_data.json"), "poll state file, used with --store=file")
	fs.DurationVar(&opts.Interval, "interval", interval, "time between cycles")
	fs.BoolVar(&opts.Once, "once", once, "run a single cycle and exit")
	fs.StringVar(&opts.Store, "store", envOr("POLLVOTER_STORE", StoreFile), "poll state backend: file or postgres")
	fs.StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	fs.StringVar(&opts.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "publish notifications to this redis server")
	fs.StringVar(&opts.RedisChannel, "redis-channel", envOr("REDIS_CHANNEL", "pollvoter.notifications"), "redis channel for notifications")
	fs.StringVar(&opts.WebhookURL, "webhook-url", os.Getenv("NOTIFY_WEBHOOK_URL"), "POST notifications to this URL")
	fs.StringVar(&opts.StatusAddr, "status-addr", os.Getenv("POLLVOTER_STATUS_ADDR"), "serve the status API on this address")
	fs.StringVar(&opts.APIURL, "api-url", os.Getenv("DISCORD_API_URL"), "remote API base URL")
	fs.StringVar(&opts.ProfileDir, "profile-dir", os.Getenv("POLLVOTER_PROFILE_DIR"), "base directory for browser profiles")
	fs.StringVar(&logLevel, "log-level", envOr("POLLVOTER_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.BoolVar(&opts.LogJSON, "log-json", false, "emit JSON log records")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if err := opts.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (o *Options) validate() error {
	switch o.Store {
	case StoreFile:
		if o.StatePath == "" {
			return fmt.Errorf("--state is required with --store=%s", StoreFile)
		}
	case StorePostgres:
		if o.DatabaseURL == "" {
			return fmt.Errorf("--database-url is required with --store=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown --store %q", o.Store)
	}
	if o.ConfigPath == "" {
		return fmt.Errorf("--config is required")
	}
	if !o.Once && o.Interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
