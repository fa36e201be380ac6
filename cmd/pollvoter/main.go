package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"github.com/vncsmyrnk/pollvoter/internal/adapters/handler/http"
	"github.com/vncsmyrnk/pollvoter/internal/adapters/login/browser"
	"github.com/vncsmyrnk/pollvoter/internal/adapters/notifier"
	"github.com/vncsmyrnk/pollvoter/internal/adapters/remote/discord"
	"github.com/vncsmyrnk/pollvoter/internal/adapters/repository/file"
	"github.com/vncsmyrnk/pollvoter/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pollvoter/internal/clock"
	"github.com/vncsmyrnk/pollvoter/internal/config"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
	"github.com/vncsmyrnk/pollvoter/internal/core/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	logger := newLogger(opts)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configStore := config.NewFileStore(opts.ConfigPath, logger)
	settings, err := configStore.Settings(ctx)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	logger.Info("configuration loaded",
		"path", opts.ConfigPath,
		"channel_id", settings.ChannelID,
		"identities", len(settings.Identities),
	)

	polls, closePolls, err := openPollStore(opts)
	if err != nil {
		return err
	}
	defer closePolls()

	notify, closeNotify, err := buildNotifier(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	gateway, err := discord.NewClient(discord.ClientConfig{
		BaseURL: opts.APIURL,
		Logger:  logger.With("component", "gateway"),
	})
	if err != nil {
		return err
	}

	login := browser.NewProvider(browser.Config{
		Headless: settings.Headless,
		BaseDir:  opts.ProfileDir,
		Logger:   logger.With("component", "login"),
	})
	sessions := services.NewSessionService(configStore, login, logger.With("component", "sessions"))

	engine := services.NewSyncService(services.SyncDeps{
		Settings: configStore,
		Sessions: sessions,
		Gateway:  gateway,
		Polls:    polls,
		Notifier: notify,
		Sleeper:  clock.Real(),
		Throttle: services.DefaultThrottle(),
		Logger:   logger.With("component", "sync"),
	})
	scheduler := services.NewScheduler(engine, opts.Interval, clock.Real(), logger)

	if opts.Once {
		_, err := scheduler.RunOnce(ctx)
		return err
	}

	var server *stdhttp.Server
	if opts.StatusAddr != "" {
		handler := http.NewHandler(
			http.NewPollHandler(services.NewPollQueryService(polls), logger),
			http.NewSummaryHandler(engine),
		)
		server = &stdhttp.Server{Addr: opts.StatusAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("status API listening", "addr", opts.StatusAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				logger.Error("status API stopped", "error", err)
				stop()
			}
		}()
	}

	logger.Info("scheduler started", "interval", opts.Interval.String())
	_ = scheduler.Run(ctx)
	logger.Info("gracefully shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down status API: %w", err)
		}
	}
	return nil
}

func newLogger(opts *config.Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.LogLevel}
	if opts.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

func openPollStore(opts *config.Options) (ports.PollStateRepository, func(), error) {
	if opts.Store != config.StorePostgres {
		return file.NewPollStateRepository(opts.StatePath), func() {}, nil
	}

	db, err := sql.Open("postgres", opts.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return postgres.NewPollStateRepository(db), func() { db.Close() }, nil
}

// buildNotifier always logs notifications and adds the configured delivery
// channels on top.
func buildNotifier(ctx context.Context, opts *config.Options, logger *slog.Logger) (ports.Notifier, func(), error) {
	multi := notifier.Multi{notifier.NewLogNotifier(logger.With("component", "notifier"))}
	closers := []func(){}

	if opts.WebhookURL != "" {
		webhook, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{URL: opts.WebhookURL})
		if err != nil {
			return nil, nil, err
		}
		multi = append(multi, webhook)
	}

	if opts.RedisURL != "" {
		client, err := notifier.DialRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { client.Close() })

		pub, err := notifier.NewRedisNotifier(notifier.RedisConfig{Client: client, Channel: opts.RedisChannel})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		multi = append(multi, pub)
	}

	return multi, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
