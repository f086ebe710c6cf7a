// Command lobbyd runs the arcade lobby: the player-facing message listener,
// an optional QUIC listener for the same protocol, and the developer portal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcadelabs/arcade/internal/artifact"
	"github.com/arcadelabs/arcade/internal/cert"
	"github.com/arcadelabs/arcade/internal/devportal"
	"github.com/arcadelabs/arcade/internal/launcher"
	"github.com/arcadelabs/arcade/internal/lobby"
	"github.com/arcadelabs/arcade/internal/platform"
	"github.com/arcadelabs/arcade/internal/platform/quicnet"
	"github.com/arcadelabs/arcade/internal/store"
	"github.com/arcadelabs/arcade/internal/store/memstore"
	"github.com/arcadelabs/arcade/internal/store/mongostore"
	"github.com/caarlos0/env/v11"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type config struct {
	// Listen is the listen address for player connections.
	Listen string `env:"LISTEN" envDefault:":6002"`
	// QUICListen, when set, serves the same player protocol over QUIC with a
	// self-signed certificate.
	QUICListen string `env:"QUIC_LISTEN"`
	// HTTPListen is the listen address of the developer portal.
	HTTPListen string `env:"HTTP_LISTEN" envDefault:":6001"`
	// AdvertiseHost is the host game clients are told to connect to when a
	// game starts. Defaults to this machine's outbound address.
	AdvertiseHost string `env:"ADVERTISE_HOST"`

	ArtifactsDir string `env:"ARTIFACTS_DIR" envDefault:"artifacts"`
	// GameRunner prefixes game-server launch commands, e.g. "python3".
	GameRunner []string `env:"GAME_RUNNER" envSeparator:" "`
	// TerminateGrace is how long a game server gets to stop gracefully.
	TerminateGrace time.Duration `env:"TERMINATE_GRACE" envDefault:"5s"`

	Mongo    mongoConfig
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

type mongoConfig struct {
	// URI, when set, selects the MongoDB-backed store; otherwise all state
	// lives in memory.
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DATABASE" envDefault:"arcade"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		abort("parse config", err)
	}
	if cfg.AdvertiseHost == "" {
		cfg.AdvertiseHost = platform.OutboundIP()
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	st, cleanup, err := newStore(ctx, cfg.Mongo)
	if err != nil {
		abort("open store", err)
	}
	defer cleanup()

	artifacts := artifact.NewLibrary(cfg.ArtifactsDir)

	launch := launcher.New(artifacts, launcher.Config{
		Runner: cfg.GameRunner,
		Grace:  cfg.TerminateGrace,
		Logger: logger.With(slog.String("component", "launcher")),
	})

	lob := lobby.New(lobby.Config{
		Launcher:      launch,
		AdvertiseHost: cfg.AdvertiseHost,
		Logger:        logger.With(slog.String("component", "lobby")),
	})
	server := lobby.NewServer(lob, st, artifacts, logger.With(slog.String("component", "lobby")))

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		abort("listen", err)
	}

	var quicLn *quicnet.Listener
	if cfg.QUICListen != "" {
		tlsConf, _, err := cert.SelfSigned(net.ParseIP(cfg.AdvertiseHost))
		if err != nil {
			abort("create self signed cert", err)
		}
		quicLn, err = quicnet.Listen(cfg.QUICListen, tlsConf)
		if err != nil {
			abort("listen quic", err)
		}
	}

	api := devportal.NewAPI(st, artifacts, logger.With(slog.String("component", "devportal")))
	portal := http.Server{
		Addr: cfg.HTTPListen,
		Handler: devportal.Wrap(
			devportal.NewRouter(api),
			devportal.LogRequests(logger.With(slog.String("component", "devportal"))),
		),
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := server.Serve(ln); err != nil {
			return fmt.Errorf("serve lobby: %w", err)
		}

		return nil
	})

	if quicLn != nil {
		eg.Go(func() error {
			if err := server.Serve(quicLn); err != nil {
				return fmt.Errorf("serve lobby over quic: %w", err)
			}

			return nil
		})
	}

	eg.Go(func() error {
		if err := portal.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			return fmt.Errorf("listen and serve portal: %w", err)
		}

		return nil
	})

	logger.Info("listening",
		slog.Group("address",
			slog.String("lobby", cfg.Listen),
			slog.String("quic", cfg.QUICListen),
			slog.String("portal", cfg.HTTPListen),
		),
		slog.String("advertise_host", cfg.AdvertiseHost),
	)

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Game servers stop before the listeners go away so no room is left
	// pointing at an orphaned process.
	server.Close()
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Error("close lobby listener", "error", err)
	}
	if quicLn != nil {
		if err := quicLn.Close(); err != nil {
			logger.Error("close quic listener", "error", err)
		}
	}
	if err := portal.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown portal", "error", err)
	}

	if err := eg.Wait(); err != nil {
		logger.Error("shutdown", "error", err)
		os.Exit(1)
	}
}

func newStore(ctx context.Context, cfg mongoConfig) (store.Store, func(), error) {
	if cfg.URI == "" {
		return memstore.New(), func() {}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}

	st, err := mongostore.New(ctx, client.Database(cfg.Database))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("init mongo store: %w", err)
	}

	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			slog.Error("disconnect mongo", "error", err)
		}
	}

	return st, cleanup, nil
}

func abort(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
