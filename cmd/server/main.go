package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/relay"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal arrives or the HTTP
// server fails. Deferred cleanup always runs before main exits.
func run() error {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, config, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing message store...")
		if err := st.Close(); err != nil {
			log.Error("Message store close failed", "error", err)
		}
	}()

	m := metrics.New()
	hub := server.NewHub(log)
	registry := presence.NewRegistry(hub, log, m)
	router := relay.New(st, registry, log,
		relay.WithMetrics(m),
		relay.WithAppendTimeout(config.AppendTimeout),
	)

	serverConfig := server.NewConfig()
	serverConfig.Port = config.Port
	serverConfig.AllowedOrigins = server.ParseOrigins(config.AllowedOrigins)
	serverConfig.MaxMessageSize = config.MaxMessageSize
	serverConfig.SendBufferSize = config.SendBufferSize
	serverConfig.HistoryLimit = config.HistoryLimit
	handlers := server.NewHandlers(hub, router, *serverConfig, log)
	httpServer := server.CreateServer(config.Port, server.SetupRoutes(handlers, m.Handler()))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hub.Run()
		return nil
	})
	eg.Go(func() error {
		return server.StartServer(httpServer, log)
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		serverErr := server.ShutdownServer(httpServer, config.ShutdownTimeout, log)
		if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
			log.Warn("Hub shutdown incomplete", "error", err)
		}
		return serverErr
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

func openStore(ctx context.Context, config Config, log *slog.Logger) (store.Store, error) {
	switch config.StoreBackend {
	case "memory":
		log.Warn("Using in-memory message store, history is lost on restart")
		return store.NewMemoryStore(), nil
	case "badger":
		st, err := store.OpenBadgerStore(config.BadgerPath, log)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		return st, nil
	case "postgres":
		if config.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
		st, err := store.OpenPostgresStore(ctx, config.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", config.StoreBackend)
	}
}
