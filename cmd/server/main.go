// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunetap/internal/api/rest"
	"github.com/osa030/tunetap/internal/app/game"
	"github.com/osa030/tunetap/internal/app/refresh"
	"github.com/osa030/tunetap/internal/app/resolve"
	"github.com/osa030/tunetap/internal/app/store"
	"github.com/osa030/tunetap/internal/infra/cache"
	"github.com/osa030/tunetap/internal/infra/config"
	"github.com/osa030/tunetap/internal/infra/logger"
	"github.com/osa030/tunetap/internal/infra/spotify"
)

var (
	app        = kingpin.New("tunetap-server", "tunetap timeline game server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	cacheStore, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open release date cache: %w", err)
	}
	defer cacheStore.Close()
	if err := cacheStore.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate release date cache: %w", err)
	}

	provider, err := resolve.NewProviderFromConfig(cfg.Metadata.Provider)
	if err != nil {
		return fmt.Errorf("failed to create metadata provider: %w", err)
	}

	queue := resolve.NewQueue(provider, cacheStore, resolve.Config{
		MinInterval: cfg.Resolver.MinInterval(),
	})
	defer queue.Close()

	spotifyClient, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	snapshots := store.New(store.Config{
		Path:     cfg.Store.Path,
		Debounce: cfg.Store.Debounce(),
		MaxAge:   cfg.Store.MaxAge(),
	})

	gameConfig := game.Config{
		WinThreshold: cfg.Game.WinThreshold,
		EndDelay:     cfg.Game.EndDelay(),
		MinPlayers:   cfg.Game.MinPlayers,
		MaxPlayers:   cfg.Game.MaxPlayers,
	}

	server := rest.NewServer(rest.Deps{
		Source:   spotifyClient,
		Resolver: queue,
		NewCoordinator: func(g *game.Session) rest.Coordinator {
			return refresh.NewCoordinator(g, queue, refresh.Config{
				HighPriorityBatch: cfg.Resolver.HighPriorityBatch,
				PollInterval:      cfg.Resolver.PollInterval(),
			})
		},
		Store:      snapshots,
		GameConfig: gameConfig,
	})
	server.Resume()
	defer server.Shutdown()

	e := server.Router()
	go func() {
		zlog.Info().Msgf("Starting HTTP server on %s", cfg.Server.Addr)
		if err := e.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			zlog.Error().Msgf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zlog.Info().Msgf("Received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Msgf("HTTP shutdown error: %v", err)
	}

	return nil
}
