// cmd/tether-web serves the status surface over the same database the ingest
// CLI writes to: index statistics at /api/stats and a live activity feed at
// /ws. It does not accept writes; ingest stays with cmd/tether.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/tether/internal/config"
	"github.com/scrypster/tether/internal/storage"
	"github.com/scrypster/tether/internal/storage/postgres"
	"github.com/scrypster/tether/internal/storage/sqlite"
	"github.com/scrypster/tether/web/handlers"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("tether-web: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := handlers.NewWebSocketHub(handlers.OriginPatterns(cfg.Server.Host, cfg.Server.Port)...)
	go hub.Run()
	defer hub.Stop()

	// The ingest CLI runs in a separate process, so the feed is driven by
	// polling the shared database and broadcasting when the counts move.
	go pollStats(ctx, store, hub, 2*time.Second)

	statsHandler := handlers.NewStatsHandler(store)
	rl := handlers.NewRateLimiter(10, 20)

	mux := http.NewServeMux()
	mux.Handle("/api/stats", handlers.RateLimitMiddleware(http.HandlerFunc(statsHandler.GetStats), rl))
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("status server listening at http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down gracefully...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// pollStats watches the index counters and broadcasts a snapshot to connected
// websocket clients whenever they change.
func pollStats(ctx context.Context, store storage.Store, hub *handlers.WebSocketHub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last storage.IndexStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := readStats(ctx, store)
			if err != nil {
				log.Printf("stats poll failed: %v", err)
				continue
			}
			if stats == last {
				continue
			}
			last = stats
			hub.Broadcast(stats)
		}
	}
}

// readStats assembles an IndexStats snapshot from the store counters.
func readStats(ctx context.Context, store storage.Store) (storage.IndexStats, error) {
	var stats storage.IndexStats
	var err error
	if stats.Entities, err = store.CountEntities(ctx); err != nil {
		return stats, err
	}
	if stats.Entries, err = store.CountEntries(ctx); err != nil {
		return stats, err
	}
	if stats.Observations, err = store.CountObservations(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// openStore opens the backend selected by TETHER_STORAGE_ENGINE. The web
// surface only reads, but it shares the same open path as the CLI.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory %q: %w", cfg.Storage.DataPath, err)
		}
		return sqlite.NewStore(filepath.Join(cfg.Storage.DataPath, "tether.db"))
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("TETHER_POSTGRES_DSN is required for the postgres engine")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.StorageEngine)
	}
}
