/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (ENV > YAML > defaults)
  2. Build the structured logger
  3. Open the document store (memory, file, or sqlite), optionally
     wrapped in the encryption envelope
  4. Load the registry and the points engine from the store
  5. Configure HTTP router
  6. Start server with graceful shutdown

STORE SELECTION:
  STORE_BACKEND=memory   volatile, for development
  STORE_BACKEND=file     one JSON document per collection under STORE_DATA_DIR
  STORE_BACKEND=sqlite   one document per collection row in STORE_SQLITE_PATH
  STORE_PASSPHRASE=...   seals documents at rest (any backend)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (configurable timeout)
  3. Close the store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration loading
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/allcare/points-engine/api"
	"github.com/allcare/points-engine/config"
	"github.com/allcare/points-engine/envelope"
	"github.com/allcare/points-engine/ident"
	"github.com/allcare/points-engine/logging"
	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/registry"
	"github.com/allcare/points-engine/store"
	"github.com/allcare/points-engine/store/file"
	"github.com/allcare/points-engine/store/memory"
	"github.com/allcare/points-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level)
	defer log.Sync()

	st, closeStore, err := openStore(cfg.Store)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Build domain components and load persisted state
	repo := registry.New(st, log, ident.New)
	engine := points.New(st, repo, log, ident.New)

	ctx := context.Background()
	if err := repo.Load(ctx); err != nil {
		log.Fatal("failed to load entities", zap.Error(err))
	}
	if err := engine.Load(ctx); err != nil {
		log.Fatal("failed to load points collections", zap.Error(err))
	}

	handler := api.NewHandler(repo, engine, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("backend", cfg.Store.Backend),
			zap.Bool("encrypted", cfg.Store.Passphrase != ""))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// openStore builds the configured store backend, sealed in the encryption
// envelope when a passphrase is set. The returned func releases backend
// resources.
func openStore(cfg config.StoreConfig) (store.Store, func(), error) {
	var (
		st        store.Store
		closeFunc = func() {}
	)

	switch cfg.Backend {
	case "memory":
		st = memory.New()
	case "file":
		fs, err := file.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		st = fs
	case "sqlite":
		ss, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st = ss
		closeFunc = func() { ss.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.Passphrase != "" {
		st = envelope.Wrap(st, cfg.Passphrase)
	}
	return st, closeFunc, nil
}
