package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"

	"github.com/relves/fraledger/internal/archive"
	"github.com/relves/fraledger/internal/config"
	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/internal/storage/dsstore"
	"github.com/relves/fraledger/internal/storage/mongo"
	"github.com/relves/fraledger/internal/storage/postgres"
	"github.com/relves/fraledger/internal/storage/rediscache"
	"github.com/relves/fraledger/internal/storage/sqlite"
	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
	"github.com/relves/fraledger/pkg/registry"
	"github.com/relves/fraledger/pkg/server"
	"github.com/relves/fraledger/pkg/verification"
)

func main() {
	if err := config.LoadEnvFile(getEnv("FRALEDGER_ENV_FILE", ".env"), false); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Getenv("FRALEDGER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pub, priv, keySource, err := loadKeys()
	if err != nil {
		return fmt.Errorf("load keys: %w", err)
	}
	signer, err := ledger.NewEd25519Signer(priv, "")
	if err != nil {
		return fmt.Errorf("create checkpoint signer: %w", err)
	}

	engine, err := hashing.NewEngine(hashing.Algorithm(cfg.Ledger.Algorithm))
	if err != nil {
		return err
	}

	store, shared, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Restore the chain from the block store; an empty store starts a new one.
	blocks, err := store.Blocks(ctx)
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	chain, err := ledger.NewBackend(ctx, cfg.Ledger.Backend, engine, blocks,
		ledger.WithSink(store),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	reg, err := registry.New(ctx, registry.Config{
		Store:  store,
		Ledger: chain,
		Engine: engine,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	cache, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	var docs verification.Archive
	if cfg.Archive.Enabled {
		if shared == nil {
			shared = dssync.MutexWrap(ds.NewMapDatastore())
			logger.Warn("document archive is in memory; archived documents do not survive a restart", "storage", cfg.Storage.Driver)
		}
		docs = archive.New(shared, cfg.Archive.MaxBytes)
	}

	svc, err := verification.NewServiceWithConfig(ctx, verification.Config{
		Engine:        engine,
		Ledger:        chain,
		Registry:      reg,
		Archive:       docs,
		Cache:         cache,
		Signer:        signer,
		Origin:        cfg.Ledger.Origin,
		BatchSize:     cfg.Ledger.BatchSize,
		BatchInterval: cfg.Ledger.BatchInterval,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create verification service: %w", err)
	}
	if err := svc.Halted(); err != nil {
		logger.Error("restored chain failed verification; serving read-only", "error", err)
	}

	mux, err := server.NewServer(
		server.WithService(svc),
		server.WithValidator(server.NewAPIKeyValidator(cfg.Server.AllowedAPIKeys)),
		server.WithLogger(logger),
		server.WithMaxUploadSize(cfg.Server.MaxUploadBytes),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	printBanner(cfg, chain, pub, keySource)

	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("batch loop stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	// Seal whatever is still pending so nothing accepted is lost.
	return svc.Close(shutdownCtx)
}

// openStore opens the configured driver. The datastore is returned for the
// memory driver so the archive can share it.
func openStore(ctx context.Context, c config.StorageConfig, logger *slog.Logger) (storage.Store, ds.Datastore, error) {
	switch c.Driver {
	case storage.DriverMemory:
		s := dsstore.NewMemory()
		return s, s.Datastore(), nil
	case storage.DriverSQLite:
		s, err := sqlite.Open(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("sqlite store opened", "path", s.DBPath())
		return s, nil, nil
	case storage.DriverPostgres:
		s, err := postgres.Open(ctx, c.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil, nil
	case storage.DriverMongo:
		s, err := mongo.Open(ctx, c.DSN, c.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", c.Driver)
	}
}

func openCache(ctx context.Context, c config.CacheConfig) (verification.ResultCache, func(), error) {
	switch c.Driver {
	case config.CacheRedis:
		rc, err := rediscache.Open(ctx, c.RedisAddr, c.RedisDB, c.TTL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	case config.CacheNone:
		return nil, func() {}, nil
	default:
		return verification.NewLRUCache(c.Size, c.TTL), func() {}, nil
	}
}

func printBanner(cfg *config.Config, chain ledger.Backend, pub ed25519.PublicKey, keySource string) {
	stats := chain.Stats()
	base := "http://localhost" + cfg.Server.ListenAddr

	color.Cyan("FRALEDGER Service Startup")
	color.Cyan("===================================")
	fmt.Printf("Ledger Backend: %s (%s)\n", stats.Backend, stats.Algorithm)
	fmt.Printf("Chain: %d blocks, latest %s\n", stats.BlockCount, stats.Latest.Hash)
	fmt.Printf("Storage Driver: %s\n", cfg.Storage.Driver)
	fmt.Printf("Cache: %s, Archive: %t\n", cfg.Cache.Driver, cfg.Archive.Enabled)
	fmt.Printf("Checkpoint Key (hex): %s\n", hex.EncodeToString(pub))
	fmt.Printf("Key Source: %s\n", keySource)
	if len(cfg.Server.AllowedAPIKeys) == 0 {
		color.Yellow("API keys: none configured, mutating routes are open")
	}
	fmt.Println()
	color.Green("Verification API:")
	fmt.Printf("  POST %s/api/verifications\n", base)
	fmt.Printf("  GET  %s/api/verifications/{requestID}[/status|/report|/proof|/document]\n", base)
	fmt.Printf("  POST %s/api/verifications/{requestID}/verify\n", base)
	fmt.Println()
	color.Green("Claims API:")
	fmt.Printf("  POST %s/api/claims\n", base)
	fmt.Printf("  GET  %s/api/claims[/{claimID}]\n", base)
	fmt.Printf("  PUT  %s/api/claims/{claimID}/status\n", base)
	fmt.Println()
	color.Green("Ledger API:")
	fmt.Printf("  GET  %s/api/ledger/health\n", base)
	fmt.Printf("  GET  %s/api/ledger/blocks[/{index}[/proof]]\n", base)
	fmt.Printf("  GET  %s/api/ledger/verify\n", base)
	fmt.Printf("  GET  %s/api/ledger/checkpoint\n", base)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadKeys loads the checkpoint signing key from FRALEDGER_PRIVATE_KEY or generates one.
func loadKeys() (ed25519.PublicKey, ed25519.PrivateKey, string, error) {
	if privKeyEnv := os.Getenv("FRALEDGER_PRIVATE_KEY"); privKeyEnv != "" {
		priv, err := base64.StdEncoding.DecodeString(privKeyEnv)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to decode FRALEDGER_PRIVATE_KEY: %w", err)
		}
		if len(priv) != ed25519.PrivateKeySize {
			return nil, nil, "", fmt.Errorf("FRALEDGER_PRIVATE_KEY must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
		}
		privKey := ed25519.PrivateKey(priv)
		return privKey.Public().(ed25519.PublicKey), privKey, "FRALEDGER_PRIVATE_KEY environment variable", nil
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, "", err
	}
	return pub, priv, "Ephemeral (generated on startup)", nil
}
