package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tradefeed/internal/application"
	"tradefeed/internal/config"
	"tradefeed/internal/infrastructure/farcaster"
	"tradefeed/internal/infrastructure/logging"
	"tradefeed/internal/infrastructure/mysql"
	"tradefeed/internal/infrastructure/sqlite"
)

// syncfollows mirrors one user's follow list into the identity store and
// exits. Useful for warming the store before serving streams.
func main() {
	fid := flag.Uint64("fid", 0, "Farcaster ID whose follow list to sync")
	flag.Parse()
	if *fid == 0 {
		log.Fatal("-fid is required")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	defer func() { _ = logWriter.Close() }()
	logger := slog.Default()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() { _ = store.Close() }()

	graphClient, err := farcaster.NewClient(farcaster.Config{
		BaseURL:  cfg.NeynarBaseURL,
		APIKey:   cfg.NeynarAPIKey,
		PageSize: cfg.FollowPageSize,
	})
	if err != nil {
		log.Fatalf("social graph client error: %v", err)
	}

	syncer, err := application.NewFollowSync(graphClient, store, logger)
	if err != nil {
		log.Fatalf("follow sync error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	profiles, err := syncer.SyncFollows(ctx, *fid)
	if err != nil {
		log.Fatalf("sync error: %v", err)
	}
	logger.Info("follow sync complete", "fid", *fid, "profiles", len(profiles))
}

type closableStore interface {
	application.IdentityStore
	Close() error
}

func openStore(cfg config.Config) (closableStore, error) {
	if cfg.SQLitePath != "" {
		return sqlite.NewRepository(cfg.SQLitePath)
	}
	return mysql.NewRepository(cfg.DBDSN)
}
