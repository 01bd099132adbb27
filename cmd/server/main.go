// Package main is the entry point for the nichescout opportunity engine.
// It wires the upstream clients, the scoring service, the expansion engine
// and the HTTP API, and runs the cache-sweep and backup schedules.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nichescout/nichescout/internal/acquisition"
	"github.com/nichescout/nichescout/internal/clientdata"
	"github.com/nichescout/nichescout/internal/clients/appstore"
	"github.com/nichescout/nichescout/internal/clients/community"
	"github.com/nichescout/nichescout/internal/clients/hints"
	"github.com/nichescout/nichescout/internal/clients/trends"
	"github.com/nichescout/nichescout/internal/config"
	"github.com/nichescout/nichescout/internal/database"
	"github.com/nichescout/nichescout/internal/expansion"
	"github.com/nichescout/nichescout/internal/history"
	"github.com/nichescout/nichescout/internal/opportunity"
	"github.com/nichescout/nichescout/internal/opportunity/handlers"
	"github.com/nichescout/nichescout/internal/ratelimit"
	"github.com/nichescout/nichescout/internal/reliability"
	"github.com/nichescout/nichescout/internal/scoring"
	"github.com/nichescout/nichescout/internal/server"
	"github.com/nichescout/nichescout/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting nichescout")

	// A broken weight table silently skews every score, so refuse to start.
	if err := scoring.ValidateWeights(); err != nil {
		log.Fatal().Err(err).Msg("Scoring weight tables are inconsistent")
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "clientdata.db"),
		Profile: database.ProfileCache,
		Name:    "clientdata",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	for _, db := range []*database.DB{cacheDB, historyDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	// One governor shared by every upstream client; the budget covers the
	// whole process, not each source separately.
	governor := ratelimit.New(cfg.RequestsPerMinute, cfg.MaxConcurrent)
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())

	marketplaceOrch := acquisition.New(governor, cfg.RequestTimeout,
		cfg.AppStoreSearchURL+"?term=test&country=us&entity=software&limit=1", log)
	hintsOrch := acquisition.New(governor, cfg.RequestTimeout, "", log)
	trendsOrch := acquisition.New(governor, cfg.RequestTimeout, "", log)
	communityOrch := acquisition.New(governor, cfg.RequestTimeout, "", log)

	searchClient := appstore.NewClient(cfg.AppStoreSearchURL, marketplaceOrch, cacheRepo, log)
	hintsClient := hints.NewClient(cfg.HintsURL, hintsOrch, cacheRepo, log)
	trendsClient := trends.NewClient(cfg.TrendsURL, trendsOrch, cacheRepo, log)
	communityClient := community.NewClient(cfg.CommunityURL, communityOrch, cacheRepo, log)

	historyRepo := history.NewRepository(historyDB.Conn())

	service := opportunity.NewService(
		searchClient,
		hintsClient,
		trendsClient,
		communityClient,
		historyRepo,
		cfg.BatchDelay,
		log,
	)
	engine := expansion.New(hintsClient, searchClient, log)

	var backupService *reliability.BackupService
	if cfg.BackupBucket != "" {
		store, err := reliability.NewObjectStore(context.Background(), reliability.ObjectStoreConfig{
			Bucket:    cfg.BackupBucket,
			Endpoint:  cfg.BackupEndpoint,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure backup object store")
		}
		backupService = reliability.NewBackupService(store, map[string]*database.DB{
			"clientdata": cacheDB,
			"history":    historyDB,
		}, cfg.DataDir, log)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		removed, err := cacheRepo.SweepAllExpired()
		if err != nil {
			log.Error().Err(err).Msg("Scheduled cache sweep failed")
			return
		}
		var total int64
		for _, n := range removed {
			total += n
		}
		log.Debug().Int64("removed", total).Msg("Scheduled cache sweep completed")
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache sweep")
	}

	if backupService != nil {
		if _, err := scheduler.AddFunc("0 2 * * *", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := backupService.CreateAndUploadBackup(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduled backup failed")
				return
			}
			if err := backupService.RotateOldBackups(ctx, 30); err != nil {
				log.Error().Err(err).Msg("Backup rotation failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Config{
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Log:         log,
		Opportunity: handlers.New(service, engine, log),
		Cache:       cacheRepo,
		History:     historyRepo,
		Governor:    governor,
		Backups:     backupService,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Stopped")
}
