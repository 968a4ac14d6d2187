package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/config"
	"bidready/portal-backend/internal/onboarding"
)

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Onboarding.DraftStore != config.DraftStoreSQL {
		// memory drafts vanish on restart and redis drafts carry their own TTL
		logger.Info("Draft store needs no janitor, exiting", zap.String("draft_store", cfg.Onboarding.DraftStore))
		return
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := onboarding.NewSQLDraftStore(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate draft table", zap.Error(err))
	}

	janitorCfg := DefaultDraftJanitorConfig()
	if cfg.Onboarding.JanitorSchedule != "" {
		janitorCfg.Schedule = cfg.Onboarding.JanitorSchedule
	}
	if cfg.Onboarding.DraftRetention.Duration > 0 {
		janitorCfg.Retention = cfg.Onboarding.DraftRetention.Duration
	}

	janitor := NewDraftJanitor(store, logger, janitorCfg)
	if err := janitor.Start(ctx); err != nil {
		logger.Fatal("Failed to start draft janitor", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Shutting down workers...")
	janitor.Stop()
}
