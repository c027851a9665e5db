package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadbridge/internal/crm"
	"leadbridge/internal/outreach"
	"leadbridge/internal/syncing/repository"
	"leadbridge/internal/syncing/service"
	"leadbridge/platform/config"
	"leadbridge/platform/db"
	"leadbridge/platform/events"
	"leadbridge/platform/logger"
)

func main() {
	campaignID := flag.String("campaign", "", "campaign ID to backfill (required)")
	batchSize := flag.Int("batch-size", 0, "leads per page (default from config)")
	maxLeads := flag.Int("max-leads", 0, "stop after this many leads (0 = no cap)")
	cursor := flag.String("cursor", "", "resume from this cursor")
	deadline := flag.Duration("deadline", 0, "time box for the run (default from config)")
	force := flag.Bool("force", false, "bypass the idempotency ledger")
	flag.Parse()

	if *campaignID == "" {
		fmt.Fprintln(os.Stderr, "usage: backfill -campaign <id> [-batch-size n] [-max-leads n] [-cursor c] [-deadline d] [-force]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting campaign backfill", "campaignId", *campaignID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if !cfg.IsOutreachEnabled() {
		panic("OUTREACH_API_URL and OUTREACH_API_KEY are required")
	}
	if !cfg.IsCRMEnabled() {
		panic("CRM_API_URL and CRM_API_KEY are required")
	}

	eventBus := events.NewInMemoryBus(log)
	repo := repository.New(pool)
	svc := service.New(repo, repo, repo, outreach.New(cfg, log), crm.New(cfg, log), eventBus, cfg, log)

	started := time.Now()
	result, err := svc.BackfillCampaign(ctx, *campaignID, service.BackfillOptions{
		BatchSize: *batchSize,
		MaxLeads:  *maxLeads,
		Deadline:  *deadline,
		Cursor:    *cursor,
		Force:     *force,
	})
	if err != nil {
		log.Error("backfill failed", "error", err, "processed", result.Processed)
		os.Exit(1)
	}

	log.Info("backfill finished",
		"processed", result.Processed,
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"stoppedEarly", result.StoppedEarly,
		"duration", time.Since(started).Round(time.Second).String(),
	)

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if result.StoppedEarly {
		fmt.Fprintf(os.Stderr, "run stopped early; resume with -cursor %q\n", result.NextCursor)
	}
}
