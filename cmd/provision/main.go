package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"proctor-sync/internal/app"
	"proctor-sync/internal/config"
	"proctor-sync/internal/logx"
	psync "proctor-sync/internal/sync"
)

func main() {
	var (
		postID   = flag.Int64("post", 0, "provision a single course or quiz instead of the whole catalog")
		viewerID = flag.Int64("viewer", 0, "viewer user id for -post")
		timeout  = flag.Duration("timeout", 2*time.Hour, "abort the run after this long")
	)
	flag.Parse()

	start := time.Now()
	err := run(*postID, *viewerID, *timeout)
	log.Printf("Execution finished in %s", time.Since(start))
	if err != nil {
		log.Fatalf("Job failed: %v", err)
	}
}

func run(postID, viewerID int64, timeout time.Duration) error {
	cfg := config.Load()
	logger := logx.New(logx.Config{
		Service: config.PluginName,
		Version: config.PluginVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = logx.WithContext(ctx, logger)

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	rt := a.Runtime()
	if rt.Client == nil {
		return fmt.Errorf("missing env: EXAMITY_API_URL / EXAMITY_API_TIMEOUT")
	}
	if !rt.Config.CredentialsConfigured() {
		return fmt.Errorf("missing env: EXAMITY_CLIENT_ID / EXAMITY_SECRET_KEY")
	}

	if postID > 0 {
		results := rt.Orch.ProvisionObject(ctx, postID, viewerID)
		for _, r := range results {
			printResult(r)
		}
		return nil
	}

	batch := rt.Orch.ProvisionAll(ctx)
	log.Printf("Run %s: %d courses, %d created, %d exists, %d skipped, %d failed",
		batch.ID, batch.Courses,
		batch.Count(psync.Created), batch.Count(psync.Exists), batch.Count(psync.Skipped), batch.Count(psync.Failed))
	if len(batch.Errors) > 0 {
		return fmt.Errorf("%d course(s) could not be read, first: %w", len(batch.Errors), batch.Errors[0])
	}
	return nil
}

func printResult(r psync.Result) {
	if r.Err != nil {
		fmt.Printf("%-10s %-30s %-8s %v\n", r.Entity, r.ID, r.Outcome, r.Err)
		return
	}
	fmt.Printf("%-10s %-30s %s\n", r.Entity, r.ID, r.Outcome)
}
