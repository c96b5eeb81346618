package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feeledger_app_echo/internal/config"
	"feeledger_app_echo/internal/services"
	"feeledger_app_echo/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(cfg.DatabaseURL, cfg.GormLogLevel())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var email, whatsapp services.MessageSender
	if mail := services.NewEmailService(cfg.SMTP); mail.Configured() {
		email = mail
	} else {
		log.Println("SMTP not configured, email receipts will be skipped")
	}
	if cfg.WAHA.BaseURL != "" {
		whatsapp = services.NewWahaService(cfg.WAHA)
	}
	notifier := services.NewReceiptNotifier(db, email, whatsapp)

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, notifier)
	runner := tasks.NewRunner(db, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AuditSchedule != "" {
		if _, err := tasks.EnsureRecurring(ctx, db, tasks.LedgerAuditTask.TaskID(), cfg.AuditSchedule, map[string]interface{}{}, time.Now()); err != nil {
			log.Printf("Warning: ledger audit not scheduled: %v", err)
		}
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	log.Printf("Worker started with tasks %v, polling every %s", registry.Names(), cfg.WorkerInterval)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	tick := func() {
		if _, err := runner.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Error processing tasks: %v", err)
		}
	}

	tick()
	for {
		select {
		case <-ticker.C:
			tick()
		case <-ctx.Done():
			return
		}
	}
}
