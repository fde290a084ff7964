package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tylerhslee/gw2tp/internal/config"
	"github.com/tylerhslee/gw2tp/internal/database"
	"github.com/tylerhslee/gw2tp/internal/gw2api"
	"github.com/tylerhslee/gw2tp/internal/ingest"
)

// Refreshes the item catalog and its category-detail tables. Run this
// before update-listings: commerce snapshots for unknown items are
// skipped until their catalog rows exist.
func main() {
	_ = godotenv.Load()

	workers := flag.Int("workers", 0, "page fetch workers (0 = config value)")
	report := flag.String("report", "", "write an xlsx run report to this path")
	flag.Parse()

	log := logrus.WithField("component", "update-items")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *report != "" {
		cfg.ReportPath = *report
	}

	db, err := database.Initialize(cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := &ingest.Fetcher{
		Client:   gw2api.NewClient(cfg.APIKey),
		Workers:  cfg.Workers,
		PageSize: cfg.PageSize,
		Progress: logProgress(log),
		Log:      log,
	}
	controller := &ingest.Controller{
		Fetcher:    fetcher,
		MaxRetries: cfg.MaxRetries,
		Log:        log,
	}

	batch := ingest.NewItemBatch()
	fetchReport, err := controller.Run(ctx, []string{"items"}, batch)
	if err != nil {
		log.WithError(err).Fatal("fetch catalog")
	}

	persister := &ingest.Persister{DB: db, Progress: logProgress(log), Log: log}
	persistReport, err := persister.Persist(ctx, batch)
	if err != nil {
		log.WithError(err).Fatal("persist catalog")
	}

	if cfg.ReportPath != "" {
		if err := ingest.WriteReportXLSX(cfg.ReportPath, "items", fetchReport, persistReport); err != nil {
			log.WithError(err).Error("write run report")
		}
	}

	log.WithFields(logrus.Fields{
		"written": persistReport.Written,
		"skipped": len(persistReport.Skipped),
		"retries": fetchReport.Retries,
	}).Info("catalog update done")
}

func logProgress(log *logrus.Entry) ingest.Progress {
	return func(phase string, current, total int) {
		if current%500 == 0 || current == total {
			log.WithFields(logrus.Fields{
				"phase":   phase,
				"current": current,
				"total":   total,
			}).Info("progress")
		}
	}
}
