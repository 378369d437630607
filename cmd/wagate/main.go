// Package main contains the entrypoint for the wagate HTTP-to-WhatsApp
// gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/wagate/internal/bridge"
	"github.com/edgard/wagate/internal/config"
	"github.com/edgard/wagate/internal/database"
	"github.com/edgard/wagate/internal/gateway"
	"github.com/edgard/wagate/internal/logger"
	"github.com/edgard/wagate/internal/media"
	"github.com/edgard/wagate/internal/messenger"
	"github.com/edgard/wagate/internal/pdf"
	"github.com/edgard/wagate/internal/summary"
	"github.com/edgard/wagate/internal/watcher"
	"github.com/edgard/wagate/internal/whatsapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, starts the bridge, and returns an exit
// code. Temp files registered with the ledger are swept before returning,
// whichever way the run ends.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path, log)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db, log)
	store := database.NewStore(db, log)

	client, err := whatsapp.NewMeowClient(ctx, cfg.WhatsApp.SessionDB, log)
	if err != nil {
		log.Error("Failed to initialize WhatsApp client", "error", err)
		return 1
	}

	ledger := media.NewLedger(log)
	defer ledger.Sweep()

	transcoder := media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.ConvertTimeout, log)
	sanitizer := media.NewSanitizer(transcoder, ledger, log)

	processor, err := pdf.NewProcessor(cfg.PDF.Command, cfg.PDF.Timeout, log)
	if err != nil {
		log.Error("Failed to initialize PDF processor", "error", err)
		return 1
	}

	var summarizer watcher.Summarizer
	if cfg.Summary.APIKey != "" {
		sumClient, err := summary.NewClient(ctx, cfg.Summary.APIKey, cfg.Summary.Model, cfg.Summary.Timeout, log)
		if err != nil {
			log.Error("Failed to initialize summary client", "error", err)
			return 1
		}
		summarizer = sumClient
	} else {
		log.Info("No summary API key configured, forwarded PDFs get plain captions")
	}

	m := messenger.New(client, sanitizer, store, log)
	pdfWatcher := watcher.New(m, processor, summarizer, ledger, cfg.WhatsApp.DownloadsDir, log)
	client.OnMessage(pdfWatcher.HandleMessage)

	router := gateway.New(client, m, pdfWatcher, store, log).Router(cfg.HTTP.CORSOrigins)

	sched, err := bridge.NewScheduler(log)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	sweepTask := func(taskCtx context.Context) error {
		removed, err := media.SweepStale(log, cfg.WhatsApp.DownloadsDir, cfg.Sweep.MaxAge)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.InfoContext(taskCtx, "Swept stale downloads", "removed", removed)
		}
		return nil
	}
	if err := sched.AddTask("sweep_downloads", cfg.Sweep.Interval, sweepTask); err != nil {
		log.Error("Failed to schedule downloads sweep", "error", err)
		return 1
	}

	app := bridge.New(log, cfg.HTTP.Addr, router, client, sched, cfg.HTTP.ShutdownTimeout)

	log.Info("Starting gateway...")
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Gateway stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Gateway stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
