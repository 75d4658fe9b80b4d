package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/export"
)

func main() {
	var (
		configPath = kingpin.Flag("config", "Path to config file").Short('c').Default("config.toml").Envar("LABSYNC_CONFIG").String()
		once       = kingpin.Flag("once", "Export upcoming days once and exit").Bool()
	)
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	loc, err := service.Config.Location()
	if err != nil {
		logger.Error.Fatalf("Failed to load timezone: %v", err)
	}

	ctx := context.Background()
	cfg := service.Config.Export

	var sinks []export.Sink
	if cfg.Dir != "" {
		sink, err := export.NewXLSXSink(cfg.Dir)
		if err != nil {
			logger.Error.Fatalf("Failed to initialize xlsx export: %v", err)
		}
		sinks = append(sinks, sink)
	}
	for _, sheet := range cfg.GSheet {
		sink, err := export.NewGSheetSink(ctx, sheet)
		if err != nil {
			logger.Error.Fatalf("Failed to initialize Google Sheets export: %v", err)
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		logger.Error.Fatalf("Nothing to export to: set [export] dir or add [[export.gsheet]] entries")
	}

	exporter := export.NewExporter(service.Store, sinks, cfg.DaysAhead, loc)

	if *once {
		if err := exporter.ExportUpcoming(ctx); err != nil {
			logger.Error.Fatalf("Export failed: %v", err)
		}
		return
	}

	scheduler, err := export.NewScheduler(exporter, cfg.Schedule, loc)
	if err != nil {
		logger.Error.Fatalf("Failed to schedule export: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info.Printf("Exporting on %q to %d sinks", cfg.Schedule, len(sinks))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info.Println("Exporter stopped")
}
