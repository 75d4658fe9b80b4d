package main

import (
	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/legacy"
)

func main() {
	var (
		configPath = kingpin.Flag("config", "Path to config file").Short('c').Default("config.toml").Envar("LABSYNC_CONFIG").String()
		dir        = kingpin.Arg("dir", "Directory with the legacy xlsx files").Required().ExistingDir()
	)
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	loc, err := config.Location()
	if err != nil {
		logger.Error.Fatalf("Failed to load timezone: %v", err)
	}

	store, err := app.NewStore(config.Database.DSN)
	if err != nil {
		logger.Error.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	labs := make([]string, 0, len(config.Labs))
	for _, lab := range config.Labs {
		labs = append(labs, lab.Name)
	}

	importer := &legacy.Importer{
		Store:    store,
		Dir:      *dir,
		Labs:     labs,
		Hash:     app.HashPassword,
		Location: loc,
	}
	report, err := importer.Import()
	if err != nil {
		logger.Error.Fatalf("Import failed: %v", err)
	}

	logger.Info.Printf("Imported %d users, %d reservations, %d blocks, %d comments",
		report.Users, report.Reservations, report.Blocks, report.Comments)
	logger.Info.Printf("Imported %d capacities, %d group limits, %d rule sets; skipped %d rows",
		report.Capacities, report.GroupLimits, report.Rules, report.Skipped)
}
