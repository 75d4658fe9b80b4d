package main

import (
	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/bot"
)

func main() {
	configPath := kingpin.Flag("config", "Path to config file").Short('c').Default("config.toml").Envar("LABSYNC_CONFIG").String()
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	b, err := bot.New(service)
	if err != nil {
		logger.Error.Fatalf("Failed to create bot: %v", err)
	}

	logger.Info.Println("Bot initialized successfully")
	if err := b.Start(); err != nil {
		logger.Error.Fatalf("Bot error: %v", err)
	}
}
