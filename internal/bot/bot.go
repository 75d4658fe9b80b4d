package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
)

// sender is the part of tgbotapi.BotAPI the bot needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	service *app.Service
	api     sender
	updates func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	admins  map[int64]bool
}

func New(service *app.Service) (*Bot, error) {
	if service.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is not specified in config")
	}

	api, err := tgbotapi.NewBotAPI(service.Config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	logger.Info.Printf("Authorized on account %s", api.Self.UserName)

	b := newBot(service, api, service.Config.Bot.AdminIDs)
	b.updates = api.GetUpdatesChan
	return b, nil
}

func newBot(service *app.Service, api sender, adminIDs []int64) *Bot {
	admins := make(map[int64]bool)
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &Bot{
		service: service,
		api:     api,
		admins:  admins,
	}
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.updates(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go b.handleMessage(update.Message)

		case <-sigChan:
			logger.Info.Println("Shutting down bot...")
			return nil
		}
	}
}
