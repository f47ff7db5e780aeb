package telegram

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pruneInterval = 5 * time.Minute

// Bot owns the Bot API connection. It is both the engine's Telegram notifier and the update loop.
type Bot struct {
	*Notifier
	api *tgbotapi.BotAPI
}

// New authorizes against the Bot API.
func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Printf("telegram authorized account=%s", api.Self.UserName)
	return &Bot{Notifier: NewNotifier(api), api: api}, nil
}

// API exposes the connection for NewHandler.
func (b *Bot) API() Sender { return b.api }

// Run long-polls updates until ctx is done, handling each in its own goroutine.
func (b *Bot) Run(ctx context.Context, h *Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	log.Println("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			log.Println("telegram bot stopping")
			return ctx.Err()
		case <-prune.C:
			h.prune()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go handleSafely(ctx, h.HandleUpdate, update)
		}
	}
}

// handleSafely runs one update. A panic is logged and dropped so other chats keep playing.
func handleSafely(ctx context.Context, handle func(context.Context, tgbotapi.Update), update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("telegram update panicked update_id=%d: %v\n%s", update.UpdateID, r, debug.Stack())
		}
	}()
	handle(ctx, update)
}
