package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vntrieu/impostor/internal/games"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers engine messages to Telegram. Room ids are group chat ids; user ids are
// Telegram user ids, which double as the private chat id.
type Notifier struct {
	api Sender
}

var _ games.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier on api.
func NewNotifier(api Sender) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) NotifyRoom(ctx context.Context, roomID int64, msg games.Message) error {
	return n.send(ctx, roomID, msg)
}

func (n *Notifier) NotifyUser(ctx context.Context, userID int64, msg games.Message) error {
	return n.send(ctx, userID, msg)
}

func (n *Notifier) send(ctx context.Context, chatID int64, msg games.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.api.Send(render(chatID, msg)); err != nil {
		return fmt.Errorf("telegram send chat_id=%d event=%s: %w", chatID, msg.Event, err)
	}
	return nil
}

func render(chatID int64, msg games.Message) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, decorate(msg))
	switch {
	case msg.Event == games.EventMatchCreated:
		out.ReplyMarkup = LobbyKeyboard(msg.MatchID)
	case len(msg.Options) > 0:
		if kb, ok := OptionsKeyboard(msg.MatchID, msg.Options); ok {
			out.ReplyMarkup = kb
		}
	}
	return out
}

var eventIcons = map[string]string{
	games.EventMatchCreated: "🎮",
	games.EventRoleAssigned: "🎭",
	games.EventPhaseChanged: "🕐",
	games.EventNightPrompt:  "🌙",
	games.EventTaskPrompt:   "🔧",
	games.EventVotePrompt:   "🗳",
	games.EventFixerPrompt:  "⚙️",
	games.EventFinding:      "🕵️",
	games.EventShipFixed:    "⚙️",
	games.EventMatchEnded:   "🏁",
	games.EventMatchFailed:  "⚠️",
	games.EventAchievement:  "🏆",
}

func decorate(msg games.Message) string {
	if icon, ok := eventIcons[msg.Event]; ok {
		return icon + " " + msg.Text
	}
	return msg.Text
}
