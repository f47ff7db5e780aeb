package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vntrieu/impostor/internal/games"
)

func TestNotifier_RoomAndUser(t *testing.T) {
	api := &fakeSender{}
	n := NewNotifier(api)
	ctx := context.Background()

	if err := n.NotifyRoom(ctx, -1001, games.Message{Event: games.EventMatchCreated, MatchID: testMatchID, Text: "lobby open"}); err != nil {
		t.Fatalf("NotifyRoom: %v", err)
	}
	prompt := games.VotePrompt(games.RoleContext{MatchID: testMatchID, Round: 1, Players: []games.Player{
		{UserID: 1, Alive: true}, {UserID: 2, Alive: true}, {UserID: 3},
	}})
	if err := n.NotifyUser(ctx, 42, prompt); err != nil {
		t.Fatalf("NotifyUser: %v", err)
	}

	if len(api.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(api.sent))
	}
	room := api.sent[0]
	if room.ChatID != -1001 || !strings.Contains(room.Text, "lobby open") {
		t.Errorf("unexpected room message %+v", room)
	}
	lobby, ok := room.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(lobby.InlineKeyboard) != 2 {
		t.Fatalf("expected lobby keyboard, got %#v", room.ReplyMarkup)
	}
	if data := *lobby.InlineKeyboard[0][0].CallbackData; data != "j:"+testMatchID {
		t.Errorf("join button data = %q", data)
	}

	vote := api.sent[1]
	if vote.ChatID != 42 {
		t.Errorf("expected private chat 42, got %d", vote.ChatID)
	}
	kb, ok := vote.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected vote keyboard, got %#v", vote.ReplyMarkup)
	}
	// two living players plus abstain
	if len(kb.InlineKeyboard) != 3 {
		t.Errorf("expected 3 vote rows, got %d", len(kb.InlineKeyboard))
	}
	if data := *kb.InlineKeyboard[2][0].CallbackData; data != "v:"+testMatchID+":-" {
		t.Errorf("abstain button data = %q", data)
	}
}

func TestNotifier_Errors(t *testing.T) {
	api := &fakeSender{sendErr: errors.New("bot was blocked by the user")}
	n := NewNotifier(api)
	if err := n.NotifyUser(context.Background(), 42, games.Message{Text: "hi"}); err == nil {
		t.Error("expected send error to surface")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api.sendErr = nil
	if err := n.NotifyRoom(ctx, 1, games.Message{Text: "late"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Errorf("expected nothing sent after cancel, got %d", len(api.sent))
	}
}

func TestOptionsKeyboard_SkipsBadOptions(t *testing.T) {
	kb, ok := OptionsKeyboard(testMatchID, []games.Option{
		{Label: "Fix ship", Action: games.OptionFixer, Fix: true},
		{Label: "???", Action: "unknown"},
	})
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("expected one row, got %+v", kb)
	}
	if _, ok := OptionsKeyboard(testMatchID, nil); ok {
		t.Error("expected no keyboard for no options")
	}
}
