package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vntrieu/impostor/internal/games"
	"github.com/vntrieu/impostor/internal/moderation"
	"github.com/vntrieu/impostor/internal/ratelimit"
	"github.com/vntrieu/impostor/internal/store"
)

// MatchService is the engine surface the bot drives. *games.Engine implements it.
type MatchService interface {
	CreateMatch(ctx context.Context, roomID, creatorID int64, mode games.Mode) (*games.Match, error)
	JoinLobby(ctx context.Context, matchID string, userID int64) (bool, error)
	ForceStart(ctx context.Context, matchID string) (bool, error)
	ForceEnd(ctx context.Context, matchID string) error
	GetMatch(ctx context.Context, matchID string) (*games.Match, error)
	ActiveMatchForRoom(ctx context.Context, roomID int64) (*games.Match, error)
	SubmitNightAction(ctx context.Context, matchID string, userID int64, kind games.ActionKind, target *int64) (games.NightAction, error)
	CompleteTask(ctx context.Context, matchID string, userID int64) error
	SubmitFixerDecision(ctx context.Context, matchID string, userID int64, fix bool) error
	SubmitVote(ctx context.Context, matchID string, userID int64, target *int64) error
}

// ProfileService reads XP profiles for /stats. *xp.Service implements it.
type ProfileService interface {
	Profile(ctx context.Context, userID int64) (*store.User, error)
}

// Moderator runs owner commands and picks match modes. *moderation.Service implements it.
type Moderator interface {
	IsOwner(userID int64) bool
	Ban(ctx context.Context, actorID, userID int64, term, reason string) (*time.Time, error)
	Unban(ctx context.Context, actorID, userID int64) (bool, error)
	SetXP(ctx context.Context, actorID, userID int64, xp int) error
	BanStatus(ctx context.Context, userID int64) (bool, *time.Time, error)
	ModeFor(roomID int64, requested string) (games.Mode, error)
}

// Handler turns Telegram updates into engine calls.
type Handler struct {
	api      Sender
	games    MatchService
	profiles ProfileService
	mod      Moderator
	limiter  ratelimit.Limiter
}

// NewHandler creates a Handler. A nil limiter disables throttling; a nil moderator disables owner
// commands and ranked matches.
func NewHandler(api Sender, svc MatchService, profiles ProfileService, mod Moderator, limiter ratelimit.Limiter) *Handler {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &Handler{api: api, games: svc, profiles: profiles, mod: mod, limiter: limiter}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if ok, retry := h.limiter.Allow(ratelimit.Key("tg-user", msg.From.ID)); !ok {
		h.reply(msg.Chat.ID, fmt.Sprintf("⏳ Slow down, try again in %ds.", retry))
		return
	}

	switch msg.Command() {
	case "start", "help":
		h.reply(msg.Chat.ID, helpText)
	case "rules":
		h.reply(msg.Chat.ID, rulesText)
	case "roles":
		h.reply(msg.Chat.ID, rolesText)
	case "stats":
		h.cmdStats(ctx, msg)
	case "startgame":
		h.cmdStartGame(ctx, msg)
	case "xban", "xunban", "setxp":
		h.cmdOwner(ctx, msg)
	case "join", "begin", "end":
		if msg.Chat.IsPrivate() {
			h.reply(msg.Chat.ID, "❌ Games can only be played in groups!")
			return
		}
		m, err := h.games.ActiveMatchForRoom(ctx, msg.Chat.ID)
		if err != nil {
			h.reply(msg.Chat.ID, userError(err))
			return
		}
		h.reply(msg.Chat.ID, h.lobbyOp(ctx, lobbyCommands[msg.Command()], m.ID, msg.From.ID))
	default:
		h.reply(msg.Chat.ID, "Unknown command. Use /help")
	}
}

func (h *Handler) cmdStartGame(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.IsPrivate() {
		h.reply(msg.Chat.ID, "❌ Games can only be started in groups!")
		return
	}
	mode := games.ModeUnranked
	if h.mod != nil {
		var err error
		if mode, err = h.mod.ModeFor(msg.Chat.ID, msg.CommandArguments()); err != nil {
			h.reply(msg.Chat.ID, "❌ Ranked games are not allowed in this group!")
			return
		}
	}
	// the engine announces the lobby itself
	_, err := h.games.CreateMatch(ctx, msg.Chat.ID, msg.From.ID, mode)
	switch {
	case errors.Is(err, games.ErrBanned):
		h.reply(msg.Chat.ID, h.bannedText(ctx, msg.From.ID))
	case err != nil:
		h.reply(msg.Chat.ID, userError(err))
	}
}

func (h *Handler) bannedText(ctx context.Context, userID int64) string {
	if h.mod == nil {
		return userError(games.ErrBanned)
	}
	banned, until, err := h.mod.BanStatus(ctx, userID)
	if err != nil || !banned {
		return userError(games.ErrBanned)
	}
	if until == nil {
		return "🚫 You are banned permanently."
	}
	return fmt.Sprintf("🚫 You are banned until %s.", until.Format("2006-01-02 15:04 MST"))
}

// cmdOwner handles /xban <user_id> <term> [reason], /xunban <user_id> and /setxp <user_id> <amount>.
func (h *Handler) cmdOwner(ctx context.Context, msg *tgbotapi.Message) {
	if h.mod == nil || !h.mod.IsOwner(msg.From.ID) {
		h.reply(msg.Chat.ID, "❌ Owner only command!")
		return
	}
	args := strings.Fields(msg.CommandArguments())
	usage := ownerUsage[msg.Command()]
	if len(args) < usage.args {
		h.reply(msg.Chat.ID, "Usage: "+usage.text)
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(msg.Chat.ID, "❌ Invalid user ID!")
		return
	}

	switch msg.Command() {
	case "xban":
		until, err := h.mod.Ban(ctx, msg.From.ID, userID, args[1], strings.Join(args[2:], " "))
		switch {
		case errors.Is(err, moderation.ErrBadTerm):
			h.reply(msg.Chat.ID, "❌ Invalid duration! Use perma, or a number followed by h, d or m.")
		case err != nil:
			h.reply(msg.Chat.ID, ownerError(err))
		case until == nil:
			h.reply(msg.Chat.ID, fmt.Sprintf("✅ User %d banned permanently", userID))
		default:
			h.reply(msg.Chat.ID, fmt.Sprintf("✅ User %d banned for %s", userID, args[1]))
		}
	case "xunban":
		lifted, err := h.mod.Unban(ctx, msg.From.ID, userID)
		switch {
		case err != nil:
			h.reply(msg.Chat.ID, ownerError(err))
		case !lifted:
			h.reply(msg.Chat.ID, fmt.Sprintf("User %d was not banned.", userID))
		default:
			h.reply(msg.Chat.ID, fmt.Sprintf("✅ User %d unbanned", userID))
		}
	case "setxp":
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			h.reply(msg.Chat.ID, "❌ Invalid XP amount!")
			return
		}
		if err := h.mod.SetXP(ctx, msg.From.ID, userID, amount); err != nil {
			h.reply(msg.Chat.ID, ownerError(err))
			return
		}
		h.reply(msg.Chat.ID, fmt.Sprintf("✅ Set user %d XP to %d", userID, amount))
	}
}

var ownerUsage = map[string]struct {
	args int
	text string
}{
	"xban":   {2, "/xban <user_id> <duration> [reason]"},
	"xunban": {1, "/xunban <user_id>"},
	"setxp":  {2, "/setxp <user_id> <amount>"},
}

func ownerError(err error) string {
	switch {
	case errors.Is(err, moderation.ErrNotOwner):
		return "❌ Owner only command!"
	case errors.Is(err, moderation.ErrNegativeXP):
		return "❌ XP can't be negative!"
	}
	log.Printf("telegram owner command failed: %v", err)
	return "⚠️ Something went wrong. Try again later."
}

func (h *Handler) cmdStats(ctx context.Context, msg *tgbotapi.Message) {
	if h.profiles == nil {
		h.reply(msg.Chat.ID, "Stats are unavailable.")
		return
	}
	u, err := h.profiles.Profile(ctx, msg.From.ID)
	if err != nil {
		log.Printf("telegram stats failed user_id=%d: %v", msg.From.ID, err)
		h.reply(msg.Chat.ID, "⚠️ Something went wrong. Try again later.")
		return
	}
	h.reply(msg.Chat.ID, statsText(msg.From.ID, u))
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	var answer string
	if ok, retry := h.limiter.Allow(ratelimit.Key("tg-user", q.From.ID)); !ok {
		answer = fmt.Sprintf("Slow down, try again in %ds.", retry)
	} else {
		answer = h.dispatch(ctx, q.Data, q.From.ID)
	}
	if _, err := h.api.Request(tgbotapi.NewCallback(q.ID, answer)); err != nil {
		log.Printf("telegram answer callback failed user_id=%d: %v", q.From.ID, err)
	}
}

// dispatch runs a button press and returns the short text shown to the presser.
func (h *Handler) dispatch(ctx context.Context, data string, userID int64) string {
	cb, err := ParseCallback(data)
	if err != nil {
		log.Printf("telegram bad callback user_id=%d data=%q", userID, data)
		return "This button is no longer valid."
	}

	switch cb.Op {
	case opJoin, opBegin, opEnd:
		return h.lobbyOp(ctx, cb.Op, cb.MatchID, userID)
	case opNight:
		_, err = h.games.SubmitNightAction(ctx, cb.MatchID, userID, cb.Kind, cb.Target)
	case opTask:
		err = h.games.CompleteTask(ctx, cb.MatchID, userID)
	case opFixer:
		err = h.games.SubmitFixerDecision(ctx, cb.MatchID, userID, cb.Fix)
	case opVote:
		err = h.games.SubmitVote(ctx, cb.MatchID, userID, cb.Target)
	}
	if err != nil {
		return userError(err)
	}
	return "✅ Recorded"
}

var lobbyCommands = map[string]string{"join": opJoin, "begin": opBegin, "end": opEnd}

// lobbyOp handles join, begin and end for both commands and buttons. Begin and end are creator-only.
func (h *Handler) lobbyOp(ctx context.Context, op, matchID string, userID int64) string {
	if op == opJoin {
		joined, err := h.games.JoinLobby(ctx, matchID, userID)
		switch {
		case errors.Is(err, games.ErrBanned):
			return "🚫 You are banned from ranked games!"
		case err != nil:
			return userError(err)
		case !joined:
			return "You're already in, or the lobby is full."
		}
		return "✅ Joined"
	}

	m, err := h.games.GetMatch(ctx, matchID)
	if err != nil {
		return userError(err)
	}
	if m.CreatorID != userID {
		return userError(games.ErrNotCreator)
	}
	if op == opBegin {
		if _, err := h.games.ForceStart(ctx, matchID); err != nil {
			return userError(err)
		}
		return "▶️ Starting"
	}
	if err := h.games.ForceEnd(ctx, matchID); err != nil {
		return userError(err)
	}
	return "⏹ Match ended"
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("telegram reply failed chat_id=%d: %v", chatID, err)
	}
}

// prune drops idle throttle keys when the limiter supports it.
func (h *Handler) prune() {
	if p, ok := h.limiter.(interface{ Prune() int }); ok {
		if n := p.Prune(); n > 0 {
			log.Printf("telegram throttle pruned keys=%d", n)
		}
	}
}

var userErrors = []struct {
	err  error
	text string
}{
	{games.ErrMatchNotFound, "No active match here. Start one with /startgame"},
	{games.ErrMatchInProgress, "⚠️ A game is already active in this group!"},
	{games.ErrLobbyClosed, "The lobby is closed."},
	{games.ErrNotEnoughPlayers, fmt.Sprintf("Need at least %d players to begin.", games.MinPlayers)},
	{games.ErrNotCreator, "Only the match creator can do that."},
	{games.ErrNotInMatch, "You're not in this match."},
	{games.ErrPlayerDead, "Dead players can't act."},
	{games.ErrWrongPhase, "Too late, the phase has changed."},
	{games.ErrAlreadyVoted, "You already voted this round."},
	{games.ErrActionNotAllowed, "Your role can't do that."},
	{games.ErrInvalidTarget, "Invalid target."},
	{games.ErrOnCooldown, "Your ability is on cooldown tonight."},
	{games.ErrAbilityUsed, "You already used that ability."},
	{games.ErrNoFixerWindow, "There's nothing to fix right now."},
	{games.ErrNoTaskAssigned, "You have no task tonight."},
	{games.ErrBanned, "🚫 You are banned."},
}

func userError(err error) string {
	for _, ue := range userErrors {
		if errors.Is(err, ue.err) {
			return ue.text
		}
	}
	log.Printf("telegram action failed: %v", err)
	return "⚠️ Something went wrong. Try again later."
}
