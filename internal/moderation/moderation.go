// Package moderation holds the bot owner's tools: timed and permanent bans, XP overrides, and the
// allowlist of rooms that may run ranked matches.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/vntrieu/impostor/internal/games"
)

// PermanentTerm is the ban term that never expires.
const PermanentTerm = "perma"

// DefaultReason is recorded when a ban gives none.
const DefaultReason = "No reason provided"

var (
	ErrNotOwner         = errors.New("owner only")
	ErrBadTerm          = errors.New("invalid ban term")
	ErrNegativeXP       = errors.New("xp must not be negative")
	ErrRankedNotAllowed = errors.New("ranked matches are not allowed in this room")
)

// Store persists bans and XP overrides. *store.UserStore implements it.
type Store interface {
	Ban(ctx context.Context, id int64, until *time.Time, reason string) error
	Unban(ctx context.Context, id int64) (bool, error)
	IsBanned(ctx context.Context, id int64, now time.Time) (bool, *time.Time, error)
	SetXP(ctx context.Context, id int64, xp int) error
}

// Service applies owner commands and answers admission questions for the engine.
type Service struct {
	store   Store
	ownerID int64
	ranked  map[int64]bool
	now     func() time.Time
}

var _ games.Admission = (*Service)(nil)

// NewService creates a Service. An ownerID of 0 disables every owner command.
func NewService(store Store, ownerID int64, rankedRooms []int64) *Service {
	ranked := make(map[int64]bool, len(rankedRooms))
	for _, id := range rankedRooms {
		ranked[id] = true
	}
	return &Service{store: store, ownerID: ownerID, ranked: ranked, now: time.Now}
}

// IsOwner reports whether userID may run owner commands.
func (s *Service) IsOwner(userID int64) bool {
	return s.ownerID != 0 && userID == s.ownerID
}

// ParseTerm turns a ban term into its end time: "perma" (nil), or a count of hours, days or months
// ("12h", "3d", "1m"; a month is 30 days).
func ParseTerm(term string, now time.Time) (*time.Time, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == PermanentTerm {
		return nil, nil
	}
	if len(term) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrBadTerm, term)
	}
	n, err := strconv.Atoi(term[:len(term)-1])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadTerm, term)
	}
	var d time.Duration
	switch term[len(term)-1] {
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	case 'm':
		d = time.Duration(n) * 30 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadTerm, term)
	}
	until := now.Add(d).UTC()
	return &until, nil
}

// Ban bans userID for term. It returns the ban's end, nil for a permanent ban.
func (s *Service) Ban(ctx context.Context, actorID, userID int64, term, reason string) (*time.Time, error) {
	if !s.IsOwner(actorID) {
		return nil, ErrNotOwner
	}
	until, err := ParseTerm(term, s.now())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultReason
	}
	if err := s.store.Ban(ctx, userID, until, reason); err != nil {
		return nil, err
	}
	log.Printf("user banned user_id=%d term=%s by=%d reason=%q", userID, term, actorID, reason)
	return until, nil
}

// Unban lifts userID's ban. It reports false when there was none.
func (s *Service) Unban(ctx context.Context, actorID, userID int64) (bool, error) {
	if !s.IsOwner(actorID) {
		return false, ErrNotOwner
	}
	lifted, err := s.store.Unban(ctx, userID)
	if err != nil {
		return false, err
	}
	log.Printf("user unbanned user_id=%d by=%d lifted=%t", userID, actorID, lifted)
	return lifted, nil
}

// SetXP overwrites userID's XP.
func (s *Service) SetXP(ctx context.Context, actorID, userID int64, xp int) error {
	if !s.IsOwner(actorID) {
		return ErrNotOwner
	}
	if xp < 0 {
		return ErrNegativeXP
	}
	if err := s.store.SetXP(ctx, userID, xp); err != nil {
		return err
	}
	log.Printf("xp set user_id=%d xp=%d by=%d", userID, xp, actorID)
	return nil
}

// BanStatus reports whether userID is banned right now and until when (nil for permanent).
func (s *Service) BanStatus(ctx context.Context, userID int64) (bool, *time.Time, error) {
	return s.store.IsBanned(ctx, userID, s.now())
}

// Banned implements games.Admission.
func (s *Service) Banned(ctx context.Context, userID int64) (bool, error) {
	banned, _, err := s.BanStatus(ctx, userID)
	return banned, err
}

// RankedRoom reports whether roomID is on the ranked allowlist.
func (s *Service) RankedRoom(roomID int64) bool { return s.ranked[roomID] }

// ModeFor picks the mode for a new match in roomID. Allowlisted rooms play ranked unless "unranked" is
// requested; elsewhere asking for "ranked" is refused. Any other request counts as no preference.
func (s *Service) ModeFor(roomID int64, requested string) (games.Mode, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if s.RankedRoom(roomID) {
		if requested == string(games.ModeUnranked) {
			return games.ModeUnranked, nil
		}
		return games.ModeRanked, nil
	}
	if requested == string(games.ModeRanked) {
		return "", ErrRankedNotAllowed
	}
	return games.ModeUnranked, nil
}
