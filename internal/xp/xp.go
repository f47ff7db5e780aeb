// Package xp turns match events into persistent experience points, streaks and achievements.
package xp

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vntrieu/impostor/internal/games"
	"github.com/vntrieu/impostor/internal/store"
)

// StreakBonusPercent is the extra win XP per consecutive prior win.
const StreakBonusPercent = 3

// Rewards maps each award event to its base XP.
var Rewards = map[games.ScoreEvent]int{
	games.ScoreWin:                    25,
	games.ScoreLoss:                   5,
	games.ScoreTaskCompleted:          3,
	games.ScoreCorrectVote:            2,
	games.ScoreImpostorKill:           5,
	games.ScoreSheriffKillsImpostor:   10,
	games.ScoreDetectiveFindsImpostor: 8,
	games.ScoreEngineerSavesShip:      15,
}

// Penalties maps each penalty event to the XP it removes.
var Penalties = map[games.ScoreEvent]int{
	games.PenaltyShipExplodes: 15,
	games.PenaltyFriendlyFire: 10,
	games.PenaltyAFK:          5,
}

// Repository is the persistence the service needs. *store.UserStore implements it.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
	AddXP(ctx context.Context, id int64, delta int) (int, error)
	RecordResult(ctx context.Context, id int64, won bool) error
	IncrementStat(ctx context.Context, id int64, stat store.UserStat) (int, error)
	GrantAchievement(ctx context.Context, id int64, code string) (bool, error)
	TopUsers(ctx context.Context, limit int) ([]store.User, error)
}

// Service implements games.Scorer.
type Service struct {
	repo     Repository
	notifier games.Notifier
}

var _ games.Scorer = (*Service)(nil)

// NewService creates a Service. A nil notifier skips achievement announcements.
func NewService(repo Repository, notifier games.Notifier) *Service {
	if notifier == nil {
		notifier = games.NopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier}
}

// WinXP returns the XP for a win given the streak held before it.
func WinXP(streak int) int {
	return Rewards[games.ScoreWin] * (100 + streak*StreakBonusPercent) / 100
}

// Award grants the event's XP. Wins apply the streak bonus and extend the streak; losses reset it.
func (s *Service) Award(ctx context.Context, userID int64, event games.ScoreEvent) error {
	base, ok := Rewards[event]
	if !ok {
		return fmt.Errorf("award: unknown event %q", event)
	}

	amount := base
	if event == games.ScoreWin {
		u, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("award: %w", err)
		}
		streak := 0
		if u != nil {
			streak = u.Streak
		}
		amount = WinXP(streak)
	}

	if _, err := s.repo.AddXP(ctx, userID, amount); err != nil {
		return fmt.Errorf("award: %w", err)
	}

	switch event {
	case games.ScoreWin, games.ScoreLoss:
		if err := s.repo.RecordResult(ctx, userID, event == games.ScoreWin); err != nil {
			return fmt.Errorf("award: %w", err)
		}
	}

	if err := s.checkAchievements(ctx, userID, event); err != nil {
		log.Printf("achievement check failed user_id=%d event=%s: %v", userID, event, err)
	}
	return nil
}

// Penalize removes the penalty's XP. Totals never drop below zero.
func (s *Service) Penalize(ctx context.Context, userID int64, event games.ScoreEvent) error {
	amount, ok := Penalties[event]
	if !ok {
		return fmt.Errorf("penalize: unknown event %q", event)
	}
	if _, err := s.repo.AddXP(ctx, userID, -amount); err != nil {
		return fmt.Errorf("penalize: %w", err)
	}
	return nil
}

// Profile returns the user's stats, or nil if they have never played.
func (s *Service) Profile(ctx context.Context, userID int64) (*store.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return u, nil
}

// Leaderboard returns the top users by XP.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]store.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	users, err := s.repo.TopUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return users, nil
}

func (s *Service) checkAchievements(ctx context.Context, userID int64, event games.ScoreEvent) error {
	var code string
	switch event {
	case games.ScoreWin:
		code = AchievementFirstWin
	case games.ScoreEngineerSavesShip:
		code = AchievementShipSaver
	case games.ScoreTaskCompleted:
		n, err := s.repo.IncrementStat(ctx, userID, store.StatTasksCompleted)
		if err != nil {
			return err
		}
		if n >= TaskMasterThreshold {
			code = AchievementTaskMaster
		}
	case games.ScoreDetectiveFindsImpostor:
		n, err := s.repo.IncrementStat(ctx, userID, store.StatImpostorsFound)
		if err != nil {
			return err
		}
		if n >= DetectiveStreakThreshold {
			code = AchievementDetectiveStreak
		}
	}
	if code == "" {
		return nil
	}

	granted, err := s.repo.GrantAchievement(ctx, userID, code)
	if err != nil || !granted {
		return err
	}
	a := Achievements[code]
	msg := games.Message{
		Event: games.EventAchievement,
		Text:  fmt.Sprintf("Achievement unlocked!\n\n%s\n%s", a.Name, a.Description),
		Data:  map[string]interface{}{"code": code},
	}
	// callers may be inside a phase transition
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.NotifyUser(ctx, userID, msg); err != nil {
			log.Printf("achievement notify failed user_id=%d code=%s: %v", userID, code, err)
		}
	}()
	return nil
}
