package games

import "context"

// ScoreEvent identifies an XP reward or penalty.
type ScoreEvent string

// Rewards.
const (
	ScoreWin                    ScoreEvent = "win"
	ScoreLoss                   ScoreEvent = "loss"
	ScoreTaskCompleted          ScoreEvent = "task_completed"
	ScoreCorrectVote            ScoreEvent = "correct_vote"
	ScoreImpostorKill           ScoreEvent = "impostor_kill"
	ScoreSheriffKillsImpostor   ScoreEvent = "sheriff_kills_impostor"
	ScoreDetectiveFindsImpostor ScoreEvent = "detective_finds_impostor"
	ScoreEngineerSavesShip      ScoreEvent = "engineer_saves_ship"
)

// Penalties.
const (
	PenaltyShipExplodes ScoreEvent = "ship_explodes"
	PenaltyFriendlyFire ScoreEvent = "friendly_fire"
	PenaltyAFK          ScoreEvent = "afk"
)

// ScoreChange is one award or penalty produced by a resolution step.
type ScoreChange struct {
	UserID  int64
	Event   ScoreEvent
	Penalty bool
}

// Scorer records XP. Calls are fire-and-forget: the engine logs errors and carries on.
type Scorer interface {
	Award(ctx context.Context, userID int64, event ScoreEvent) error
	Penalize(ctx context.Context, userID int64, event ScoreEvent) error
}

// NopScorer ignores every event.
type NopScorer struct{}

func (NopScorer) Award(context.Context, int64, ScoreEvent) error    { return nil }
func (NopScorer) Penalize(context.Context, int64, ScoreEvent) error { return nil }
