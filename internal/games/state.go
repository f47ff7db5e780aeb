package games

import "time"

// SettingRoundNumber is the settings key holding the current night number.
const SettingRoundNumber = "round_number"

// Match is one game instance as persisted.
type Match struct {
	ID               string                 `json:"id"`
	RoomID           int64                  `json:"room_id"`
	Mode             Mode                   `json:"mode"`
	Phase            Phase                  `json:"phase"`
	CreatedAt        time.Time              `json:"created_at"`
	EndedAt          *time.Time             `json:"ended_at,omitempty"`
	CreatorID        int64                  `json:"creator_id"`
	FailedTaskRounds int                    `json:"failed_task_rounds"`
	Settings         map[string]interface{} `json:"settings"`
}

// Round returns the round number stored in settings, or 0 before the first night.
func (m *Match) Round() int {
	if m == nil {
		return 0
	}
	v, _ := floatToInt(m.Settings[SettingRoundNumber])
	return v
}

// Clone returns a copy of the match with its own settings map.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	out := *m
	if m.EndedAt != nil {
		t := *m.EndedAt
		out.EndedAt = &t
	}
	out.Settings = make(map[string]interface{}, len(m.Settings))
	for k, v := range m.Settings {
		out.Settings[k] = v
	}
	return &out
}

// Player is a participant's state within one match.
type Player struct {
	MatchID             string `json:"match_id"`
	UserID              int64  `json:"user_id"`
	Role                Role   `json:"role"`
	Alive               bool   `json:"alive"`
	Voted               bool   `json:"voted"`
	CompletedTask       bool   `json:"completed_task"`
	SheriffShotUsed     bool   `json:"sheriff_shot_used"`
	DetectiveLastRound  int    `json:"detective_last_round"`
	EngineerUsedAbility bool   `json:"engineer_used_ability"`
}

// PlayerField names a mutable player column. Stores must reject anything else.
type PlayerField string

const (
	FieldAlive               PlayerField = "is_alive"
	FieldVoted               PlayerField = "voted"
	FieldCompletedTask       PlayerField = "completed_task"
	FieldSheriffShotUsed     PlayerField = "sheriff_shot_used"
	FieldDetectiveLastRound  PlayerField = "detective_last_investigation"
	FieldEngineerUsedAbility PlayerField = "engineer_used_ability"
)

// Valid reports whether f is a known player field.
func (f PlayerField) Valid() bool {
	switch f {
	case FieldAlive, FieldVoted, FieldCompletedTask, FieldSheriffShotUsed, FieldDetectiveLastRound, FieldEngineerUsedAbility:
		return true
	}
	return false
}

// Apply sets field f on p. Unknown fields and mismatched value types are ignored and reported false.
func (p *Player) Apply(f PlayerField, value interface{}) bool {
	switch f {
	case FieldDetectiveLastRound:
		n, ok := floatToInt(value)
		if ok {
			p.DetectiveLastRound = n
		}
		return ok
	}
	b, ok := value.(bool)
	if !ok {
		return false
	}
	switch f {
	case FieldAlive:
		p.Alive = b
	case FieldVoted:
		p.Voted = b
	case FieldCompletedTask:
		p.CompletedTask = b
	case FieldSheriffShotUsed:
		p.SheriffShotUsed = b
	case FieldEngineerUsedAbility:
		p.EngineerUsedAbility = b
	default:
		return false
	}
	return true
}

// Vote is one voter's choice for a round. A nil Target is an abstain.
type Vote struct {
	MatchID string `json:"match_id"`
	Round   int    `json:"round"`
	VoterID int64  `json:"voter_id"`
	Target  *int64 `json:"target_id,omitempty"`
}

// Outcome is the terminal result of a match.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCrewmates Outcome = "crewmates"
	OutcomeImpostors Outcome = "impostors"
	OutcomeExplosion Outcome = "explosion"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeError     Outcome = "error"
)

func alivePlayers(players []Player) []Player {
	out := make([]Player, 0, len(players))
	for _, p := range players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

func findPlayer(players []Player, userID int64) (Player, bool) {
	for _, p := range players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

func floatToInt(a interface{}) (int, bool) {
	switch v := a.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	default:
		return 0, false
	}
}

func int64Ptr(v int64) *int64 { return &v }
