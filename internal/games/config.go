package games

import "time"

// Phase is the match state machine position.
type Phase string

// Phase names.
const (
	PhaseLobby      Phase = "lobby"
	PhaseNight      Phase = "night"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseEnded      Phase = "ended"
)

// phaseTransitions lists the forward moves allowed from each phase. Ended is reachable from every
// non-terminal phase and is handled in CanTransitionTo.
var phaseTransitions = map[Phase][]Phase{
	PhaseLobby:      {PhaseNight},
	PhaseNight:      {PhaseDiscussion},
	PhaseDiscussion: {PhaseVoting},
	PhaseVoting:     {PhaseNight},
}

// CanTransitionTo reports whether a match in phase p may move to next.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p == PhaseEnded {
		return false
	}
	if next == PhaseEnded {
		return true
	}
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (p Phase) String() string { return string(p) }

// Mode selects the admission rules. Ranked lobbies refuse banned players.
type Mode string

const (
	ModeRanked   Mode = "ranked"
	ModeUnranked Mode = "unranked"
)

// Player count limits.
const (
	MinPlayers = 4
	MaxPlayers = 20
)

// Timings holds the durations that drive autonomous phase advancement.
type Timings struct {
	Lobby       time.Duration
	Night       time.Duration
	Discussion  time.Duration
	Voting      time.Duration
	FixerWindow time.Duration
}

// DefaultTimings returns the classic durations.
func DefaultTimings() Timings {
	return Timings{
		Lobby:       60 * time.Second,
		Night:       60 * time.Second,
		Discussion:  90 * time.Second,
		Voting:      30 * time.Second,
		FixerWindow: 20 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	def := DefaultTimings()
	if t.Lobby <= 0 {
		t.Lobby = def.Lobby
	}
	if t.Night <= 0 {
		t.Night = def.Night
	}
	if t.Discussion <= 0 {
		t.Discussion = def.Discussion
	}
	if t.Voting <= 0 {
		t.Voting = def.Voting
	}
	if t.FixerWindow <= 0 {
		t.FixerWindow = def.FixerWindow
	}
	return t
}

// Bracket is an inclusive player-count range.
type Bracket struct {
	Min int
	Max int
}

func (b Bracket) contains(n int) bool { return n >= b.Min && n <= b.Max }

// Quota is the number of each special role dealt for a bracket; the rest are Crewmates.
type Quota struct {
	Impostors  int
	Detectives int
	Sheriffs   int
	Engineers  int
}

// Total is the number of special roles in the quota.
func (q Quota) Total() int { return q.Impostors + q.Detectives + q.Sheriffs + q.Engineers }

// QuotaRow binds a quota to a bracket.
type QuotaRow struct {
	Bracket Bracket
	Quota   Quota
}

// ClassicQuotas is the role quota table. Every row's total stays below its bracket minimum.
var ClassicQuotas = []QuotaRow{
	{Bracket{4, 8}, Quota{Impostors: 1, Detectives: 1}},
	{Bracket{9, 12}, Quota{Impostors: 2, Detectives: 1}},
	{Bracket{13, 16}, Quota{Impostors: 3, Detectives: 2, Sheriffs: 1, Engineers: 1}},
	{Bracket{17, 20}, Quota{Impostors: 4, Detectives: 2, Sheriffs: 1, Engineers: 1}},
}

// TaskRow binds a nightly task count to a bracket.
type TaskRow struct {
	Bracket Bracket
	Tasks   int
}

// ClassicTaskCounts is the nightly task table keyed by total player count.
var ClassicTaskCounts = []TaskRow{
	{Bracket{4, 8}, 1},
	{Bracket{9, 12}, 2},
	{Bracket{13, 16}, 3},
	{Bracket{17, 20}, 4},
}

// QuotaForPlayerCount returns the quota row for n players.
func QuotaForPlayerCount(n int) (Quota, bool) {
	for _, row := range ClassicQuotas {
		if row.Bracket.contains(n) {
			return row.Quota, true
		}
	}
	return Quota{}, false
}

// TaskCountForPlayerCount returns how many Crewmates get a task each night. Counts outside the table get 1.
func TaskCountForPlayerCount(n int) int {
	for _, row := range ClassicTaskCounts {
		if row.Bracket.contains(n) {
			return row.Tasks
		}
	}
	return 1
}
