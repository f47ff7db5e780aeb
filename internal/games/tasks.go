package games

import (
	"math/rand"
	"sort"
)

// Puzzle is a presentation-only task. Completion is self-reported, so Solution is never checked.
type Puzzle struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Prompt   string `json:"prompt"`
	Solution string `json:"solution"`
	Button   string `json:"button"`
}

// PuzzlePool is the fixed set of nightly tasks.
var PuzzlePool = []Puzzle{
	{ID: "align_nav", Name: "Align Navigation", Prompt: "Confirm navigation alignment", Solution: "aligned", Button: "Align"},
	{ID: "divert_power", Name: "Divert Power", Prompt: "Flip the power switch", Solution: "on", Button: "Flip Switch"},
	{ID: "fuel_engines", Name: "Fuel Engines", Prompt: "Tap the fuel button", Solution: "fueled", Button: "Fuel"},
	{ID: "empty_garbage", Name: "Empty Garbage", Prompt: "Press to open chute", Solution: "open", Button: "Open Chute"},
	{ID: "start_reactor", Name: "Start Reactor", Prompt: "Pattern matching required", Solution: "started", Button: "Start"},
}

// AssignTasks picks TaskCountForPlayerCount(totalPlayers) living Crewmates without replacement and gives each
// a random puzzle. If fewer Crewmates qualify, all of them get one.
func AssignTasks(players []Player, totalPlayers int, rng *rand.Rand) map[int64]Puzzle {
	var eligible []int64
	for _, p := range players {
		if p.Alive && p.Role == RoleCrewmate {
			eligible = append(eligible, p.UserID)
		}
	}
	// stable input order so a seeded rng is reproducible
	sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })

	count := TaskCountForPlayerCount(totalPlayers)
	if count > len(eligible) {
		count = len(eligible)
	}
	rng.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })

	out := make(map[int64]Puzzle, count)
	for _, id := range eligible[:count] {
		out[id] = PuzzlePool[rng.Intn(len(PuzzlePool))]
	}
	return out
}

// TasksSucceeded reports whether every assignee completed their task. A night with no assignments succeeds.
func TasksSucceeded(assigned map[int64]Puzzle, players []Player) bool {
	for id := range assigned {
		p, ok := findPlayer(players, id)
		if !ok || !p.CompletedTask {
			return false
		}
	}
	return true
}
