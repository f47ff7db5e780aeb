package games

// EvaluateWin checks the alive roster. No living impostors is a crew win; impostors matching or outnumbering
// everyone else is an impostor win; otherwise OutcomeNone.
func EvaluateWin(players []Player) Outcome {
	impostors, others := 0, 0
	for _, p := range players {
		if !p.Alive {
			continue
		}
		if p.Role == RoleImpostor {
			impostors++
		} else {
			others++
		}
	}
	switch {
	case impostors == 0:
		return OutcomeCrewmates
	case impostors >= others:
		return OutcomeImpostors
	}
	return OutcomeNone
}

// ExplosionThreshold is the failed task round count at which the ship blows up without an engineer fix.
const ExplosionThreshold = 2

// ShipExploded reports whether failed task rounds have reached the threshold with no living engineer who
// still has the fix available.
func ShipExploded(failedRounds int, players []Player) bool {
	if failedRounds < ExplosionThreshold {
		return false
	}
	_, ok := eligibleFixer(players)
	return !ok
}

func eligibleFixer(players []Player) (Player, bool) {
	for _, p := range players {
		if p.Alive && p.Role == RoleEngineer && !p.EngineerUsedAbility {
			return p, true
		}
	}
	return Player{}, false
}

// Winners returns the user ids on the winning side for outcome.
func Winners(outcome Outcome, players []Player) map[int64]bool {
	out := make(map[int64]bool)
	for _, p := range players {
		switch outcome {
		case OutcomeCrewmates:
			if p.Role != RoleImpostor {
				out[p.UserID] = true
			}
		case OutcomeImpostors:
			if p.Role == RoleImpostor {
				out[p.UserID] = true
			}
		}
	}
	return out
}
