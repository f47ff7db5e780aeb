package games

// TallyResult is the outcome of counting a round's votes.
type TallyResult struct {
	Ejected  *int64         `json:"ejected_id,omitempty"`
	Counts   map[int64]int  `json:"counts"`
	Abstains int            `json:"abstains"`
	Voters   map[int64]bool `json:"-"`
}

// TallyVotes resolves a round's votes by plurality. Abstains are counted but never win; any tie at the top
// count, including a tie with the abstain count, ejects nobody. A voter appearing twice counts once, last
// record wins.
func TallyVotes(votes []Vote) TallyResult {
	latest := make(map[int64]*int64, len(votes))
	for _, v := range votes {
		latest[v.VoterID] = v.Target
	}

	res := TallyResult{Counts: make(map[int64]int), Voters: make(map[int64]bool, len(latest))}
	for voter, target := range latest {
		res.Voters[voter] = true
		if target == nil {
			res.Abstains++
			continue
		}
		res.Counts[*target]++
	}

	best, top, tied := int64(0), 0, false
	for target, n := range res.Counts {
		switch {
		case n > top:
			best, top, tied = target, n, false
		case n == top:
			tied = true
		}
	}
	if top == 0 || tied || res.Abstains >= top {
		return res
	}
	res.Ejected = int64Ptr(best)
	return res
}

// pluralityTarget picks the single most chosen target among non-nil choices, or nil on a tie or no choices.
// Used for multi-impostor kill votes.
func pluralityTarget(choices []*int64) *int64 {
	counts := make(map[int64]int, len(choices))
	for _, c := range choices {
		if c != nil {
			counts[*c]++
		}
	}
	best, top, tied := int64(0), 0, false
	for target, n := range counts {
		switch {
		case n > top:
			best, top, tied = target, n, false
		case n == top:
			tied = true
		}
	}
	if top == 0 || tied {
		return nil
	}
	return int64Ptr(best)
}
