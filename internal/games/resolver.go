package games

import "sort"

// DeathCause tags how a player died.
type DeathCause string

const (
	CauseShot         DeathCause = "shot"
	CauseFriendlyFire DeathCause = "friendly_fire"
	CauseKilled       DeathCause = "killed"
	CauseEjected      DeathCause = "ejected"
)

// Death is one entry of a night summary or vote result.
type Death struct {
	UserID int64      `json:"user_id"`
	Cause  DeathCause `json:"cause"`
	Role   Role       `json:"role"`
}

// Finding is a private investigation result for one detective.
type Finding struct {
	InvestigatorID int64 `json:"investigator_id"`
	TargetID       int64 `json:"target_id"`
	IsImpostor     bool  `json:"is_impostor"`
}

// PlayerUpdate is a tracker change the engine must persist.
type PlayerUpdate struct {
	UserID int64
	Field  PlayerField
	Value  interface{}
}

// NightInput is the snapshot a night is resolved against. Actions holds only what was submitted before the
// night timer fired.
type NightInput struct {
	Round   int
	Players []Player
	Actions map[int64]NightAction
	Tasks   map[int64]Puzzle
}

// NightSummary is everything a night produced. Deaths are in resolution order.
type NightSummary struct {
	Round         int
	Deaths        []Death
	Findings      []Finding
	TaskSuccess   bool
	TasksAssigned int
	Updates       []PlayerUpdate
	Scores        []ScoreChange
}

type nightResolver struct {
	in      NightInput
	roster  map[int64]*Player
	summary NightSummary
}

// ResolveNight applies one night's actions in order: sheriffs, impostors, detectives, then the task check.
// It performs no I/O; the caller persists Deaths and Updates.
func ResolveNight(in NightInput) NightSummary {
	r := &nightResolver{
		in:      in,
		roster:  make(map[int64]*Player, len(in.Players)),
		summary: NightSummary{Round: in.Round, TasksAssigned: len(in.Tasks)},
	}
	for i := range in.Players {
		p := in.Players[i]
		r.roster[p.UserID] = &p
	}
	r.sheriffs()
	r.impostors()
	r.detectives()
	r.summary.TaskSuccess = TasksSucceeded(in.Tasks, in.Players)
	return r.summary
}

func (r *nightResolver) living(role Role) []*Player {
	var out []*Player
	for _, p := range r.roster {
		if p.Alive && p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *nightResolver) kill(p *Player, cause DeathCause) {
	p.Alive = false
	r.summary.Deaths = append(r.summary.Deaths, Death{UserID: p.UserID, Cause: cause, Role: p.Role})
}

func (r *nightResolver) score(userID int64, event ScoreEvent, penalty bool) {
	r.summary.Scores = append(r.summary.Scores, ScoreChange{UserID: userID, Event: event, Penalty: penalty})
}

// target returns the living player an action points at, if any.
func (r *nightResolver) target(a NightAction, kind ActionKind) (*Player, bool) {
	if a.Kind != kind || a.Target == nil {
		return nil, false
	}
	t, ok := r.roster[*a.Target]
	if !ok || !t.Alive {
		return nil, false
	}
	return t, true
}

func (r *nightResolver) sheriffs() {
	for _, s := range r.living(RoleSheriff) {
		if !s.Alive || s.SheriffShotUsed {
			continue
		}
		t, ok := r.target(r.in.Actions[s.UserID], ActionShoot)
		if !ok {
			continue
		}
		s.SheriffShotUsed = true
		if t.Role == RoleImpostor {
			r.kill(t, CauseShot)
			s.SheriffShotUsed = false
			r.score(s.UserID, ScoreSheriffKillsImpostor, false)
			continue
		}
		r.kill(t, CauseShot)
		r.kill(s, CauseFriendlyFire)
		r.summary.Updates = append(r.summary.Updates, PlayerUpdate{UserID: s.UserID, Field: FieldSheriffShotUsed, Value: true})
		r.score(s.UserID, PenaltyFriendlyFire, true)
	}
}

func (r *nightResolver) impostors() {
	killers := r.living(RoleImpostor)
	if len(killers) == 0 {
		return
	}
	choices := make([]*int64, 0, len(killers))
	for _, imp := range killers {
		a := r.in.Actions[imp.UserID]
		if a.Kind == ActionKill {
			choices = append(choices, a.Target)
		}
	}
	chosen := pluralityTarget(choices)
	if chosen == nil {
		return
	}
	t, ok := r.roster[*chosen]
	if !ok || !t.Alive || t.Role == RoleImpostor {
		return
	}
	r.kill(t, CauseKilled)
	for _, imp := range killers {
		r.score(imp.UserID, ScoreImpostorKill, false)
	}
}

func (r *nightResolver) detectives() {
	dets := r.living(RoleDetective)
	switch len(dets) {
	case 0:
		return
	case 1:
		d := dets[0]
		if !detectiveReady(*d, r.in.Round) {
			return
		}
		a := r.in.Actions[d.UserID]
		if a.Kind != ActionInvestigate || a.Target == nil {
			return
		}
		r.find([]*Player{d}, *a.Target)
	default:
		var agreed *int64
		for _, d := range dets {
			a := r.in.Actions[d.UserID]
			if a.Kind != ActionInvestigate || a.Target == nil {
				return
			}
			if agreed != nil && *agreed != *a.Target {
				return
			}
			agreed = a.Target
		}
		r.find(dets, *agreed)
	}
}

func (r *nightResolver) find(dets []*Player, targetID int64) {
	t, ok := r.roster[targetID]
	if !ok {
		return
	}
	isImpostor := t.Role == RoleImpostor
	for _, d := range dets {
		d.DetectiveLastRound = r.in.Round
		r.summary.Findings = append(r.summary.Findings, Finding{InvestigatorID: d.UserID, TargetID: targetID, IsImpostor: isImpostor})
		r.summary.Updates = append(r.summary.Updates, PlayerUpdate{UserID: d.UserID, Field: FieldDetectiveLastRound, Value: r.in.Round})
		if isImpostor {
			r.score(d.UserID, ScoreDetectiveFindsImpostor, false)
		}
	}
}
