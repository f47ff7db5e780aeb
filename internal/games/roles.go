package games

import (
	"fmt"
	"sort"
)

// Role is a player's secret role.
type Role string

// Roles. Crewmate is the baseline role; everything else is dealt from the quota table.
const (
	RoleCrewmate  Role = "crewmate"
	RoleImpostor  Role = "impostor"
	RoleDetective Role = "detective"
	RoleSheriff   Role = "sheriff"
	RoleEngineer  Role = "engineer"
)

// Valid reports whether r is one of the five roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCrewmate, RoleImpostor, RoleDetective, RoleSheriff, RoleEngineer:
		return true
	}
	return false
}

// NightAction returns the action kind the role submits at night, or "" for roles without one.
func (r Role) NightAction() ActionKind {
	switch r {
	case RoleImpostor:
		return ActionKill
	case RoleDetective:
		return ActionInvestigate
	case RoleSheriff:
		return ActionShoot
	}
	return ""
}

// Description is the text a player receives with their role.
func (r Role) Description() string {
	switch r {
	case RoleCrewmate:
		return "Crewmate\nComplete your tasks at night and vote out the impostors."
	case RoleImpostor:
		return "Impostor\nEliminate the crew one night at a time. Don't get caught!"
	case RoleDetective:
		return "Detective\nInvestigate players at night to learn whether they are impostors."
	case RoleSheriff:
		return "Sheriff\nShoot a player at night. Hit an impostor and you keep your gun; miss and you both die."
	case RoleEngineer:
		return "Engineer\nOnce per game you can fix the ship after a night of failed tasks."
	}
	return string(r)
}

// ActionKind is the kind of a submitted night action.
type ActionKind string

const (
	ActionKill        ActionKind = "kill"
	ActionInvestigate ActionKind = "investigate"
	ActionShoot       ActionKind = "shoot"
	ActionSkip        ActionKind = "skip"
)

// NightAction is a role's submitted choice for the current night.
type NightAction struct {
	Actor  int64      `json:"actor_id"`
	Role   Role       `json:"role"`
	Kind   ActionKind `json:"kind"`
	Target *int64     `json:"target_id,omitempty"`
}

// RoleContext is the match state a role reads when interpreting or prompting.
type RoleContext struct {
	MatchID string
	Round   int
	Players []Player
}

func (rc RoleContext) alive(role Role) []Player {
	var out []Player
	for _, p := range rc.Players {
		if p.Alive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// detectiveReady applies the solo cooldown: at least two rounds since the last investigation, counting
// from round 0, so a lone detective first acts on night 2.
func detectiveReady(p Player, round int) bool {
	return round-p.DetectiveLastRound >= 2
}

// InterpretNightAction validates a submission against the actor's role and the current roster and
// returns the normalized action. It has no side effects.
func InterpretNightAction(actor Player, kind ActionKind, target *int64, rc RoleContext) (NightAction, error) {
	if !actor.Alive {
		return NightAction{}, ErrPlayerDead
	}
	want := actor.Role.NightAction()
	if want == "" {
		return NightAction{}, fmt.Errorf("%w: %s has no night action", ErrActionNotAllowed, actor.Role)
	}
	if kind == ActionSkip {
		return NightAction{Actor: actor.UserID, Role: actor.Role, Kind: ActionSkip}, nil
	}
	if kind != want {
		return NightAction{}, fmt.Errorf("%w: %s cannot %s", ErrActionNotAllowed, actor.Role, kind)
	}
	if target == nil {
		return NightAction{}, fmt.Errorf("%w: target required", ErrInvalidTarget)
	}
	victim, ok := findPlayer(rc.Players, *target)
	if !ok || !victim.Alive || victim.UserID == actor.UserID {
		return NightAction{}, fmt.Errorf("%w: %d", ErrInvalidTarget, *target)
	}

	switch actor.Role {
	case RoleImpostor:
		if victim.Role == RoleImpostor {
			return NightAction{}, fmt.Errorf("%w: cannot kill a fellow impostor", ErrInvalidTarget)
		}
	case RoleSheriff:
		if actor.SheriffShotUsed {
			return NightAction{}, ErrAbilityUsed
		}
	case RoleDetective:
		if len(rc.alive(RoleDetective)) == 1 && !detectiveReady(actor, rc.Round) {
			return NightAction{}, ErrOnCooldown
		}
	}
	return NightAction{Actor: actor.UserID, Role: actor.Role, Kind: kind, Target: int64Ptr(*target)}, nil
}

// NightPrompt builds the private night message for p. task is the Crewmate's puzzle, if any.
func NightPrompt(p Player, rc RoleContext, task *Puzzle) Message {
	msg := Message{Event: EventNightPrompt, MatchID: rc.MatchID}
	switch p.Role {
	case RoleImpostor:
		msg.Text = fmt.Sprintf("Night %d. Choose who to eliminate.", rc.Round)
		if partners := rc.alive(RoleImpostor); len(partners) > 1 {
			msg.Text += " Your votes are tallied with the other impostors."
		}
		msg.Options = targetOptions(rc, p.UserID, ActionKill, "Kill", func(t Player) bool { return t.Role != RoleImpostor })
	case RoleDetective:
		if len(rc.alive(RoleDetective)) == 1 && !detectiveReady(p, rc.Round) {
			msg.Text = "Investigation on cooldown tonight."
			return msg
		}
		msg.Text = fmt.Sprintf("Night %d. Choose who to investigate.", rc.Round)
		msg.Options = targetOptions(rc, p.UserID, ActionInvestigate, "Investigate", nil)
	case RoleSheriff:
		if p.SheriffShotUsed {
			msg.Text = "Your shot is already used."
			return msg
		}
		msg.Text = fmt.Sprintf("Night %d. Shoot someone, or save your shot.", rc.Round)
		msg.Options = targetOptions(rc, p.UserID, ActionShoot, "Shoot", nil)
	case RoleCrewmate:
		if task == nil {
			msg.Text = "No task for you tonight. Sleep tight."
			return msg
		}
		msg.Event = EventTaskPrompt
		msg.Text = fmt.Sprintf("Task: %s\n%s", task.Name, task.Prompt)
		msg.Options = []Option{{Label: task.Button, Action: OptionTask}}
	default:
		msg.Text = "No night action for your role."
	}
	return msg
}

func targetOptions(rc RoleContext, self int64, kind ActionKind, verb string, eligible func(Player) bool) []Option {
	targets := make([]Player, 0, len(rc.Players))
	for _, t := range rc.Players {
		if !t.Alive || t.UserID == self {
			continue
		}
		if eligible != nil && !eligible(t) {
			continue
		}
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].UserID < targets[j].UserID })
	opts := make([]Option, 0, len(targets)+1)
	for _, t := range targets {
		opts = append(opts, Option{
			Label:  fmt.Sprintf("%s player %d", verb, t.UserID),
			Action: OptionNightAction,
			Kind:   kind,
			Target: t.UserID,
		})
	}
	opts = append(opts, Option{Label: "Skip", Action: OptionNightAction, Kind: ActionSkip})
	return opts
}

// VotePrompt lists every living player plus abstain.
func VotePrompt(rc RoleContext) Message {
	alive := alivePlayers(rc.Players)
	sort.Slice(alive, func(i, j int) bool { return alive[i].UserID < alive[j].UserID })
	opts := make([]Option, 0, len(alive)+1)
	for _, p := range alive {
		opts = append(opts, Option{Label: fmt.Sprintf("Player %d", p.UserID), Action: OptionVote, Target: p.UserID})
	}
	opts = append(opts, Option{Label: "Skip vote", Action: OptionVote})
	return Message{
		Event:   EventVotePrompt,
		MatchID: rc.MatchID,
		Text:    fmt.Sprintf("Round %d voting. Who is the impostor?", rc.Round),
		Options: opts,
	}
}

// FixerPrompt offers the engineer the one-time ship repair.
func FixerPrompt(matchID string, failedRounds int) Message {
	return Message{
		Event:   EventFixerPrompt,
		MatchID: matchID,
		Text:    fmt.Sprintf("Tasks failed (%d failed rounds). Fix the ship?", failedRounds),
		Options: []Option{
			{Label: "Fix ship", Action: OptionFixer, Fix: true},
			{Label: "Skip", Action: OptionFixer},
		},
	}
}
