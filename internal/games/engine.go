package games

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence the engine needs. Implementations retry transient failures themselves; any error
// that reaches the engine from a transition is fatal to that match.
type Store interface {
	CreateMatch(ctx context.Context, m *Match) error
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	GetActiveMatchForRoom(ctx context.Context, roomID int64) (*Match, error)
	SetMatchPhase(ctx context.Context, matchID string, phase Phase) error
	EndMatch(ctx context.Context, matchID string, endedAt time.Time) error
	EndUnfinishedMatches(ctx context.Context, endedAt time.Time) (int64, error)
	IncrementFailedRounds(ctx context.Context, matchID string) (int, error)
	ResetFailedRounds(ctx context.Context, matchID string) error
	UpdateMatchSettings(ctx context.Context, matchID string, settings map[string]interface{}) error

	AddPlayers(ctx context.Context, matchID string, roles map[int64]Role) error
	GetPlayers(ctx context.Context, matchID string) ([]Player, error)
	GetPlayer(ctx context.Context, matchID string, userID int64) (*Player, error)
	GetPlayersByRole(ctx context.Context, matchID string, role Role) ([]Player, error)
	GetAlivePlayers(ctx context.Context, matchID string) ([]Player, error)
	KillPlayer(ctx context.Context, matchID string, userID int64) error
	SetPlayerField(ctx context.Context, matchID string, userID int64, field PlayerField, value interface{}) error
	ResetRoundFlags(ctx context.Context, matchID string) error

	RecordVote(ctx context.Context, v Vote) error
	GetRoundVotes(ctx context.Context, matchID string, round int) ([]Vote, error)
	ClearVotes(ctx context.Context, matchID string, round int) error
}

// Admission decides who may take part. Banned users cannot open a lobby or join a ranked one.
type Admission interface {
	Banned(ctx context.Context, userID int64) (bool, error)
}

const transitionTimeout = 30 * time.Second

// fatalError marks a failure that must end the match.
type fatalError struct {
	op  string
	err error
}

func (f *fatalError) Error() string { return f.op + ": " + f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

func fatal(op string, err error) error { return &fatalError{op: op, err: err} }

// match is the single owner of one active game: its timers, buffers and transition lock.
type match struct {
	id      string
	roomID  int64
	creator int64
	mode    Mode

	// mu serializes transitions. Timer callbacks and commands both hold it.
	mu         sync.Mutex
	phaseTimer timerSlot
	fixerTimer timerSlot

	// stateMu guards the fields below. Submissions hold it for reading while they write, so a transition
	// taking it for writing sees every submission that got in before it.
	stateMu   sync.RWMutex
	phase     Phase
	round     int
	total     int
	lobby     []int64
	accepting bool
	tasks     map[int64]Puzzle
	fixerID   *int64
	ended     bool

	bufMu   sync.Mutex
	actions map[int64]NightAction
}

// Engine runs every active match. Matches are independent; each has its own lock and timers.
type Engine struct {
	store     Store
	scorer    Scorer
	admission Admission
	out       *outbox
	timings   Timings

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	matches map[string]*match
	rooms   map[int64]string
}

// NewEngine creates an engine. A nil scorer, admission or notifier disables that collaborator.
func NewEngine(store Store, scorer Scorer, admission Admission, notifier Notifier, timings Timings) *Engine {
	if scorer == nil {
		scorer = NopScorer{}
	}
	return &Engine{
		store:     store,
		scorer:    scorer,
		admission: admission,
		out:       newOutbox(notifier),
		timings:   timings.withDefaults(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		matches:   make(map[string]*match),
		rooms:     make(map[int64]string),
	}
}

// Timings returns the configured phase durations.
func (e *Engine) Timings() Timings { return e.timings }

// Recover ends matches a previous process left unfinished. Their timers died with that process.
func (e *Engine) Recover(ctx context.Context) error {
	n, err := e.store.EndUnfinishedMatches(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("end unfinished matches: %w", err)
	}
	if n > 0 {
		log.Printf("ended stale matches count=%d", n)
	}
	return nil
}

// Shutdown cancels every pending timer and flushes queued notifications.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for _, m := range e.matches {
		m.phaseTimer.Cancel()
		m.fixerTimer.Cancel()
	}
	e.mu.Unlock()
	e.out.close()
}

func (e *Engine) lookup(matchID string) (*match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

func (e *Engine) owned(matchID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.matches[matchID]
	return ok
}

func (e *Engine) unregister(m *match) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.matches, m.id)
	if e.rooms[m.roomID] == m.id {
		delete(e.rooms, m.roomID)
	}
}

// withMatch runs fn holding the match's transition lock. Panics and fatal errors end the match.
func (e *Engine) withMatch(ctx context.Context, matchID string, fn func(ctx context.Context, m *match) error) (err error) {
	m, err := e.lookup(matchID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isEnded() {
		return ErrMatchNotFound
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			e.failMatch(m, err)
		}
	}()
	err = fn(ctx, m)
	var fe *fatalError
	if errors.As(err, &fe) {
		e.failMatch(m, err)
	}
	return err
}

// onTimer runs an expiry handler. Any error it returns is fatal to the match.
func (e *Engine) onTimer(matchID string, name string, fn func(ctx context.Context, m *match) error) {
	ctx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
	defer cancel()
	err := e.withMatch(ctx, matchID, fn)
	if err == nil || errors.Is(err, ErrMatchNotFound) {
		return
	}
	var fe *fatalError
	if !errors.As(err, &fe) {
		m, lerr := e.lookup(matchID)
		if lerr == nil {
			m.mu.Lock()
			if !m.isEnded() {
				e.failMatch(m, err)
			}
			m.mu.Unlock()
		}
	}
	log.Printf("timer handler failed match_id=%s timer=%s: %v", matchID, name, err)
}

func (m *match) isEnded() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.ended
}

func (m *match) snapshot() (Phase, int) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.phase, m.round
}

func (e *Engine) admit(ctx context.Context, userID int64) error {
	if e.admission == nil {
		return nil
	}
	banned, err := e.admission.Banned(ctx, userID)
	if err != nil {
		return fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return ErrBanned
	}
	return nil
}

func (e *Engine) shuffleRand() *rand.Rand {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return rand.New(rand.NewSource(e.rng.Int63()))
}

// CreateMatch opens a lobby for room. A room has at most one active match.
func (e *Engine) CreateMatch(ctx context.Context, roomID, creatorID int64, mode Mode) (*Match, error) {
	if mode == "" {
		mode = ModeUnranked
	}
	if err := e.admit(ctx, creatorID); err != nil {
		return nil, err
	}
	id := uuid.NewString()

	e.mu.Lock()
	if _, busy := e.rooms[roomID]; busy {
		e.mu.Unlock()
		return nil, ErrMatchInProgress
	}
	e.rooms[roomID] = id
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		if e.rooms[roomID] == id {
			delete(e.rooms, roomID)
		}
		e.mu.Unlock()
	}

	existing, err := e.store.GetActiveMatchForRoom(ctx, roomID)
	if err != nil {
		release()
		return nil, fmt.Errorf("get active match: %w", err)
	}
	if existing != nil {
		if e.owned(existing.ID) {
			release()
			return nil, ErrMatchInProgress
		}
		// nothing in this process drives it, so it can never finish on its own
		if err := e.store.EndMatch(ctx, existing.ID, time.Now().UTC()); err != nil {
			release()
			return nil, fmt.Errorf("end orphaned match: %w", err)
		}
		log.Printf("ended orphaned match match_id=%s room_id=%d", existing.ID, roomID)
	}

	rec := &Match{
		ID:        id,
		RoomID:    roomID,
		Mode:      mode,
		Phase:     PhaseLobby,
		CreatedAt: time.Now().UTC(),
		CreatorID: creatorID,
		Settings:  map[string]interface{}{SettingRoundNumber: 0},
	}
	if err := e.store.CreateMatch(ctx, rec); err != nil {
		release()
		return nil, fmt.Errorf("create match: %w", err)
	}

	m := &match{id: id, roomID: roomID, creator: creatorID, mode: mode, phase: PhaseLobby}
	e.mu.Lock()
	e.matches[id] = m
	e.mu.Unlock()

	m.phaseTimer.Schedule(e.timings.Lobby, func() { e.onTimer(id, "lobby", e.onLobbyEnd) })
	log.Printf("match created match_id=%s room_id=%d creator_id=%d mode=%s", id, roomID, creatorID, mode)
	e.out.room(roomID, Message{
		Event:   EventMatchCreated,
		MatchID: id,
		Text:    fmt.Sprintf("A new %s match is open. Join within %d seconds (%d-%d players).", mode, int(e.timings.Lobby.Seconds()), MinPlayers, MaxPlayers),
		Data:    map[string]interface{}{"creator_id": creatorID, "mode": mode},
	})
	return rec.Clone(), nil
}

// JoinLobby adds userID to the lobby. It returns false for a duplicate join or a full lobby.
// Banned users are refused from ranked lobbies with ErrBanned.
func (e *Engine) JoinLobby(ctx context.Context, matchID string, userID int64) (bool, error) {
	if m, err := e.lookup(matchID); err == nil && m.mode == ModeRanked {
		if err := e.admit(ctx, userID); err != nil {
			return false, err
		}
	}
	joined := false
	err := e.withMatch(ctx, matchID, func(ctx context.Context, m *match) error {
		m.stateMu.Lock()
		defer m.stateMu.Unlock()
		if m.phase != PhaseLobby {
			return ErrLobbyClosed
		}
		if len(m.lobby) >= MaxPlayers {
			return nil
		}
		for _, id := range m.lobby {
			if id == userID {
				return nil
			}
		}
		m.lobby = append(m.lobby, userID)
		joined = true
		log.Printf("player joined match_id=%s user_id=%d count=%d", m.id, userID, len(m.lobby))
		e.out.room(m.roomID, Message{
			Event:   EventPlayerJoined,
			MatchID: m.id,
			Text:    fmt.Sprintf("Player %d joined (%d/%d).", userID, len(m.lobby), MaxPlayers),
			Data:    map[string]interface{}{"user_id": userID, "count": len(m.lobby)},
		})
		return nil
	})
	return joined, err
}

// ForceStart ends the lobby early. It returns false with ErrNotEnoughPlayers below the minimum.
func (e *Engine) ForceStart(ctx context.Context, matchID string) (bool, error) {
	started := false
	err := e.withMatch(ctx, matchID, func(ctx context.Context, m *match) error {
		phase, _ := m.snapshot()
		if phase != PhaseLobby {
			return ErrLobbyClosed
		}
		if n := len(m.lobbySnapshot()); n < MinPlayers {
			return fmt.Errorf("%w: %d joined, need %d", ErrNotEnoughPlayers, n, MinPlayers)
		}
		m.phaseTimer.Cancel()
		if err := e.startGame(ctx, m); err != nil {
			return err
		}
		started = true
		return nil
	})
	return started, err
}

func (m *match) lobbySnapshot() []int64 {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]int64, len(m.lobby))
	copy(out, m.lobby)
	return out
}

func (e *Engine) onLobbyEnd(ctx context.Context, m *match) error {
	if phase, _ := m.snapshot(); phase != PhaseLobby {
		return nil
	}
	if len(m.lobbySnapshot()) < MinPlayers {
		log.Printf("lobby timed out match_id=%s joined=%d", m.id, len(m.lobbySnapshot()))
		e.endMatch(ctx, m, OutcomeCancelled)
		return nil
	}
	return e.startGame(ctx, m)
}

func (e *Engine) startGame(ctx context.Context, m *match) error {
	lobby := m.lobbySnapshot()
	roles, err := AssignRoles(lobby, e.shuffleRand())
	if err != nil {
		return fatal("assign roles", err)
	}
	if err := e.store.AddPlayers(ctx, m.id, roles); err != nil {
		return fatal("add players", err)
	}
	m.stateMu.Lock()
	m.total = len(lobby)
	m.stateMu.Unlock()

	var impostors []string
	for id, role := range roles {
		if role == RoleImpostor {
			impostors = append(impostors, fmt.Sprint(id))
		}
	}
	sort.Strings(impostors)
	for _, id := range lobby {
		role := roles[id]
		text := role.Description()
		if role == RoleImpostor && len(impostors) > 1 {
			text += "\nImpostors: " + strings.Join(impostors, ", ")
		}
		e.out.user(id, Message{Event: EventRoleAssigned, MatchID: m.id, Text: text, Data: map[string]interface{}{"role": role}})
	}
	log.Printf("match started match_id=%s players=%d", m.id, len(lobby))
	return e.enterNight(ctx, m)
}

func (e *Engine) setPhase(ctx context.Context, m *match, next Phase) error {
	m.stateMu.RLock()
	cur := m.phase
	m.stateMu.RUnlock()
	if !cur.CanTransitionTo(next) {
		return fatal("set phase", fmt.Errorf("illegal transition %s -> %s", cur, next))
	}
	if err := e.store.SetMatchPhase(ctx, m.id, next); err != nil {
		return fatal("set phase", err)
	}
	m.stateMu.Lock()
	m.phase = next
	m.stateMu.Unlock()
	log.Printf("match phase changed match_id=%s from=%s to=%s", m.id, cur, next)
	return nil
}

func (e *Engine) enterNight(ctx context.Context, m *match) error {
	_, prev := m.snapshot()
	round := prev + 1
	if err := e.setPhase(ctx, m, PhaseNight); err != nil {
		return err
	}
	if err := e.store.UpdateMatchSettings(ctx, m.id, map[string]interface{}{SettingRoundNumber: round}); err != nil {
		return fatal("update settings", err)
	}
	if err := e.store.ResetRoundFlags(ctx, m.id); err != nil {
		return fatal("reset round flags", err)
	}
	players, err := e.store.GetPlayers(ctx, m.id)
	if err != nil {
		return fatal("get players", err)
	}

	m.stateMu.RLock()
	total := m.total
	m.stateMu.RUnlock()
	tasks := AssignTasks(players, total, e.shuffleRand())

	// the buffer exists before the first submission can see accepting
	m.stateMu.Lock()
	m.round = round
	m.tasks = tasks
	m.bufMu.Lock()
	m.actions = make(map[int64]NightAction)
	m.bufMu.Unlock()
	m.accepting = true
	m.stateMu.Unlock()

	e.out.room(m.roomID, Message{
		Event:   EventPhaseChanged,
		MatchID: m.id,
		Text:    fmt.Sprintf("Night %d falls. Check your private messages. %d seconds.", round, int(e.timings.Night.Seconds())),
		Data:    map[string]interface{}{"phase": PhaseNight, "round": round},
	})
	rc := RoleContext{MatchID: m.id, Round: round, Players: players}
	for _, p := range players {
		if !p.Alive {
			continue
		}
		var task *Puzzle
		if t, ok := tasks[p.UserID]; ok {
			task = &t
		}
		e.out.user(p.UserID, NightPrompt(p, rc, task))
	}

	id := m.id
	m.phaseTimer.Schedule(e.timings.Night, func() {
		e.onTimer(id, "night", func(ctx context.Context, m *match) error { return e.onNightEnd(ctx, m, round) })
	})
	return nil
}

// SubmitNightAction records or replaces userID's action for the current night.
func (e *Engine) SubmitNightAction(ctx context.Context, matchID string, userID int64, kind ActionKind, target *int64) (NightAction, error) {
	m, err := e.lookup(matchID)
	if err != nil {
		return NightAction{}, err
	}
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.phase != PhaseNight || !m.accepting {
		return NightAction{}, ErrWrongPhase
	}
	players, err := e.store.GetPlayers(ctx, matchID)
	if err != nil {
		return NightAction{}, fmt.Errorf("get players: %w", err)
	}
	actor, ok := findPlayer(players, userID)
	if !ok {
		return NightAction{}, ErrNotInMatch
	}
	action, err := InterpretNightAction(actor, kind, target, RoleContext{MatchID: matchID, Round: m.round, Players: players})
	if err != nil {
		return NightAction{}, err
	}
	m.bufMu.Lock()
	if m.actions == nil {
		m.bufMu.Unlock()
		return NightAction{}, ErrWrongPhase
	}
	m.actions[userID] = action
	m.bufMu.Unlock()
	log.Printf("night action recorded match_id=%s round=%d user_id=%d kind=%s", matchID, m.round, userID, action.Kind)
	e.out.user(userID, Message{Event: EventActionReceipt, MatchID: matchID, Text: "Action received."})
	return action, nil
}

// CompleteTask marks userID's assigned task done for the current night.
func (e *Engine) CompleteTask(ctx context.Context, matchID string, userID int64) error {
	m, err := e.lookup(matchID)
	if err != nil {
		return err
	}
	m.stateMu.RLock()
	if m.phase != PhaseNight || !m.accepting {
		m.stateMu.RUnlock()
		return ErrWrongPhase
	}
	if _, ok := m.tasks[userID]; !ok {
		m.stateMu.RUnlock()
		return ErrNoTaskAssigned
	}
	p, err := e.store.GetPlayer(ctx, matchID, userID)
	if err != nil {
		m.stateMu.RUnlock()
		return fmt.Errorf("get player: %w", err)
	}
	if !p.Alive {
		m.stateMu.RUnlock()
		return ErrPlayerDead
	}
	if p.CompletedTask {
		m.stateMu.RUnlock()
		return nil
	}
	err = e.store.SetPlayerField(ctx, matchID, userID, FieldCompletedTask, true)
	m.stateMu.RUnlock()
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	e.award(ctx, m, ScoreChange{UserID: userID, Event: ScoreTaskCompleted})
	e.out.user(userID, Message{Event: EventActionReceipt, MatchID: matchID, Text: "Task completed."})
	return nil
}

func (e *Engine) onNightEnd(ctx context.Context, m *match, round int) error {
	m.stateMu.Lock()
	if m.phase != PhaseNight || m.round != round {
		m.stateMu.Unlock()
		return nil
	}
	m.accepting = false
	tasks := m.tasks
	m.tasks = nil
	m.stateMu.Unlock()

	m.bufMu.Lock()
	actions := m.actions
	m.actions = nil
	m.bufMu.Unlock()

	players, err := e.store.GetPlayers(ctx, m.id)
	if err != nil {
		return fatal("get players", err)
	}
	summary := ResolveNight(NightInput{Round: round, Players: players, Actions: actions, Tasks: tasks})

	for _, d := range summary.Deaths {
		if err := e.store.KillPlayer(ctx, m.id, d.UserID); err != nil {
			return fatal("kill player", err)
		}
	}
	for _, u := range summary.Updates {
		if err := e.store.SetPlayerField(ctx, m.id, u.UserID, u.Field, u.Value); err != nil {
			return fatal("update player", err)
		}
	}
	e.award(ctx, m, summary.Scores...)

	failed := 0
	if !summary.TaskSuccess {
		if failed, err = e.store.IncrementFailedRounds(ctx, m.id); err != nil {
			return fatal("increment failed rounds", err)
		}
	}
	log.Printf("night resolved match_id=%s round=%d deaths=%d findings=%d tasks_ok=%t failed_rounds=%d",
		m.id, round, len(summary.Deaths), len(summary.Findings), summary.TaskSuccess, failed)

	e.out.room(m.roomID, nightSummaryMessage(m.id, summary))
	for _, f := range summary.Findings {
		verdict := "is not an impostor"
		if f.IsImpostor {
			verdict = "is an impostor"
		}
		e.out.user(f.InvestigatorID, Message{
			Event:   EventFinding,
			MatchID: m.id,
			Text:    fmt.Sprintf("Player %d %s.", f.TargetID, verdict),
			Data:    map[string]interface{}{"target_id": f.TargetID, "is_impostor": f.IsImpostor},
		})
	}

	if done, err := e.checkTerminal(ctx, m, true); done || err != nil {
		return err
	}
	return e.enterDiscussion(ctx, m, round, !summary.TaskSuccess)
}

func nightSummaryMessage(matchID string, s NightSummary) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dawn of round %d.", s.Round)
	if len(s.Deaths) == 0 {
		b.WriteString(" Nobody died.")
	}
	deaths := make([]map[string]interface{}, 0, len(s.Deaths))
	for _, d := range s.Deaths {
		switch d.Cause {
		case CauseShot:
			fmt.Fprintf(&b, "\nPlayer %d was shot.", d.UserID)
		case CauseFriendlyFire:
			fmt.Fprintf(&b, "\nPlayer %d died by friendly fire.", d.UserID)
		default:
			fmt.Fprintf(&b, "\nPlayer %d was killed.", d.UserID)
		}
		deaths = append(deaths, map[string]interface{}{"user_id": d.UserID, "cause": d.Cause})
	}
	if s.TasksAssigned > 0 {
		if s.TaskSuccess {
			b.WriteString("\nAll tasks were completed.")
		} else {
			b.WriteString("\nTasks failed.")
		}
	}
	return Message{
		Event:   EventNightSummary,
		MatchID: matchID,
		Text:    b.String(),
		Data:    map[string]interface{}{"round": s.Round, "deaths": deaths, "task_success": s.TaskSuccess},
	}
}

// checkTerminal reads fresh state and ends the match on explosion (when withExplosion) or a win.
func (e *Engine) checkTerminal(ctx context.Context, m *match, withExplosion bool) (bool, error) {
	players, err := e.store.GetPlayers(ctx, m.id)
	if err != nil {
		return false, fatal("get players", err)
	}
	if withExplosion {
		rec, err := e.store.GetMatch(ctx, m.id)
		if err != nil {
			return false, fatal("get match", err)
		}
		if ShipExploded(rec.FailedTaskRounds, players) {
			e.endMatch(ctx, m, OutcomeExplosion)
			return true, nil
		}
	}
	if outcome := EvaluateWin(players); outcome != OutcomeNone {
		e.endMatch(ctx, m, outcome)
		return true, nil
	}
	return false, nil
}

func (e *Engine) enterDiscussion(ctx context.Context, m *match, round int, tasksFailed bool) error {
	if err := e.setPhase(ctx, m, PhaseDiscussion); err != nil {
		return err
	}
	e.out.room(m.roomID, Message{
		Event:   EventPhaseChanged,
		MatchID: m.id,
		Text:    fmt.Sprintf("Discussion. %d seconds to find the impostors.", int(e.timings.Discussion.Seconds())),
		Data:    map[string]interface{}{"phase": PhaseDiscussion, "round": round},
	})

	if tasksFailed {
		if err := e.openFixerWindow(ctx, m, round); err != nil {
			return err
		}
	}

	id := m.id
	m.phaseTimer.Schedule(e.timings.Discussion, func() {
		e.onTimer(id, "discussion", func(ctx context.Context, m *match) error { return e.onDiscussionEnd(ctx, m, round) })
	})
	return nil
}

// openFixerWindow offers the engineer a fix for a bounded time alongside discussion.
func (e *Engine) openFixerWindow(ctx context.Context, m *match, round int) error {
	engineers, err := e.store.GetPlayersByRole(ctx, m.id, RoleEngineer)
	if err != nil {
		return fatal("get engineers", err)
	}
	fixer, ok := eligibleFixer(engineers)
	if !ok {
		return nil
	}
	rec, err := e.store.GetMatch(ctx, m.id)
	if err != nil {
		return fatal("get match", err)
	}
	m.stateMu.Lock()
	m.fixerID = int64Ptr(fixer.UserID)
	m.stateMu.Unlock()
	e.out.user(fixer.UserID, FixerPrompt(m.id, rec.FailedTaskRounds))

	id := m.id
	m.fixerTimer.Schedule(e.timings.FixerWindow, func() {
		e.onTimer(id, "fixer", func(ctx context.Context, m *match) error { return e.onFixerTimeout(ctx, m, round) })
	})
	return nil
}

func (e *Engine) onFixerTimeout(_ context.Context, m *match, round int) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.fixerID == nil || m.round != round {
		return nil
	}
	log.Printf("fixer window expired match_id=%s user_id=%d", m.id, *m.fixerID)
	m.fixerID = nil
	return nil
}

// SubmitFixerDecision applies the engineer's answer to an open fixer window.
func (e *Engine) SubmitFixerDecision(ctx context.Context, matchID string, userID int64, fix bool) error {
	return e.withMatch(ctx, matchID, func(ctx context.Context, m *match) error {
		m.stateMu.Lock()
		if m.fixerID == nil || *m.fixerID != userID {
			m.stateMu.Unlock()
			return ErrNoFixerWindow
		}
		m.fixerID = nil
		m.stateMu.Unlock()
		m.fixerTimer.Cancel()

		if !fix {
			log.Printf("fixer skipped match_id=%s user_id=%d", m.id, userID)
			return nil
		}
		if err := e.store.ResetFailedRounds(ctx, m.id); err != nil {
			return fatal("reset failed rounds", err)
		}
		if err := e.store.SetPlayerField(ctx, m.id, userID, FieldEngineerUsedAbility, true); err != nil {
			return fatal("mark engineer ability", err)
		}
		e.award(ctx, m, ScoreChange{UserID: userID, Event: ScoreEngineerSavesShip})
		log.Printf("ship fixed match_id=%s user_id=%d", m.id, userID)
		e.out.room(m.roomID, Message{Event: EventShipFixed, MatchID: m.id, Text: "The engineer fixed the ship. Failed task rounds reset."})
		return nil
	})
}

func (e *Engine) closeFixerWindow(m *match) {
	m.stateMu.Lock()
	open := m.fixerID != nil
	m.fixerID = nil
	m.stateMu.Unlock()
	m.fixerTimer.Cancel()
	if open {
		log.Printf("fixer window closed without decision match_id=%s", m.id)
	}
}

func (e *Engine) onDiscussionEnd(ctx context.Context, m *match, round int) error {
	if phase, r := m.snapshot(); phase != PhaseDiscussion || r != round {
		return nil
	}
	e.closeFixerWindow(m)
	if err := e.store.ClearVotes(ctx, m.id, round); err != nil {
		return fatal("clear votes", err)
	}
	if err := e.setPhase(ctx, m, PhaseVoting); err != nil {
		return err
	}
	players, err := e.store.GetAlivePlayers(ctx, m.id)
	if err != nil {
		return fatal("get alive players", err)
	}
	m.stateMu.Lock()
	m.accepting = true
	m.stateMu.Unlock()

	e.out.room(m.roomID, Message{
		Event:   EventPhaseChanged,
		MatchID: m.id,
		Text:    fmt.Sprintf("Voting. %d seconds to cast your vote.", int(e.timings.Voting.Seconds())),
		Data:    map[string]interface{}{"phase": PhaseVoting, "round": round},
	})
	prompt := VotePrompt(RoleContext{MatchID: m.id, Round: round, Players: players})
	for _, p := range players {
		e.out.user(p.UserID, prompt)
	}

	id := m.id
	m.phaseTimer.Schedule(e.timings.Voting, func() {
		e.onTimer(id, "voting", func(ctx context.Context, m *match) error { return e.onVotingEnd(ctx, m, round) })
	})
	return nil
}

// SubmitVote records userID's vote for the current round. A nil target abstains.
func (e *Engine) SubmitVote(ctx context.Context, matchID string, userID int64, target *int64) error {
	m, err := e.lookup(matchID)
	if err != nil {
		return err
	}
	err = e.recordVote(ctx, m, userID, target)
	var fe *fatalError
	if errors.As(err, &fe) {
		m.mu.Lock()
		if !m.isEnded() {
			e.failMatch(m, err)
		}
		m.mu.Unlock()
	}
	return err
}

func (e *Engine) recordVote(ctx context.Context, m *match, userID int64, target *int64) error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.phase != PhaseVoting || !m.accepting {
		return ErrWrongPhase
	}
	voter, err := e.store.GetPlayer(ctx, m.id, userID)
	if err != nil {
		return err
	}
	if !voter.Alive {
		return ErrPlayerDead
	}
	if voter.Voted {
		return ErrAlreadyVoted
	}
	if target != nil {
		t, err := e.store.GetPlayer(ctx, m.id, *target)
		if err != nil || !t.Alive {
			return fmt.Errorf("%w: %d", ErrInvalidTarget, *target)
		}
	}
	if err := e.store.RecordVote(ctx, Vote{MatchID: m.id, Round: m.round, VoterID: userID, Target: target}); err != nil {
		return fatal("record vote", err)
	}
	if err := e.store.SetPlayerField(ctx, m.id, userID, FieldVoted, true); err != nil {
		return fatal("mark voted", err)
	}
	log.Printf("vote recorded match_id=%s round=%d voter_id=%d abstain=%t", m.id, m.round, userID, target == nil)
	e.out.user(userID, Message{Event: EventActionReceipt, MatchID: m.id, Text: "Vote received."})
	return nil
}

func (e *Engine) onVotingEnd(ctx context.Context, m *match, round int) error {
	m.stateMu.Lock()
	if m.phase != PhaseVoting || m.round != round {
		m.stateMu.Unlock()
		return nil
	}
	m.accepting = false
	m.stateMu.Unlock()

	votes, err := e.store.GetRoundVotes(ctx, m.id, round)
	if err != nil {
		return fatal("get votes", err)
	}
	players, err := e.store.GetPlayers(ctx, m.id)
	if err != nil {
		return fatal("get players", err)
	}
	res := TallyVotes(votes)

	var ejected *Player
	if res.Ejected != nil {
		if p, ok := findPlayer(players, *res.Ejected); ok && p.Alive {
			if err := e.store.KillPlayer(ctx, m.id, p.UserID); err != nil {
				return fatal("eject player", err)
			}
			ejected = &p
		}
	}

	var scores []ScoreChange
	for _, p := range players {
		if ejected != nil && p.UserID == ejected.UserID {
			continue
		}
		if p.Alive && !res.Voters[p.UserID] {
			scores = append(scores, ScoreChange{UserID: p.UserID, Event: PenaltyAFK, Penalty: true})
		}
	}
	if ejected != nil && ejected.Role == RoleImpostor {
		for _, v := range votes {
			if v.Target != nil && *v.Target == ejected.UserID {
				scores = append(scores, ScoreChange{UserID: v.VoterID, Event: ScoreCorrectVote})
			}
		}
	}
	e.award(ctx, m, scores...)

	text := "No one was ejected."
	data := map[string]interface{}{"round": round, "counts": res.Counts, "abstains": res.Abstains}
	if ejected != nil {
		text = fmt.Sprintf("Player %d was ejected.", ejected.UserID)
		data["ejected_id"] = ejected.UserID
	}
	log.Printf("votes tallied match_id=%s round=%d votes=%d ejected=%t", m.id, round, len(votes), ejected != nil)
	e.out.room(m.roomID, Message{Event: EventVoteResult, MatchID: m.id, Text: text, Data: data})

	if done, err := e.checkTerminal(ctx, m, false); done || err != nil {
		return err
	}
	return e.enterNight(ctx, m)
}

// ForceEnd ends the match immediately, cancelling its timers.
func (e *Engine) ForceEnd(ctx context.Context, matchID string) error {
	return e.withMatch(ctx, matchID, func(ctx context.Context, m *match) error {
		outcome := OutcomeAborted
		if phase, _ := m.snapshot(); phase == PhaseLobby {
			outcome = OutcomeCancelled
		}
		e.endMatch(ctx, m, outcome)
		return nil
	})
}

// failMatch ends m after an unrecoverable error. Caller holds m.mu.
func (e *Engine) failMatch(m *match, cause error) {
	log.Printf("match failed match_id=%s room_id=%d: %v", m.id, m.roomID, cause)
	ctx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
	defer cancel()
	e.endMatch(ctx, m, OutcomeError)
}

// endMatch is best effort: store failures are logged and teardown always completes. Caller holds m.mu.
func (e *Engine) endMatch(ctx context.Context, m *match, outcome Outcome) {
	m.phaseTimer.Cancel()
	m.fixerTimer.Cancel()

	m.stateMu.Lock()
	if m.ended {
		m.stateMu.Unlock()
		return
	}
	m.ended = true
	m.accepting = false
	m.fixerID = nil
	m.tasks = nil
	m.phase = PhaseEnded
	m.stateMu.Unlock()
	m.bufMu.Lock()
	m.actions = nil
	m.bufMu.Unlock()

	defer e.unregister(m)

	if err := e.store.EndMatch(ctx, m.id, time.Now().UTC()); err != nil {
		log.Printf("end match persist failed match_id=%s: %v", m.id, err)
	}
	log.Printf("match ended match_id=%s room_id=%d outcome=%s", m.id, m.roomID, outcome)

	if outcome == OutcomeError {
		e.out.room(m.roomID, Message{Event: EventMatchFailed, MatchID: m.id, Text: "The match ended due to an error."})
		return
	}

	players, err := e.store.GetPlayers(ctx, m.id)
	if err != nil {
		log.Printf("end match load players failed match_id=%s: %v", m.id, err)
	}

	var scores []ScoreChange
	switch outcome {
	case OutcomeCrewmates, OutcomeImpostors:
		winners := Winners(outcome, players)
		for _, p := range players {
			ev := ScoreLoss
			if winners[p.UserID] {
				ev = ScoreWin
			}
			scores = append(scores, ScoreChange{UserID: p.UserID, Event: ev})
		}
	case OutcomeExplosion:
		for _, p := range players {
			scores = append(scores, ScoreChange{UserID: p.UserID, Event: PenaltyShipExplodes, Penalty: true})
		}
	}
	e.award(ctx, m, scores...)

	e.out.room(m.roomID, outcomeMessage(m.id, outcome, players))
}

func outcomeMessage(matchID string, outcome Outcome, players []Player) Message {
	var b strings.Builder
	switch outcome {
	case OutcomeCrewmates:
		b.WriteString("Crewmates win! Every impostor is gone.")
	case OutcomeImpostors:
		b.WriteString("Impostors win! They outnumber the crew.")
	case OutcomeExplosion:
		b.WriteString("The ship exploded. Everyone loses.")
	case OutcomeCancelled:
		b.WriteString("The match was cancelled.")
	default:
		b.WriteString("The match was ended.")
	}
	sorted := make([]Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })
	roles := make(map[string]interface{}, len(sorted))
	for _, p := range sorted {
		status := "alive"
		if !p.Alive {
			status = "dead"
		}
		fmt.Fprintf(&b, "\nPlayer %d: %s (%s)", p.UserID, p.Role, status)
		roles[fmt.Sprint(p.UserID)] = p.Role
	}
	return Message{
		Event:   EventMatchEnded,
		MatchID: matchID,
		Text:    b.String(),
		Data:    map[string]interface{}{"outcome": outcome, "roles": roles},
	}
}

// award forwards score changes. Failures are logged and never affect the match.
func (e *Engine) award(ctx context.Context, m *match, changes ...ScoreChange) {
	for _, c := range changes {
		var err error
		if c.Penalty {
			err = e.scorer.Penalize(ctx, c.UserID, c.Event)
		} else {
			err = e.scorer.Award(ctx, c.UserID, c.Event)
		}
		if err != nil {
			log.Printf("score failed match_id=%s user_id=%d event=%s: %v", m.id, c.UserID, c.Event, err)
		}
	}
}

// GetMatch returns the persisted match.
func (e *Engine) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	rec, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return rec, nil
}

// GetPlayers returns the persisted roster. Empty while the match is in the lobby.
func (e *Engine) GetPlayers(ctx context.Context, matchID string) ([]Player, error) {
	players, err := e.store.GetPlayers(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	return players, nil
}

// GetLobbyPlayers returns the users who joined an active match, in join order.
func (e *Engine) GetLobbyPlayers(_ context.Context, matchID string) ([]int64, error) {
	m, err := e.lookup(matchID)
	if err != nil {
		return nil, err
	}
	return m.lobbySnapshot(), nil
}

// GetRoundNumber returns the current night number, 0 before the first night.
func (e *Engine) GetRoundNumber(ctx context.Context, matchID string) (int, error) {
	if m, err := e.lookup(matchID); err == nil {
		_, round := m.snapshot()
		return round, nil
	}
	rec, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return 0, fmt.Errorf("get match: %w", err)
	}
	return rec.Round(), nil
}

// ActiveMatchForRoom returns the room's running match, or ErrMatchNotFound.
func (e *Engine) ActiveMatchForRoom(ctx context.Context, roomID int64) (*Match, error) {
	e.mu.Lock()
	id, ok := e.rooms[roomID]
	_, registered := e.matches[id]
	e.mu.Unlock()
	if !ok || !registered {
		return nil, ErrMatchNotFound
	}
	return e.GetMatch(ctx, id)
}
