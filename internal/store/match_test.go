package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vntrieu/impostor/internal/games"
)

func newTestMatch(roomID int64) *games.Match {
	return &games.Match{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Mode:      games.ModeUnranked,
		Phase:     games.PhaseLobby,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		CreatorID: 1,
		Settings:  map[string]interface{}{},
	}
}

func TestCreateMatch(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		m := newTestMatch(-1001)
		if err := store.CreateMatch(ctx, m); err != nil {
			t.Fatalf("CreateMatch failed: %v", err)
		}

		got, err := store.GetMatch(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMatch failed: %v", err)
		}
		if got.RoomID != m.RoomID {
			t.Errorf("expected room_id %d, got %d", m.RoomID, got.RoomID)
		}
		if got.Phase != games.PhaseLobby {
			t.Errorf("expected phase lobby, got %q", got.Phase)
		}
		if got.EndedAt != nil {
			t.Error("expected ended_at to be nil")
		}
		if got.Settings == nil {
			t.Error("expected settings to be set")
		}
	})

	t.Run("second active match in room rejected", func(t *testing.T) {
		if err := store.CreateMatch(ctx, newTestMatch(-1002)); err != nil {
			t.Fatalf("CreateMatch failed: %v", err)
		}
		err := store.CreateMatch(ctx, newTestMatch(-1002))
		if !errors.Is(err, games.ErrMatchInProgress) {
			t.Errorf("expected ErrMatchInProgress, got %v", err)
		}
	})

	t.Run("ended match frees the room", func(t *testing.T) {
		m := newTestMatch(-1003)
		if err := store.CreateMatch(ctx, m); err != nil {
			t.Fatalf("CreateMatch failed: %v", err)
		}
		if err := store.EndMatch(ctx, m.ID, time.Now()); err != nil {
			t.Fatalf("EndMatch failed: %v", err)
		}
		if err := store.CreateMatch(ctx, newTestMatch(-1003)); err != nil {
			t.Errorf("expected new match after end, got %v", err)
		}
	})
}

func TestGetMatch_NotFound(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	if _, err := store.GetMatch(ctx, uuid.NewString()); !errors.Is(err, games.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
	if _, err := store.GetMatch(ctx, "not-a-uuid"); !errors.Is(err, games.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound for bad id, got %v", err)
	}
	if err := store.SetMatchPhase(ctx, uuid.NewString(), games.PhaseNight); !errors.Is(err, games.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestGetActiveMatchForRoom(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	got, err := store.GetActiveMatchForRoom(ctx, -2001)
	if err != nil {
		t.Fatalf("GetActiveMatchForRoom failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no active match, got %+v", got)
	}

	m := newTestMatch(-2001)
	if err := store.CreateMatch(ctx, m); err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	got, err = store.GetActiveMatchForRoom(ctx, -2001)
	if err != nil {
		t.Fatalf("GetActiveMatchForRoom failed: %v", err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("expected match %s, got %+v", m.ID, got)
	}
}

func TestMatchCounters(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	m := newTestMatch(-3001)
	if err := store.CreateMatch(ctx, m); err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}

	for want := 1; want <= 2; want++ {
		n, err := store.IncrementFailedRounds(ctx, m.ID)
		if err != nil {
			t.Fatalf("IncrementFailedRounds failed: %v", err)
		}
		if n != want {
			t.Errorf("expected %d failed rounds, got %d", want, n)
		}
	}
	if err := store.ResetFailedRounds(ctx, m.ID); err != nil {
		t.Fatalf("ResetFailedRounds failed: %v", err)
	}

	if err := store.UpdateMatchSettings(ctx, m.ID, map[string]interface{}{games.SettingRoundNumber: 3}); err != nil {
		t.Fatalf("UpdateMatchSettings failed: %v", err)
	}
	got, err := store.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if got.FailedTaskRounds != 0 {
		t.Errorf("expected failed rounds reset, got %d", got.FailedTaskRounds)
	}
	if got.Round() != 3 {
		t.Errorf("expected round 3, got %d", got.Round())
	}
}

func TestEndUnfinishedMatches(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	for _, room := range []int64{-4001, -4002} {
		if err := store.CreateMatch(ctx, newTestMatch(room)); err != nil {
			t.Fatalf("CreateMatch failed: %v", err)
		}
	}
	n, err := store.EndUnfinishedMatches(ctx, time.Now())
	if err != nil {
		t.Fatalf("EndUnfinishedMatches failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 ended matches, got %d", n)
	}
	got, err := store.GetActiveMatchForRoom(ctx, -4001)
	if err != nil {
		t.Fatalf("GetActiveMatchForRoom failed: %v", err)
	}
	if got != nil {
		t.Error("expected no active match after recovery")
	}
}

func TestPlayers(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	m := newTestMatch(-5001)
	if err := store.CreateMatch(ctx, m); err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	roles := map[int64]games.Role{
		1: games.RoleImpostor,
		2: games.RoleDetective,
		3: games.RoleCrewmate,
		4: games.RoleCrewmate,
	}
	if err := store.AddPlayers(ctx, m.ID, roles); err != nil {
		t.Fatalf("AddPlayers failed: %v", err)
	}

	players, err := store.GetPlayers(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetPlayers failed: %v", err)
	}
	if len(players) != 4 {
		t.Fatalf("expected 4 players, got %d", len(players))
	}
	for _, p := range players {
		if !p.Alive {
			t.Errorf("expected player %d alive", p.UserID)
		}
		if p.Role != roles[p.UserID] {
			t.Errorf("expected player %d role %q, got %q", p.UserID, roles[p.UserID], p.Role)
		}
	}

	crew, err := store.GetPlayersByRole(ctx, m.ID, games.RoleCrewmate)
	if err != nil {
		t.Fatalf("GetPlayersByRole failed: %v", err)
	}
	if len(crew) != 2 {
		t.Errorf("expected 2 crewmates, got %d", len(crew))
	}

	t.Run("kill", func(t *testing.T) {
		if err := store.KillPlayer(ctx, m.ID, 3); err != nil {
			t.Fatalf("KillPlayer failed: %v", err)
		}
		alive, err := store.GetAlivePlayers(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetAlivePlayers failed: %v", err)
		}
		if len(alive) != 3 {
			t.Errorf("expected 3 alive, got %d", len(alive))
		}
	})

	t.Run("set field", func(t *testing.T) {
		if err := store.SetPlayerField(ctx, m.ID, 2, games.FieldDetectiveLastRound, 4); err != nil {
			t.Fatalf("SetPlayerField failed: %v", err)
		}
		if err := store.SetPlayerField(ctx, m.ID, 4, games.FieldVoted, true); err != nil {
			t.Fatalf("SetPlayerField failed: %v", err)
		}
		p, err := store.GetPlayer(ctx, m.ID, 2)
		if err != nil {
			t.Fatalf("GetPlayer failed: %v", err)
		}
		if p.DetectiveLastRound != 4 {
			t.Errorf("expected detective round 4, got %d", p.DetectiveLastRound)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		err := store.SetPlayerField(ctx, m.ID, 2, games.PlayerField("role"), "impostor")
		if err == nil {
			t.Error("expected error for unknown field")
		}
	})

	t.Run("reset round flags", func(t *testing.T) {
		if err := store.ResetRoundFlags(ctx, m.ID); err != nil {
			t.Fatalf("ResetRoundFlags failed: %v", err)
		}
		p, err := store.GetPlayer(ctx, m.ID, 4)
		if err != nil {
			t.Fatalf("GetPlayer failed: %v", err)
		}
		if p.Voted {
			t.Error("expected voted flag cleared")
		}
	})

	t.Run("missing player", func(t *testing.T) {
		if _, err := store.GetPlayer(ctx, m.ID, 99); !errors.Is(err, games.ErrNotInMatch) {
			t.Errorf("expected ErrNotInMatch, got %v", err)
		}
	})
}

func TestVotes(t *testing.T) {
	pool := SetupTestDB(t)

	store := NewMatchStore(pool)
	ctx := context.Background()

	m := newTestMatch(-6001)
	if err := store.CreateMatch(ctx, m); err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}

	target := int64(3)
	other := int64(4)
	votes := []games.Vote{
		{MatchID: m.ID, Round: 1, VoterID: 1, Target: &target},
		{MatchID: m.ID, Round: 1, VoterID: 2, Target: nil},
		{MatchID: m.ID, Round: 1, VoterID: 1, Target: &other},
		{MatchID: m.ID, Round: 2, VoterID: 1, Target: &target},
	}
	for _, v := range votes {
		if err := store.RecordVote(ctx, v); err != nil {
			t.Fatalf("RecordVote failed: %v", err)
		}
	}

	got, err := store.GetRoundVotes(ctx, m.ID, 1)
	if err != nil {
		t.Fatalf("GetRoundVotes failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 votes in round 1, got %d", len(got))
	}
	if got[0].VoterID != 1 || got[0].Target == nil || *got[0].Target != other {
		t.Errorf("expected voter 1 to target %d, got %+v", other, got[0])
	}
	if got[1].Target != nil {
		t.Errorf("expected abstain from voter 2, got %v", *got[1].Target)
	}

	if err := store.ClearVotes(ctx, m.ID, 1); err != nil {
		t.Fatalf("ClearVotes failed: %v", err)
	}
	got, err = store.GetRoundVotes(ctx, m.ID, 1)
	if err != nil {
		t.Fatalf("GetRoundVotes failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected round 1 cleared, got %d votes", len(got))
	}
	got, err = store.GetRoundVotes(ctx, m.ID, 2)
	if err != nil {
		t.Fatalf("GetRoundVotes failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected round 2 untouched, got %d votes", len(got))
	}
}
