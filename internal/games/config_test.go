package games

import (
	"testing"
	"time"
)

func TestPhaseCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseLobby, PhaseNight, true},
		{PhaseNight, PhaseDiscussion, true},
		{PhaseDiscussion, PhaseVoting, true},
		{PhaseVoting, PhaseNight, true},
		{PhaseLobby, PhaseEnded, true},
		{PhaseVoting, PhaseEnded, true},
		{PhaseLobby, PhaseVoting, false},
		{PhaseNight, PhaseLobby, false},
		{PhaseDiscussion, PhaseNight, false},
		{PhaseEnded, PhaseNight, false},
		{PhaseEnded, PhaseEnded, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %t want %t", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTimingsWithDefaults(t *testing.T) {
	got := Timings{Night: 5 * time.Second}.withDefaults()
	if got.Night != 5*time.Second {
		t.Errorf("night overridden: %s", got.Night)
	}
	if got.Lobby != 60*time.Second || got.Discussion != 90*time.Second || got.Voting != 30*time.Second {
		t.Errorf("defaults = %+v", got)
	}
}

func TestMatchRound(t *testing.T) {
	m := &Match{Settings: map[string]interface{}{SettingRoundNumber: float64(3)}}
	if m.Round() != 3 {
		t.Errorf("round = %d", m.Round())
	}
	var nilMatch *Match
	if nilMatch.Round() != 0 {
		t.Error("nil match round")
	}
	c := m.Clone()
	c.Settings[SettingRoundNumber] = 4
	if m.Round() != 3 {
		t.Error("clone shares settings")
	}
}
