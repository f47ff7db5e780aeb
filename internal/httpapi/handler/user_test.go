package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vntrieu/impostor/internal/httpapi/handler"
	"github.com/vntrieu/impostor/internal/store"
)

type fakeProfiles struct {
	users     map[int64]*store.User
	lastLimit int
	err       error
}

func (f *fakeProfiles) Profile(ctx context.Context, id int64) (*store.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeProfiles) Leaderboard(ctx context.Context, limit int) ([]store.User, error) {
	f.lastLimit = limit
	var out []store.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, f.err
}

func TestUserHandler(t *testing.T) {
	profiles := &fakeProfiles{users: map[int64]*store.User{7: {ID: 7, XP: 120, Streak: 2}}}
	h := handler.NewUserHandler(profiles)

	t.Run("profile", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.GetUser(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "7"))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var u store.User
		if err := json.NewDecoder(w.Body).Decode(&u); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if u.XP != 120 || u.Streak != 2 {
			t.Errorf("unexpected user %+v", u)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.GetUser(w, requestWithParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "8"))
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("leaderboard limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Leaderboard(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=5", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if profiles.lastLimit != 5 {
			t.Errorf("expected limit 5, got %d", profiles.lastLimit)
		}
	})

	t.Run("store error", func(t *testing.T) {
		h := handler.NewUserHandler(&fakeProfiles{err: errors.New("boom")})
		w := httptest.NewRecorder()
		h.Leaderboard(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		db   handler.Pinger
		want int
	}{
		{"no database", nil, http.StatusOK},
		{"database up", fakePinger{}, http.StatusOK},
		{"database down", fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Healthz(tt.db)(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
