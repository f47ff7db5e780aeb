package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a player's cross-match profile. Identity is the transport's integer user id.
type User struct {
	ID             int64           `json:"id"`
	Username       *string         `json:"username,omitempty"`
	XP             int             `json:"xp"`
	Streak         int             `json:"streak"`
	GamesPlayed    int             `json:"games_played"`
	GamesWon       int             `json:"games_won"`
	TasksCompleted int             `json:"tasks_completed"`
	ImpostorsFound int             `json:"impostors_found"`
	Achievements   map[string]bool `json:"achievements"`
	Banned         bool            `json:"banned"`
	BannedUntil    *time.Time      `json:"banned_until,omitempty"`
	BanReason      *string         `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// UserStore handles database operations for user profiles and XP.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, username, xp, streak, games_played, games_won, tasks_completed, impostors_found,
	achievements, is_banned, banned_until, ban_reason, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                    User
		username, reason     pgtype.Text
		createdAt, updatedAt pgtype.Timestamptz
		bannedUntil          pgtype.Timestamptz
		achievements         []byte
	)
	err := row.Scan(&u.ID, &username, &u.XP, &u.Streak, &u.GamesPlayed, &u.GamesWon, &u.TasksCompleted, &u.ImpostorsFound,
		&achievements, &u.Banned, &bannedUntil, &reason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Achievements = map[string]bool{}
	if len(achievements) > 0 {
		if err := json.Unmarshal(achievements, &u.Achievements); err != nil {
			return nil, fmt.Errorf("decode achievements: %w", err)
		}
	}
	if username.Valid {
		u.Username = &username.String
	}
	if reason.Valid {
		u.BanReason = &reason.String
	}
	if bannedUntil.Valid {
		t := bannedUntil.Time.UTC()
		u.BannedUntil = &t
	}
	u.CreatedAt = timestamptzToTime(createdAt)
	u.UpdatedAt = timestamptzToTime(updatedAt)
	return &u, nil
}

// GetUser returns the user by id. Returns nil, nil when not found.
func (s *UserStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u *User
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		u, err = scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// EnsureUser creates the user if missing and refreshes the username when one is given.
func (s *UserStore) EnsureUser(ctx context.Context, id int64, username string) (*User, error) {
	name := pgtype.Text{String: username, Valid: username != ""}
	var u *User
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		u, err = scanUser(s.pool.QueryRow(ctx,
			`INSERT INTO users (id, username) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET username = COALESCE(EXCLUDED.username, users.username), updated_at = NOW()
			 RETURNING `+userColumns,
			id, name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// AddXP adds delta (which may be negative) to the user's XP, never going below zero, and returns the new total.
func (s *UserStore) AddXP(ctx context.Context, id int64, delta int) (int, error) {
	var xp int
	err := withRetry(ctx, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO users (id, xp) VALUES ($1, GREATEST($2::int, 0))
			 ON CONFLICT (id) DO UPDATE SET xp = GREATEST(users.xp + $2::int, 0), updated_at = NOW()
			 RETURNING xp`,
			id, delta).Scan(&xp)
	})
	if err != nil {
		return 0, fmt.Errorf("add xp: %w", err)
	}
	return xp, nil
}

// RecordResult counts a finished match. A win extends the streak, a loss resets it.
func (s *UserStore) RecordResult(ctx context.Context, id int64, won bool) error {
	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO users (id, games_played, games_won, streak)
			 VALUES ($1, 1, CASE WHEN $2 THEN 1 ELSE 0 END, CASE WHEN $2 THEN 1 ELSE 0 END)
			 ON CONFLICT (id) DO UPDATE SET
			   games_played = users.games_played + 1,
			   games_won = users.games_won + CASE WHEN $2 THEN 1 ELSE 0 END,
			   streak = CASE WHEN $2 THEN users.streak + 1 ELSE 0 END,
			   updated_at = NOW()`,
			id, won)
		return err
	})
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// TopUsers returns the highest-XP users.
func (s *UserStore) TopUsers(ctx context.Context, limit int) ([]User, error) {
	var out []User
	err := withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY xp DESC, id LIMIT $1`, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
			u, err := scanUser(row)
			if err != nil {
				return User{}, err
			}
			return *u, nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	return out, nil
}

// UserStat names a per-user counter column.
type UserStat string

const (
	StatTasksCompleted UserStat = "tasks_completed"
	StatImpostorsFound UserStat = "impostors_found"
)

// IncrementStat adds one to a counter and returns the new value.
func (s *UserStore) IncrementStat(ctx context.Context, id int64, stat UserStat) (int, error) {
	switch stat {
	case StatTasksCompleted, StatImpostorsFound:
	default:
		return 0, fmt.Errorf("increment stat: unknown stat %q", stat)
	}
	var n int
	err := withRetry(ctx, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx,
			fmt.Sprintf(`INSERT INTO users (id, %[1]s) VALUES ($1, 1)
			 ON CONFLICT (id) DO UPDATE SET %[1]s = users.%[1]s + 1, updated_at = NOW()
			 RETURNING %[1]s`, string(stat)),
			id).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("increment stat %s: %w", stat, err)
	}
	return n, nil
}

// GrantAchievement records code for the user. It reports false when the user already had it or does not exist.
func (s *UserStore) GrantAchievement(ctx context.Context, id int64, code string) (bool, error) {
	var granted bool
	err := withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE users SET achievements = achievements || jsonb_build_object($2::text, true), updated_at = NOW()
			 WHERE id = $1 AND NOT achievements ? $2::text`,
			id, code)
		granted = tag.RowsAffected() == 1
		return err
	})
	if err != nil {
		return false, fmt.Errorf("grant achievement: %w", err)
	}
	return granted, nil
}

// SetXP overwrites the user's XP, creating the user if missing.
func (s *UserStore) SetXP(ctx context.Context, id int64, xp int) error {
	if xp < 0 {
		return fmt.Errorf("set xp: negative amount %d", xp)
	}
	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO users (id, xp) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET xp = EXCLUDED.xp, updated_at = NOW()`,
			id, xp)
		return err
	})
	if err != nil {
		return fmt.Errorf("set xp: %w", err)
	}
	return nil
}

// Ban marks the user banned until the given time, or permanently when until is nil. Banning again replaces
// the previous term.
func (s *UserStore) Ban(ctx context.Context, id int64, until *time.Time, reason string) error {
	end := pgtype.Timestamptz{}
	if until != nil {
		end = pgtype.Timestamptz{Time: *until, Valid: true}
	}
	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO users (id, is_banned, banned_until, ban_reason) VALUES ($1, TRUE, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET is_banned = TRUE, banned_until = EXCLUDED.banned_until,
			   ban_reason = EXCLUDED.ban_reason, updated_at = NOW()`,
			id, end, reason)
		return err
	})
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return nil
}

// Unban lifts a ban. It reports false when the user was not banned.
func (s *UserStore) Unban(ctx context.Context, id int64) (bool, error) {
	var lifted bool
	err := withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE users SET is_banned = FALSE, banned_until = NULL, ban_reason = NULL, updated_at = NOW()
			 WHERE id = $1 AND is_banned`,
			id)
		lifted = tag.RowsAffected() == 1
		return err
	})
	if err != nil {
		return false, fmt.Errorf("unban user: %w", err)
	}
	return lifted, nil
}

// IsBanned reports whether the user is banned at now, with the ban's end (nil for permanent). A ban whose
// term has run out is lifted on the way.
func (s *UserStore) IsBanned(ctx context.Context, id int64, now time.Time) (bool, *time.Time, error) {
	var (
		banned bool
		until  pgtype.Timestamptz
	)
	err := withRetry(ctx, func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx,
			`UPDATE users SET is_banned = FALSE, banned_until = NULL, ban_reason = NULL, updated_at = NOW()
			 WHERE id = $1 AND is_banned AND banned_until IS NOT NULL AND banned_until <= $2`,
			id, now); err != nil {
			return err
		}
		return s.pool.QueryRow(ctx, `SELECT is_banned, banned_until FROM users WHERE id = $1`, id).Scan(&banned, &until)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("check ban: %w", err)
	}
	if !banned || !until.Valid {
		return banned, nil, nil
	}
	t := until.Time.UTC()
	return true, &t, nil
}
