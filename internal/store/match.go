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

	"github.com/vntrieu/impostor/internal/games"
)

// MatchStore persists matches, players and votes. It implements games.Store.
type MatchStore struct {
	pool *pgxpool.Pool
}

var _ games.Store = (*MatchStore)(nil)

// NewMatchStore creates a new MatchStore.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchColumns = `id, room_id, mode, phase, created_at, ended_at, creator_id, failed_task_rounds, settings`

func scanMatch(row pgx.Row) (*games.Match, error) {
	var (
		id        pgtype.UUID
		m         games.Match
		mode      string
		phase     string
		createdAt pgtype.Timestamptz
		endedAt   pgtype.Timestamptz
		settings  []byte
	)
	if err := row.Scan(&id, &m.RoomID, &mode, &phase, &createdAt, &endedAt, &m.CreatorID, &m.FailedTaskRounds, &settings); err != nil {
		return nil, err
	}
	m.ID = uuidToString(id)
	m.Mode = games.Mode(mode)
	m.Phase = games.Phase(phase)
	m.CreatedAt = timestamptzToTime(createdAt)
	m.EndedAt = timestamptzToTimePtr(endedAt)
	m.Settings = map[string]interface{}{}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &m.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	return &m, nil
}

// CreateMatch inserts a new match. A second active match in the same room is rejected by a partial unique
// index and reported as games.ErrMatchInProgress.
func (s *MatchStore) CreateMatch(ctx context.Context, m *games.Match) error {
	id, err := stringToUUID(m.ID)
	if err != nil {
		return fmt.Errorf("invalid match id: %w", err)
	}
	settings := m.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO matches (id, room_id, mode, phase, created_at, creator_id, failed_task_rounds, settings)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, m.RoomID, string(m.Mode), string(m.Phase), m.CreatedAt, m.CreatorID, m.FailedTaskRounds, settingsJSON,
		)
		return err
	})
	if isUniqueViolation(err) {
		return games.ErrMatchInProgress
	}
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetMatch returns the match or games.ErrMatchNotFound.
func (s *MatchStore) GetMatch(ctx context.Context, matchID string) (*games.Match, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return nil, games.ErrMatchNotFound
	}
	var m *games.Match
	err = withRetry(ctx, func(ctx context.Context) error {
		var err error
		m, err = scanMatch(s.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, games.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// GetActiveMatchForRoom returns the room's non-ended match, or nil when there is none.
func (s *MatchStore) GetActiveMatchForRoom(ctx context.Context, roomID int64) (*games.Match, error) {
	var m *games.Match
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		m, err = scanMatch(s.pool.QueryRow(ctx,
			`SELECT `+matchColumns+` FROM matches WHERE room_id = $1 AND phase <> $2 ORDER BY created_at DESC LIMIT 1`,
			roomID, string(games.PhaseEnded)))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active match: %w", err)
	}
	return m, nil
}

func (s *MatchStore) execMatch(ctx context.Context, op, matchID, sql string, args ...any) error {
	id, err := stringToUUID(matchID)
	if err != nil {
		return games.ErrMatchNotFound
	}
	var rows int64
	err = withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, sql, append([]any{id}, args...)...)
		rows = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return games.ErrMatchNotFound
	}
	return nil
}

// SetMatchPhase updates the phase column.
func (s *MatchStore) SetMatchPhase(ctx context.Context, matchID string, phase games.Phase) error {
	return s.execMatch(ctx, "set phase", matchID, `UPDATE matches SET phase = $2 WHERE id = $1`, string(phase))
}

// EndMatch marks the match ended.
func (s *MatchStore) EndMatch(ctx context.Context, matchID string, endedAt time.Time) error {
	return s.execMatch(ctx, "end match", matchID,
		`UPDATE matches SET phase = $2, ended_at = $3 WHERE id = $1`, string(games.PhaseEnded), endedAt)
}

// EndUnfinishedMatches ends every match that is not yet ended and returns how many there were.
func (s *MatchStore) EndUnfinishedMatches(ctx context.Context, endedAt time.Time) (int64, error) {
	var n int64
	err := withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE matches SET phase = $1, ended_at = $2 WHERE phase <> $1`, string(games.PhaseEnded), endedAt)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("end unfinished matches: %w", err)
	}
	return n, nil
}

// IncrementFailedRounds adds one failed task round and returns the new count.
func (s *MatchStore) IncrementFailedRounds(ctx context.Context, matchID string) (int, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return 0, games.ErrMatchNotFound
	}
	var n int
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx,
			`UPDATE matches SET failed_task_rounds = failed_task_rounds + 1 WHERE id = $1 RETURNING failed_task_rounds`,
			id).Scan(&n)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, games.ErrMatchNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment failed rounds: %w", err)
	}
	return n, nil
}

// ResetFailedRounds zeroes the failed task round counter.
func (s *MatchStore) ResetFailedRounds(ctx context.Context, matchID string) error {
	return s.execMatch(ctx, "reset failed rounds", matchID, `UPDATE matches SET failed_task_rounds = 0 WHERE id = $1`)
}

// UpdateMatchSettings merges settings into the stored JSONB object.
func (s *MatchStore) UpdateMatchSettings(ctx context.Context, matchID string, settings map[string]interface{}) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.execMatch(ctx, "update settings", matchID, `UPDATE matches SET settings = settings || $2::jsonb WHERE id = $1`, b)
}
