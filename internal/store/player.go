package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vntrieu/impostor/internal/games"
)

const playerColumns = `match_id, user_id, role, is_alive, voted, completed_task, sheriff_shot_used,
	detective_last_investigation, engineer_used_ability`

func scanPlayer(row pgx.Row) (games.Player, error) {
	var (
		p       games.Player
		matchID pgtype.UUID
		role    string
	)
	err := row.Scan(&matchID, &p.UserID, &role, &p.Alive, &p.Voted, &p.CompletedTask, &p.SheriffShotUsed,
		&p.DetectiveLastRound, &p.EngineerUsedAbility)
	if err != nil {
		return games.Player{}, err
	}
	p.MatchID = uuidToString(matchID)
	p.Role = games.Role(role)
	return p, nil
}

// AddPlayers inserts one row per assigned role in a single transaction.
func (s *MatchStore) AddPlayers(ctx context.Context, matchID string, roles map[int64]games.Role) error {
	id, err := stringToUUID(matchID)
	if err != nil {
		return games.ErrMatchNotFound
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for userID, role := range roles {
			batch.Queue(`INSERT INTO match_players (match_id, user_id, role) VALUES ($1, $2, $3)`, id, userID, string(role))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("add players: %w", err)
	}
	return nil
}

func (s *MatchStore) queryPlayers(ctx context.Context, op, sql string, args ...any) ([]games.Player, error) {
	var out []games.Player
	err := withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (games.Player, error) {
			return scanPlayer(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// GetPlayers returns every player in the match ordered by user id.
func (s *MatchStore) GetPlayers(ctx context.Context, matchID string) ([]games.Player, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return nil, games.ErrMatchNotFound
	}
	return s.queryPlayers(ctx, "get players",
		`SELECT `+playerColumns+` FROM match_players WHERE match_id = $1 ORDER BY user_id`, id)
}

// GetAlivePlayers returns the living players ordered by user id.
func (s *MatchStore) GetAlivePlayers(ctx context.Context, matchID string) ([]games.Player, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return nil, games.ErrMatchNotFound
	}
	return s.queryPlayers(ctx, "get alive players",
		`SELECT `+playerColumns+` FROM match_players WHERE match_id = $1 AND is_alive ORDER BY user_id`, id)
}

// GetPlayersByRole returns every player holding role, dead or alive.
func (s *MatchStore) GetPlayersByRole(ctx context.Context, matchID string, role games.Role) ([]games.Player, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return nil, games.ErrMatchNotFound
	}
	return s.queryPlayers(ctx, "get players by role",
		`SELECT `+playerColumns+` FROM match_players WHERE match_id = $1 AND role = $2 ORDER BY user_id`, id, string(role))
}

// GetPlayer returns one player or games.ErrNotInMatch.
func (s *MatchStore) GetPlayer(ctx context.Context, matchID string, userID int64) (*games.Player, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return nil, games.ErrNotInMatch
	}
	var p games.Player
	err = withRetry(ctx, func(ctx context.Context) error {
		var err error
		p, err = scanPlayer(s.pool.QueryRow(ctx,
			`SELECT `+playerColumns+` FROM match_players WHERE match_id = $1 AND user_id = $2`, id, userID))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, games.ErrNotInMatch
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return &p, nil
}

// KillPlayer marks the player dead.
func (s *MatchStore) KillPlayer(ctx context.Context, matchID string, userID int64) error {
	return s.SetPlayerField(ctx, matchID, userID, games.FieldAlive, false)
}

// SetPlayerField updates one whitelisted column. The column name comes from games.PlayerField, never from input.
func (s *MatchStore) SetPlayerField(ctx context.Context, matchID string, userID int64, field games.PlayerField, value interface{}) error {
	if !field.Valid() {
		return fmt.Errorf("set player field: unknown field %q", field)
	}
	var scratch games.Player
	if !scratch.Apply(field, value) {
		return fmt.Errorf("set player field: bad value %v for %s", value, field)
	}
	id, err := stringToUUID(matchID)
	if err != nil {
		return games.ErrNotInMatch
	}
	var rows int64
	err = withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			fmt.Sprintf(`UPDATE match_players SET %s = $3 WHERE match_id = $1 AND user_id = $2`, string(field)),
			id, userID, value)
		rows = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("set player field %s: %w", field, err)
	}
	if rows == 0 {
		return games.ErrNotInMatch
	}
	return nil
}

// ResetRoundFlags clears voted and completed_task for every player in the match.
func (s *MatchStore) ResetRoundFlags(ctx context.Context, matchID string) error {
	id, err := stringToUUID(matchID)
	if err != nil {
		return games.ErrMatchNotFound
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`UPDATE match_players SET voted = FALSE, completed_task = FALSE WHERE match_id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("reset round flags: %w", err)
	}
	return nil
}
