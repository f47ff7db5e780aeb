package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vntrieu/impostor/internal/games"
)

// RecordVote upserts the voter's choice for the round; a resubmission replaces the earlier row.
func (s *MatchStore) RecordVote(ctx context.Context, v games.Vote) error {
	id, err := stringToUUID(v.MatchID)
	if err != nil {
		return games.ErrMatchNotFound
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO votes (match_id, round, voter_id, target_id)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (match_id, round, voter_id)
			 DO UPDATE SET target_id = EXCLUDED.target_id, updated_at = NOW()`,
			id, v.Round, v.VoterID, ptrToInt8(v.Target))
		return err
	})
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

// GetRoundVotes returns the round's votes ordered by voter.
func (s *MatchStore) GetRoundVotes(ctx context.Context, matchID string, round int) ([]games.Vote, error) {
	id, err := stringToUUID(matchID)
	if err != nil {
		return nil, games.ErrMatchNotFound
	}
	var out []games.Vote
	err = withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			`SELECT voter_id, target_id FROM votes WHERE match_id = $1 AND round = $2 ORDER BY voter_id`, id, round)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (games.Vote, error) {
			var (
				voter  int64
				target pgtype.Int8
			)
			if err := row.Scan(&voter, &target); err != nil {
				return games.Vote{}, err
			}
			return games.Vote{MatchID: matchID, Round: round, VoterID: voter, Target: int8ToPtr(target)}, nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get round votes: %w", err)
	}
	return out, nil
}

// ClearVotes deletes the round's votes.
func (s *MatchStore) ClearVotes(ctx context.Context, matchID string, round int) error {
	id, err := stringToUUID(matchID)
	if err != nil {
		return games.ErrMatchNotFound
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM votes WHERE match_id = $1 AND round = $2`, id, round)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	return nil
}
