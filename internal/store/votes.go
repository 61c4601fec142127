package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ToggleVote applies one vote toggle and exactly one incremental score
// update, in a single transaction. A fresh vote inserts and adds sign; the
// same sign again deletes and subtracts it; the opposite sign updates the
// row in place and moves the score by twice the sign. The post's stored
// score is never recomputed from the vote rows.
func (s *Store) ToggleVote(ctx context.Context, userID, postID int64, sign int) (score int64, myVote int, err error) {
	if sign != 1 && sign != -1 {
		return 0, 0, fmt.Errorf("invalid vote sign %d", sign)
	}
	now := time.Now().UTC()
	err = s.withTx(ctx, func(ctx context.Context) error {
		var postCheck int64
		check := s.rebind(s.forUpdate(`SELECT id FROM posts WHERE id = ? AND status = 'approved'`))
		if err := sqlx.GetContext(ctx, s.ext(ctx), &postCheck, check, postID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lookup voted post: %w", err)
		}

		var existing int
		lookup := s.rebind(s.forUpdate(`SELECT sign FROM votes WHERE user_id = ? AND post_id = ?`))
		lookupErr := sqlx.GetContext(ctx, s.ext(ctx), &existing, lookup, userID, postID)

		var delta int
		switch {
		case errors.Is(lookupErr, sql.ErrNoRows):
			insert := s.rebind(`
				INSERT INTO votes (user_id, post_id, sign, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)
			`)
			if _, err := s.ext(ctx).ExecContext(ctx, insert, userID, postID, sign, now, now); err != nil {
				return fmt.Errorf("insert vote: %w", err)
			}
			delta, myVote = sign, sign
		case lookupErr != nil:
			return fmt.Errorf("lookup vote: %w", lookupErr)
		case existing == sign:
			del := s.rebind(`DELETE FROM votes WHERE user_id = ? AND post_id = ?`)
			if _, err := s.ext(ctx).ExecContext(ctx, del, userID, postID); err != nil {
				return fmt.Errorf("delete vote: %w", err)
			}
			delta, myVote = -sign, 0
		default:
			update := s.rebind(`UPDATE votes SET sign = ?, updated_at = ? WHERE user_id = ? AND post_id = ?`)
			if _, err := s.ext(ctx).ExecContext(ctx, update, sign, now, userID, postID); err != nil {
				return fmt.Errorf("flip vote: %w", err)
			}
			delta, myVote = 2*sign, sign
		}

		apply := s.rebind(`UPDATE posts SET score = score + ?, updated_at = ? WHERE id = ? RETURNING score`)
		if err := sqlx.GetContext(ctx, s.ext(ctx), &score, apply, delta, now, postID); err != nil {
			return fmt.Errorf("apply vote delta: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return score, myVote, nil
}

// VoteTotals reads stored scores for a set of posts, plus the caller's own
// sign when userID is non-zero. Scores come from the posts table, never from
// summing vote rows.
func (s *Store) VoteTotals(ctx context.Context, postIDs []int64, userID int64) ([]VoteTotal, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT id AS post_id, score FROM posts
		WHERE id IN (?) AND status = 'approved'
	`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("expand vote totals query: %w", err)
	}
	var totals []VoteTotal
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &totals, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("read vote totals: %w", err)
	}
	if userID == 0 {
		return totals, nil
	}

	query, args, err = sqlx.In(`SELECT post_id, sign FROM votes WHERE user_id = ? AND post_id IN (?)`, userID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("expand own votes query: %w", err)
	}
	var own []Vote
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &own, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("read own votes: %w", err)
	}
	signs := make(map[int64]int, len(own))
	for _, v := range own {
		signs[v.PostID] = v.Sign
	}
	for i := range totals {
		totals[i].MyVote = signs[totals[i].PostID]
	}
	return totals, nil
}

// SumVoteRows recomputes a post's score from its live vote rows. Test-only
// cross-check for the incremental aggregate; no read path uses it.
func (s *Store) SumVoteRows(ctx context.Context, postID int64) (int64, error) {
	var sum int64
	q := s.rebind(`SELECT COALESCE(SUM(sign), 0) FROM votes WHERE post_id = ?`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &sum, q, postID); err != nil {
		return 0, fmt.Errorf("sum vote rows: %w", err)
	}
	return sum, nil
}
