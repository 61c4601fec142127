package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
)

// MinBodyLength is the smallest accepted body size in runes, measured after
// trimming surrounding whitespace.
const MinBodyLength = 10

const titlePrefixLength = 60

// SynthesizeTitle derives a listing title from a content prefix. Used when a
// promoted orphan or a top-level synthetic post carries no title of its own.
func SynthesizeTitle(body string) string {
	s := strings.Join(strings.Fields(body), " ")
	r := []rune(s)
	if len(r) <= titlePrefixLength {
		return s
	}
	cut := string(r[:titlePrefixLength])
	if i := strings.LastIndex(cut, " "); i > titlePrefixLength/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// InsertPost persists a new post. Replies inherit the parent's thread id;
// roots become their own thread. The insert and the root thread patch commit
// together, so no reader observes a root with a null thread reference.
func (s *Store) InsertPost(ctx context.Context, p Post) (Post, error) {
	p.Body = strings.TrimSpace(p.Body)
	if utf8.RuneCountInString(p.Body) < MinBodyLength {
		return Post{}, ErrBodyTooShort
	}
	if p.Title.Valid {
		p.Title.String = strings.TrimSpace(p.Title.String)
		if p.Title.String == "" {
			p.Title.Valid = false
		}
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	err := s.withTx(ctx, func(ctx context.Context) error {
		if p.ParentID.Valid {
			var parent Post
			q := s.rebind(`SELECT id, thread_id, status FROM posts WHERE id = ?`)
			err := sqlx.GetContext(ctx, s.ext(ctx), &parent, q, p.ParentID.Int64)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrParentUnavailable
			}
			if err != nil {
				return fmt.Errorf("lookup parent: %w", err)
			}
			if parent.Status != StatusApproved {
				return ErrParentUnavailable
			}
			p.ThreadID = parent.ThreadID
		}

		insert := s.rebind(`
			INSERT INTO posts (
				title, body, author_name, author_kind, user_id, synthetic_id,
				parent_id, thread_id, status, model_tag, session_tag,
				flagged, flagged_terms, address, score, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
			RETURNING id
		`)
		err := sqlx.GetContext(ctx, s.ext(ctx), &p.ID, insert,
			p.Title, p.Body, p.AuthorName, p.AuthorKind, p.UserID, p.SyntheticID,
			p.ParentID, p.ThreadID, p.Status, p.ModelTag, p.SessionTag,
			p.Flagged, p.FlaggedTerms, p.Address, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert post: %w", err)
		}

		if !p.ParentID.Valid {
			patch := s.rebind(`UPDATE posts SET thread_id = id WHERE id = ?`)
			if _, err := s.ext(ctx).ExecContext(ctx, patch, p.ID); err != nil {
				return fmt.Errorf("patch root thread: %w", err)
			}
			p.ThreadID = sql.NullInt64{Int64: p.ID, Valid: true}
		}
		return nil
	})
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

// InsertSyntheticPost persists a scheduled persona post together with its
// activity ledger entry. Both commit or neither does: a post without a
// ledger entry would undercount cooldowns, a ledger entry without a post
// would overcount them. The entry receives the new post's id.
func (s *Store) InsertSyntheticPost(ctx context.Context, p Post, e LedgerEntry) (Post, LedgerEntry, error) {
	err := s.withTx(ctx, func(ctx context.Context) error {
		saved, err := s.InsertPost(ctx, p)
		if err != nil {
			return err
		}
		p = saved
		e.PostID = sql.NullInt64{Int64: saved.ID, Valid: true}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = saved.CreatedAt
		}
		saved2, err := s.AppendLedger(ctx, e)
		if err != nil {
			return err
		}
		e = saved2
		return nil
	})
	if err != nil {
		return Post{}, LedgerEntry{}, err
	}
	return p, e, nil
}

// InsertIdentityPost persists a credentialed submission and bumps the
// identity's accepted-post counters in the same transaction. Credentialed
// identities track their own activity; the roster ledger never sees them.
func (s *Store) InsertIdentityPost(ctx context.Context, p Post) (Post, error) {
	if !p.SyntheticID.Valid {
		return Post{}, fmt.Errorf("identity post missing synthetic id")
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		saved, err := s.InsertPost(ctx, p)
		if err != nil {
			return err
		}
		p = saved
		return s.TouchSyntheticActivity(ctx, p.SyntheticID.Int64, p.ParentID.Valid)
	})
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

// GetPost returns a post by id. Deleted posts are invisible here, as on
// every other read path.
func (s *Store) GetPost(ctx context.Context, id int64) (Post, error) {
	var p Post
	q := s.rebind(`SELECT * FROM posts WHERE id = ? AND status <> 'deleted'`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Post{}, err
		}
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// TransitionStatus moves a post through its lifecycle. Valid transitions are
// pending→approved, pending→rejected, and any non-deleted status→deleted.
// A delete promotes every direct child to a root in the same transaction.
func (s *Store) TransitionStatus(ctx context.Context, id int64, next string, actorID int64) (Post, error) {
	if next != StatusApproved && next != StatusRejected && next != StatusDeleted {
		return Post{}, ErrInvalidTransition
	}
	var p Post
	now := time.Now().UTC()
	err := s.withTx(ctx, func(ctx context.Context) error {
		q := s.rebind(s.forUpdate(`SELECT * FROM posts WHERE id = ?`))
		if err := sqlx.GetContext(ctx, s.ext(ctx), &p, q, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lookup post: %w", err)
		}
		switch {
		case p.Status == StatusDeleted:
			return ErrInvalidTransition
		case next == StatusDeleted:
		case p.Status == StatusPending && (next == StatusApproved || next == StatusRejected):
		default:
			return ErrInvalidTransition
		}

		update := s.rebind(`
			UPDATE posts
			SET status = ?, moderated_by = ?, moderated_at = ?, updated_at = ?
			WHERE id = ?
		`)
		if _, err := s.ext(ctx).ExecContext(ctx, update, next, actorID, now, now, id); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if next == StatusDeleted {
			if err := s.repairOrphans(ctx, id, now); err != nil {
				return err
			}
		}
		p.Status = next
		p.ModeratedBy = sql.NullInt64{Int64: actorID, Valid: true}
		p.ModeratedAt = sql.NullTime{Time: now, Valid: true}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

// repairOrphans promotes the direct children of a deleted post to roots:
// parent cleared, thread re-pointed at themselves, and a synthesized title
// where none existed. Promotion is one level deep; grandchildren keep their
// existing thread reference even when it now names a detached root.
func (s *Store) repairOrphans(ctx context.Context, deletedID int64, now time.Time) error {
	var children []Post
	q := s.rebind(`SELECT id, title, body FROM posts WHERE parent_id = ?`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &children, q, deletedID); err != nil {
		return fmt.Errorf("list orphans: %w", err)
	}
	promote := s.rebind(`
		UPDATE posts
		SET parent_id = NULL, thread_id = id, title = ?, updated_at = ?
		WHERE id = ?
	`)
	for _, c := range children {
		title := c.Title
		if !title.Valid || strings.TrimSpace(title.String) == "" {
			title = sql.NullString{String: SynthesizeTitle(c.Body), Valid: true}
		}
		if _, err := s.ext(ctx).ExecContext(ctx, promote, title, now, c.ID); err != nil {
			return fmt.Errorf("promote orphan %d: %w", c.ID, err)
		}
	}
	return nil
}

// ListRoots returns approved root posts, newest first, with the count of
// approved replies in each thread.
func (s *Store) ListRoots(ctx context.Context, limit, offset int) ([]Post, error) {
	var posts []Post
	q := s.rebind(`
		SELECT p.*,
			(SELECT COUNT(*) FROM posts c
			 WHERE c.thread_id = p.id AND c.id <> p.id AND c.status = 'approved') AS reply_count
		FROM posts p
		WHERE p.parent_id IS NULL AND p.status = 'approved'
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &posts, q, limit, offset); err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	return posts, nil
}

// ListThread returns the approved posts of a thread in chronological reading
// order. The root must exist, be approved, and actually be a root.
func (s *Store) ListThread(ctx context.Context, rootID int64) ([]Post, error) {
	var root Post
	q := s.rebind(`SELECT id FROM posts WHERE id = ? AND parent_id IS NULL AND status = 'approved'`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &root, q, rootID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup thread root: %w", err)
	}
	var posts []Post
	list := s.rebind(`
		SELECT * FROM posts
		WHERE thread_id = ? AND status = 'approved'
		ORDER BY created_at ASC, id ASC
	`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &posts, list, rootID); err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	return posts, nil
}

// CountThreadPosts counts the approved posts of a thread.
func (s *Store) CountThreadPosts(ctx context.Context, threadID int64) (int64, error) {
	var n int64
	q := s.rebind(`SELECT COUNT(*) FROM posts WHERE thread_id = ? AND status = 'approved'`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &n, q, threadID); err != nil {
		return 0, fmt.Errorf("count thread posts: %w", err)
	}
	return n, nil
}

// CountHumanApprovedSince counts approved human posts created strictly after
// the given time.
func (s *Store) CountHumanApprovedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	q := s.rebind(`
		SELECT COUNT(*) FROM posts
		WHERE author_kind = 'human' AND status = 'approved' AND created_at > ?
	`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &n, q, since.UTC()); err != nil {
		return 0, fmt.Errorf("count human posts: %w", err)
	}
	return n, nil
}

// LatestHumanTarget finds the most recent approved human post created at or
// after the window start that has no later synthetic post in its thread.
// Returns nil when no post qualifies.
func (s *Store) LatestHumanTarget(ctx context.Context, windowStart time.Time) (*Post, error) {
	var p Post
	q := s.rebind(`
		SELECT p.* FROM posts p
		WHERE p.author_kind = 'human' AND p.status = 'approved' AND p.created_at >= ?
		AND NOT EXISTS (
			SELECT 1 FROM posts r
			WHERE r.thread_id = p.thread_id
			  AND r.author_kind = 'synthetic'
			  AND r.status <> 'deleted'
			  AND r.created_at > p.created_at
		)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT 1
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &p, q, windowStart.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find target post: %w", err)
	}
	return &p, nil
}

// SearchPosts is the plain LIKE fallback used when no search index is
// reachable.
func (s *Store) SearchPosts(ctx context.Context, query string, limit int) ([]Post, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var posts []Post
	q := s.rebind(`
		SELECT * FROM posts
		WHERE status = 'approved'
		  AND (LOWER(body) LIKE ? OR LOWER(COALESCE(title, '')) LIKE ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &posts, q, pattern, pattern, limit); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return posts, nil
}

// ModerationQueue lists posts awaiting review: pending submissions plus
// approved posts the gate flagged.
func (s *Store) ModerationQueue(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	q := s.rebind(`
		SELECT * FROM posts
		WHERE status = 'pending' OR (flagged AND status = 'approved')
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &posts, q, limit); err != nil {
		return nil, fmt.Errorf("list moderation queue: %w", err)
	}
	return posts, nil
}
