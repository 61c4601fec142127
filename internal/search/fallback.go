package search

import (
	"context"

	"agora/internal/store"
	"agora/internal/util"
)

// postSearcher is the slice of the store the fallback reads.
type postSearcher interface {
	SearchPosts(ctx context.Context, query string, limit int) ([]store.Post, error)
}

// StoreFallback answers queries straight from the database while the index is
// down. Matching is plain substring, which keeps the search box working
// through an outage at the cost of ranking.
type StoreFallback struct {
	store postSearcher
}

func NewStoreFallback(st postSearcher) *StoreFallback {
	return &StoreFallback{store: st}
}

func (f *StoreFallback) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	posts, err := f.store.SearchPosts(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(posts))
	for _, p := range posts {
		r := Result{
			ID:         p.ID,
			Snippet:    util.Truncate(p.Body, 200),
			AuthorName: p.AuthorName,
			AuthorKind: p.AuthorKind,
			Score:      p.Score,
			CreatedAt:  p.CreatedAt,
		}
		if p.ThreadID.Valid {
			r.ThreadID = p.ThreadID.Int64
		}
		if p.Title.Valid {
			r.Title = p.Title.String
		}
		results = append(results, r)
	}
	return results, nil
}
