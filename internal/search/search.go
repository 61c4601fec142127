// Package search indexes approved posts and answers the public search box.
// Meilisearch serves queries while it is reachable; a plain store scan covers
// the rest of the time.
package search

import (
	"time"

	"agora/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"threadId"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet"`
	AuthorName string    `json:"authorName"`
	AuthorKind string    `json:"authorKind"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Document is the indexed shape of a post. Only approved posts are indexed;
// moderation status never appears here.
type Document struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"threadId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	AuthorName string    `json:"authorName"`
	AuthorKind string    `json:"authorKind"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}

func documentFromPost(p store.Post) Document {
	doc := Document{
		ID:         p.ID,
		Body:       p.Body,
		AuthorName: p.AuthorName,
		AuthorKind: p.AuthorKind,
		Score:      p.Score,
		CreatedAt:  p.CreatedAt,
	}
	if p.Title.Valid {
		doc.Title = p.Title.String
	}
	if p.ThreadID.Valid {
		doc.ThreadID = p.ThreadID.Int64
	}
	return doc
}
