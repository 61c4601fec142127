package search

import (
	"context"
	"log"

	"agora/internal/store"
)

// Service fronts the engine choice: Meilisearch while healthy, the store scan
// otherwise. Indexing is fire-and-forget; a slow index must never hold up a
// submission or a moderation decision.
type Service struct {
	meili    *Meili
	fallback *StoreFallback
}

// NewService builds the facade. meili may be nil when no index is configured;
// every query then goes to the fallback.
func NewService(meili *Meili, fallback *StoreFallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Healthy reports whether the index path is serving.
func (s *Service) Healthy() bool {
	return s.meili != nil && s.meili.Healthy()
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Search(ctx, query, limit)
		if err == nil {
			return results, nil
		}
		log.Printf("search: index error, falling back to store scan: %v", err)
	}
	return s.fallback.Search(ctx, query, limit)
}

// IndexPost pushes an approved post to the index.
func (s *Service) IndexPost(p store.Post) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	doc := documentFromPost(p)
	go func() {
		if err := s.meili.IndexPost(doc); err != nil {
			log.Printf("search: index post %d: %v", doc.ID, err)
		}
	}()
}

// RemovePost drops a post from the index after a reject or delete.
func (s *Service) RemovePost(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePost(id); err != nil {
			log.Printf("search: remove post %d: %v", id, err)
		}
	}()
}

// Reindex bulk-loads approved posts, called at startup to catch the index up
// with moderation decisions made while it was down.
func (s *Service) Reindex(posts []store.Post) {
	if s.meili == nil || !s.meili.Healthy() || len(posts) == 0 {
		return
	}
	docs := make([]Document, 0, len(posts))
	for _, p := range posts {
		docs = append(docs, documentFromPost(p))
	}
	if err := s.meili.IndexPosts(docs); err != nil {
		log.Printf("search: reindex %d posts: %v", len(docs), err)
	}
}
