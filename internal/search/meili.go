package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxPosts = "agora_posts"

// Meili is the Meilisearch engine. A background probe keeps the health flag
// current so the facade can fall back without waiting on request timeouts.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili connects and configures the posts index. An unreachable server is
// not an error; the engine reports unhealthy until the probe sees it come up.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxPosts,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxPosts, err)
	}

	index := m.client.Index(idxPosts)
	filterable := []interface{}{"authorKind", "threadId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"title", "body", "authorName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the posts index. Snippets come back cropped around the match
// with the match itself marked up.
func (m *Meili) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxPosts).SearchWithContext(ctx, query, &meili.SearchRequest{
		Limit:                 int64(limit),
		AttributesToCrop:      []string{"body"},
		CropLength:            30,
		AttributesToHighlight: []string{"title", "body"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:         decodeInt64(hit, "id"),
		ThreadID:   decodeInt64(hit, "threadId"),
		AuthorName: decodeString(hit, "authorName"),
		AuthorKind: decodeString(hit, "authorKind"),
		Score:      decodeInt64(hit, "score"),
	}
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	if raw := decodeString(hit, "createdAt"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			r.CreatedAt = t
		}
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt64(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexPost adds or updates one post document.
func (m *Meili) IndexPost(doc Document) error {
	_, err := m.client.Index(idxPosts).AddDocuments([]Document{doc}, nil)
	return err
}

// IndexPosts bulk-loads documents; the startup reindex pass uses this.
func (m *Meili) IndexPosts(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPosts).AddDocuments(docs, nil)
	return err
}

// DeletePost removes a post from the index.
func (m *Meili) DeletePost(id int64) error {
	_, err := m.client.Index(idxPosts).DeleteDocument(strconv.FormatInt(id, 10), nil)
	return err
}
