package app

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"agora/internal/archive"
	"agora/internal/rbac"
	"agora/internal/store"
	"agora/internal/util"
)

var moderationActions = map[string]string{
	"approve": store.StatusApproved,
	"reject":  store.StatusRejected,
	"delete":  store.StatusDeleted,
}

// Moderate applies approve, reject or delete to a post. A delete promotes
// the post's direct replies to roots; the search index follows the outcome.
func (s *Service) Moderate(ctx context.Context, session Session, postID int64, action string) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionModerate) {
		return nil, errNotAuthorized()
	}
	next, ok := moderationActions[strings.ToLower(strings.TrimSpace(action))]
	if !ok {
		return nil, errValidation("action must be approve, reject or delete", nil)
	}
	post, err := s.store.TransitionStatus(ctx, postID, next, session.UserID)
	if err != nil {
		return nil, err
	}
	switch next {
	case store.StatusApproved:
		s.indexPost(post)
		s.countHumanPost(ctx, post)
	case store.StatusRejected, store.StatusDeleted:
		s.removeFromIndex(post.ID)
	}
	return map[string]any{"post": reviewPayload(post)}, nil
}

// Queue lists what needs moderator eyes: pending submissions and approved
// posts the gate flagged.
func (s *Service) Queue(ctx context.Context, session Session, limit int) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionModerate) {
		return nil, errNotAuthorized()
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	posts, err := s.store.ModerationQueue(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		items = append(items, reviewPayload(p))
	}
	return map[string]any{"queue": items}, nil
}

func (s *Service) Filters(ctx context.Context, session Session) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageFilters) {
		return nil, errNotAuthorized()
	}
	filters, err := s.store.ListFilters(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(filters))
	for _, f := range filters {
		item := map[string]any{
			"id":     f.ID,
			"phrase": f.Phrase,
			"effect": f.Effect,
			"active": f.Active,
		}
		if f.Replacement.Valid {
			item["replacement"] = f.Replacement.String
		}
		items = append(items, item)
	}
	return map[string]any{"filters": items}, nil
}

type FilterInput struct {
	Phrase      string `json:"phrase"`
	Effect      string `json:"effect"`
	Replacement string `json:"replacement"`
}

func (in FilterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Phrase, validation.Required, validation.RuneLength(2, maxTitleRunes)),
		validation.Field(&in.Effect, validation.Required,
			validation.In(store.FilterBlock, store.FilterFlag, store.FilterReplace)),
	)
}

func (s *Service) AddFilter(ctx context.Context, session Session, in FilterInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageFilters) {
		return nil, errNotAuthorized()
	}
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid filter", err)
	}
	f, err := s.store.CreateFilter(ctx, store.WordFilter{
		Phrase:      strings.TrimSpace(in.Phrase),
		Effect:      in.Effect,
		Replacement: nullString(strings.TrimSpace(in.Replacement)),
		Active:      true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": f.ID, "phrase": f.Phrase, "effect": f.Effect}, nil
}

func (s *Service) RemoveFilter(ctx context.Context, session Session, id int64) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageFilters) {
		return nil, errNotAuthorized()
	}
	if err := s.store.DeleteFilter(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "id": id}, nil
}

func (s *Service) Bans(ctx context.Context, session Session) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageBans) {
		return nil, errNotAuthorized()
	}
	bans, err := s.store.ListBans(ctx, maxPageSize)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(bans))
	for _, b := range bans {
		item := map[string]any{
			"id":        b.ID,
			"scope":     b.Scope,
			"value":     b.Value,
			"kind":      b.Kind,
			"reason":    b.Reason,
			"createdAt": b.CreatedAt,
		}
		if b.ExpiresAt.Valid {
			item["expiresAt"] = b.ExpiresAt.Time
		}
		items = append(items, item)
	}
	return map[string]any{"bans": items}, nil
}

type BanInput struct {
	Scope     string     `json:"scope"`
	Value     string     `json:"value"`
	Kind      string     `json:"kind"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (in BanInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Scope, validation.Required,
			validation.In(store.BanScopeActor, store.BanScopeAddress, store.BanScopeSession)),
		validation.Field(&in.Value, validation.Required),
		validation.Field(&in.Kind, validation.Required,
			validation.In(store.BanFull, store.BanShadow, store.BanMute)),
	)
}

func (s *Service) AddBan(ctx context.Context, session Session, in BanInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageBans) {
		return nil, errNotAuthorized()
	}
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid ban", err)
	}
	ban := store.Ban{
		Scope:  in.Scope,
		Value:  strings.TrimSpace(in.Value),
		Kind:   in.Kind,
		Reason: strings.TrimSpace(in.Reason),
	}
	if in.ExpiresAt != nil {
		if in.ExpiresAt.Before(s.now()) {
			return nil, errValidation("expiresAt is in the past", nil)
		}
		ban.ExpiresAt.Time = in.ExpiresAt.UTC()
		ban.ExpiresAt.Valid = true
	}
	saved, err := s.store.CreateBan(ctx, ban)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": saved.ID, "scope": saved.Scope, "kind": saved.Kind}, nil
}

func (s *Service) RemoveBan(ctx context.Context, session Session, id int64) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageBans) {
		return nil, errNotAuthorized()
	}
	if err := s.store.LiftBan(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "id": id}, nil
}

// SearchThreads serves the public search box. The index answers when it is
// healthy; otherwise the store's plain scan does.
func (s *Service) SearchThreads(ctx context.Context, query string, limit int) (map[string]any, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errValidation("q is required", nil)
	}
	if limit <= 0 || limit > maxPageSize {
		limit = 20
	}

	if s.search != nil {
		results, err := s.search.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, len(results))
		for _, r := range results {
			items = append(items, map[string]any{
				"id":         r.ID,
				"threadId":   r.ThreadID,
				"title":      r.Title,
				"snippet":    r.Snippet,
				"authorName": r.AuthorName,
				"authorKind": r.AuthorKind,
				"score":      r.Score,
				"createdAt":  r.CreatedAt,
			})
		}
		return map[string]any{"query": query, "results": items}, nil
	}

	posts, err := s.store.SearchPosts(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		item := postPayload(p)
		item["snippet"] = util.Truncate(p.Body, 200)
		items = append(items, item)
	}
	return map[string]any{"query": query, "results": items}, nil
}

// ArchiveThread renders a thread transcript to PDF and pushes it to the
// configured destinations. Requires the archiver to be set up on this
// deployment.
func (s *Service) ArchiveThread(ctx context.Context, session Session, rootID int64) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionArchive) {
		return nil, errNotAuthorized()
	}
	if s.archive == nil {
		return nil, errArchiveUnavailable()
	}
	posts, err := s.store.ListThread(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, errNotFound()
	}

	t := archive.Transcript{
		ThreadID:   rootID,
		ArchivedBy: session.UserName,
		ArchivedAt: s.now().UTC(),
	}
	if posts[0].Title.Valid {
		t.Title = posts[0].Title.String
	} else {
		t.Title = store.SynthesizeTitle(posts[0].Body)
	}
	for _, p := range posts {
		t.Entries = append(t.Entries, archive.Entry{
			ID:         p.ID,
			AuthorName: p.AuthorName,
			AuthorKind: p.AuthorKind,
			Body:       p.Body,
			Score:      p.Score,
			CreatedAt:  p.CreatedAt,
		})
	}

	archived, err := s.archive.Archive(ctx, t)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"ok":       true,
		"threadId": rootID,
		"filename": archived.Filename,
		"bytes":    archived.PDFBytes,
	}
	if archived.ObjectPath != "" {
		payload["objectPath"] = archived.ObjectPath
	}
	if archived.CommitHash != "" {
		payload["commit"] = archived.CommitHash
	}
	return payload, nil
}
