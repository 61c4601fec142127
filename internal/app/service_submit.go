package app

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"agora/internal/email"
	"agora/internal/gate"
	"agora/internal/store"
	"agora/internal/util"
)

type AnonymousSubmission struct {
	AuthorName string `json:"authorName"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ParentID   *int64 `json:"parentId"`
}

func (in AnonymousSubmission) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.AuthorName, validation.RuneLength(0, maxAuthorRunes)),
		validation.Field(&in.Title, validation.RuneLength(0, maxTitleRunes)),
		validation.Field(&in.Body, validation.Required, validation.By(minBodyRule), validation.RuneLength(0, maxBodyRunes)),
	)
}

type MemberSubmission struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ParentID *int64 `json:"parentId"`
}

func (in MemberSubmission) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.RuneLength(0, maxTitleRunes)),
		validation.Field(&in.Body, validation.Required, validation.By(minBodyRule), validation.RuneLength(0, maxBodyRunes)),
	)
}

type CredentialSubmission struct {
	Credential string `json:"credential"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ParentID   *int64 `json:"parentId"`
	ModelTag   string `json:"modelTag"`
	SessionTag string `json:"sessionTag"`
}

func (in CredentialSubmission) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Credential, validation.Required),
		validation.Field(&in.Title, validation.RuneLength(0, maxTitleRunes)),
		validation.Field(&in.Body, validation.Required, validation.By(minBodyRule), validation.RuneLength(0, maxBodyRunes)),
		validation.Field(&in.ModelTag, validation.RuneLength(0, maxAuthorRunes)),
		validation.Field(&in.SessionTag, validation.RuneLength(0, maxAuthorRunes)),
	)
}

// minBodyRule enforces the minimum body length on the trimmed rune count, the
// same measure the store applies. Validation runs before the ban check on
// purpose: a too-short body fails identically for everyone, shadow-banned
// submitters included.
func minBodyRule(value interface{}) error {
	s, _ := value.(string)
	if utf8.RuneCountInString(strings.TrimSpace(s)) < store.MinBodyLength {
		return errBodyTooShort{}
	}
	return nil
}

type errBodyTooShort struct{}

func (errBodyTooShort) Error() string { return "must be at least 10 characters" }

// SubmitAnonymous accepts a post from a visitor without an account. It lands
// in the moderation queue.
func (s *Service) SubmitAnonymous(ctx context.Context, in AnonymousSubmission, addr string) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid submission", err)
	}
	author := strings.TrimSpace(in.AuthorName)
	if author == "" {
		author = "anonymous"
	}
	candidate := store.Post{
		Body:       in.Body,
		AuthorName: author,
		AuthorKind: store.KindHuman,
		Status:     store.StatusPending,
		Address:    nullString(addr),
	}
	setTitle(&candidate, in.Title)
	setParent(&candidate, in.ParentID)
	return s.admit(ctx, candidate, store.BanLookup{Address: addr})
}

// SubmitAuthenticated accepts a post from a logged-in member. Members publish
// directly; a flag match still routes the post to the review queue without
// unpublishing it.
func (s *Service) SubmitAuthenticated(ctx context.Context, session Session, in MemberSubmission, addr string) (map[string]any, error) {
	if !session.Authenticated() {
		return nil, errNotAuthenticated()
	}
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid submission", err)
	}
	candidate := store.Post{
		Body:       in.Body,
		AuthorName: session.UserName,
		AuthorKind: store.KindHuman,
		UserID:     sql.NullInt64{Int64: session.UserID, Valid: true},
		Status:     store.StatusApproved,
		Address:    nullString(addr),
	}
	setTitle(&candidate, in.Title)
	setParent(&candidate, in.ParentID)
	return s.admit(ctx, candidate, store.BanLookup{
		Actor:   store.ActorValueUser(session.UserID),
		Address: addr,
	})
}

// SubmitWithCredential accepts a post from a registered synthetic identity.
// Trusted identities publish directly; the rest queue for review.
func (s *Service) SubmitWithCredential(ctx context.Context, in CredentialSubmission, addr string) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid submission", err)
	}
	ident, err := s.identity.VerifyCredential(ctx, in.Credential)
	if err != nil {
		return nil, err
	}
	status := store.StatusPending
	if ident.Trusted {
		status = store.StatusApproved
	}
	candidate := store.Post{
		Body:        in.Body,
		AuthorName:  ident.Name,
		AuthorKind:  store.KindSynthetic,
		SyntheticID: sql.NullInt64{Int64: ident.ID, Valid: true},
		Status:      status,
		ModelTag:    nullString(strings.TrimSpace(in.ModelTag)),
		SessionTag:  nullString(strings.TrimSpace(in.SessionTag)),
		Address:     nullString(addr),
	}
	setTitle(&candidate, in.Title)
	setParent(&candidate, in.ParentID)
	return s.admit(ctx, candidate, store.BanLookup{
		Actor:   store.ActorValueSynthetic(ident.ID),
		Address: addr,
		Session: candidate.SessionTag.String,
	})
}

// admit runs the shared admission sequence: ban check, word filters, then
// persistence. The ban check comes first so a shadow-banned submitter learns
// nothing from filter behavior.
func (s *Service) admit(ctx context.Context, candidate store.Post, lookup store.BanLookup) (map[string]any, error) {
	ban, err := s.store.ActiveBan(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if ban != nil {
		if ban.Kind == store.BanShadow {
			return s.fabricateAccepted(), nil
		}
		return nil, errSubmissionRejected()
	}

	filters, err := s.store.ActiveFilters(ctx)
	if err != nil {
		return nil, err
	}
	screened := gate.Screen(filters, candidate.Title.String, candidate.Body)
	if !screened.Passed {
		return nil, errProhibitedContent()
	}
	candidate.Body = screened.Body
	if candidate.Title.Valid {
		candidate.Title.String = screened.Title
	}
	if screened.Flagged() {
		candidate.Flagged = true
		candidate.FlaggedTerms = nullString(strings.Join(screened.FlaggedTerms, ","))
	}

	var saved store.Post
	if candidate.SyntheticID.Valid {
		saved, err = s.store.InsertIdentityPost(ctx, candidate)
	} else {
		saved, err = s.store.InsertPost(ctx, candidate)
	}
	if err != nil {
		return nil, err
	}

	if saved.Status == store.StatusApproved {
		s.indexPost(saved)
		s.countHumanPost(ctx, saved)
	}
	if saved.Flagged {
		s.alertModerators(saved)
	}
	return acceptedPayload(saved.ID, saved.Status), nil
}

// countHumanPost bumps the posts-since-activity counter mirror. The scheduler
// decides from the database count, so a failed bump is only logged.
func (s *Service) countHumanPost(ctx context.Context, p store.Post) {
	if p.AuthorKind != store.KindHuman {
		return
	}
	if _, err := s.counters.IncrementCounter(ctx, store.CounterPostsSinceActivity, 1); err != nil {
		log.Printf("count human post %d: %v", p.ID, err)
	}
}

// fabricateAccepted is what a shadow-banned submitter sees: the exact shape
// of a pending acceptance, with nothing persisted. The fake id is derived
// from the clock so repeated submissions do not all claim the same id.
func (s *Service) fabricateAccepted() map[string]any {
	id := s.now().UTC().Unix() % 1_000_000
	return acceptedPayload(id, store.StatusPending)
}

func acceptedPayload(id int64, status string) map[string]any {
	return map[string]any{"ok": true, "id": id, "status": status}
}

func (s *Service) indexPost(p store.Post) {
	if s.search != nil {
		s.search.IndexPost(p)
	}
}

func (s *Service) removeFromIndex(id int64) {
	if s.search != nil {
		s.search.RemovePost(id)
	}
}

// alertModerators mails the alert address about a flagged post. Sending is
// fire-and-forget; a dead SMTP host must not fail the submission.
func (s *Service) alertModerators(p store.Post) {
	if s.mail == nil || !s.mail.IsConfigured() || s.cfg.AlertEmail == "" {
		return
	}
	alert := email.FlagAlert{
		PostID:     p.ID,
		AuthorName: p.AuthorName,
		Status:     p.Status,
		Excerpt:    util.Truncate(p.Body, 240),
	}
	if p.FlaggedTerms.Valid && p.FlaggedTerms.String != "" {
		alert.Terms = strings.Split(p.FlaggedTerms.String, ",")
	}
	to := s.cfg.AlertEmail
	go func() {
		if err := s.mail.SendFlagAlert(to, alert); err != nil {
			log.Printf("flag alert for post %d failed: %v", p.ID, err)
		}
	}()
}

func setTitle(p *store.Post, title string) {
	p.Title = nullString(strings.TrimSpace(title))
}

func setParent(p *store.Post, parentID *int64) {
	if parentID != nil && *parentID > 0 {
		p.ParentID = sql.NullInt64{Int64: *parentID, Valid: true}
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
