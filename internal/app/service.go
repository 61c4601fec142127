package app

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"agora/internal/archive"
	"agora/internal/auth"
	"agora/internal/config"
	"agora/internal/counter"
	"agora/internal/email"
	"agora/internal/generate"
	"agora/internal/identity"
	"agora/internal/rbac"
	"agora/internal/scheduler"
	"agora/internal/search"
	"agora/internal/store"
)

type Session struct {
	Token     string
	UserID    int64
	UserName  string
	Role      string
	ExpiresAt time.Time
}

// Authenticated reports whether the session belongs to a logged-in account,
// as opposed to the zero session handlers pass for anonymous callers.
func (s Session) Authenticated() bool {
	return s.UserID != 0
}

const (
	maxTitleRunes  = 200
	maxAuthorRunes = 60
	maxBodyRunes   = 20000

	defaultPageSize = 30
	maxPageSize     = 100
)

// dataStore is the slice of the storage layer the service operates through.
// One method per query keeps fakes trivial in tests.
type dataStore interface {
	// accounts and identities
	CreateUser(ctx context.Context, name, passwordHash, role string) (*store.User, error)
	GetUserByName(ctx context.Context, name string) (*store.User, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	CreateSyntheticIdentity(ctx context.Context, name, credentialHash string, trusted bool) (store.SyntheticIdentity, error)
	GetSyntheticByCredentialHash(ctx context.Context, hash string) (store.SyntheticIdentity, error)
	GetSyntheticByID(ctx context.Context, id int64) (store.SyntheticIdentity, error)
	RevokeSyntheticIdentity(ctx context.Context, id int64) error

	// posts and threads
	InsertPost(ctx context.Context, p store.Post) (store.Post, error)
	InsertIdentityPost(ctx context.Context, p store.Post) (store.Post, error)
	InsertSyntheticPost(ctx context.Context, p store.Post, e store.LedgerEntry) (store.Post, store.LedgerEntry, error)
	GetPost(ctx context.Context, id int64) (store.Post, error)
	TransitionStatus(ctx context.Context, id int64, next string, actorID int64) (store.Post, error)
	ListRoots(ctx context.Context, limit, offset int) ([]store.Post, error)
	ListThread(ctx context.Context, rootID int64) ([]store.Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]store.Post, error)
	ModerationQueue(ctx context.Context, limit int) ([]store.Post, error)

	// admission gate
	ActiveFilters(ctx context.Context) ([]store.WordFilter, error)
	ListFilters(ctx context.Context) ([]store.WordFilter, error)
	CreateFilter(ctx context.Context, f store.WordFilter) (store.WordFilter, error)
	DeleteFilter(ctx context.Context, id int64) error
	ActiveBan(ctx context.Context, l store.BanLookup) (*store.Ban, error)
	CreateBan(ctx context.Context, b store.Ban) (store.Ban, error)
	ListBans(ctx context.Context, limit int) ([]store.Ban, error)
	LiftBan(ctx context.Context, id int64) error

	// votes
	ToggleVote(ctx context.Context, userID, postID int64, sign int) (int64, int, error)
	VoteTotals(ctx context.Context, postIDs []int64, userID int64) ([]store.VoteTotal, error)

	// scheduler surface
	GetSettings(ctx context.Context) ([]store.Setting, error)
	SettingsMap(ctx context.Context) (map[string]string, error)
	UpsertSetting(ctx context.Context, key, value string) error
	AppendLedger(ctx context.Context, e store.LedgerEntry) (store.LedgerEntry, error)
	RecentLedger(ctx context.Context, limit int) ([]store.LedgerEntry, error)
	LastActivityAt(ctx context.Context) (*time.Time, error)
	CountActivitySince(ctx context.Context, since time.Time) (int, error)
	LastTriggeredAt(ctx context.Context) (*time.Time, error)

	Ping(ctx context.Context) error
}

// triggerEvaluator is the scheduling decision engine. The concrete
// implementation lives in the scheduler package; tests substitute fixed
// decisions.
type triggerEvaluator interface {
	Evaluate(ctx context.Context) (scheduler.Decision, error)
	PersonaStatuses(ctx context.Context, now time.Time, cfg scheduler.Settings) ([]scheduler.PersonaStatus, error)
}

type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

type searchService interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
	IndexPost(p store.Post)
	RemovePost(id int64)
	Healthy() bool
}

type mailService interface {
	IsConfigured() bool
	SendFlagAlert(to string, alert email.FlagAlert) error
}

type archiveService interface {
	Archive(ctx context.Context, t archive.Transcript) (archive.Archived, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	identity  *identity.Service
	evaluator triggerEvaluator
	counters  counter.Store

	// Optional collaborators. A nil field means the feature degrades:
	// templates instead of generated text, store search instead of the
	// index, no alert mail, no archive endpoint.
	generator textGenerator
	search    searchService
	mail      mailService
	archive   archiveService

	now       func() time.Time
	randIndex func(n int) int
}

func New(
	cfg config.Config,
	st *store.Store,
	counters counter.Store,
	evaluator *scheduler.Evaluator,
	generator *generate.Client,
	searchSvc *search.Service,
	mailSvc *email.Service,
	archiveSvc *archive.Service,
) *Service {
	s := &Service{
		cfg:       cfg,
		store:     st,
		identity:  identity.NewService(st),
		evaluator: evaluator,
		counters:  counters,
		now:       time.Now,
		randIndex: rand.Intn,
	}
	// Assign optional collaborators only when present, so a nil concrete
	// pointer never hides inside a non-nil interface value.
	if generator != nil {
		s.generator = generator
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	if mailSvc != nil {
		s.mail = mailSvc
	}
	if archiveSvc != nil {
		s.archive = archiveSvc
	}
	return s
}

// Bootstrap seeds the recognized scheduler settings so operators see the
// whole editable set, then creates the bootstrap admin account when one is
// configured.
func (s *Service) Bootstrap(ctx context.Context) error {
	values, err := s.store.SettingsMap(ctx)
	if err != nil {
		return err
	}
	defaults := scheduler.DefaultSettings()
	seed := map[string]string{
		scheduler.KeyEnabled:            strconv.FormatBool(defaults.Enabled),
		scheduler.KeyMinHoursBetween:    strconv.FormatFloat(defaults.MinHoursBetween, 'f', -1, 64),
		scheduler.KeyPostsThreshold:     strconv.Itoa(defaults.PostsThreshold),
		scheduler.KeyViewsThreshold:     strconv.Itoa(defaults.ViewsThreshold),
		scheduler.KeyTriggerProbability: strconv.FormatFloat(defaults.TriggerProbability, 'f', -1, 64),
		scheduler.KeyGlobalDailyCap:     strconv.Itoa(defaults.GlobalDailyCap),
		scheduler.KeyPersonaDailyCap:    strconv.Itoa(defaults.PersonaDailyCap),
		scheduler.KeyPersonaCooldown:    strconv.FormatFloat(defaults.PersonaCooldown, 'f', -1, 64),
	}
	for key, value := range seed {
		if _, ok := values[key]; ok {
			continue
		}
		if err := s.store.UpsertSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return s.identity.EnsureAdmin(ctx, s.cfg.AdminName, s.cfg.AdminPassword)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Register creates a member account and logs it straight in.
func (s *Service) Register(ctx context.Context, name, password string) (Session, error) {
	user, err := s.identity.Register(ctx, name, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) Login(ctx context.Context, name, password string) (Session, error) {
	user, err := s.identity.Login(ctx, name, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user *store.User) (Session, error) {
	expiresAt := s.now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, user.Role, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token and reloads the account, so role
// changes take effect before the token expires.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID())
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Threads lists approved root posts, newest first.
func (s *Service) Threads(ctx context.Context, limit, offset int) (map[string]any, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	roots, err := s.store.ListRoots(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(roots))
	for _, p := range roots {
		item := postPayload(p)
		item["replyCount"] = p.ReplyCount
		items = append(items, item)
	}
	return map[string]any{"threads": items, "limit": limit, "offset": offset}, nil
}

// Thread returns one thread in reading order. A logged-in viewer also gets
// their own vote on each post.
func (s *Service) Thread(ctx context.Context, rootID int64, viewerID int64) (map[string]any, error) {
	posts, err := s.store.ListThread(ctx, rootID)
	if err != nil {
		return nil, err
	}
	var myVotes map[int64]int
	if viewerID != 0 && len(posts) > 0 {
		ids := make([]int64, 0, len(posts))
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
		totals, err := s.store.VoteTotals(ctx, ids, viewerID)
		if err != nil {
			return nil, err
		}
		myVotes = make(map[int64]int, len(totals))
		for _, t := range totals {
			myVotes[t.PostID] = t.MyVote
		}
	}
	items := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		item := postPayload(p)
		if v, ok := myVotes[p.ID]; ok && v != 0 {
			item["myVote"] = v
		}
		items = append(items, item)
	}
	return map[string]any{"threadId": rootID, "posts": items, "count": len(items)}, nil
}

// ToggleVote applies one vote press: same sign removes the vote, the other
// sign flips it.
func (s *Service) ToggleVote(ctx context.Context, session Session, postID int64, sign int) (map[string]any, error) {
	if !session.Authenticated() {
		return nil, errNotAuthenticated()
	}
	if sign != 1 && sign != -1 {
		return nil, errValidation("sign must be 1 or -1", nil)
	}
	score, myVote, err := s.store.ToggleVote(ctx, session.UserID, postID, sign)
	if err != nil {
		return nil, err
	}
	return map[string]any{"postId": postID, "score": score, "myVote": myVote}, nil
}

// VoteSummary returns aggregate scores for a set of posts, plus the viewer's
// own votes when logged in.
func (s *Service) VoteSummary(ctx context.Context, postIDs []int64, viewerID int64) (map[string]any, error) {
	if len(postIDs) == 0 {
		return map[string]any{"votes": []map[string]any{}}, nil
	}
	if len(postIDs) > maxPageSize {
		return nil, errValidation("too many ids", nil)
	}
	totals, err := s.store.VoteTotals(ctx, postIDs, viewerID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(totals))
	for _, t := range totals {
		item := map[string]any{"postId": t.PostID, "score": t.Score}
		if viewerID != 0 {
			item["myVote"] = t.MyVote
		}
		items = append(items, item)
	}
	return map[string]any{"votes": items}, nil
}

type RegisterIdentityInput struct {
	Name    string `json:"name"`
	Trusted bool   `json:"trusted"`
}

func (in RegisterIdentityInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(2, maxAuthorRunes)),
	)
}

// RegisterIdentity issues a credential for a new synthetic identity. Anyone
// may register one; marking it trusted takes admin rights. The credential
// appears in this response and never again.
func (s *Service) RegisterIdentity(ctx context.Context, session Session, in RegisterIdentityInput) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid identity", err)
	}
	if in.Trusted && !s.Can(session.Role, rbac.ActionTrustIdentities) {
		return nil, errNotAuthorized()
	}
	reg, err := s.identity.RegisterSynthetic(ctx, in.Name, in.Trusted)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":         reg.Identity.ID,
		"name":       reg.Identity.Name,
		"trusted":    reg.Identity.Trusted,
		"credential": reg.Credential,
	}, nil
}

// RevokeIdentity invalidates an identity's credential. Its posts survive.
func (s *Service) RevokeIdentity(ctx context.Context, session Session, id int64) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionTrustIdentities) {
		return nil, errNotAuthorized()
	}
	if err := s.identity.Revoke(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "id": id}, nil
}

// postPayload is the public shape of a post. Status, flags and the submitter
// address stay server-side.
func postPayload(p store.Post) map[string]any {
	payload := map[string]any{
		"id":         p.ID,
		"body":       p.Body,
		"authorName": p.AuthorName,
		"authorKind": p.AuthorKind,
		"score":      p.Score,
		"createdAt":  p.CreatedAt,
	}
	if p.Title.Valid {
		payload["title"] = p.Title.String
	}
	if p.ParentID.Valid {
		payload["parentId"] = p.ParentID.Int64
	}
	if p.ThreadID.Valid {
		payload["threadId"] = p.ThreadID.Int64
	}
	return payload
}

// reviewPayload adds the moderation-only fields on top of the public shape.
func reviewPayload(p store.Post) map[string]any {
	payload := postPayload(p)
	payload["status"] = p.Status
	payload["flagged"] = p.Flagged
	if p.FlaggedTerms.Valid && p.FlaggedTerms.String != "" {
		payload["flaggedTerms"] = strings.Split(p.FlaggedTerms.String, ",")
	}
	if p.ModelTag.Valid {
		payload["modelTag"] = p.ModelTag.String
	}
	if p.SessionTag.Valid {
		payload["sessionTag"] = p.SessionTag.String
	}
	if p.ModeratedBy.Valid {
		payload["moderatedBy"] = p.ModeratedBy.Int64
	}
	return payload
}

func ledgerPayload(e store.LedgerEntry) map[string]any {
	payload := map[string]any{
		"id":        e.ID,
		"persona":   e.Persona,
		"kind":      e.Kind,
		"createdAt": e.CreatedAt,
	}
	if e.PostID.Valid {
		payload["postId"] = e.PostID.Int64
	}
	return payload
}
