package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"agora/internal/scheduler"
	"agora/internal/store"
)

func triggeredDecision() scheduler.Decision {
	return scheduler.Decision{
		Triggered: true,
		Persona: &scheduler.Persona{
			Name:      "quill",
			Voice:     "a long-time regular",
			Templates: []string{"Has anyone else been following the new season? I have thoughts."},
		},
		Metrics:   scheduler.Metrics{ViewsTotal: 120, ViewsSinceActivity: 40, PostsSinceActivity: 3},
		CheckedAt: testNow,
	}
}

func TestEvaluateTriggerSkipReturnsReason(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) {
			return scheduler.Decision{
				Reason:    scheduler.ReasonConditionsNotMet,
				Metrics:   scheduler.Metrics{ViewsTotal: 12},
				CheckedAt: testNow,
			}, nil
		},
	}

	payload, err := svc.EvaluateTrigger(context.Background(), false)
	if err != nil {
		t.Fatalf("EvaluateTrigger() error = %v", err)
	}
	if payload["triggered"] != false || payload["reason"] != scheduler.ReasonConditionsNotMet {
		t.Fatalf("unexpected payload: %v", payload)
	}
	metrics := payload["metrics"].(map[string]any)
	if metrics["viewsTotal"] != int64(12) {
		t.Fatalf("unexpected metrics: %v", metrics)
	}
	if _, ok := payload["posted"]; ok {
		t.Fatal("a skip must not produce a post")
	}
}

func TestEvaluateTriggerDryRunSkipsProduction(t *testing.T) {
	fs := &fakeStore{
		insertSyntheticPostFn: func(_ context.Context, p store.Post, e store.LedgerEntry) (store.Post, store.LedgerEntry, error) {
			t.Fatal("dry run must not persist anything")
			return p, e, nil
		},
	}
	svc := newTestService(fs)
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) { return triggeredDecision(), nil },
	}

	payload, err := svc.EvaluateTrigger(context.Background(), true)
	if err != nil {
		t.Fatalf("EvaluateTrigger() error = %v", err)
	}
	if payload["triggered"] != true || payload["dryRun"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["persona"] != "quill" {
		t.Fatalf("expected chosen persona in payload, got %v", payload["persona"])
	}
}

func TestEvaluateTriggerFallsBackToTemplate(t *testing.T) {
	var candidate store.Post
	var entry store.LedgerEntry
	fs := &fakeStore{
		insertSyntheticPostFn: func(_ context.Context, p store.Post, e store.LedgerEntry) (store.Post, store.LedgerEntry, error) {
			candidate = p
			entry = e
			p.ID = 88
			e.ID = 17
			return p, e, nil
		},
	}
	svc := newTestService(fs)
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) { return triggeredDecision(), nil },
	}
	svc.generator = &fakeGenerator{
		generateFn: func(context.Context, string) (string, error) {
			return "", errors.New("model overloaded")
		},
		model: "tinylm-2",
	}

	payload, err := svc.EvaluateTrigger(context.Background(), false)
	if err != nil {
		t.Fatalf("EvaluateTrigger() error = %v", err)
	}
	if payload["posted"] != true || payload["postId"] != int64(88) || payload["ledgerId"] != int64(17) {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if candidate.Body != "Has anyone else been following the new season? I have thoughts." {
		t.Fatalf("expected the canned template body, got %q", candidate.Body)
	}
	if candidate.ModelTag.Valid {
		t.Fatalf("template fallback must not claim a model tag, got %q", candidate.ModelTag.String)
	}
	if !candidate.SessionTag.Valid || candidate.SessionTag.String == "" {
		t.Fatal("scheduled posts carry a fresh session tag")
	}
	if candidate.Status != store.StatusPending {
		t.Fatalf("scheduled posts queue for review, got %s", candidate.Status)
	}
	if !candidate.Title.Valid {
		t.Fatal("top-level scheduled posts get a synthesized title")
	}
	if entry.Persona != "quill" || entry.Kind != store.LedgerPost {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if !entry.CreatedAt.Equal(testNow) {
		t.Fatalf("ledger entry must carry the decision time, got %v", entry.CreatedAt)
	}
}

func TestEvaluateTriggerStampsGeneratedContent(t *testing.T) {
	var candidate store.Post
	fs := &fakeStore{
		insertSyntheticPostFn: func(_ context.Context, p store.Post, e store.LedgerEntry) (store.Post, store.LedgerEntry, error) {
			candidate = p
			p.ID = 89
			e.ID = 18
			return p, e, nil
		},
	}
	svc := newTestService(fs)
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) { return triggeredDecision(), nil },
	}
	svc.generator = &fakeGenerator{
		generateFn: func(_ context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "quill") {
				t.Fatalf("prompt must introduce the persona, got %q", prompt)
			}
			return "  A freshly generated opening post.  ", nil
		},
		model: "tinylm-2",
	}

	if _, err := svc.EvaluateTrigger(context.Background(), false); err != nil {
		t.Fatalf("EvaluateTrigger() error = %v", err)
	}
	if candidate.Body != "A freshly generated opening post." {
		t.Fatalf("expected trimmed generated body, got %q", candidate.Body)
	}
	if candidate.ModelTag.String != "tinylm-2" {
		t.Fatalf("expected model tag on generated content, got %q", candidate.ModelTag.String)
	}
}

func TestEvaluateTriggerReplyTargetsPost(t *testing.T) {
	decision := triggeredDecision()
	decision.Target = &store.Post{
		ID:       55,
		ThreadID: sql.NullInt64{Int64: 9, Valid: true},
		Body:     "The root post under discussion.",
	}

	var candidate store.Post
	var entry store.LedgerEntry
	fs := &fakeStore{
		listThreadFn: func(_ context.Context, rootID int64) ([]store.Post, error) {
			if rootID != 9 {
				t.Fatalf("expected transcript of thread 9, got %d", rootID)
			}
			return []store.Post{
				{ID: 9, AuthorName: "casual_visitor", Body: "The root post under discussion."},
				{ID: 55, AuthorName: "drive_by", Body: "A long reply that deserves an answer."},
			}, nil
		},
		insertSyntheticPostFn: func(_ context.Context, p store.Post, e store.LedgerEntry) (store.Post, store.LedgerEntry, error) {
			candidate = p
			entry = e
			p.ID = 90
			e.ID = 19
			return p, e, nil
		},
	}
	svc := newTestService(fs)
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) { return decision, nil },
	}
	svc.generator = &fakeGenerator{
		generateFn: func(_ context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "The thread so far") || !strings.Contains(prompt, "drive_by") {
				t.Fatalf("reply prompt must quote the transcript, got %q", prompt)
			}
			return "A reply in quill's voice.", nil
		},
	}

	if _, err := svc.EvaluateTrigger(context.Background(), false); err != nil {
		t.Fatalf("EvaluateTrigger() error = %v", err)
	}
	if !candidate.ParentID.Valid || candidate.ParentID.Int64 != 55 {
		t.Fatalf("expected reply parent 55, got %+v", candidate.ParentID)
	}
	if candidate.Title.Valid {
		t.Fatal("replies carry no title")
	}
	if entry.Kind != store.LedgerReply {
		t.Fatalf("expected reply ledger entry, got %s", entry.Kind)
	}
}

func TestEvaluateTriggerShadowBanStillLogsLedger(t *testing.T) {
	var entry store.LedgerEntry
	fs := &fakeStore{
		activeBanFn: func(_ context.Context, l store.BanLookup) (*store.Ban, error) {
			if l.Session == "" {
				t.Fatal("pipeline ban lookup must carry the session tag")
			}
			return &store.Ban{ID: 1, Scope: store.BanScopeSession, Value: l.Session, Kind: store.BanShadow, Active: true}, nil
		},
		appendLedgerFn: func(_ context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
			entry = e
			e.ID = 21
			return e, nil
		},
		insertSyntheticPostFn: func(_ context.Context, p store.Post, e store.LedgerEntry) (store.Post, store.LedgerEntry, error) {
			t.Fatal("a shadow-banned persona must not persist a post")
			return p, e, nil
		},
	}
	svc := newTestService(fs)
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) { return triggeredDecision(), nil },
	}

	payload, err := svc.EvaluateTrigger(context.Background(), false)
	if err != nil {
		t.Fatalf("EvaluateTrigger() error = %v", err)
	}
	if payload["posted"] != true {
		t.Fatalf("expected fabricated success, got %v", payload)
	}
	if _, ok := payload["postId"]; ok {
		t.Fatal("fabricated success carries no post id")
	}
	if entry.Persona != "quill" || entry.PostID.Valid {
		t.Fatalf("cooldown entry must have no post reference: %+v", entry)
	}
}

func TestEvaluateTriggerFullBanFailsProduction(t *testing.T) {
	fs := &fakeStore{
		activeBanFn: func(context.Context, store.BanLookup) (*store.Ban, error) {
			return &store.Ban{ID: 1, Scope: store.BanScopeSession, Value: "x", Kind: store.BanFull, Active: true}, nil
		},
	}
	svc := newTestService(fs)
	svc.evaluator = &fakeEvaluator{
		evaluateFn: func(context.Context) (scheduler.Decision, error) { return triggeredDecision(), nil },
	}

	_, err := svc.EvaluateTrigger(context.Background(), false)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "SUBMISSION_REJECTED" {
		t.Fatalf("expected SUBMISSION_REJECTED, got %v", err)
	}
}

func TestRecordActivityValidatesPersona(t *testing.T) {
	svc := newTestService(&fakeStore{})
	session := Session{UserID: 1, Role: "moderator"}

	_, err := svc.RecordActivity(context.Background(), session, ActivityInput{Persona: "nobody", Kind: store.LedgerPost})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION for unknown persona, got %v", err)
	}

	_, err = svc.RecordActivity(context.Background(), session, ActivityInput{Persona: "quill", Kind: "nonsense"})
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION for unknown kind, got %v", err)
	}
}

func TestRecordActivityAppendsEntry(t *testing.T) {
	postID := int64(7)
	fs := &fakeStore{
		getPostFn: func(_ context.Context, id int64) (store.Post, error) {
			return store.Post{ID: id, Body: "The referenced post."}, nil
		},
		appendLedgerFn: func(_ context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
			if e.Persona != "quill" || e.Kind != store.LedgerReply {
				t.Fatalf("unexpected entry: %+v", e)
			}
			if !e.PostID.Valid || e.PostID.Int64 != 7 {
				t.Fatalf("expected post reference 7, got %+v", e.PostID)
			}
			e.ID = 23
			return e, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.RecordActivity(context.Background(), Session{UserID: 1, Role: "moderator"}, ActivityInput{Persona: "quill", Kind: store.LedgerReply, PostID: &postID})
	if err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}
	entry := payload["entry"].(map[string]any)
	if entry["id"] != int64(23) {
		t.Fatalf("unexpected entry payload: %v", entry)
	}
}

func TestRecordActivityMemberForbidden(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.RecordActivity(context.Background(), Session{UserID: 5, Role: "member"}, ActivityInput{Persona: "quill", Kind: store.LedgerPost})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_AUTHORIZED" {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}
}

func TestUpdateSettingValidatesStrictly(t *testing.T) {
	upserts := 0
	fs := &fakeStore{
		upsertSettingFn: func(_ context.Context, key, value string) error {
			upserts++
			if key != scheduler.KeyViewsThreshold || value != "80" {
				t.Fatalf("unexpected upsert: %s=%s", key, value)
			}
			return nil
		},
	}
	svc := newTestService(fs)
	admin := Session{UserID: 1, Role: "admin"}

	_, err := svc.UpdateSetting(context.Background(), admin, scheduler.KeyViewsThreshold, "lots")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION for junk value, got %v", err)
	}
	if upserts != 0 {
		t.Fatal("invalid value must not be stored")
	}

	payload, err := svc.UpdateSetting(context.Background(), admin, scheduler.KeyViewsThreshold, " 80 ")
	if err != nil {
		t.Fatalf("UpdateSetting() error = %v", err)
	}
	if payload["value"] != "80" || upserts != 1 {
		t.Fatalf("expected trimmed stored value, got %v (upserts=%d)", payload, upserts)
	}
}

func TestUpdateSettingModeratorForbidden(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.UpdateSetting(context.Background(), Session{UserID: 2, Role: "moderator"}, scheduler.KeyEnabled, "false")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_AUTHORIZED" {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}
}

func TestSchedulerSettingsMergesEffectiveValues(t *testing.T) {
	fs := &fakeStore{
		getSettingsFn: func(context.Context) ([]store.Setting, error) {
			return []store.Setting{{Key: scheduler.KeyViewsThreshold, Value: "80", UpdatedAt: testNow}}, nil
		},
		settingsMapFn: func(context.Context) (map[string]string, error) {
			return map[string]string{scheduler.KeyViewsThreshold: "80"}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.SchedulerSettings(context.Background(), Session{UserID: 2, Role: "moderator"})
	if err != nil {
		t.Fatalf("SchedulerSettings() error = %v", err)
	}
	effective := payload["effective"].(map[string]any)
	if effective[scheduler.KeyViewsThreshold] != 80 {
		t.Fatalf("expected parsed views threshold 80, got %v", effective[scheduler.KeyViewsThreshold])
	}
	// Unset keys fall back to defaults rather than disappearing.
	if effective[scheduler.KeyEnabled] != scheduler.DefaultSettings().Enabled {
		t.Fatalf("expected default enabled value, got %v", effective[scheduler.KeyEnabled])
	}
}

func TestSchedulerStatusCollectsDashboard(t *testing.T) {
	lastActive := testNow.Add(-3 * time.Hour)
	fs := &fakeStore{
		lastTriggeredAtFn: func(context.Context) (*time.Time, error) {
			trig := testNow.Add(-1 * time.Hour)
			return &trig, nil
		},
		lastActivityAtFn: func(context.Context) (*time.Time, error) { return &lastActive, nil },
		countActivitySinceFn: func(_ context.Context, since time.Time) (int, error) {
			if !since.Equal(time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("expected UTC midnight window, got %v", since)
			}
			return 2, nil
		},
		recentLedgerFn: func(_ context.Context, limit int) ([]store.LedgerEntry, error) {
			if limit != 20 {
				t.Fatalf("expected ledger window 20, got %d", limit)
			}
			return []store.LedgerEntry{{ID: 1, Persona: "quill", Kind: store.LedgerPost, CreatedAt: lastActive}}, nil
		},
	}
	svc := newTestService(fs)
	svc.counters = &fakeCounters{
		getFn: func(_ context.Context, name string) (int64, error) {
			switch name {
			case store.CounterViewsTotal:
				return 120, nil
			case store.CounterViewsSinceActivity:
				return 40, nil
			default:
				return 3, nil
			}
		},
	}
	svc.evaluator = &fakeEvaluator{
		statusesFn: func(_ context.Context, now time.Time, _ scheduler.Settings) ([]scheduler.PersonaStatus, error) {
			return []scheduler.PersonaStatus{{
				Persona:    scheduler.Persona{Name: "quill", Voice: "a long-time regular"},
				Available:  true,
				LastActive: &lastActive,
				TodayCount: 1,
			}}, nil
		},
	}

	payload, err := svc.SchedulerStatus(context.Background(), Session{UserID: 2, Role: "moderator"})
	if err != nil {
		t.Fatalf("SchedulerStatus() error = %v", err)
	}
	if payload["viewsTotal"] != int64(120) || payload["postsSinceActivity"] != int64(3) {
		t.Fatalf("unexpected counters: %v", payload)
	}
	if payload["todayActivityCount"] != 2 {
		t.Fatalf("unexpected today count: %v", payload["todayActivityCount"])
	}
	personas := payload["personas"].([]map[string]any)
	if len(personas) != 1 || personas[0]["available"] != true {
		t.Fatalf("unexpected personas: %v", personas)
	}
	if payload["searchHealthy"] != false {
		t.Fatal("no index configured, searchHealthy must be false")
	}
	entries := payload["recentLedger"].([]map[string]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
}
