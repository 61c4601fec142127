package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"agora/internal/gate"
	"agora/internal/rbac"
	"agora/internal/scheduler"
	"agora/internal/store"
	"agora/internal/util"
)

// maxComposedRunes bounds a persona post. Generated text past the bound is
// cut with an ellipsis rather than rejected.
const maxComposedRunes = 1200

// transcriptExcerpt is how many recent thread posts the prompt quotes.
const transcriptExcerpt = 6

// EvaluateTrigger runs one scheduling decision, called on qualifying page
// views. On a trigger the persona post is produced before returning, unless
// dryRun asks for the decision alone. Skips are normal outcomes and come
// back with a reason, never as errors.
func (s *Service) EvaluateTrigger(ctx context.Context, dryRun bool) (map[string]any, error) {
	d, err := s.evaluator.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"triggered": d.Triggered,
		"checkedAt": d.CheckedAt,
		"metrics":   metricsPayload(d.Metrics),
	}
	if d.Persona != nil {
		payload["persona"] = d.Persona.Name
	}
	if d.Target != nil {
		payload["targetPostId"] = d.Target.ID
	}
	if !d.Triggered {
		payload["reason"] = d.Reason
		return payload, nil
	}
	if dryRun {
		payload["dryRun"] = true
		return payload, nil
	}

	produced, err := s.producePost(ctx, d)
	if err != nil {
		// The trigger is already on the ledger; only the content step
		// failed.
		return nil, err
	}
	for k, v := range produced {
		payload[k] = v
	}
	return payload, nil
}

// producePost turns a fired trigger into a persona post. Content comes from
// the generator when one is configured and falls back to the persona's
// canned templates, so a fired trigger always yields some content. The post
// then passes the same admission checks as any outside submission.
func (s *Service) producePost(ctx context.Context, d scheduler.Decision) (map[string]any, error) {
	persona := *d.Persona
	body, modelTag := s.compose(ctx, persona, d.Target)
	body = util.Truncate(body, maxComposedRunes)
	sessionTag := uuid.NewString()

	kind := store.LedgerPost
	candidate := store.Post{
		Body:       body,
		AuthorName: persona.Name,
		AuthorKind: store.KindSynthetic,
		Status:     store.StatusPending,
		ModelTag:   nullString(modelTag),
		SessionTag: sql.NullString{String: sessionTag, Valid: true},
	}
	if d.Target != nil {
		kind = store.LedgerReply
		candidate.ParentID = sql.NullInt64{Int64: d.Target.ID, Valid: true}
	}

	ban, err := s.store.ActiveBan(ctx, store.BanLookup{Session: sessionTag})
	if err != nil {
		return nil, err
	}
	if ban != nil {
		if ban.Kind == store.BanShadow {
			// Nothing is persisted, but the ledger entry still lands so
			// cooldowns and caps stay honest. It carries no post
			// reference.
			if _, err := s.store.AppendLedger(ctx, store.LedgerEntry{
				Persona:   persona.Name,
				Kind:      kind,
				CreatedAt: d.CheckedAt,
			}); err != nil {
				return nil, err
			}
			return map[string]any{"posted": true}, nil
		}
		return nil, errSubmissionRejected()
	}

	filters, err := s.store.ActiveFilters(ctx)
	if err != nil {
		return nil, err
	}
	screened := gate.Screen(filters, "", candidate.Body)
	if !screened.Passed {
		return nil, errProhibitedContent()
	}
	candidate.Body = screened.Body
	if screened.Flagged() {
		candidate.Flagged = true
		candidate.FlaggedTerms = nullString(strings.Join(screened.FlaggedTerms, ","))
	}
	if d.Target == nil {
		candidate.Title = nullString(store.SynthesizeTitle(candidate.Body))
	}

	saved, entry, err := s.store.InsertSyntheticPost(ctx, candidate, store.LedgerEntry{
		Persona:   persona.Name,
		Kind:      kind,
		CreatedAt: d.CheckedAt,
	})
	if err != nil {
		return nil, err
	}
	if saved.Flagged {
		s.alertModerators(saved)
	}
	return map[string]any{"posted": true, "postId": saved.ID, "ledgerId": entry.ID}, nil
}

// compose drafts the post body. The second return is the model tag to stamp,
// empty when the canned template path was taken.
func (s *Service) compose(ctx context.Context, persona scheduler.Persona, target *store.Post) (string, string) {
	fallback := persona.Templates[s.randIndex(len(persona.Templates))]
	if s.generator == nil {
		return fallback, ""
	}
	prompt, err := s.buildPrompt(ctx, persona, target)
	if err != nil {
		log.Printf("prompt build for %s failed, using template: %v", persona.Name, err)
		return fallback, ""
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("generation for %s failed, using template: %v", persona.Name, err)
		return fallback, ""
	}
	return strings.TrimSpace(text), s.generator.Model()
}

func (s *Service) buildPrompt(ctx context.Context, persona scheduler.Persona, target *store.Post) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s, posting on a small discussion forum.\n\n", persona.Name, persona.Voice)

	if target == nil || !target.ThreadID.Valid {
		b.WriteString("Write a short standalone post, two to four sentences, that opens a new discussion on a topic you find interesting. Stay in character and keep it conversational. Reply with the post text only.")
		return b.String(), nil
	}

	posts, err := s.store.ListThread(ctx, target.ThreadID.Int64)
	if err != nil {
		return "", err
	}
	if len(posts) > transcriptExcerpt {
		posts = posts[len(posts)-transcriptExcerpt:]
	}
	b.WriteString("The thread so far:\n\n")
	for _, p := range posts {
		fmt.Fprintf(&b, "%s: %s\n\n", p.AuthorName, util.Truncate(p.Body, 400))
	}
	b.WriteString("Write a reply to the last post, two to five sentences, in your own voice. Stay in character and keep it conversational. Reply with the post text only.")
	return b.String(), nil
}

func metricsPayload(m scheduler.Metrics) map[string]any {
	payload := map[string]any{
		"viewsTotal":         m.ViewsTotal,
		"viewsSinceActivity": m.ViewsSinceActivity,
		"postsSinceActivity": m.PostsSinceActivity,
		"todayActivityCount": m.TodayActivityCount,
	}
	if m.HoursSinceActivity != nil {
		payload["hoursSinceActivity"] = *m.HoursSinceActivity
	}
	return payload
}

type ActivityInput struct {
	Persona string `json:"persona"`
	Kind    string `json:"kind"`
	PostID  *int64 `json:"postId"`
}

func (in ActivityInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Persona, validation.Required),
		validation.Field(&in.Kind, validation.Required,
			validation.In(store.LedgerPost, store.LedgerReply, store.LedgerTriggerCheck)),
	)
}

// RecordActivity appends a manual ledger entry, for moderators backfilling
// persona activity that happened outside the pipeline.
func (s *Service) RecordActivity(ctx context.Context, session Session, in ActivityInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionRecordActivity) {
		return nil, errNotAuthorized()
	}
	if err := in.Validate(); err != nil {
		return nil, errValidation("invalid activity", err)
	}
	if _, ok := scheduler.PersonaByName(in.Persona); !ok {
		return nil, errValidation("unknown persona", nil)
	}
	entry := store.LedgerEntry{Persona: in.Persona, Kind: in.Kind}
	if in.PostID != nil && *in.PostID > 0 {
		if _, err := s.store.GetPost(ctx, *in.PostID); err != nil {
			return nil, err
		}
		entry.PostID = sql.NullInt64{Int64: *in.PostID, Valid: true}
	}
	saved, err := s.store.AppendLedger(ctx, entry)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entry": ledgerPayload(saved)}, nil
}

// SchedulerSettings returns the stored rows plus the effective typed values
// after defaulting.
func (s *Service) SchedulerSettings(ctx context.Context, session Session) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionViewSettings) {
		return nil, errNotAuthorized()
	}
	rows, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	values, err := s.store.SettingsMap(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]any{
			"key":       row.Key,
			"value":     row.Value,
			"updatedAt": row.UpdatedAt,
		})
	}
	return map[string]any{
		"settings":  items,
		"effective": effectivePayload(scheduler.ParseSettings(values)),
	}, nil
}

// UpdateSetting writes one scheduler setting. Writes are validated strictly;
// only reads tolerate junk values.
func (s *Service) UpdateSetting(ctx context.Context, session Session, key, value string) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionEditSettings) {
		return nil, errNotAuthorized()
	}
	value = strings.TrimSpace(value)
	if err := scheduler.ValidateSetting(key, value); err != nil {
		return nil, errValidation(err.Error(), nil)
	}
	if err := s.store.UpsertSetting(ctx, key, value); err != nil {
		return nil, err
	}
	return map[string]any{"key": key, "value": value}, nil
}

// SchedulerStatus is the operator dashboard: counters, trigger state, the
// persona roster with availability, and the recent ledger.
func (s *Service) SchedulerStatus(ctx context.Context, session Session) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionViewStatus) {
		return nil, errNotAuthorized()
	}
	now := s.now().UTC()

	values, err := s.store.SettingsMap(ctx)
	if err != nil {
		return nil, err
	}
	cfg := scheduler.ParseSettings(values)

	viewsTotal, err := s.counters.GetCounter(ctx, store.CounterViewsTotal)
	if err != nil {
		return nil, err
	}
	viewsSince, err := s.counters.GetCounter(ctx, store.CounterViewsSinceActivity)
	if err != nil {
		return nil, err
	}
	postsSince, err := s.counters.GetCounter(ctx, store.CounterPostsSinceActivity)
	if err != nil {
		return nil, err
	}

	lastTrigger, err := s.store.LastTriggeredAt(ctx)
	if err != nil {
		return nil, err
	}
	lastActivity, err := s.store.LastActivityAt(ctx)
	if err != nil {
		return nil, err
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := s.store.CountActivitySince(ctx, dayStart)
	if err != nil {
		return nil, err
	}

	statuses, err := s.evaluator.PersonaStatuses(ctx, now, cfg)
	if err != nil {
		return nil, err
	}
	personas := make([]map[string]any, 0, len(statuses))
	for _, st := range statuses {
		item := map[string]any{
			"name":       st.Persona.Name,
			"voice":      st.Persona.Voice,
			"available":  st.Available,
			"todayCount": st.TodayCount,
		}
		if st.LastActive != nil {
			item["lastActive"] = *st.LastActive
		}
		personas = append(personas, item)
	}

	recent, err := s.store.RecentLedger(ctx, 20)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(recent))
	for _, e := range recent {
		entries = append(entries, ledgerPayload(e))
	}

	payload := map[string]any{
		"effective":          effectivePayload(cfg),
		"viewsTotal":         viewsTotal,
		"viewsSinceActivity": viewsSince,
		"postsSinceActivity": postsSince,
		"todayActivityCount": today,
		"personas":           personas,
		"recentLedger":       entries,
		"searchHealthy":      s.search != nil && s.search.Healthy(),
	}
	if lastTrigger != nil {
		payload["lastTriggeredAt"] = *lastTrigger
	}
	if lastActivity != nil {
		payload["lastActivityAt"] = *lastActivity
	}
	return payload, nil
}

func effectivePayload(cfg scheduler.Settings) map[string]any {
	return map[string]any{
		scheduler.KeyEnabled:            cfg.Enabled,
		scheduler.KeyMinHoursBetween:    cfg.MinHoursBetween,
		scheduler.KeyPostsThreshold:     cfg.PostsThreshold,
		scheduler.KeyViewsThreshold:     cfg.ViewsThreshold,
		scheduler.KeyTriggerProbability: cfg.TriggerProbability,
		scheduler.KeyGlobalDailyCap:     cfg.GlobalDailyCap,
		scheduler.KeyPersonaDailyCap:    cfg.PersonaDailyCap,
		scheduler.KeyPersonaCooldown:    cfg.PersonaCooldown,
	}
}
