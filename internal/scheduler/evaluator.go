// Package scheduler decides, on each qualifying page view, whether a
// synthetic persona should post, which persona, and in response to what.
// Every decision is recorded in the activity ledger.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"agora/internal/counter"
	"agora/internal/store"
)

// Skip reasons. A skip is a normal outcome, not an error.
const (
	ReasonDisabled            = "disabled"
	ReasonDailyLimit          = "daily-limit"
	ReasonConditionsNotMet    = "conditions-not-met"
	ReasonNoAvailablePersonas = "no-available-personas"
	ReasonNoTargetPost        = "no-target-post"
)

// targetWindow bounds how far back the evaluator looks for a human post to
// respond to.
const targetWindow = 7 * 24 * time.Hour

// Store is the slice of the data layer the evaluator reads and writes. All
// calls inside one evaluation run under the scheduler lock, so they see a
// consistent ledger.
type Store interface {
	SettingsMap(ctx context.Context) (map[string]string, error)
	LastActivityAt(ctx context.Context) (*time.Time, error)
	CountHumanApprovedSince(ctx context.Context, since time.Time) (int, error)
	CountActivitySince(ctx context.Context, since time.Time) (int, error)
	PersonaActivity(ctx context.Context, persona string, windowStart time.Time) (*time.Time, int, error)
	LatestHumanTarget(ctx context.Context, windowStart time.Time) (*store.Post, error)
	AppendLedger(ctx context.Context, e store.LedgerEntry) (store.LedgerEntry, error)
	MarkTriggered(ctx context.Context, at time.Time) error
	WithSchedulerLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics carries the numbers a decision was computed from, for
// observability on skip responses and the status view.
type Metrics struct {
	ViewsTotal         int64
	ViewsSinceActivity int64
	PostsSinceActivity int
	// HoursSinceActivity is nil on a cold system, which counts as
	// infinitely long ago.
	HoursSinceActivity *float64
	TodayActivityCount int
}

// Decision is the outcome of one evaluation. When Triggered is false, Reason
// holds the skip reason. Target may be nil on a trigger; the pipeline then
// posts top-level.
type Decision struct {
	Triggered bool
	Reason    string
	Persona   *Persona
	Target    *store.Post
	Metrics   Metrics
	CheckedAt time.Time
}

// Evaluator runs the scheduling decision. The random draws and the clock are
// injectable fields so decisions are reproducible in tests.
type Evaluator struct {
	store    Store
	counters counter.Store
	roster   []Persona

	now       func() time.Time
	randFloat func() float64
	randIndex func(n int) int
}

func New(st Store, counters counter.Store) *Evaluator {
	return &Evaluator{
		store:     st,
		counters:  counters,
		roster:    Roster(),
		now:       time.Now,
		randFloat: rand.Float64,
		randIndex: rand.Intn,
	}
}

// Evaluate runs one scheduling decision. The view counters are incremented
// unconditionally and atomically before the serialized decision section, so
// even a disabled scheduler keeps counting traffic.
func (e *Evaluator) Evaluate(ctx context.Context) (Decision, error) {
	now := e.now().UTC()
	d := Decision{CheckedAt: now}

	total, err := e.counters.IncrementCounter(ctx, store.CounterViewsTotal, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("count view: %w", err)
	}
	viewsSince, err := e.counters.IncrementCounter(ctx, store.CounterViewsSinceActivity, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("count view since activity: %w", err)
	}
	d.Metrics.ViewsTotal = total
	d.Metrics.ViewsSinceActivity = viewsSince

	err = e.store.WithSchedulerLock(ctx, func(ctx context.Context) error {
		return e.decide(ctx, now, &d)
	})
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

func (e *Evaluator) decide(ctx context.Context, now time.Time, d *Decision) error {
	values, err := e.store.SettingsMap(ctx)
	if err != nil {
		return err
	}
	cfg := ParseSettings(values)
	if !cfg.Enabled {
		d.Reason = ReasonDisabled
		return nil
	}

	lastActivity, err := e.store.LastActivityAt(ctx)
	if err != nil {
		return err
	}
	var activitySince time.Time
	if lastActivity != nil {
		activitySince = *lastActivity
		hours := now.Sub(*lastActivity).Hours()
		d.Metrics.HoursSinceActivity = &hours
	}

	postsSince, err := e.store.CountHumanApprovedSince(ctx, activitySince)
	if err != nil {
		return err
	}
	d.Metrics.PostsSinceActivity = postsSince

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := e.store.CountActivitySince(ctx, dayStart)
	if err != nil {
		return err
	}
	d.Metrics.TodayActivityCount = today
	if today >= cfg.GlobalDailyCap {
		d.Reason = ReasonDailyLimit
		return nil
	}

	hoursOK := lastActivity == nil || now.Sub(*lastActivity).Hours() >= cfg.MinHoursBetween
	volumeOK := postsSince >= cfg.PostsThreshold || d.Metrics.ViewsSinceActivity >= int64(cfg.ViewsThreshold)
	if !hoursOK || !volumeOK {
		d.Reason = ReasonConditionsNotMet
		return nil
	}
	if e.randFloat() > cfg.TriggerProbability {
		d.Reason = ReasonConditionsNotMet
		return nil
	}

	available, err := e.Available(ctx, now, cfg)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		d.Reason = ReasonNoAvailablePersonas
		return nil
	}
	chosen := available[e.randIndex(len(available))]
	d.Persona = &chosen

	target, err := e.store.LatestHumanTarget(ctx, now.Add(-targetWindow))
	if err != nil {
		return err
	}
	d.Target = target

	// The consultation is recorded even if the downstream post fails.
	if _, err := e.store.AppendLedger(ctx, store.LedgerEntry{
		Persona:   chosen.Name,
		Kind:      store.LedgerTriggerCheck,
		CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := e.store.MarkTriggered(ctx, now); err != nil {
		return err
	}
	if err := e.counters.ResetCounters(ctx, store.CounterViewsSinceActivity, store.CounterPostsSinceActivity); err != nil {
		return fmt.Errorf("reset activity counters: %w", err)
	}

	d.Triggered = true
	return nil
}

// PersonaStatus reports one roster persona's eligibility inputs.
type PersonaStatus struct {
	Persona    Persona
	Available  bool
	LastActive *time.Time
	TodayCount int
}

// PersonaStatuses computes cooldown and daily-cap eligibility for the whole
// roster. Only post and reply ledger entries count; a trigger-check never
// makes a persona unavailable.
func (e *Evaluator) PersonaStatuses(ctx context.Context, now time.Time, cfg Settings) ([]PersonaStatus, error) {
	cooldown := time.Duration(cfg.PersonaCooldown * float64(time.Hour))
	windowStart := now.Add(-24 * time.Hour)

	statuses := make([]PersonaStatus, 0, len(e.roster))
	for _, p := range e.roster {
		lastActive, count, err := e.store.PersonaActivity(ctx, p.Name, windowStart)
		if err != nil {
			return nil, fmt.Errorf("persona %s activity: %w", p.Name, err)
		}
		st := PersonaStatus{Persona: p, LastActive: lastActive, TodayCount: count}
		onCooldown := lastActive != nil && now.Sub(*lastActive) < cooldown
		st.Available = !onCooldown && count < cfg.PersonaDailyCap
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Available filters the roster down to the personas eligible right now.
// Filtering is deterministic; the random draw over the result happens in
// Evaluate.
func (e *Evaluator) Available(ctx context.Context, now time.Time, cfg Settings) ([]Persona, error) {
	statuses, err := e.PersonaStatuses(ctx, now, cfg)
	if err != nil {
		return nil, err
	}
	var out []Persona
	for _, st := range statuses {
		if st.Available {
			out = append(out, st.Persona)
		}
	}
	return out, nil
}
