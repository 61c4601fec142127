package store

import (
	"context"
	"testing"
	"time"
)

func TestLedgerActivityQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 10, 6, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		{Persona: "quill", Kind: LedgerPost, CreatedAt: base},
		{Persona: "moss", Kind: LedgerReply, CreatedAt: base.Add(time.Hour)},
		{Persona: "quill", Kind: LedgerTriggerCheck, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if _, err := s.AppendLedger(ctx, e); err != nil {
			t.Fatalf("append %s/%s: %v", e.Persona, e.Kind, err)
		}
	}

	// trigger-check entries never count as activity.
	last, err := s.LastActivityAt(ctx)
	if err != nil {
		t.Fatalf("last activity: %v", err)
	}
	if last == nil || !last.Equal(base.Add(time.Hour)) {
		t.Fatalf("last activity = %v, want %v", last, base.Add(time.Hour))
	}

	n, err := s.CountActivitySince(ctx, base)
	if err != nil {
		t.Fatalf("count since base: %v", err)
	}
	if n != 2 {
		t.Fatalf("count since base = %d, want 2", n)
	}
	n, err = s.CountActivitySince(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("count since mid: %v", err)
	}
	if n != 1 {
		t.Fatalf("count since mid = %d, want 1", n)
	}

	lastActive, inWindow, err := s.PersonaActivity(ctx, "quill", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("persona activity: %v", err)
	}
	if lastActive == nil || !lastActive.Equal(base) {
		t.Fatalf("quill last active = %v, want %v", lastActive, base)
	}
	if inWindow != 1 {
		t.Fatalf("quill count = %d, want 1", inWindow)
	}

	lastActive, inWindow, err = s.PersonaActivity(ctx, "nobody", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("unknown persona: %v", err)
	}
	if lastActive != nil || inWindow != 0 {
		t.Fatalf("unknown persona = (%v, %d), want (nil, 0)", lastActive, inWindow)
	}

	recent, err := s.RecentLedger(ctx, 10)
	if err != nil {
		t.Fatalf("recent ledger: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent size = %d, want 3", len(recent))
	}
	if recent[0].Kind != LedgerTriggerCheck {
		t.Fatalf("newest entry kind = %q, want trigger-check", recent[0].Kind)
	}
}

func TestLedgerColdStart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	last, err := s.LastActivityAt(ctx)
	if err != nil {
		t.Fatalf("last activity: %v", err)
	}
	if last != nil {
		t.Fatalf("cold ledger last activity = %v, want nil", last)
	}

	n, err := s.CountActivitySince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("cold count = %d, want 0", n)
	}
}
