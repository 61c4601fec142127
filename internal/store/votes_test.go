package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func seedVoter(t *testing.T, s *Store, name string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, "hash", "member")
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func TestToggleVoteLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedVoter(t, s, "carol")
	p := seedPost(t, s, Post{Body: "an approved post to vote on", Status: StatusApproved})

	score, my, err := s.ToggleVote(ctx, u.ID, p.ID, 1)
	if err != nil || score != 1 || my != 1 {
		t.Fatalf("first upvote = (%d, %d, %v), want (1, 1, nil)", score, my, err)
	}
	score, my, err = s.ToggleVote(ctx, u.ID, p.ID, 1)
	if err != nil || score != 0 || my != 0 {
		t.Fatalf("repeat upvote = (%d, %d, %v), want (0, 0, nil)", score, my, err)
	}
	score, my, err = s.ToggleVote(ctx, u.ID, p.ID, -1)
	if err != nil || score != -1 || my != -1 {
		t.Fatalf("downvote = (%d, %d, %v), want (-1, -1, nil)", score, my, err)
	}
	score, my, err = s.ToggleVote(ctx, u.ID, p.ID, 1)
	if err != nil || score != 1 || my != 1 {
		t.Fatalf("flip to upvote = (%d, %d, %v), want (1, 1, nil)", score, my, err)
	}

	// The stored aggregate must agree with the surviving vote rows.
	sum, err := s.SumVoteRows(ctx, p.ID)
	if err != nil {
		t.Fatalf("sum vote rows: %v", err)
	}
	got, err := s.GetPost(ctx, p.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Score != sum || got.Score != 1 {
		t.Fatalf("stored score = %d, row sum = %d, want both 1", got.Score, sum)
	}

	if _, _, err := s.ToggleVote(ctx, u.ID, p.ID, 0); err == nil {
		t.Fatal("zero sign accepted")
	}
}

func TestToggleVoteRequiresApprovedPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedVoter(t, s, "dave")
	pending := seedPost(t, s, Post{Body: "a pending post nobody can vote on"})
	if _, _, err := s.ToggleVote(ctx, u.ID, pending.ID, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("pending vote err = %v, want ErrNoRows", err)
	}
	if _, _, err := s.ToggleVote(ctx, u.ID, 555555, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing post vote err = %v, want ErrNoRows", err)
	}
}

func TestVoteTotalsReportsCallerSign(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1 := seedVoter(t, s, "erin")
	u2 := seedVoter(t, s, "frank")
	p1 := seedPost(t, s, Post{Body: "first post gathering votes", Status: StatusApproved})
	p2 := seedPost(t, s, Post{Body: "second post gathering votes", Status: StatusApproved})

	for _, v := range []struct {
		user *User
		post int64
		sign int
	}{
		{u1, p1.ID, 1},
		{u2, p1.ID, 1},
		{u1, p2.ID, -1},
	} {
		if _, _, err := s.ToggleVote(ctx, v.user.ID, v.post, v.sign); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	totals, err := s.VoteTotals(ctx, []int64{p1.ID, p2.ID}, u1.ID)
	if err != nil {
		t.Fatalf("vote totals: %v", err)
	}
	byPost := map[int64]VoteTotal{}
	for _, vt := range totals {
		byPost[vt.PostID] = vt
	}
	if got := byPost[p1.ID]; got.Score != 2 || got.MyVote != 1 {
		t.Fatalf("p1 total = %+v, want score 2 my 1", got)
	}
	if got := byPost[p2.ID]; got.Score != -1 || got.MyVote != -1 {
		t.Fatalf("p2 total = %+v, want score -1 my -1", got)
	}

	anon, err := s.VoteTotals(ctx, []int64{p1.ID}, 0)
	if err != nil {
		t.Fatalf("anonymous totals: %v", err)
	}
	if len(anon) != 1 || anon[0].MyVote != 0 {
		t.Fatalf("anonymous total = %+v, want my vote 0", anon)
	}

	none, err := s.VoteTotals(ctx, nil, u1.ID)
	if err != nil || none != nil {
		t.Fatalf("empty totals = (%v, %v), want (nil, nil)", none, err)
	}
}
