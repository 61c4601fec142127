package store

import (
	"database/sql"
	"time"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusDeleted  = "deleted"
)

const (
	KindHuman     = "human"
	KindSynthetic = "synthetic"
	KindSystem    = "system"
)

const (
	BanScopeActor   = "actor"
	BanScopeAddress = "address"
	BanScopeSession = "session"
)

const (
	BanFull   = "full"
	BanShadow = "shadow"
	BanMute   = "mute"
)

const (
	FilterBlock   = "block"
	FilterFlag    = "flag"
	FilterReplace = "replace"
)

const (
	LedgerPost         = "post"
	LedgerReply        = "reply"
	LedgerTriggerCheck = "trigger-check"
)

type User struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

type Post struct {
	ID           int64          `db:"id"`
	Title        sql.NullString `db:"title"`
	Body         string         `db:"body"`
	AuthorName   string         `db:"author_name"`
	AuthorKind   string         `db:"author_kind"`
	UserID       sql.NullInt64  `db:"user_id"`
	SyntheticID  sql.NullInt64  `db:"synthetic_id"`
	ParentID     sql.NullInt64  `db:"parent_id"`
	ThreadID     sql.NullInt64  `db:"thread_id"`
	Status       string         `db:"status"`
	ModeratedBy  sql.NullInt64  `db:"moderated_by"`
	ModeratedAt  sql.NullTime   `db:"moderated_at"`
	ModelTag     sql.NullString `db:"model_tag"`
	SessionTag   sql.NullString `db:"session_tag"`
	Flagged      bool           `db:"flagged"`
	FlaggedTerms sql.NullString `db:"flagged_terms"`
	Address      sql.NullString `db:"address"`
	Score        int64          `db:"score"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`

	// Populated by ListRoots only.
	ReplyCount int64 `db:"reply_count"`
}

// IsRoot reports whether the post heads its own thread.
func (p Post) IsRoot() bool {
	return !p.ParentID.Valid
}

type Vote struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	PostID    int64     `db:"post_id"`
	Sign      int       `db:"sign"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type VoteTotal struct {
	PostID int64 `db:"post_id"`
	Score  int64 `db:"score"`
	MyVote int   `db:"my_vote"`
}

type Ban struct {
	ID        int64        `db:"id"`
	Scope     string       `db:"scope"`
	Value     string       `db:"value"`
	Kind      string       `db:"kind"`
	Reason    string       `db:"reason"`
	ExpiresAt sql.NullTime `db:"expires_at"`
	Active    bool         `db:"active"`
	CreatedAt time.Time    `db:"created_at"`
}

type WordFilter struct {
	ID          int64          `db:"id"`
	Phrase      string         `db:"phrase"`
	Effect      string         `db:"effect"`
	Replacement sql.NullString `db:"replacement"`
	Active      bool           `db:"active"`
	CreatedAt   time.Time      `db:"created_at"`
}

type SyntheticIdentity struct {
	ID             int64        `db:"id"`
	Name           string       `db:"name"`
	CredentialHash string       `db:"credential_hash"`
	Trusted        bool         `db:"trusted"`
	PostCount      int64        `db:"post_count"`
	ReplyCount     int64        `db:"reply_count"`
	FirstSeenAt    time.Time    `db:"first_seen_at"`
	LastSeenAt     time.Time    `db:"last_seen_at"`
	RevokedAt      sql.NullTime `db:"revoked_at"`
}

type LedgerEntry struct {
	ID        int64         `db:"id"`
	Persona   string        `db:"persona"`
	Kind      string        `db:"kind"`
	PostID    sql.NullInt64 `db:"post_id"`
	CreatedAt time.Time     `db:"created_at"`
}

type Setting struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
