package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// History keeps every archived transcript in a single git repository,
// one JSON file per thread. Re-archiving a thread commits on top, so
// the log shows who archived what and when.
type History struct {
	dir string
	mu  sync.Mutex
}

// NewHistory opens the transcript repository at dir, initializing it
// with a main branch on first use.
func NewHistory(dir string) (*History, error) {
	h := &History{dir: dir}
	if err := h.ensureRepo(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *History) ensureRepo() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := git.PlainOpen(h.dir); err == nil {
		return nil
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		return fmt.Errorf("open transcript repo: %w", err)
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(h.dir, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	readme := []byte("# Thread archive\n\nTranscripts of archived threads, one JSON file each.\n")
	if err := os.WriteFile(filepath.Join(h.dir, "README.md"), readme, 0o644); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	if _, err := worktree.Add("README.md"); err != nil {
		return fmt.Errorf("git add readme: %w", err)
	}
	hash, err := worktree.Commit("Initialize thread archive", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "agora",
			Email: "agora@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit readme: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

type transcriptDoc struct {
	ThreadID   int64      `json:"threadId"`
	Title      string     `json:"title"`
	ArchivedBy string     `json:"archivedBy"`
	ArchivedAt time.Time  `json:"archivedAt"`
	Entries    []entryDoc `json:"entries"`
}

type entryDoc struct {
	ID         int64     `json:"id"`
	AuthorName string    `json:"authorName"`
	AuthorKind string    `json:"authorKind"`
	Body       string    `json:"body"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Record commits the transcript and returns the short commit hash.
func (h *History) Record(t Transcript) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	repo, err := git.PlainOpen(h.dir)
	if err != nil {
		return "", fmt.Errorf("open transcript repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	doc := transcriptDoc{
		ThreadID:   t.ThreadID,
		Title:      t.Title,
		ArchivedBy: t.ArchivedBy,
		ArchivedAt: t.ArchivedAt,
	}
	for _, e := range t.Entries {
		doc.Entries = append(doc.Entries, entryDoc{
			ID:         e.ID,
			AuthorName: e.AuthorName,
			AuthorKind: e.AuthorKind,
			Body:       e.Body,
			Score:      e.Score,
			CreatedAt:  e.CreatedAt,
		})
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	rel := fmt.Sprintf("transcripts/thread-%d.json", t.ThreadID)
	if err := os.MkdirAll(filepath.Join(h.dir, "transcripts"), 0o755); err != nil {
		return "", fmt.Errorf("create transcripts dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(h.dir, rel), append(payload, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return "", fmt.Errorf("git add transcript: %w", err)
	}

	message := fmt.Sprintf("Archive thread %d: %s", t.ThreadID, t.Title)
	hash, err := worktree.Commit(message, &git.CommitOptions{
		// Re-archiving an unchanged thread still records who asked.
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  t.ArchivedBy,
			Email: fmt.Sprintf("%s@local.agora.dev", sanitizeEmail(t.ArchivedBy)),
			When:  t.ArchivedAt,
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit transcript: %w", err)
	}
	return hash.String()[:7], nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "moderator"
	}
	return string(out)
}
