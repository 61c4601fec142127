package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
)

func testTranscript(threadID int64, title string) Transcript {
	created := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	return Transcript{
		ThreadID:   threadID,
		Title:      title,
		ArchivedBy: "admin",
		ArchivedAt: created.Add(time.Hour),
		Entries: []Entry{
			{ID: threadID, AuthorName: "visitor", AuthorKind: "human", Body: "root post", CreatedAt: created},
			{ID: threadID + 1, AuthorName: "quill", AuthorKind: "synthetic", Body: "a reply", CreatedAt: created.Add(time.Minute)},
		},
	}
}

func TestHistoryRecord(t *testing.T) {
	tempDir := t.TempDir()
	h, err := NewHistory(tempDir)
	if err != nil {
		t.Fatalf("NewHistory() error = %v", err)
	}

	hash, err := h.Record(testTranscript(3, "First thread"))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(hash) != 7 {
		t.Fatalf("expected short commit hash, got %q", hash)
	}

	path := filepath.Join(tempDir, "transcripts", "thread-3.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("transcript file missing: %v", err)
	}
	if !strings.Contains(string(raw), "First thread") {
		t.Fatalf("transcript file missing title: %s", raw)
	}

	// Re-archiving commits again with a fresh hash.
	second, err := h.Record(testTranscript(3, "First thread, revisited"))
	if err != nil {
		t.Fatalf("Record() second error = %v", err)
	}
	if second == hash {
		t.Fatal("expected a new commit for the second archive")
	}
}

func TestNewHistoryReopen(t *testing.T) {
	tempDir := t.TempDir()
	if _, err := NewHistory(tempDir); err != nil {
		t.Fatalf("NewHistory() error = %v", err)
	}
	h, err := NewHistory(tempDir)
	if err != nil {
		t.Fatalf("NewHistory() reopen error = %v", err)
	}
	if _, err := h.Record(testTranscript(1, "After reopen")); err != nil {
		t.Fatalf("Record() after reopen error = %v", err)
	}
}

func TestHistoryConcurrentRecord(t *testing.T) {
	tempDir := t.TempDir()
	h, err := NewHistory(tempDir)
	if err != nil {
		t.Fatalf("NewHistory() error = %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			tr := testTranscript(int64(100+idx), fmt.Sprintf("Thread %02d", idx))
			if _, err := h.Record(tr); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Record() concurrent error = %v", err)
		}
	}

	repo, err := git.PlainOpen(tempDir)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	defer iter.Close()

	count := 0
	for {
		if _, err := iter.Next(); err != nil {
			break
		}
		count++
	}
	// One init commit plus one per writer.
	if count != writers+1 {
		t.Fatalf("expected %d commits, got %d", writers+1, count)
	}
}
