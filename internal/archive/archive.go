// Package archive renders approved threads to PDF and keeps a durable
// record of them: a local file, an optional object-storage mirror and an
// optional git log of the transcripts.
package archive

import (
	"errors"
	"time"
)

// Transcript is a flattened thread ready for rendering.
type Transcript struct {
	ThreadID   int64
	Title      string
	ArchivedBy string
	ArchivedAt time.Time
	Entries    []Entry
}

// Entry is one post of the thread, in display order.
type Entry struct {
	ID         int64
	AuthorName string
	AuthorKind string
	Body       string
	Score      int64
	CreatedAt  time.Time
}

// Archived describes where a transcript ended up. ObjectPath and
// CommitHash are empty when the corresponding sink is not configured
// or failed; the local PDF is the one guaranteed copy.
type Archived struct {
	Filename   string
	PDFBytes   int
	ObjectPath string
	CommitHash string
}

// ErrPDFDependencyMissing indicates the headless browser used for PDF
// rendering is not installed on this host.
var ErrPDFDependencyMissing = errors.New("archive pdf dependency missing")
