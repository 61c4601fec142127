package archive

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Service turns transcripts into stored PDFs. The local directory is
// the required sink; uploader and history are nil when not configured
// and their failures degrade to a log line rather than a failed call.
type Service struct {
	dir      string
	uploader *Uploader
	history  *History
}

// NewService prepares the local PDF directory. uploader and history
// may be nil.
func NewService(dir string, uploader *Uploader, history *History) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Service{dir: dir, uploader: uploader, history: history}, nil
}

// Archive renders the transcript and writes it to every configured sink.
func (s *Service) Archive(ctx context.Context, t Transcript) (Archived, error) {
	html, err := renderTranscriptHTML(t)
	if err != nil {
		return Archived{}, fmt.Errorf("render transcript: %w", err)
	}

	pdf, err := renderPDF(html)
	if err != nil {
		return Archived{}, err
	}

	filename := fmt.Sprintf("thread-%d-%s.pdf", t.ThreadID, sanitizeFilename(t.Title))
	if err := os.WriteFile(filepath.Join(s.dir, filename), pdf, 0o644); err != nil {
		return Archived{}, fmt.Errorf("write pdf: %w", err)
	}

	out := Archived{Filename: filename, PDFBytes: len(pdf)}

	if s.uploader != nil {
		path, err := s.uploader.Upload(ctx, filename, pdf)
		if err != nil {
			log.Printf("archive thread %d: object upload failed: %v", t.ThreadID, err)
		} else {
			out.ObjectPath = path
		}
	}

	if s.history != nil {
		hash, err := s.history.Record(t)
		if err != nil {
			log.Printf("archive thread %d: transcript commit failed: %v", t.ThreadID, err)
		} else {
			out.CommitHash = hash
		}
	}

	return out, nil
}
