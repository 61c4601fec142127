// Package gate screens submitted content against the moderator-managed word
// filter list. Screening is pure: ban checks and persistence stay with the
// caller.
package gate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"agora/internal/store"
)

// Result carries the outcome of screening one submission. Title and Body are
// the texts to persist, with replace-effect filters already applied.
type Result struct {
	Passed       bool
	BlockedTerms []string
	FlaggedTerms []string
	Title        string
	Body         string
}

// Flagged reports whether any flag-effect filter matched.
func (r Result) Flagged() bool {
	return len(r.FlaggedTerms) > 0
}

// Screen evaluates every filter, in order, against the submission. Matching
// is case-insensitive substring. A block match fails the whole submission;
// flag matches are recorded without failing it; replace matches rewrite the
// occurrences in title and body.
func Screen(filters []store.WordFilter, title, body string) Result {
	r := Result{Passed: true, Title: title, Body: body}
	for _, f := range filters {
		phrase := strings.TrimSpace(f.Phrase)
		if phrase == "" {
			continue
		}
		switch f.Effect {
		case store.FilterBlock:
			if containsFold(r.Title, phrase) || containsFold(r.Body, phrase) {
				r.Passed = false
				r.BlockedTerms = append(r.BlockedTerms, phrase)
			}
		case store.FilterFlag:
			if containsFold(r.Title, phrase) || containsFold(r.Body, phrase) {
				r.FlaggedTerms = append(r.FlaggedTerms, phrase)
			}
		case store.FilterReplace:
			if !containsFold(r.Title, phrase) && !containsFold(r.Body, phrase) {
				continue
			}
			repl := f.Replacement.String
			if repl == "" {
				repl = strings.Repeat("*", utf8.RuneCountInString(phrase))
			}
			re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
			r.Title = re.ReplaceAllLiteralString(r.Title, repl)
			r.Body = re.ReplaceAllLiteralString(r.Body, repl)
		}
	}
	return r
}

func containsFold(s, phrase string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(phrase))
}
