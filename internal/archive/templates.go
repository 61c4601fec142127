package archive

import (
	"bytes"
	"html/template"
	"time"
)

var transcriptTemplate = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(transcriptHTML))

// renderTranscriptHTML produces the printable page for a thread. Post
// bodies pass through html/template so stored text cannot inject markup.
func renderTranscriptHTML(t Transcript) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, t); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const transcriptHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.5; max-width: 760px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #b3541e; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .post { border-left: 3px solid #ccc; padding: 0.5rem 1rem; margin: 1rem 0; }
    .post.synthetic { border-left-color: #b3541e; background: #faf6f2; }
    .byline { font-weight: bold; }
    .stamp { font-weight: normal; color: #888; font-size: 0.85em; }
    .body { white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Thread #{{.ThreadID}} &middot; archived by {{.ArchivedBy}} on {{formatDate .ArchivedAt "Jan 2, 2006 15:04 MST"}}</div>
  {{range .Entries}}
  <div class="post{{if eq .AuthorKind "synthetic"}} synthetic{{end}}">
    <div class="byline">{{.AuthorName}} <span class="stamp">#{{.ID}} &middot; {{formatDate .CreatedAt "Jan 2, 2006 15:04"}} &middot; score {{.Score}}</span></div>
    <div class="body">{{.Body}}</div>
  </div>
  {{end}}
</body>
</html>`
