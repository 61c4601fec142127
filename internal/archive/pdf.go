package archive

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const renderTimeout = 30 * time.Second

// browserBinaries are the names chromedp can launch, in preference order.
// The lookup is a pre-flight check so a missing browser surfaces as
// ErrPDFDependencyMissing instead of a chromedp launch failure mid-render.
var browserBinaries = []string{"chromium-browser", "chromium", "google-chrome"}

func browserInstalled() bool {
	for _, name := range browserBinaries {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

const upperhex = "0123456789ABCDEF"

// percentEncodeForDataURL percent-encodes HTML for embedding in a data URL.
// url.QueryEscape is not usable here: it encodes spaces as +, which the
// browser then renders as literal plus signs.
func percentEncodeForDataURL(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

// renderPDF prints the transcript HTML to PDF through headless Chrome.
func renderPDF(html string) ([]byte, error) {
	if !browserInstalled() {
		return nil, fmt.Errorf("%w: no chromium binary on PATH", ErrPDFDependencyMissing)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	ctx, cancel := context.WithTimeout(browserCtx, renderTimeout)
	defer cancel()

	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)
	if err := chromedp.Run(ctx, chromedp.Navigate(dataURL), chromedp.WaitReady("body")); err != nil {
		return nil, fmt.Errorf("load transcript page: %w", err)
	}

	var pdf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(8.27). // A4
			WithPaperHeight(11.69).
			WithMarginTop(0.6).
			WithMarginBottom(0.6).
			WithMarginLeft(0.6).
			WithMarginRight(0.6).
			WithPreferCSSPageSize(true).
			Do(ctx)
		if err != nil {
			return err
		}
		pdf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return pdf, nil
}

// sanitizeFilename reduces a thread title to a safe filename fragment:
// alphanumerics kept, spaces become hyphens, everything else dropped.
func sanitizeFilename(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, title)
	if len(mapped) > 50 {
		mapped = mapped[:50]
	}
	if mapped == "" {
		return "thread"
	}
	return mapped
}
