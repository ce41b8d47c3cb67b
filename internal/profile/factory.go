package profile

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"go.klb.dev/cliprelay/internal/snapshot"
)

var htmlConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// Derive picks exactly one Profile out of a snapshot. Precedence is fixed:
// a file list beats an image, an image beats HTML, HTML beats plain text.
// Richer formats carry the user's intent; the others are fallbacks the
// source application offered alongside.
//
// A snapshot with no content (including an empty text field) yields an
// empty Text profile, the explicit "clipboard cleared" signal.
func Derive(s *snapshot.Snapshot) Profile {
	if s == nil {
		return NewText("")
	}
	if len(s.Files) > 0 {
		return NewFile(s.Files...)
	}
	if s.Image != nil {
		return NewImage(s.Image)
	}
	if s.HTML != nil && strings.TrimSpace(*s.HTML) != "" {
		if s.Text != nil && *s.Text != "" {
			return NewHTMLText(*s.Text, *s.HTML)
		}
		return NewHTMLText(htmlToText(*s.HTML), *s.HTML)
	}
	if s.Text != nil {
		return NewText(*s.Text)
	}
	return NewText("")
}

// htmlToText renders markup as Markdown, the closest plain-text rendition
// that keeps links and emphasis. The raw markup is the fallback.
func htmlToText(html string) string {
	md, err := htmlConverter.ConvertString(html)
	if err != nil {
		slog.Debug("html conversion failed, keeping markup", "err", err)
		return html
	}
	return strings.TrimSpace(md)
}
