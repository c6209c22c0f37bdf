// Package markdown loads .md and .markdown files as plain text.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/loaders"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

var (
	codeFence    = regexp.MustCompile("(?m)^```[^\n]*\n?")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	images       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bold         = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	italic       = regexp.MustCompile(`(^|\W)[*_](\S(?:[^*_\n]*?\S)?)[*_]`)
	blockquote   = regexp.MustCompile(`(?m)^>\s?`)
	rule         = regexp.MustCompile(`(?m)^\s*([-*_])\s*(?:\s*([-*_])\s*){2,}$`)
	listMarker   = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	htmlComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Loader handles Markdown documents.
type Loader struct{}

// New creates a new Markdown loader.
func New() *Loader {
	return &Loader{}
}

// Format returns the format tag.
func (l *Loader) Format() domain.Format {
	return domain.FormatMarkdown
}

// Extensions returns the extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Load reads the file and strips markdown syntax, keeping paragraph breaks so
// the splitter can use them. The title is the first H1 heading, if any.
func (l *Loader) Load(_ context.Context, path string) (*domain.Document, error) {
	raw, err := loaders.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	doc := loaders.NewDocument(path, domain.FormatMarkdown, extractTitle(raw), Strip(raw))
	return doc, nil
}

// extractTitle returns the text of the first H1 heading, or "".
func extractTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// Strip converts markdown to plain text. Code blocks keep their content.
func Strip(content string) string {
	content = htmlComment.ReplaceAllString(content, "")
	content = codeFence.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = rule.ReplaceAllString(content, "")
	content = bold.ReplaceAllString(content, "$2")
	content = italic.ReplaceAllString(content, "$1$2")
	content = blockquote.ReplaceAllString(content, "")
	content = listMarker.ReplaceAllString(content, "$1")
	content = multiNewline.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
