// Package pdf loads .pdf files by extracting their text with pdftotext.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/loaders"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// toolName is the poppler utility used for extraction.
const toolName = "pdftotext"

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w. %s", ErrPDFToolNotFound, InstallInstructions())
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", name, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Loader extracts text from PDF documents.
type Loader struct {
	runner CommandRunner
}

// New creates a PDF loader that shells out to pdftotext.
func New() *Loader {
	return &Loader{runner: execRunner{}}
}

// NewWithRunner creates a PDF loader with a custom command runner.
func NewWithRunner(runner CommandRunner) *Loader {
	return &Loader{runner: runner}
}

// CheckAvailable returns ErrPDFToolNotFound when pdftotext is missing.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install pdftotext on common platforms.
func InstallInstructions() string {
	return "Install poppler: 'brew install poppler' (macOS), " +
		"'apt install poppler-utils' (Debian/Ubuntu), 'dnf install poppler-utils' (Fedora)"
}

// Format returns the format tag.
func (l *Loader) Format() domain.Format {
	return domain.FormatPDF
}

// Extensions returns the extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".pdf"}
}

// Load extracts the text of every page. Pages are separated by a blank line.
func (l *Loader) Load(ctx context.Context, path string) (*domain.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	out, err := l.runner.Run(ctx, toolName, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	pages := splitPages(string(out))
	doc := loaders.NewDocument(path, domain.FormatPDF, extractTitle(pages), strings.Join(pages, "\n\n"))
	doc.Metadata["pages"] = len(pages)
	return doc, nil
}

// splitPages splits pdftotext output on form feeds and drops blank pages.
func splitPages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pages []string
	for _, page := range strings.Split(text, "\f") {
		lines := strings.Split(page, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t")
		}
		if page = strings.TrimSpace(strings.Join(lines, "\n")); page != "" {
			pages = append(pages, page)
		}
	}
	return pages
}

// extractTitle returns the first non-empty line of the first page, if short enough.
func extractTitle(pages []string) string {
	if len(pages) == 0 {
		return ""
	}
	for _, line := range strings.Split(pages[0], "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if len(line) > 100 {
			return ""
		}
		return line
	}
	return ""
}
