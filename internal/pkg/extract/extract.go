// Package extract turns uploaded file bytes into plain text. Extractors
// are keyed by file extension; adding a format means writing one
// function and registering its extensions.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupported marks a file extension with no registered extractor.
var ErrUnsupported = errors.New("unsupported file type")

type extractorFn func(content []byte, filename string) (string, error)

var extractors = map[string]extractorFn{}

var plaintextExtensions = []string{
	".txt", ".md", ".csv", ".json", ".xml", ".html",
	".py", ".js", ".ts", ".yaml", ".yml", ".log",
}

func init() {
	for _, ext := range plaintextExtensions {
		extractors[ext] = extractPlaintext
	}
	extractors[".pdf"] = extractPDF
}

// Text extracts plain text from uploaded file bytes, dispatching on the
// filename's extension.
func Text(content []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w %q, supported: %s", ErrUnsupported, ext, strings.Join(SupportedExtensions(), ", "))
	}
	return extractor(content, filename)
}

// SupportedExtensions lists registered extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func extractPlaintext(content []byte, _ string) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	// Latin-1 fallback: every byte maps 1:1 to a code point.
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func extractPDF(content []byte, _ string) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}
