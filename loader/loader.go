// Package loader extracts plain text from uploaded documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"assistant/types"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimePDF       = "application/pdf"
	MimeText      = "text/plain"
	MimeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeMarkdown  = "text/markdown"
	MimeXMarkdown = "text/x-markdown"
	MimeHTML      = "text/html"
)

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrExtract         = errors.New("could not extract text")
	ErrTooLarge        = errors.New("document exceeds size limit")
)

// Extractor turns raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

var extensionTypes = map[string]string{
	".pdf":      MimePDF,
	".txt":      MimeText,
	".text":     MimeText,
	".docx":     MimeDOCX,
	".md":       MimeMarkdown,
	".markdown": MimeMarkdown,
}

// Registry picks an extractor by content type.
type Registry struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

type Options struct {
	PDF    PDFOptions
	Logger *slog.Logger
}

func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	md := ExtractorFunc(ExtractMarkdown)
	return &Registry{
		extractors: map[string]Extractor{
			MimePDF:       NewPDFExtractor(opts.PDF, logger),
			MimeText:      ExtractorFunc(ExtractText),
			MimeDOCX:      ExtractorFunc(ExtractDOCX),
			MimeMarkdown:  md,
			MimeXMarkdown: md,
		},
		logger: logger,
	}
}

// Allowed reports whether contentType has an extractor.
func (r *Registry) Allowed(contentType string) bool {
	_, ok := r.extractors[baseType(contentType)]
	return ok
}

// ResolveType returns the content type to use for a file: the declared
// type when supported, else a guess from the extension, else a sniff of
// the bytes.
func (r *Registry) ResolveType(filename, declared string, data []byte) (string, error) {
	if t := baseType(declared); r.Allowed(t) {
		return t, nil
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		r.logger.Info("using guessed content type", "file", filename, "type", t, "declared", declared)
		return t, nil
	}
	if len(data) > 0 {
		detected := mimetype.Detect(data)
		for _, t := range []string{MimePDF, MimeDOCX, MimeText} {
			if detected.Is(t) {
				r.logger.Info("using sniffed content type", "file", filename, "type", t, "declared", declared)
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, declared, filename)
}

// Load extracts the text of one document. The source of the result is
// the filename.
func (r *Registry) Load(ctx context.Context, filename, contentType string, data []byte) (types.Document, error) {
	ext, ok := r.extractors[baseType(contentType)]
	if !ok {
		return types.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	text, err := ext.Extract(ctx, data)
	if err != nil {
		return types.Document{}, fmt.Errorf("%w from %s: %w", ErrExtract, filename, err)
	}
	r.logger.Debug("text extracted", "file", filename, "type", contentType, "chars", len(text))
	return types.Document{Text: text, Source: filename}, nil
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return t
}

func ExtractText(_ context.Context, data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}
