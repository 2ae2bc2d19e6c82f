package loader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFOptions trims running headers and footers before extraction.
// Margins are in points (1 pt = 1/72 inch); zero disables cropping.
type PDFOptions struct {
	CropTop    float64
	CropBottom float64
}

type PDFExtractor struct {
	opts   PDFOptions
	logger *slog.Logger
}

func NewPDFExtractor(opts PDFOptions, logger *slog.Logger) *PDFExtractor {
	return &PDFExtractor{opts: opts, logger: logger}
}

// Extract returns the plain text of every page joined by newlines.
func (e *PDFExtractor) Extract(_ context.Context, data []byte) (string, error) {
	if e.opts.CropTop > 0 || e.opts.CropBottom > 0 {
		cropped, err := cropMargins(data, e.opts.CropTop, e.opts.CropBottom)
		if err != nil {
			e.logger.Warn("pdf crop failed, using original", "error", err)
		} else {
			data = cropped
		}
	}
	return pdfText(data)
}

func cropMargins(data []byte, top, bottom float64) ([]byte, error) {
	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse crop box: %w", err)
	}

	var out bytes.Buffer
	if err := api.Crop(bytes.NewReader(data), &out, nil, box, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to crop PDF: %w", err)
	}
	return out.Bytes(), nil
}

func pdfText(data []byte) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(content) != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n"), nil
}
