package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"assistant/loader"
	"assistant/rag"
	"assistant/types"

	"github.com/gofiber/fiber/v2"
)

const (
	msgIndexed  = "Document processed and added to vector store successfully."
	msgNoText   = "File processed, but no text content was found or extracted."
	msgNoChunks = "File processed and text extracted, but no chunks were generated."
	uploadField = "file"
)

// DocumentIndexer replaces and removes the chunks of a source.
type DocumentIndexer interface {
	Ingest(ctx context.Context, source, text string) (int, error)
	Delete(ctx context.Context, source string) error
}

type FileHandler struct {
	indexer  DocumentIndexer
	registry *loader.Registry
	urls     *loader.URLLoader
	maxBytes int64
	logger   *slog.Logger
}

func NewFileHandler(indexer DocumentIndexer, registry *loader.Registry, urls *loader.URLLoader, maxBytes int64) *FileHandler {
	return &FileHandler{
		indexer:  indexer,
		registry: registry,
		urls:     urls,
		maxBytes: maxBytes,
		logger:   slog.Default(),
	}
}

func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		return NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}
	if strings.TrimSpace(fileHeader.Filename) == "" {
		return NewError(fiber.StatusBadRequest, rag.MsgEmptyFilename)
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		return ErrUploadTooLarge()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	filename := fileHeader.Filename
	declared := fileHeader.Header.Get(fiber.HeaderContentType)
	contentType, err := h.registry.ResolveType(filename, declared, data)
	if err != nil {
		h.logger.Warn("upload rejected", "file", filename, "declared", declared, "error", err)
		return ErrInvalidFileType()
	}

	doc, err := h.registry.Load(c.UserContext(), filename, contentType, data)
	if err != nil {
		h.logger.Warn("text extraction failed", "file", filename, "error", err)
		return ErrExtractFailed()
	}

	return h.index(c, doc)
}

func (h *FileHandler) HandleUploadURL(c *fiber.Ctx) error {
	var params types.URLParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	doc, err := h.urls.Fetch(c.UserContext(), params.URL)
	switch {
	case errors.Is(err, loader.ErrUnsupportedType):
		h.logger.Warn("url rejected", "url", params.URL, "error", err)
		return ErrInvalidFileType()
	case errors.Is(err, loader.ErrExtract):
		h.logger.Warn("text extraction failed", "url", params.URL, "error", err)
		return ErrExtractFailed()
	case errors.Is(err, loader.ErrTooLarge):
		h.logger.Warn("remote document too large", "url", params.URL, "error", err)
		return ErrUploadTooLarge()
	case err != nil:
		h.logger.Error("url fetch failed", "url", params.URL, "error", err)
		return ErrFetchFailed()
	}

	return h.index(c, doc)
}

// index replaces the stored context of doc.Source. Empty text still clears
// the previous chunks of that source.
func (h *FileHandler) index(c *fiber.Ctx, doc types.Document) error {
	n, err := h.indexer.Ingest(c.UserContext(), doc.Source, doc.Text)
	if err != nil {
		return err
	}

	msg := msgIndexed
	switch {
	case strings.TrimSpace(doc.Text) == "":
		msg = msgNoText
	case n == 0:
		msg = msgNoChunks
	}

	return c.JSON(types.UploadResponse{
		Filename:    doc.Source,
		Message:     msg,
		ChunksAdded: n,
	})
}

func (h *FileHandler) HandleDelete(c *fiber.Ctx) error {
	filename, err := url.PathUnescape(c.Params("filename"))
	if err != nil {
		return NewError(fiber.StatusBadRequest, "invalid filename encoding")
	}

	if err := h.indexer.Delete(c.UserContext(), filename); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
