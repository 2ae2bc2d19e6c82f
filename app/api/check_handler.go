package api

import (
	"strings"

	"assistant/model"
	"assistant/store"
	"assistant/types"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	embedder model.Embedder
	store    store.VectorStorer
}

func NewCheckHandler(embedder model.Embedder, s store.VectorStorer) *CheckHandler {
	return &CheckHandler{
		embedder: embedder,
		store:    s,
	}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	resp := types.HealthResponse{
		Status:                 "ok",
		EmbeddingModelLoaded:   h.embedder != nil,
		VectorStoreInitialized: h.store != nil,
	}
	if h.store != nil {
		if _, err := h.store.Count(c.UserContext()); err != nil {
			resp.VectorStoreInitialized = false
		}
	}

	if resp.EmbeddingModelLoaded && resp.VectorStoreInitialized {
		return c.JSON(resp)
	}

	var msgs []string
	if !resp.EmbeddingModelLoaded {
		msgs = append(msgs, "Embedding model failed to load.")
	}
	if !resp.VectorStoreInitialized {
		msgs = append(msgs, "Vector store failed to initialize.")
	}
	resp.Status = "error"
	resp.Message = strings.Join(msgs, " ")
	return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
}

func (h *CheckHandler) HandleCount(c *fiber.Ctx) error {
	if h.store == nil {
		return ErrNotReady("Vector store is not ready.")
	}
	n, err := h.store.Count(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": n})
}
