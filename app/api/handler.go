package api

import (
	"context"
	"log/slog"

	"assistant/rag"
	"assistant/types"

	"github.com/gofiber/fiber/v2"
)

// Chatter answers questions over the indexed documents.
type Chatter interface {
	Chat(ctx context.Context, question string, history []types.ChatMessage) (string, error)
	Preview(ctx context.Context, question string) (rag.Preview, error)
}

type ChatHandler struct {
	rag    Chatter
	logger *slog.Logger
}

func NewChatHandler(r Chatter) *ChatHandler {
	return &ChatHandler{
		rag:    r,
		logger: slog.Default(),
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	h.logger.Info("chat request", "question_chars", len(params.Question), "history", len(params.ChatHistory))
	answer, err := h.rag.Chat(c.UserContext(), params.Question, params.ChatHistory)
	if err != nil {
		return err
	}

	return c.JSON(types.ChatResponse{Answer: answer})
}

// HandlePreview always answers 200 once the question is valid; failures
// after validation are carried in draft_answer.
func (h *ChatHandler) HandlePreview(c *fiber.Ctx) error {
	var params types.PreviewParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	preview, err := h.rag.Preview(c.UserContext(), params.Question)
	if err != nil {
		return err
	}

	return c.JSON(types.PreviewResponse{
		RetrievedChunks: preview.Chunks,
		DraftAnswer:     preview.DraftAnswer,
	})
}
