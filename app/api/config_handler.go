package api

import (
	"log/slog"

	"assistant/store"
	"assistant/types"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	personas store.PersonaStorer
	logger   *slog.Logger
}

func NewSettingsHandler(personas store.PersonaStorer) *SettingsHandler {
	return &SettingsHandler{
		personas: personas,
		logger:   slog.Default(),
	}
}

func (h *SettingsHandler) HandleGetSettings(c *fiber.Ctx) error {
	p, err := h.personas.GetPersona(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// HandleSetSettings applies the non-empty fields of the request to the
// current persona and returns the result.
func (h *SettingsHandler) HandleSetSettings(c *fiber.Ctx) error {
	var params types.PersonaParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	if params.Empty() {
		return NewError(fiber.StatusBadRequest, "no settings to update")
	}

	current, err := h.personas.GetPersona(c.UserContext())
	if err != nil {
		return err
	}
	updated := current.Merge(params.Persona())
	if err := h.personas.SetPersona(c.UserContext(), updated); err != nil {
		return err
	}

	h.logger.Info("persona updated", "ai_name", updated.AIName, "company", updated.Company)
	return c.JSON(updated)
}
