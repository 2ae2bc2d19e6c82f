package api

import (
	"errors"
	"log/slog"

	"assistant/rag"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiErr   Error
		valErr   ValidationError
		ragErr   *rag.Error
		fiberErr *fiber.Error
	)

	switch {
	case errors.As(err, &apiErr):
		return c.Status(apiErr.Code).JSON(apiErr)
	case errors.As(err, &valErr):
		return c.Status(valErr.Status).JSON(valErr)
	case errors.As(err, &ragErr):
		code := statusForKind(ragErr.Kind)
		slog.Error("request failed", "path", c.Path(), "kind", ragErr.Kind, "state", ragErr.State, "error", ragErr.Err)
		return c.Status(code).JSON(NewError(code, ragErr.Message))
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	slog.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, "internal server error"))
}

func statusForKind(kind rag.Kind) int {
	switch kind {
	case rag.KindValidation:
		return fiber.StatusBadRequest
	case rag.KindConfig:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidFileType() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "Invalid file type. Allowed types: PDF, TXT, DOCX, MD.",
	}
}

func ErrExtractFailed() Error {
	return Error{
		Code:    fiber.StatusUnprocessableEntity,
		Message: "Could not extract text content from the uploaded file.",
	}
}

func ErrFetchFailed() Error {
	return Error{
		Code:    fiber.StatusBadGateway,
		Message: "Could not fetch the document from the given URL.",
	}
}

func ErrUploadTooLarge() Error {
	return Error{
		Code:    fiber.StatusRequestEntityTooLarge,
		Message: "Uploaded file is too large.",
	}
}

func ErrNotReady(msg string) Error {
	return Error{
		Code:    fiber.StatusServiceUnavailable,
		Message: msg,
	}
}
