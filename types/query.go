package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type ChatParams struct {
	Question    string        `json:"question" validate:"required"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

type PreviewParams struct {
	Question string `json:"question" validate:"required"`
}

type URLParams struct {
	URL string `json:"url" validate:"required,http_url"`
}

type PersonaParams struct {
	AIName  string `json:"ai_name,omitempty" validate:"omitempty,max=100"`
	AIRole  string `json:"ai_role,omitempty" validate:"omitempty,max=200"`
	AITone  string `json:"ai_tone,omitempty" validate:"omitempty,max=300"`
	Company string `json:"company,omitempty" validate:"omitempty,max=200"`
}

func (params *PersonaParams) Persona() Persona {
	return Persona{
		AIName:  params.AIName,
		AIRole:  params.AIRole,
		AITone:  params.AITone,
		Company: params.Company,
	}
}

func (params *PersonaParams) Empty() bool {
	return params.Persona() == Persona{}
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *PreviewParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *URLParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *PersonaParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type UploadResponse struct {
	Filename    string `json:"filename"`
	Message     string `json:"message"`
	ChunksAdded int    `json:"chunks_added"`
}

type RetrievedChunkInfo struct {
	Source         string  `json:"source"`
	ContentPreview string  `json:"content_preview"`
	FullContent    string  `json:"full_content"`
	Distance       float64 `json:"distance"`
}

type PreviewResponse struct {
	RetrievedChunks []RetrievedChunkInfo `json:"retrieved_chunks"`
	DraftAnswer     string               `json:"draft_answer"`
}

type HealthResponse struct {
	Status                 string `json:"status"`
	EmbeddingModelLoaded   bool   `json:"embedding_model_loaded"`
	VectorStoreInitialized bool   `json:"vector_store_initialized"`
	Message                string `json:"message,omitempty"`
}
