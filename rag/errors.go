package rag

import "errors"

type Kind string

const (
	KindValidation Kind = "validation"
	KindConfig     Kind = "config"
	KindRetrieval  Kind = "retrieval"
	KindGeneration Kind = "generation"
	KindStoreWrite Kind = "store_write"
)

// ErrorPrefix marks every message produced by a failed pipeline run.
const ErrorPrefix = "Error: "

const (
	MsgEmptyQuestion   = "Question cannot be empty."
	MsgEmptyFilename   = "Filename cannot be empty."
	MsgMissingKey      = "LLM API key is not configured."
	MsgRetrievalFailed = "Failed to retrieve context information."
	MsgGenerateFailed  = "Failed to generate response due to an internal processing error."
	MsgStoreFailed     = "Failed to store document chunks in the vector database."
	MsgEmbedFailed     = "Failed to generate or obtain text embeddings for the document."
	MsgDeleteFailed    = "Failed to delete context from the vector store."
	MsgPreviewLLM      = "Failed to get response from the language model."
)

// Error is a classified pipeline failure. Message is safe to show to a
// caller; Err carries the cause and is only meant for logs.
type Error struct {
	Kind    Kind
	State   State
	Message string
	Err     error
}

func (e *Error) Error() string {
	return ErrorPrefix + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, state State, msg string, cause error) *Error {
	return &Error{Kind: kind, State: state, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
