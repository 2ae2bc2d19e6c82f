// Package rag sequences retrieval and generation for chat, preview and
// ingestion requests. Every resource is injected; the package holds no
// global state.
package rag

import (
	"context"
	"log/slog"
	"strings"

	"assistant/app/agent"
	"assistant/model"
	"assistant/store"
	"assistant/types"
)

// Resources are the long-lived collaborators shared by all requests. They
// are built once by the composition root.
type Resources struct {
	Embedder model.Embedder
	Store    store.VectorStorer
	LLM      agent.ChatModel
	Personas store.PersonaStorer
}

type Settings struct {
	Model       string
	Temperature float64
	NumResults  int
	// APIKey is only checked, never sent from here: the gateway owns it.
	APIKey        string
	RequireAPIKey bool
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver registers a callback for every state transition.
func WithObserver(fn func(from, to State)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

type Orchestrator struct {
	res      Resources
	settings Settings
	logger   *slog.Logger
	observe  func(from, to State)
}

func New(res Resources, settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		res:      res,
		settings: settings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.settings.NumResults <= 0 {
		o.settings.NumResults = 3
	}
	return o
}

// chatRun carries the output of each stage to the next.
type chatRun struct {
	state     State
	question  string
	history   []types.ChatMessage
	vector    []float32
	retrieved []types.RetrievedChunk
	context   string
	messages  []types.ChatMessage
	answer    string
	err       *Error
}

func (r *chatRun) fail(kind Kind, msg string, cause error) {
	r.err = newError(kind, r.state, msg, cause)
	r.state = StateError
}

// Chat answers question from the stored documents and the caller-owned
// history. Failures are *Error values with a non-leaking message.
func (o *Orchestrator) Chat(ctx context.Context, question string, history []types.ChatMessage) (string, error) {
	r := &chatRun{state: StateStart, question: question, history: history}
	for !r.state.terminal() {
		from := r.state
		o.step(ctx, r)
		if o.observe != nil {
			o.observe(from, r.state)
		}
	}

	if r.err != nil {
		o.logger.Error("chat failed", "kind", r.err.Kind, "state", r.err.State, "error", r.err.Err)
		return "", r.err
	}
	o.logger.Info("chat answered", "retrieved", len(r.retrieved))
	return r.answer, nil
}

func (o *Orchestrator) step(ctx context.Context, r *chatRun) {
	switch r.state {
	case StateStart:
		if strings.TrimSpace(r.question) == "" {
			r.fail(KindValidation, MsgEmptyQuestion, nil)
			return
		}
		if !o.credentialsReady() {
			r.fail(KindConfig, MsgMissingKey, nil)
			return
		}
		r.state = StateEmbeddingQuery

	case StateEmbeddingQuery:
		vector, err := o.embedQuestion(ctx, r.question)
		if err != nil {
			r.fail(KindRetrieval, MsgRetrievalFailed, err)
			return
		}
		r.vector = vector
		r.state = StateRetrieving

	case StateRetrieving:
		retrieved, err := o.res.Store.Query(ctx, r.vector, o.settings.NumResults)
		if err != nil {
			r.fail(KindRetrieval, MsgRetrievalFailed, err)
			return
		}
		r.retrieved = retrieved
		r.state = StateFormatting

	case StateFormatting:
		r.context = FormatContext(r.retrieved)
		r.state = StatePrompting

	case StatePrompting:
		r.messages = BuildMessages(o.persona(ctx), r.context, r.question, r.history, o.logger)
		r.state = StateGenerating

	case StateGenerating:
		answer, err := o.res.LLM.Invoke(ctx, r.messages, o.settings.Model, o.settings.Temperature)
		if err != nil {
			r.fail(KindGeneration, MsgGenerateFailed, err)
			return
		}
		if strings.TrimSpace(answer) == "" {
			r.fail(KindGeneration, MsgGenerateFailed, agent.ErrEmptyResponse)
			return
		}
		r.answer = answer
		r.state = StateDone
	}
}

func (o *Orchestrator) credentialsReady() bool {
	return !o.settings.RequireAPIKey || o.settings.APIKey != ""
}

func (o *Orchestrator) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	vectors, err := o.res.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, store.ErrEmptyVector
	}
	return vectors[0], nil
}

// persona falls back to the defaults when the settings store fails.
func (o *Orchestrator) persona(ctx context.Context) types.Persona {
	if o.res.Personas == nil {
		return types.DefaultPersona()
	}
	p, err := o.res.Personas.GetPersona(ctx)
	if err != nil {
		o.logger.Warn("cannot read persona, using defaults", "error", err)
		return types.DefaultPersona()
	}
	return p
}
