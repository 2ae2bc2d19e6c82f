package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode"

	"assistant/store"
	"assistant/types"

	"github.com/stretchr/testify/require"
)

// letterEmbedder maps text to its letter histogram plus a bias term, which
// is enough to make lexical overlap show up as similarity.
type letterEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 27)
		v[26] = 1
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			} else if unicode.IsDigit(r) {
				v[26] += 0.5
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *letterEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// echoLLM records the messages it gets and answers with the system prompt
// unless answer or err is set.
type echoLLM struct {
	mu       sync.Mutex
	messages []types.ChatMessage
	answer   string
	err      error
}

func (l *echoLLM) Invoke(_ context.Context, messages []types.ChatMessage, _ string, _ float64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = messages
	if l.err != nil {
		return "", l.err
	}
	if l.answer != "" {
		return l.answer, nil
	}
	return messages[0].Content, nil
}

func (l *echoLLM) Received() []types.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.messages
}

type failingStore struct {
	store.VectorStorer
	queryErr  error
	deleteErr error
	addErr    error
}

func (s *failingStore) Query(ctx context.Context, v []float32, n int) ([]types.RetrievedChunk, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.VectorStorer.Query(ctx, v, n)
}

func (s *failingStore) DeleteBySource(ctx context.Context, source string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.VectorStorer.DeleteBySource(ctx, source)
}

func (s *failingStore) Add(ctx context.Context, v [][]float32, t []string, m []types.Metadata, ids []string) error {
	if s.addErr != nil {
		return s.addErr
	}
	return s.VectorStorer.Add(ctx, v, t, m, ids)
}

var errBoom = errors.New("connection refused: secret-host:5432")

type fixture struct {
	embedder *letterEmbedder
	llm      *echoLLM
	store    *store.ChromemStore
	res      Resources
	settings Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewChromemStore(store.ChromemConfig{Collection: "documents"})
	require.NoError(t, err)

	f := &fixture{
		embedder: &letterEmbedder{},
		llm:      &echoLLM{},
		store:    s,
	}
	f.res = Resources{
		Embedder: f.embedder,
		Store:    s,
		LLM:      f.llm,
		Personas: store.NewMemoryPersonaStore(types.DefaultPersona()),
	}
	f.settings = Settings{
		Model:         "test-model",
		Temperature:   0.7,
		NumResults:    3,
		APIKey:        "key",
		RequireAPIKey: true,
	}
	return f
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	return New(f.res, f.settings, opts...)
}

func (f *fixture) indexer() *Indexer {
	return NewIndexer(f.res, nil, nil)
}
