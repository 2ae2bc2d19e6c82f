package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"assistant/types"

	"github.com/pkoukk/tiktoken-go"
)

var ErrEmptyResponse = errors.New("language model returned an empty response")

// ChatModel is a single stateless chat-completion call. It never retries.
type ChatModel interface {
	Invoke(ctx context.Context, messages []types.ChatMessage, model string, temperature float64) (string, error)
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// Tokenizer is optional; when set, prompt sizes are logged.
	Tokenizer *TokenCounter
	Logger    *slog.Logger
}

func (cfg Config) client() *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (cfg Config) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

// TokenCounter approximates prompt sizes with a tiktoken encoding.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the encoding for model. Loading may fetch the BPE
// ranks over the network on first use.
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, err
		}
	}
	return &TokenCounter{enc: enc}, nil
}

func (t *TokenCounter) Count(messages []types.ChatMessage) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, m := range messages {
		n += len(t.enc.Encode(m.Content, nil, nil))
	}
	return n
}

func logPrompt(logger *slog.Logger, tokens *TokenCounter, provider, model string, messages []types.ChatMessage) time.Time {
	size := 0
	for _, m := range messages {
		size += len(m.Content)
	}
	attrs := []any{"provider", provider, "model", model, "messages", len(messages), "chars", size}
	if tokens != nil {
		attrs = append(attrs, "tokens", tokens.Count(messages))
	}
	logger.Debug("starting prompt to LLM", attrs...)
	return time.Now()
}
