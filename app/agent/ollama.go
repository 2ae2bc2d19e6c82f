package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"assistant/types"
)

// OllamaChat calls a local Ollama /api/chat endpoint. No key is needed.
type OllamaChat struct {
	url    string
	client *http.Client
	tokens *TokenCounter
	logger *slog.Logger
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []types.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func NewOllamaChat(cfg Config) *OllamaChat {
	return &OllamaChat{
		url:    cfg.URL,
		client: cfg.client(),
		tokens: cfg.Tokenizer,
		logger: cfg.logger(),
	}
}

func (c *OllamaChat) Invoke(ctx context.Context, messages []types.ChatMessage, model string, temperature float64) (string, error) {
	start := logPrompt(c.logger, c.tokens, "ollama", model, messages)
	defer func() {
		c.logger.Debug("LLM answer", "took", time.Since(start))
	}()

	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Options:  map[string]any{"temperature": temperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	// some servers stream even when asked not to: collect every chunk
	var sb strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk ollamaChatChunk
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		sb.WriteString(chunk.Message.Content)
	}

	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
