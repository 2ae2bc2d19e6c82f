package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// OllamaEmbedder creates embeddings through the Ollama /api/embed endpoint,
// which accepts a whole batch of inputs in one request.
type OllamaEmbedder struct {
	apiURL string
	model  string
	client *http.Client
	batcher
}

type OllamaEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type OllamaEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type EmbedderConfig struct {
	URL         string
	Model       string
	APIKey      string
	BatchSize   int
	MaxAttempts int
	Timeout     time.Duration
	Logger      *slog.Logger
}

func (cfg EmbedderConfig) batcher(name string) batcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return batcher{
		name:        name,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
}

func (cfg EmbedderConfig) httpClient() *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func NewOllamaEmbedder(cfg EmbedderConfig) *OllamaEmbedder {
	e := &OllamaEmbedder{
		apiURL:  cfg.URL,
		model:   cfg.Model,
		client:  cfg.httpClient(),
		batcher: cfg.batcher("ollama"),
	}
	e.logger.Info("uses local Ollama for embeddings", "model", cfg.Model)
	return e
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, e.embedBatch)
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(OllamaEmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var ollamaResp OllamaEmbeddingResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for i := range ollamaResp.Embeddings {
		ollamaResp.Embeddings[i] = normalize(ollamaResp.Embeddings[i])
	}
	return ollamaResp.Embeddings, nil
}
