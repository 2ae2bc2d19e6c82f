package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Embedder turns texts into vectors. The output is index-aligned with the
// input. A failure anywhere in the batch fails the whole call.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// batchFunc embeds one sub-batch against a concrete provider.
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

type batcher struct {
	name        string
	batchSize   int
	maxAttempts int
	logger      *slog.Logger
}

func (b batcher) embed(ctx context.Context, texts []string, call batchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	size := b.batchSize
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := b.retry(ctx, texts[start:end], call)
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%s returned %d embeddings for %d texts", b.name, len(vectors), end-start)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (b batcher) retry(ctx context.Context, texts []string, call batchFunc) ([][]float32, error) {
	attempts := max(b.maxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		vectors, err := call(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		b.logger.Warn("embedding request failed", "provider", b.name, "attempt", attempt, "error", err)
		if attempt < attempts {
			backoff := time.NewTimer(time.Duration(attempt) * 300 * time.Millisecond)
			select {
			case <-ctx.Done():
				backoff.Stop()
				return nil, ctx.Err()
			case <-backoff.C:
			}
		}
	}
	return nil, fmt.Errorf("%s embedding failed: %w", b.name, lastErr)
}

// statusError is returned for non-200 provider responses.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.Code, e.Body)
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.Code == 429 || se.Code >= 500
	}
	return true
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, x := range vec {
		vec[i] = float32(float64(x) / norm)
	}
	return vec
}
