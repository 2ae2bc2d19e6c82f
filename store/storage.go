package store

import (
	"context"
	"errors"
	"fmt"

	"assistant/types"

	"github.com/google/uuid"
)

var (
	ErrLengthMismatch    = errors.New("ids, vectors, texts and metadatas must have equal length")
	ErrDimensionMismatch = errors.New("embedding dimension does not match the collection")
	ErrEmptyVector       = errors.New("empty embedding vector")
)

// VectorStorer is a durable nearest-neighbour index over chunk records.
// Implementations must be safe for concurrent use.
type VectorStorer interface {
	// Add writes one record per text. ids may be nil, in which case they
	// are generated. A batch is written entirely or not at all.
	Add(ctx context.Context, vectors [][]float32, texts []string, metadatas []types.Metadata, ids []string) error
	// Query returns at most n records ordered by ascending distance.
	Query(ctx context.Context, vector []float32, n int) ([]types.RetrievedChunk, error)
	// DeleteBySource removes every record whose source equals source.
	// Removing an unknown source succeeds.
	DeleteBySource(ctx context.Context, source string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

func NewID() string {
	return "doc_" + uuid.NewString()
}

// buildRecords checks the batch invariants and zips the parallel slices.
// dim is the expected dimension, 0 when unknown.
func buildRecords(vectors [][]float32, texts []string, metadatas []types.Metadata, ids []string, dim int) ([]types.Record, error) {
	if len(vectors) != len(texts) || len(metadatas) != len(texts) || (ids != nil && len(ids) != len(texts)) {
		return nil, fmt.Errorf("%w: ids=%d vectors=%d texts=%d metadatas=%d",
			ErrLengthMismatch, len(ids), len(vectors), len(texts), len(metadatas))
	}

	records := make([]types.Record, len(texts))
	for i := range texts {
		if len(vectors[i]) == 0 {
			return nil, ErrEmptyVector
		}
		if dim == 0 {
			dim = len(vectors[i])
		}
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vectors[i]), dim)
		}

		id := ""
		if ids != nil {
			id = ids[i]
		}
		if id == "" {
			id = NewID()
		}
		records[i] = types.Record{
			ID:        id,
			Embedding: vectors[i],
			Content:   texts[i],
			Metadata:  metadatas[i],
		}
	}
	return records, nil
}
