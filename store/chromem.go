package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"assistant/types"

	"github.com/philippgille/chromem-go"
)

const sourceKey = "source"

var errNoEmbeddingFunc = errors.New("chromem collection is used with precomputed embeddings only")

// ChromemStore keeps records in an embedded chromem-go collection. With a
// path the collection is persisted to disk, without one it lives in memory.
type ChromemStore struct {
	db     *chromem.DB
	coll   *chromem.Collection
	logger *slog.Logger

	mu  sync.Mutex
	dim int

	// rw serializes writers against queries: chromem rejects a result count
	// larger than the collection, so the count and the query must see the
	// same documents.
	rw sync.RWMutex
}

type ChromemConfig struct {
	Path       string
	Collection string
	Compress   bool
	Dimension  int
	Logger     *slog.Logger
}

func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open vector store at %s: %w", cfg.Path, err)
		}
	}

	// embeddings are always supplied by the caller
	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	}
	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", cfg.Collection, err)
	}

	logger.Info("vector store ready", "backend", "chromem", "path", cfg.Path,
		"collection", cfg.Collection, "records", coll.Count())

	return &ChromemStore{
		db:     db,
		coll:   coll,
		logger: logger,
		dim:    cfg.Dimension,
	}, nil
}

func (s *ChromemStore) Add(ctx context.Context, vectors [][]float32, texts []string, metadatas []types.Metadata, ids []string) error {
	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()

	records, err := buildRecords(vectors, texts, metadatas, ids, dim)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: r.Embedding,
			Metadata:  map[string]string{sourceKey: r.Metadata.Source},
		}
	}

	s.rw.Lock()
	defer s.rw.Unlock()

	if err := s.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		// roll back whatever made it in so the batch is all or nothing
		added := make([]string, len(docs))
		for i, d := range docs {
			added[i] = d.ID
		}
		if delErr := s.coll.Delete(ctx, nil, nil, added...); delErr != nil {
			s.logger.Error("rollback of partial add failed", "error", delErr)
		}
		return fmt.Errorf("add documents: %w", err)
	}

	s.mu.Lock()
	if s.dim == 0 {
		s.dim = len(records[0].Embedding)
	}
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, n int) ([]types.RetrievedChunk, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	if dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dim)
	}

	s.rw.RLock()
	defer s.rw.RUnlock()

	n = min(n, s.coll.Count())
	if n <= 0 {
		return []types.RetrievedChunk{}, nil
	}

	res, err := s.coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	chunks := make([]types.RetrievedChunk, len(res))
	for i, r := range res {
		chunks[i] = types.RetrievedChunk{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Metadata[sourceKey],
			Distance: 1 - float64(r.Similarity),
		}
	}
	return chunks, nil
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, source string) error {
	s.rw.Lock()
	defer s.rw.Unlock()

	if err := s.coll.Delete(ctx, map[string]string{sourceKey: source}, nil); err != nil {
		return fmt.Errorf("delete source %q: %w", source, err)
	}
	return nil
}

func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.coll.Count(), nil
}

// Close is a no-op: the persistent DB writes through on every change.
func (s *ChromemStore) Close() error {
	return nil
}
