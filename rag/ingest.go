package rag

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"assistant/chunker"
	"assistant/types"
)

// Indexer writes documents into the vector store and removes them.
type Indexer struct {
	res      Resources
	splitter *chunker.Splitter
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sourceLock
}

type sourceLock struct {
	mu   sync.Mutex
	refs int
}

func NewIndexer(res Resources, splitter *chunker.Splitter, logger *slog.Logger) *Indexer {
	if splitter == nil {
		splitter = chunker.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		res:      res,
		splitter: splitter,
		logger:   logger,
		locks:    make(map[string]*sourceLock),
	}
}

// Ingest replaces every chunk of source with the chunks of text and
// returns how many were added. Empty text, or text that yields no chunks,
// adds nothing and is not an error. Nothing is written when embedding
// fails.
func (ix *Indexer) Ingest(ctx context.Context, source, text string) (int, error) {
	if strings.TrimSpace(source) == "" {
		return 0, newError(KindValidation, StateStart, MsgEmptyFilename, nil)
	}

	unlock := ix.lock(source)
	defer unlock()

	// best effort: a failure here only risks stale chunks next to new ones
	if err := ix.res.Store.DeleteBySource(ctx, source); err != nil {
		ix.logger.Warn("could not delete previous context, proceeding", "source", source, "error", err)
	}

	chunks := ix.splitter.Split(text)
	if len(chunks) == 0 {
		ix.logger.Info("no chunks produced", "source", source)
		return 0, nil
	}

	vectors, err := ix.res.Embedder.Embed(ctx, chunks)
	if err != nil {
		ix.logger.Error("embedding failed", "source", source, "chunks", len(chunks), "error", err)
		return 0, newError(KindStoreWrite, StateEmbeddingQuery, MsgEmbedFailed, err)
	}

	metadatas := make([]types.Metadata, len(chunks))
	for i := range metadatas {
		metadatas[i] = types.Metadata{Source: source}
	}
	if err := ix.res.Store.Add(ctx, vectors, chunks, metadatas, nil); err != nil {
		ix.logger.Error("store add failed", "source", source, "error", err)
		return 0, newError(KindStoreWrite, StateDone, MsgStoreFailed, err)
	}

	ix.logger.Info("document indexed", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// Delete removes every chunk of source. Unknown sources succeed.
func (ix *Indexer) Delete(ctx context.Context, source string) error {
	if strings.TrimSpace(source) == "" {
		return newError(KindValidation, StateStart, MsgEmptyFilename, nil)
	}

	unlock := ix.lock(source)
	defer unlock()

	if err := ix.res.Store.DeleteBySource(ctx, source); err != nil {
		ix.logger.Error("delete failed", "source", source, "error", err)
		return newError(KindStoreWrite, StateDone, MsgDeleteFailed, err)
	}
	ix.logger.Info("context deleted", "source", source)
	return nil
}

// lock serializes delete-then-add per source within this process.
func (ix *Indexer) lock(source string) func() {
	ix.mu.Lock()
	l, ok := ix.locks[source]
	if !ok {
		l = &sourceLock{}
		ix.locks[source] = l
	}
	l.refs++
	ix.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		ix.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ix.locks, source)
		}
		ix.mu.Unlock()
	}
}
