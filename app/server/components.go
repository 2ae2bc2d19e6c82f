package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"assistant/app/agent"
	"assistant/chunker"
	"assistant/config"
	"assistant/loader"
	"assistant/model"
	"assistant/rag"
	"assistant/store"
	"assistant/types"
)

// Components are the long-lived resources shared by the HTTP server and
// the ingest watcher. They are built once and closed together.
type Components struct {
	Embedder     model.Embedder
	Store        store.VectorStorer
	LLM          agent.ChatModel
	Personas     store.PersonaStorer
	Orchestrator *rag.Orchestrator
	Indexer      *rag.Indexer
	Registry     *loader.Registry
	URLs         *loader.URLLoader

	closers []func() error
}

func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{}

	splitter, err := chunker.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	c.Embedder = newEmbedder(cfg.Embedding, logger)

	c.Store, err = newVectorStore(ctx, cfg.Vector, logger)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	c.closers = append(c.closers, c.Store.Close)

	c.Personas, err = c.newPersonaStore(cfg.Persona, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("persona store: %w", err)
	}

	c.LLM = newChatModel(cfg.LLM, logger)
	if cfg.LLM.RequiresKey() && cfg.LLM.APIKey == "" {
		logger.Warn("LLM API key is not configured; chat requests will fail", "provider", cfg.LLM.Provider)
	}

	res := rag.Resources{
		Embedder: c.Embedder,
		Store:    c.Store,
		LLM:      c.LLM,
		Personas: c.Personas,
	}
	c.Orchestrator = rag.New(res, rag.Settings{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.RAG.Temperature,
		NumResults:    cfg.RAG.NumResults,
		APIKey:        cfg.LLM.APIKey,
		RequireAPIKey: cfg.LLM.RequiresKey(),
	}, rag.WithLogger(logger.With("component", "rag")), rag.WithObserver(func(from, to rag.State) {
		logger.Debug("pipeline transition", "from", from, "to", to)
	}))
	c.Indexer = rag.NewIndexer(res, splitter, logger.With("component", "indexer"))

	c.Registry = loader.NewRegistry(loader.Options{
		PDF:    loader.PDFOptions{CropTop: cfg.Loader.PDFCropTop, CropBottom: cfg.Loader.PDFCropBottom},
		Logger: logger.With("component", "loader"),
	})
	c.URLs = loader.NewURLLoader(c.Registry, cfg.Loader.FetchTimeout, int64(cfg.Server.UploadMaxBytes))

	return c, nil
}

// Close releases every resource in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func newEmbedder(cfg config.Embedding, logger *slog.Logger) model.Embedder {
	ec := model.EmbedderConfig{
		URL:         cfg.URL,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     cfg.Timeout,
		Logger:      logger.With("component", "embedder"),
	}
	if cfg.Provider == config.ProviderOpenAI {
		return model.NewOpenAIEmbedder(ec)
	}
	return model.NewOllamaEmbedder(ec)
}

func newChatModel(cfg config.LLM, logger *slog.Logger) agent.ChatModel {
	ac := agent.Config{
		URL:     cfg.URL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Logger:  logger.With("component", "llm"),
	}
	if cfg.CountTokens {
		tc, err := agent.NewTokenCounter(cfg.Model)
		if err != nil {
			logger.Warn("token counting disabled", "error", err)
		} else {
			ac.Tokenizer = tc
		}
	}
	if cfg.Provider == config.ProviderOllama {
		return agent.NewOllamaChat(ac)
	}
	return agent.NewOpenAIChat(ac)
}

func newVectorStore(ctx context.Context, cfg config.Vector, logger *slog.Logger) (store.VectorStorer, error) {
	logger = logger.With("component", "store", "backend", cfg.Backend)

	if cfg.Backend == config.BackendPostgres {
		pg, err := store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:       cfg.PgDSN,
			Table:     cfg.CollectionName,
			Dimension: cfg.Dimension,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		if err := pg.Init(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}

	return store.NewChromemStore(store.ChromemConfig{
		Path:       cfg.StorePath,
		Collection: cfg.CollectionName,
		Compress:   cfg.Compress,
		Dimension:  cfg.Dimension,
		Logger:     logger,
	})
}

func (c *Components) newPersonaStore(cfg config.Persona, logger *slog.Logger) (store.PersonaStorer, error) {
	seed := types.DefaultPersona()
	if cfg.File != "" {
		p, err := store.LoadPersonaFile(cfg.File)
		if err != nil {
			return nil, err
		}
		seed = p
	}

	if cfg.DBPath == "" {
		logger.Info("persona settings kept in memory")
		return store.NewMemoryPersonaStore(seed), nil
	}

	bs, err := store.NewBoltPersonaStore(cfg.DBPath, seed)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, bs.Close)
	return bs, nil
}
