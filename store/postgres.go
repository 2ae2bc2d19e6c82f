package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"assistant/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore keeps records in a pgvector column and ranks them by
// cosine distance.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	dim    int
	logger *slog.Logger
}

type PostgresConfig struct {
	DSN       string
	Table     string
	Dimension int
	Logger    *slog.Logger
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if !tableNameRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("postgres backend needs a positive embedding dimension, got %d", cfg.Dimension)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		table:  cfg.Table,
		dim:    cfg.Dimension,
		logger: logger,
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%[2]d) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_source ON %[1]s(source);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING hnsw (embedding vector_cosine_ops);
	`, p.table, p.dim)

	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Add(ctx context.Context, vectors [][]float32, texts []string, metadatas []types.Metadata, ids []string) error {
	records, err := buildRecords(vectors, texts, metadatas, ids, p.dim)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`INSERT INTO %s (id, source, content, embedding) VALUES ($1, $2, $3, $4)`, p.table)
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.ID, r.Metadata.Source, r.Content, pgvector.NewVector(r.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) Query(ctx context.Context, vector []float32, n int) ([]types.RetrievedChunk, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	if len(vector) != p.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), p.dim)
	}
	if n <= 0 {
		return []types.RetrievedChunk{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, content, source, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, p.table)
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := []types.RetrievedChunk{}
	for rows.Next() {
		var c types.RetrievedChunk
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &c.Distance); err != nil {
			return nil, err
		}
		p.logger.Debug("found chunk", "id", c.ID, "source", c.Source, "distance", c.Distance)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) DeleteBySource(ctx context.Context, source string) error {
	tag, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE source = $1", p.table), source)
	if err != nil {
		return err
	}
	p.logger.Debug("deleted chunks", "source", source, "rows", tag.RowsAffected())
	return nil
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", p.table)).Scan(&n)
	return n, err
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
