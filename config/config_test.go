package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Server.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.Server.RateLimitWindow)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Model)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.RAG.NumResults)
	assert.InDelta(t, 0.7, cfg.RAG.Temperature, 1e-9)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "chromem", cfg.Vector.Backend)
	assert.Equal(t, "data/chroma_db", cfg.Vector.StorePath)
	assert.Equal(t, "documents", cfg.Vector.CollectionName)
	assert.Equal(t, "data/persona.db", cfg.Persona.DBPath)
	assert.Equal(t, 5*time.Second, cfg.Loader.SettleTime)
	assert.Empty(t, cfg.Loader.WatchDir)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("RAG_NUM_RESULTS", "5")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")
	t.Setenv("LOADER_WATCH_DIR", "/tmp/in")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.False(t, cfg.LLM.RequiresKey())
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, 5, cfg.RAG.NumResults)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "/tmp/in", cfg.Loader.WatchDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "overlap not below size", env: map[string]string{"RAG_CHUNK_SIZE": "50", "RAG_CHUNK_OVERLAP": "50"}},
		{name: "zero chunk size", env: map[string]string{"RAG_CHUNK_SIZE": "0"}},
		{name: "unknown llm provider", env: map[string]string{"LLM_PROVIDER": "claude-ish"}},
		{name: "unknown backend", env: map[string]string{"VECTOR_BACKEND": "faiss"}},
		{name: "postgres without dsn", env: map[string]string{"VECTOR_BACKEND": "postgres", "VECTOR_DIMENSION": "768"}},
		{name: "postgres without dimension", env: map[string]string{"VECTOR_BACKEND": "postgres", "VECTOR_PG_DSN": "postgres://x"}},
		{name: "bad duration", env: map[string]string{"LLM_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			require.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "loud"}.SlogLevel())
}
