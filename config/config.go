package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BackendChromem  = "chromem"
	BackendPostgres = "postgres"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Server    Server    `envPrefix:""`
	Embedding Embedding `envPrefix:"EMBEDDING_"`
	LLM       LLM       `envPrefix:"LLM_"`
	RAG       RAG       `envPrefix:"RAG_"`
	Vector    Vector    `envPrefix:"VECTOR_"`
	Persona   Persona   `envPrefix:"PERSONA_"`
	Loader    Loader    `envPrefix:"LOADER_"`
}

type Server struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":8000"`
	StaticDir       string        `env:"STATIC_DIR" envDefault:"static"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	UploadMaxBytes  int           `env:"UPLOAD_MAX_BYTES" envDefault:"33554432"`
}

type Embedding struct {
	Provider    string        `env:"PROVIDER" envDefault:"ollama"`
	URL         string        `env:"URL" envDefault:"http://localhost:11434/api/embed"`
	Model       string        `env:"MODEL" envDefault:"nomic-embed-text"`
	APIKey      string        `env:"API_KEY"`
	BatchSize   int           `env:"BATCH_SIZE" envDefault:"64"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"60s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
}

type LLM struct {
	Provider    string        `env:"PROVIDER" envDefault:"openai"`
	URL         string        `env:"URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"`
	Model       string        `env:"MODEL" envDefault:"gemini-1.5-flash"`
	APIKey      string        `env:"API_KEY"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"120s"`
	CountTokens bool          `env:"COUNT_TOKENS" envDefault:"true"`
}

// RequiresKey reports whether the provider needs an API key.
func (l LLM) RequiresKey() bool {
	return l.Provider == ProviderOpenAI
}

type RAG struct {
	NumResults   int     `env:"NUM_RESULTS" envDefault:"3"`
	Temperature  float64 `env:"TEMPERATURE" envDefault:"0.7"`
	ChunkSize    int     `env:"CHUNK_SIZE" envDefault:"800"`
	ChunkOverlap int     `env:"CHUNK_OVERLAP" envDefault:"50"`
}

type Vector struct {
	Backend        string `env:"BACKEND" envDefault:"chromem"`
	StorePath      string `env:"STORE_PATH" envDefault:"data/chroma_db"`
	CollectionName string `env:"COLLECTION_NAME" envDefault:"documents"`
	Compress       bool   `env:"COMPRESS" envDefault:"false"`
	Dimension      int    `env:"DIMENSION" envDefault:"0"`
	PgDSN          string `env:"PG_DSN"`
}

type Persona struct {
	DBPath string `env:"DB_PATH" envDefault:"data/persona.db"`
	File   string `env:"FILE"`
}

type Loader struct {
	WatchDir      string        `env:"WATCH_DIR"`
	ArchiveDir    string        `env:"ARCHIVE_DIR"`
	BadDir        string        `env:"BAD_DIR"`
	SettleTime    time.Duration `env:"SETTLE_TIME" envDefault:"5s"`
	Workers       int           `env:"WORKERS" envDefault:"2"`
	PDFCropTop    float64       `env:"PDF_CROP_TOP" envDefault:"0"`
	PDFCropBottom float64       `env:"PDF_CROP_BOTTOM" envDefault:"0"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, errors.New("RAG_CHUNK_SIZE must be positive"))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("RAG_CHUNK_OVERLAP must be in [0, %d)", c.RAG.ChunkSize))
	}
	if c.RAG.NumResults <= 0 {
		errs = append(errs, errors.New("RAG_NUM_RESULTS must be positive"))
	}
	if !oneOf(c.Embedding.Provider, ProviderOllama, ProviderOpenAI) {
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}
	if !oneOf(c.LLM.Provider, ProviderOllama, ProviderOpenAI) {
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	switch c.Vector.Backend {
	case BackendChromem:
	case BackendPostgres:
		if c.Vector.PgDSN == "" {
			errs = append(errs, errors.New("VECTOR_PG_DSN is required for the postgres backend"))
		}
		if c.Vector.Dimension <= 0 {
			errs = append(errs, errors.New("VECTOR_DIMENSION is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_BACKEND %q", c.Vector.Backend))
	}
	if c.Vector.Dimension < 0 {
		errs = append(errs, errors.New("VECTOR_DIMENSION must not be negative"))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
