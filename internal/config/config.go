package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "STUDYFORGE"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogMode     string `envconfig:"LOG_MODE" default:"production"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Index snapshots go to S3 when configured, else to a local file
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKey       string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey       string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket          string `envconfig:"S3_BUCKET" default:"studyforge-index"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	IndexSnapshotKey  string `envconfig:"INDEX_SNAPSHOT_KEY" default:"index/snapshot.gob"`
	IndexSnapshotPath string `envconfig:"INDEX_SNAPSHOT_PATH" default:"data/index.gob"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingRPS        float64 `envconfig:"EMBEDDING_RPS" default:"5"`
	EmbedConcurrency    int     `envconfig:"EMBED_CONCURRENCY" default:"4"`

	// Generation providers. Keys are read through api_key_env when the chain
	// is built, so they only need to be present in the environment.
	ProvidersFile   string        `envconfig:"PROVIDERS_FILE"`
	GeminiAPIKey    string        `envconfig:"GEMINI_API_KEY"`
	GroqAPIKey      string        `envconfig:"GROQ_API_KEY"`
	DeepSeekAPIKey  string        `envconfig:"DEEPSEEK_API_KEY"`
	OllamaBaseURL   string        `envconfig:"OLLAMA_BASE_URL"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	ChunkSize       int     `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap    int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	RetrievalTopK   int     `envconfig:"RETRIEVAL_TOP_K" default:"6"`
	MaxContextChars int     `envconfig:"MAX_CONTEXT_CHARS" default:"4000"`
	Temperature     float64 `envconfig:"TEMPERATURE" default:"0.7"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	MaxUploadBytes     int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	MaxRequestBytes    int64         `envconfig:"MAX_REQUEST_BYTES" default:"1048576"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.RetrievalTopK)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("MAX_CONTEXT_CHARS must be positive, got %d", c.MaxContextChars)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be in [0, 2], got %g", c.Temperature)
	}
	if c.MaxUploadBytes < c.MaxRequestBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES (%d) must not be below MAX_REQUEST_BYTES (%d)", c.MaxUploadBytes, c.MaxRequestBytes)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	return nil
}

// EnvName returns the prefixed environment variable for a config key
func EnvName(key string) string {
	return envPrefix + "_" + key
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasGenerationProvider reports whether the default chain has at least one
// usable member.
func (c *Config) HasGenerationProvider() bool {
	return c.GeminiAPIKey != "" || c.GroqAPIKey != "" || c.DeepSeekAPIKey != "" ||
		c.OpenAIAPIKey != "" || c.OllamaBaseURL != ""
}
