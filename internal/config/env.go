package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// DatabaseConfig holds relational store connectivity.
type DatabaseConfig struct {
	DSN string
}

// StorageConfig selects the blob backend and its credentials.
type StorageConfig struct {
	Backend     string // "local"|"s3"|"minio"|"gcs"
	LocalDir    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	GCSBucket   string
}

// LLMConfig defines the model provider and call behavior.
type LLMConfig struct {
	Provider           string // "openai"|"anthropic"|"mock"
	APIKey             string
	Model              string
	BaseURL            string
	AnthropicBaseURL   string
	AnthropicAuthToken string
	AnthropicVersion   string
	Timeout            time.Duration
	MaxRetries         int
}

// FormulaConfig configures the optional LaTeX OCR sidecar.
type FormulaConfig struct {
	OCRURL     string
	OCRTimeout time.Duration
}

// PipelineConfig defines document processing limits and thresholds.
type PipelineConfig struct {
	MaxPages                 int
	ChunkSizeTokens          int
	ChunkOverlapTokens       int
	DedupeThreshold          float64
	QualityCoverageThreshold float64
	TaskTimeout              time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	BlockTimeout time.Duration
}

// WorkerConfig defines job worker behavior.
type WorkerConfig struct {
	Concurrency int
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Database DatabaseConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Formula  FormulaConfig
	Pipeline PipelineConfig
	Queue    QueueConfig
	Worker   WorkerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/slidenode.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_slidenode",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Database = DatabaseConfig{
		DSN: getEnv("DATABASE_DSN", "slidenode.db"),
	}

	cfg.Storage = StorageConfig{
		Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", "s3")),
		LocalDir:    getEnv("LOCAL_STORAGE_DIR", "./data"),
		S3Endpoint:  getEnv("S3_ENDPOINT_URL", "http://localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", "minio"),
		S3SecretKey: getEnv("S3_SECRET_KEY", "minio123"),
		S3Bucket:    getEnv("S3_BUCKET", "slidenode"),
		GCSBucket:   getEnv("GCS_BUCKET", ""),
	}

	cfg.LLM = LLMConfig{
		Provider:           strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		APIKey:             getEnv("LLM_API_KEY", ""),
		Model:              getEnv("LLM_MODEL", "stepfun/step-3.5-flash:free"),
		BaseURL:            getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		AnthropicBaseURL:   getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicAuthToken: getEnv("ANTHROPIC_AUTH_TOKEN", ""),
		AnthropicVersion:   getEnv("ANTHROPIC_VERSION", "2023-06-01"),
		Timeout:            llmTimeout(),
		MaxRetries:         parseInt(getEnv("LLM_MAX_RETRIES", "2"), 2),
	}

	cfg.Formula = FormulaConfig{
		OCRURL:     getEnv("FORMULA_OCR_URL", ""),
		OCRTimeout: parseDuration(getEnv("FORMULA_OCR_TIMEOUT", "30s"), 30*time.Second),
	}

	cfg.Pipeline = PipelineConfig{
		MaxPages:                 parseInt(getEnv("MAX_PAGES", "200"), 200),
		ChunkSizeTokens:          parseInt(getEnv("CHUNK_SIZE_TOKENS", "1200"), 1200),
		ChunkOverlapTokens:       parseInt(getEnv("CHUNK_OVERLAP_TOKENS", "120"), 120),
		DedupeThreshold:          parseFloat(getEnv("DEDUPE_THRESHOLD", "0.86"), 0.86),
		QualityCoverageThreshold: parseFloat(getEnv("QUALITY_COVERAGE_THRESHOLD", "0.85"), 0.85),
		TaskTimeout:              parseDuration(getEnv("TASK_TIMEOUT", "20m"), 20*time.Minute),
	}

	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:decks"),
		Group:        getEnv("QUEUE_GROUP", "workers:decks"),
		BlockTimeout: parseDuration(getEnv("QUEUE_BLOCK_TIMEOUT", "5s"), 5*time.Second),
	}

	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" { return def }
	if n, err := strconv.Atoi(s); err == nil { return n }
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" { return def }
	if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" { return def }
	if d, err := time.ParseDuration(s); err == nil { return d }
	return def
}

// llmTimeout prefers LLM_TIMEOUT_SECONDS (integer seconds); LLM_TIMEOUT
// takes a Go duration string.
func llmTimeout() time.Duration {
	if s := os.Getenv("LLM_TIMEOUT_SECONDS"); s != "" {
		if n := parseInt(s, 0); n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return parseDuration(getEnv("LLM_TIMEOUT", "60s"), 60*time.Second)
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" { return "true" }
	return "false"
}
