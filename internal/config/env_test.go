package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Pipeline.MaxPages != 200 {
		t.Errorf("MaxPages = %d, want 200", cfg.Pipeline.MaxPages)
	}
	if cfg.Pipeline.ChunkSizeTokens != 1200 {
		t.Errorf("ChunkSizeTokens = %d, want 1200", cfg.Pipeline.ChunkSizeTokens)
	}
	if cfg.Pipeline.DedupeThreshold != 0.86 {
		t.Errorf("DedupeThreshold = %v, want 0.86", cfg.Pipeline.DedupeThreshold)
	}
	if cfg.Pipeline.TaskTimeout != 20*time.Minute {
		t.Errorf("TaskTimeout = %v, want 20m", cfg.Pipeline.TaskTimeout)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.LLM.MaxRetries)
	}
	if cfg.Storage.Backend != "s3" {
		t.Errorf("Backend = %q, want s3", cfg.Storage.Backend)
	}
	if cfg.Queue.Stream != "jobs:decks" {
		t.Errorf("Stream = %q, want jobs:decks", cfg.Queue.Stream)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_PAGES", "50")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("DEDUPE_THRESHOLD", "0.9")

	cfg := FromEnv()

	if cfg.Pipeline.MaxPages != 50 {
		t.Errorf("MaxPages = %d, want 50", cfg.Pipeline.MaxPages)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic (lowered)", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.LLM.Timeout)
	}
	if cfg.Storage.Backend != "gcs" {
		t.Errorf("Backend = %q, want gcs (lowered)", cfg.Storage.Backend)
	}
	if cfg.Pipeline.DedupeThreshold != 0.9 {
		t.Errorf("DedupeThreshold = %v, want 0.9", cfg.Pipeline.DedupeThreshold)
	}
}

func TestFromEnvLLMTimeoutSeconds(t *testing.T) {
	t.Setenv("LLM_TIMEOUT_SECONDS", "90")

	cfg := FromEnv()
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s from LLM_TIMEOUT_SECONDS", cfg.LLM.Timeout)
	}

	// The seconds key wins over the duration key when both are set.
	t.Setenv("LLM_TIMEOUT", "10s")
	cfg = FromEnv()
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want LLM_TIMEOUT_SECONDS to take precedence", cfg.LLM.Timeout)
	}
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("MAX_PAGES", "not-a-number")
	t.Setenv("LLM_TIMEOUT", "soon")

	cfg := FromEnv()

	if cfg.Pipeline.MaxPages != 200 {
		t.Errorf("MaxPages = %d, want default 200 on bad input", cfg.Pipeline.MaxPages)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want default 60s on bad input", cfg.LLM.Timeout)
	}
}
