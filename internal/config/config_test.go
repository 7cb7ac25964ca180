package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxRetryAttempts != 3 {
		t.Errorf("Expected MaxRetryAttempts 3, got %d", cfg.MaxRetryAttempts)
	}
	if cfg.RetryDelayMs != 5000 {
		t.Errorf("Expected RetryDelayMs 5000, got %d", cfg.RetryDelayMs)
	}
	if cfg.BackoffMultiplier != 2 {
		t.Errorf("Expected BackoffMultiplier 2, got %d", cfg.BackoffMultiplier)
	}
	if cfg.QueueConcurrency != 10 {
		t.Errorf("Expected QueueConcurrency 10, got %d", cfg.QueueConcurrency)
	}
	if cfg.PriorityQueueConcurrency != 20 {
		t.Errorf("Expected PriorityQueueConcurrency 20, got %d", cfg.PriorityQueueConcurrency)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Errorf("Expected ProviderTimeout 30s, got %s", cfg.ProviderTimeout)
	}
	if cfg.RetryBaseDelay() != 5*time.Second {
		t.Errorf("Expected RetryBaseDelay 5s, got %s", cfg.RetryBaseDelay())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY_MS", "1000")
	t.Setenv("QUEUE_CONCURRENCY", "4")
	t.Setenv("PRIORITY_QUEUE_CONCURRENCY", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxRetryAttempts != 5 {
		t.Errorf("Expected MaxRetryAttempts 5, got %d", cfg.MaxRetryAttempts)
	}
	if cfg.RetryBaseDelay() != time.Second {
		t.Errorf("Expected RetryBaseDelay 1s, got %s", cfg.RetryBaseDelay())
	}
	if cfg.QueueConcurrency != 4 {
		t.Errorf("Expected QueueConcurrency 4, got %d", cfg.QueueConcurrency)
	}
	if cfg.PriorityQueueConcurrency != 8 {
		t.Errorf("Expected PriorityQueueConcurrency 8, got %d", cfg.PriorityQueueConcurrency)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.MaxRetryAttempts = -1 }},
		{"zero retry delay", func(c *Config) { c.RetryDelayMs = 0 }},
		{"zero multiplier", func(c *Config) { c.BackoffMultiplier = 0 }},
		{"zero concurrency", func(c *Config) { c.QueueConcurrency = 0 }},
		{"zero priority concurrency", func(c *Config) { c.PriorityQueueConcurrency = 0 }},
		{"zero provider timeout", func(c *Config) { c.ProviderTimeout = 0 }},
		{"zero fetch batch", func(c *Config) { c.QueueFetchBatch = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}
