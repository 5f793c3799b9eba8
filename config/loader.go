package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the LINECHAT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LINECHAT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("LINECHAT_PORT"); v > 0 {
		cfg.Port = v
		cfg.LocalPort = v
	}
	if envBool("LINECHAT_LISTEN") {
		cfg.Listen = true
	}
	if v := envInt("LINECHAT_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt("LINECHAT_RETRY"); v > 0 {
		cfg.Retry = v
	}

	// Server
	if v := os.Getenv("LINECHAT_STORE"); v != "" {
		cfg.StorePath = v
	}
	if envBool("LINECHAT_HASH_PASSWORDS") {
		cfg.HashPasswords = true
	}
	if v := envInt("LINECHAT_MAX_CLIENTS"); v > 0 {
		cfg.MaxClients = v
	}
	if v := envInt("LINECHAT_QUEUE_SIZE"); v > 0 {
		cfg.QueueSize = v
	}

	// Output
	if v := envInt("LINECHAT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
