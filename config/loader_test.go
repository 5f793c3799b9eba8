package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnv_Host(t *testing.T) {
	t.Setenv("LINECHAT_HOST", "chat.example.com")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Host != "chat.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "chat.example.com")
	}
}

func TestLoadFromEnv_Port(t *testing.T) {
	t.Setenv("LINECHAT_PORT", "8080")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Port != 8080 || cfg.LocalPort != 8080 {
		t.Errorf("Port/LocalPort = %d/%d, want 8080", cfg.Port, cfg.LocalPort)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
	}{
		{"LINECHAT_LISTEN", []string{"1", "true", "yes", "TRUE", "Yes"}},
		{"LINECHAT_HASH_PASSWORDS", []string{"1", "true"}},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)

				switch tt.key {
				case "LINECHAT_LISTEN":
					if !cfg.Listen {
						t.Error("Listen should be true")
					}
				case "LINECHAT_HASH_PASSWORDS":
					if !cfg.HashPasswords {
						t.Error("HashPasswords should be true")
					}
				}
			})
		}
	}
}

func TestLoadFromEnv_Timeout(t *testing.T) {
	t.Setenv("LINECHAT_TIMEOUT", "10")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestLoadFromEnv_ServerFields(t *testing.T) {
	t.Setenv("LINECHAT_STORE", "/var/lib/linechat/users.txt")
	t.Setenv("LINECHAT_MAX_CLIENTS", "64")
	t.Setenv("LINECHAT_QUEUE_SIZE", "32")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.StorePath != "/var/lib/linechat/users.txt" {
		t.Errorf("StorePath = %q", cfg.StorePath)
	}
	if cfg.MaxClients != 64 {
		t.Errorf("MaxClients = %d", cfg.MaxClients)
	}
	if cfg.QueueSize != 32 {
		t.Errorf("QueueSize = %d", cfg.QueueSize)
	}
}

func TestLoadFromEnv_Retry(t *testing.T) {
	t.Setenv("LINECHAT_RETRY", "4")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Retry != 4 {
		t.Errorf("Retry = %d, want 4", cfg.Retry)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	// Ensure no LINECHAT_ vars are set.
	os.Clearenv()

	cfg := &Config{Host: "original", LocalPort: 1234, StorePath: "keep.txt"}
	LoadFromEnv(cfg)

	if cfg.Host != "original" {
		t.Errorf("Host was overridden: %q", cfg.Host)
	}
	if cfg.LocalPort != 1234 {
		t.Errorf("LocalPort was overridden: %d", cfg.LocalPort)
	}
	if cfg.StorePath != "keep.txt" {
		t.Errorf("StorePath was overridden: %q", cfg.StorePath)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("LINECHAT_PORT", "not-a-number")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.LocalPort != 0 {
		t.Errorf("LocalPort should be 0 for invalid input, got %d", cfg.LocalPort)
	}
}

func TestLoadFromEnv_Verbose(t *testing.T) {
	t.Setenv("LINECHAT_VERBOSE", "3")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d, want 3", cfg.Verbose)
	}
}
