package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"petsitting/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("PETSIT_BOT_TOKEN", "env_token")

	yamlContent := `
telegram:
  bot_token: "${PETSIT_BOT_TOKEN}"
backend:
  base_url: "https://api.example.com/"
  rate_limit:
    rps: 2
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Telegram.BotToken != "env_token" {
		t.Errorf("expected bot_token from env, got %s", cfg.Telegram.BotToken)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RateLimit.Burst != 5 {
		t.Errorf("expected default burst 5, got %d", cfg.Backend.RateLimit.Burst)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
				Backend:  BackendConfig{BaseURL: "http://localhost:8080"},
			},
			wantErr: false,
		},
		{
			name: "missing token",
			cfg: Config{
				Backend: BackendConfig{BaseURL: "http://localhost:8080"},
			},
			wantErr: true,
		},
		{
			name: "placeholder token",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "YOUR_BOT_TOKEN_HERE"},
				Backend:  BackendConfig{BaseURL: "http://localhost:8080"},
			},
			wantErr: true,
		},
		{
			name: "missing backend",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
			},
			wantErr: true,
		},
		{
			name: "relative backend url",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
				Backend:  BackendConfig{BaseURL: "/api"},
			},
			wantErr: true,
		},
		{
			name: "negative rps",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
				Backend:  BackendConfig{BaseURL: "http://localhost", RateLimit: RateLimitConfig{RPS: -1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()

	if cfg.Bot.PaginationSize != models.DefaultPaginationSize {
		t.Errorf("expected default pagination size %d, got %d", models.DefaultPaginationSize, cfg.Bot.PaginationSize)
	}
	if cfg.Backend.Timeout() != models.DefaultBackendTimeout*time.Second {
		t.Errorf("expected default backend timeout, got %s", cfg.Backend.Timeout())
	}
	if cfg.Session.TTL() != 7*24*time.Hour {
		t.Errorf("expected 7 day session ttl, got %s", cfg.Session.TTL())
	}
	if cfg.Monitoring.PrometheusPort != 9090 {
		t.Errorf("expected default prometheus port 9090, got %d", cfg.Monitoring.PrometheusPort)
	}
	if cfg.Bot.RateLimitMessages != models.RateLimitMessages {
		t.Errorf("expected default rate limit messages %d, got %d", models.RateLimitMessages, cfg.Bot.RateLimitMessages)
	}
	if cfg.Backend.RateLimit.Burst != 0 {
		t.Errorf("expected no burst without rps, got %d", cfg.Backend.RateLimit.Burst)
	}
}
