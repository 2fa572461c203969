// Package config loads the service configuration from a JSON file with
// environment overrides for secrets.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Config is the top-level service configuration.
type Config struct {
	DataDir  string         `json:"data_dir"`
	LogLevel string         `json:"log_level"`
	Listen   string         `json:"listen"`
	LLM      LLMConfig      `json:"llm"`
	Telegram TelegramConfig `json:"telegram"`
	Session  SessionConfig  `json:"session"`
	Janitor  JanitorConfig  `json:"janitor"`
}

// LLMConfig points at an OpenAI-compatible completion endpoint.
// Temperature is float32 so the value feeds llm.Config without a
// conversion.
type LLMConfig struct {
	BaseURL          string  `json:"base_url"`
	APIKey           string  `json:"api_key"`
	Model            string  `json:"model"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float32 `json:"temperature"`
	MaxContextTokens int     `json:"max_context_tokens"`
	OutputReserve    int     `json:"output_reserve"`
}

// TelegramConfig configures the optional recruiter notifier. An empty
// token disables it.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// SessionConfig carries the interview schedule in seconds, mirroring the
// production defaults baked into the session package.
type SessionConfig struct {
	ScenarioID        string  `json:"scenario_id"`
	CandidateAudit    string  `json:"candidate_audit"`
	Role              string  `json:"role"`
	MaxDurationSec    int     `json:"max_duration_sec"`
	WarningAtSec      int     `json:"warning_at_sec"`
	CrisisFirstSec    int     `json:"crisis_first_sec"`
	CrisisSecondSec   int     `json:"crisis_second_sec"`
	PressureGraceSec  int     `json:"pressure_grace_sec"`
	PressureMinSec    int     `json:"pressure_min_sec"`
	PressureMaxSec    int     `json:"pressure_max_sec"`
	PressureChance    float64 `json:"pressure_chance"`
	MoleMinSec        int     `json:"mole_min_sec"`
	MoleMaxSec        int     `json:"mole_max_sec"`
	EvalConcurrency   int64   `json:"eval_concurrency"`
	GoodbyeTimeoutSec int     `json:"goodbye_timeout_sec"`
}

// JanitorConfig controls the stale-session sweep.
type JanitorConfig struct {
	Schedule   string `json:"schedule"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "data",
		LogLevel: "info",
		Listen:   ":8080",
		LLM: LLMConfig{
			BaseURL:          "https://api.openai.com/v1",
			Model:            "gpt-4o-mini",
			MaxTokens:        1024,
			Temperature:      0.7,
			MaxContextTokens: 16000,
			OutputReserve:    1000,
		},
		Session: SessionConfig{
			ScenarioID:        "devops-redis-latency",
			Role:              "SRE / Incident Commander",
			MaxDurationSec:    2400,
			WarningAtSec:      2100,
			CrisisFirstSec:    180,
			CrisisSecondSec:   300,
			PressureGraceSec:  20,
			PressureMinSec:    15,
			PressureMaxSec:    40,
			PressureChance:    0.5,
			MoleMinSec:        30,
			MoleMaxSec:        60,
			EvalConcurrency:   2,
			GoodbyeTimeoutSec: 10,
		},
		Janitor: JanitorConfig{
			Schedule:   "0 3 * * *",
			MaxAgeDays: 30,
		},
	}
}

// Load reads the config file at path, creating it with defaults when it
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Info("config file not found, writing defaults", "path", path)
		if werr := writeDefaults(path, cfg); werr != nil {
			return nil, werr
		}
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of disk.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
}

// writeDefaults persists the default config atomically so a crash never
// leaves a half-written file behind.
func writeDefaults(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write defaults: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install defaults: %w", err)
	}
	return nil
}
