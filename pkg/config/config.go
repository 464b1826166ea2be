package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	LLM     LLMConfig     `yaml:"llm"`
	Live    LiveConfig    `yaml:"live"`
	Board   BoardConfig   `yaml:"board"`
	Player  PlayerConfig  `yaml:"player"`
	Content ContentConfig `yaml:"content"`
	Audio   AudioConfig   `yaml:"audio"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Gemini LogSettings `yaml:"gemini"`
	Live   LogSettings `yaml:"live"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path        string `yaml:"path"`
	MaterialCSV string `yaml:"material_csv"` // optional course material import
}

// LLMConfig holds settings for the Large Language Model provider.
type LLMConfig struct {
	Provider      string            `yaml:"provider"`       // "gemini", "mock"
	Model         string            `yaml:"model"`          // default model
	FallbackModel string            `yaml:"fallback_model"` // tried when the primary model errors, "" disables
	Key           string            `yaml:"key"`            // API Key
	Profiles      map[string]string `yaml:"profiles"`       // Map of intent -> model
}

// LiveConfig holds settings for the realtime voice session.
type LiveConfig struct {
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	Endpoint string `yaml:"endpoint"` // override for testing, empty = production
}

// BoardConfig holds scene board dimensions and playback timing.
type BoardConfig struct {
	Width          int      `yaml:"width"`
	Height         int      `yaml:"height"`
	FrameInterval  Duration `yaml:"frame_interval"`
	CheckpointLead float64  `yaml:"checkpoint_lead_sec"` // pause this long before sequence end
}

// PlayerConfig holds player session settings.
type PlayerConfig struct {
	DefaultUser string   `yaml:"default_user"`
	HistoryKeep int      `yaml:"history_keep"` // turns kept verbatim after compaction
	HistoryMax  int      `yaml:"history_max"`  // compaction threshold
	SessionTTL  Duration `yaml:"session_ttl"`
}

// ContentConfig holds lesson generation settings.
type ContentConfig struct {
	FallbackSpeakLimit int `yaml:"fallback_speak_limit"` // chars narrated from unparseable output
	ChunkChars         int `yaml:"chunk_chars"`          // material chunk size
}

// AudioConfig holds playback audio settings.
type AudioConfig struct {
	Volume float64 `yaml:"volume"` // 0.0 .. 1.0
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:1921",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Gemini: LogSettings{
				Path:  "./logs/gemini.log",
				Level: "INFO",
			},
			Live: LogSettings{
				Path:  "./logs/live.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/tutor.db",
		},
		LLM: LLMConfig{
			Provider:      "gemini",
			Model:         "gemini-2.5-flash",
			FallbackModel: "gemini-pro",
			Key:           "",
			Profiles: map[string]string{
				"lesson":    "gemini-2.5-flash",
				"interrupt": "gemini-2.5-flash",
				"judge":     "gemini-2.5-flash-lite",
			},
		},
		Live: LiveConfig{
			Model: "models/gemini-2.0-flash-exp",
			Voice: "Puck",
		},
		Board: BoardConfig{
			Width:          1200,
			Height:         800,
			FrameInterval:  Duration(33 * time.Millisecond),
			CheckpointLead: 2.0,
		},
		Player: PlayerConfig{
			DefaultUser: "local",
			HistoryKeep: 5,
			HistoryMax:  10,
			SessionTTL:  Duration(90 * 24 * time.Hour),
		},
		Content: ContentConfig{
			FallbackSpeakLimit: 500,
			ChunkChars:         2000,
		},
		Audio: AudioConfig{
			Volume: 1.0,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Read existing file if it exists
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Load from Env if empty (as a fallback, but do NOT save back to disk)
		if cfg.LLM.Key == "" {
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				cfg.LLM.Key = key
			}
		}

		return cfg, nil
	}

	// If file does not exist, save defaults
	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env fallback applies to freshly written defaults too
	if cfg.LLM.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.Key = key
		}
	}

	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# TutorGo Configuration
# --------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	// Inject comments for Enum fields
	// We use regex to find the keys with indentation to ensure we place comments correctly.

	// LLM Provider Options
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: gemini, mock\n${1}provider:"))

	// Live Voice Options
	reVoice := regexp.MustCompile(`(?m)^(\s+)voice:`)
	data = reVoice.ReplaceAll(data, []byte("${1}# Options: Puck, Charon, Kore, Fenrir, Aoede\n${1}voice:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write default config
	return Save(path, DefaultConfig())
}
