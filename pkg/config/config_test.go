package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tutor.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {}, // No file
			validate: func(t *testing.T, cfg *Config) {
				if cfg.LLM.Provider != "gemini" {
					t.Errorf("expected default provider 'gemini', got '%s'", cfg.LLM.Provider)
				}
				if cfg.Live.Voice != "Puck" {
					t.Errorf("expected default voice 'Puck', got '%s'", cfg.Live.Voice)
				}
				if cfg.Content.FallbackSpeakLimit != 500 {
					t.Errorf("expected fallback limit 500, got %d", cfg.Content.FallbackSpeakLimit)
				}
				if time.Duration(cfg.Board.FrameInterval) != 33*time.Millisecond {
					t.Errorf("expected 33ms frame interval, got %v", time.Duration(cfg.Board.FrameInterval))
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "provider: gemini") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: Puck, Charon, Kore, Fenrir, Aoede") {
					t.Error("config file missing voice options comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("board:\n  width: 1920\n  checkpoint_lead_sec: 3.5\ncontent:\n  fallback_speak_limit: 250\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Board.Width != 1920 {
					t.Errorf("expected width 1920, got %d", cfg.Board.Width)
				}
				if cfg.Board.CheckpointLead != 3.5 {
					t.Errorf("expected checkpoint lead 3.5, got %v", cfg.Board.CheckpointLead)
				}
				if cfg.Content.FallbackSpeakLimit != 250 {
					t.Errorf("expected fallback limit 250, got %d", cfg.Content.FallbackSpeakLimit)
				}
				// Sections absent from the file keep their defaults
				if cfg.Board.Height != 800 {
					t.Errorf("expected default height 800, got %d", cfg.Board.Height)
				}
				if cfg.Server.Address != "localhost:1921" {
					t.Errorf("expected default address, got '%s'", cfg.Server.Address)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "width: 1920") {
					t.Error("config file should persist custom value")
				}
				// Merged defaults must not be written back
				if strings.Contains(string(content), "localhost:1921") {
					t.Error("defaults should not be saved back into an existing file")
				}
			},
		},
		{
			name: "LLM_Env_Override",
			setup: func() {
				t.Setenv("GEMINI_API_KEY", "env_secret_key")
				err := os.WriteFile(configPath, []byte("llm:\n  key: \"\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.LLM.Key != "env_secret_key" {
					t.Errorf("expected Key 'env_secret_key', got '%s'", cfg.LLM.Key)
				}
			},
			checkFile: func(t *testing.T) {
				// Env overrides should NOT be saved to disk
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "env_secret_key") {
					t.Error("environment secret should NOT be persisted to config file")
				}
			},
		},
		{
			name: "File_Key_Wins_Over_Env",
			setup: func() {
				t.Setenv("GEMINI_API_KEY", "env_secret_key")
				err := os.WriteFile(configPath, []byte("llm:\n  key: file_key\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.LLM.Key != "file_key" {
					t.Errorf("expected file key to win, got '%s'", cfg.LLM.Key)
				}
			},
			checkFile: func(t *testing.T) {},
		},
		{
			name: "Duration_Units",
			setup: func() {
				err := os.WriteFile(configPath, []byte("player:\n  session_ttl: 2w\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if time.Duration(cfg.Player.SessionTTL) != 14*24*time.Hour {
					t.Errorf("expected 2 weeks, got %v", time.Duration(cfg.Player.SessionTTL))
				}
			},
			checkFile: func(t *testing.T) {},
		},
		{
			name: "Invalid_YAML",
			setup: func() {
				err := os.WriteFile(configPath, []byte("board: [not a map]"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if err == nil {
				tt.validate(t, cfg)
				tt.checkFile(t)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "default_config.yaml")

	err := GenerateDefault(configPath)
	if err != nil {
		t.Fatalf("GenerateDefault() error = %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("GenerateDefault() did not create file")
	}

	// Running again should not fail
	err = GenerateDefault(configPath)
	if err != nil {
		t.Errorf("GenerateDefault() error on second run = %v", err)
	}
}
