package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tutorgo/pkg/config"
	"tutorgo/pkg/model"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	liveLog := filepath.Join(tempDir, "live.log")
	eventLog := filepath.Join(tempDir, "events.log")

	cfg := &config.LogConfig{
		Server: config.LogSettings{
			Path:  serverLog,
			Level: "DEBUG",
		},
		Live: config.LogSettings{
			Path:  liveLog,
			Level: "INFO",
		},
	}

	// Run Init
	cleanup, err := Init(cfg, eventLog)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	// Verify Files Created
	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(liveLog); os.IsNotExist(err) {
		t.Error("Live log file not created")
	}

	// Verify LiveLogger is set
	if LiveLogger == nil {
		t.Error("LiveLogger was not initialized")
	}
}

func TestLogEvent(t *testing.T) {
	tempDir := t.TempDir()
	eventLog := filepath.Join(tempDir, "events.log")
	SetEventLogPath(eventLog)
	defer SetEventLogPath("")

	LogEvent(&model.LessonEvent{
		Type:    model.EventCheckpointPassed,
		Title:   "Fractions checkpoint",
		Summary: "answered on first try",
	})

	data, err := os.ReadFile(eventLog)
	if err != nil {
		t.Fatalf("event log not written: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[checkpoint_passed] Fractions checkpoint - answered on first try") {
		t.Errorf("event line = %q", line)
	}
	if !strings.Contains(GlobalEventCapture.GetLastLine(), "Fractions checkpoint") {
		t.Error("event not mirrored to capture buffer")
	}
}
