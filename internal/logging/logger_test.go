package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"nonsense", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level)

			logger.Debug("debug message")

			got := strings.Contains(buf.String(), "debug message")
			if got != tt.wantDebug {
				t.Errorf("debug emitted = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestRedactSecrets(t *testing.T) {
	secretKeys := []string{
		"MANATAL_API_KEY",
		"TESTDOME_CLIENT_SECRET",
		"app_password",
		"gmail_token",
	}

	for _, key := range secretKeys {
		t.Run(key, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, "info")

			logger.Info("credentials loaded", key, "super-secret-value")

			if strings.Contains(buf.String(), "super-secret-value") {
				t.Errorf("secret value for %s leaked into log output: %s", key, buf.String())
			}
			if !strings.Contains(buf.String(), "***REDACTED***") {
				t.Errorf("expected redaction marker for %s, got: %s", key, buf.String())
			}
		})
	}
}

func TestRedactSecrets_LeavesNormalFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info("run started", "operation", "sync_gmail", "run_id", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["operation"] != "sync_gmail" {
		t.Errorf("operation = %v, want sync_gmail", entry["operation"])
	}
}

func TestNewFromConfig_TextFormat(t *testing.T) {
	logger, err := NewFromConfig("text", "info", "discard")
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewFromConfig() returned nil logger")
	}
}
