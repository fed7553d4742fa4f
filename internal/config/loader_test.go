package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screenops.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
boards:
  - name: DEV
    job_id: "303943"
    stages:
      new_application: "New application"
      preliminary_test: "Preliminary test"
      interview: "Intro call"
`

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Manatal.BaseURL != "https://api.manatal.com/open/v3" {
		t.Errorf("Manatal.BaseURL = %q", cfg.Manatal.BaseURL)
	}
	if cfg.Classify.PassThreshold != 80 || cfg.Classify.FailThreshold != 60 {
		t.Errorf("thresholds = %v/%v, want 80/60", cfg.Classify.PassThreshold, cfg.Classify.FailThreshold)
	}
	if cfg.SMTP.Port != 465 {
		t.Errorf("SMTP.Port = %d, want 465", cfg.SMTP.Port)
	}
	if cfg.Templates.DropFile != "drop.txt" || cfg.Templates.PassFile != "pass.txt" || cfg.Templates.InviteFile != "invite.txt" {
		t.Errorf("template files = %q/%q/%q, want drop.txt/pass.txt/invite.txt",
			cfg.Templates.DropFile, cfg.Templates.PassFile, cfg.Templates.InviteFile)
	}
}

func TestLoad_EnvCredentials(t *testing.T) {
	t.Setenv("MANATAL_API_KEY", "key-123")
	t.Setenv("TESTDOME_CLIENT_ID", "cid")
	t.Setenv("TESTDOME_CLIENT_SECRET", "csecret")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Manatal.APIKey != "key-123" {
		t.Errorf("Manatal.APIKey = %q, want key-123", cfg.Manatal.APIKey)
	}
	if cfg.TestDome.ClientID != "cid" || cfg.TestDome.ClientSecret != "csecret" {
		t.Errorf("TestDome credentials not read from env")
	}
}

func TestLoad_JobIDEnvOverride(t *testing.T) {
	t.Setenv("MANATAL_JOB_DEV_ID", "999111")

	content := `
boards:
  - name: DEV
    job_id: "303943"
    job_id_env: MANATAL_JOB_DEV_ID
    stages:
      new_application: "New application"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Boards[0].JobID != "999111" {
		t.Errorf("JobID = %q, want env override 999111", cfg.Boards[0].JobID)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no boards",
			content: `server: {addr: ":8080"}`,
			wantErr: "no boards",
		},
		{
			name: "duplicate board",
			content: `
boards:
  - name: DEV
    job_id: "1"
    stages: {new_application: "a"}
  - name: DEV
    job_id: "2"
    stages: {new_application: "a"}
`,
			wantErr: "duplicate board",
		},
		{
			name: "missing job id",
			content: `
boards:
  - name: TL
    stages: {new_application: "a"}
`,
			wantErr: "no job id",
		},
		{
			name: "bad store driver",
			content: `
store: {driver: redis}
boards:
  - name: DEV
    job_id: "1"
    stages: {new_application: "a"}
`,
			wantErr: "invalid store driver",
		},
		{
			name: "inverted thresholds",
			content: `
classify: {pass_threshold: 50, fail_threshold: 70}
boards:
  - name: DEV
    job_id: "1"
    stages: {new_application: "a"}
`,
			wantErr: "fail_threshold",
		},
		{
			name: "schedule without cron",
			content: `
schedules:
  - operation: sync_gmail
boards:
  - name: DEV
    job_id: "1"
    stages: {new_application: "a"}
`,
			wantErr: "cron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBoardByName(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	board, ok := cfg.BoardByName("DEV")
	if !ok {
		t.Fatal("BoardByName(DEV) not found")
	}
	if board.StageLabel(StagePreliminaryTest) != "Preliminary test" {
		t.Errorf("StageLabel = %q", board.StageLabel(StagePreliminaryTest))
	}

	if _, ok := cfg.BoardByName("QA"); ok {
		t.Error("BoardByName(QA) should not be found")
	}
}
