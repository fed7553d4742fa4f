// Package config defines the explicit configuration object constructed once
// at process start and passed by reference into gateways and operations.
package config

// Config is the top-level configuration for screenops.
type Config struct {
	Logging   Logging    `yaml:"logging"`
	Server    Server     `yaml:"server"`
	Store     Store      `yaml:"store"`
	Manatal   Manatal    `yaml:"manatal"`
	TestDome  TestDome   `yaml:"testdome"`
	Gmail     Gmail      `yaml:"gmail"`
	SMTP      SMTP       `yaml:"smtp"`
	Classify  Classify   `yaml:"classify"`
	Templates Templates  `yaml:"templates"`
	Boards    []Board    `yaml:"boards"`
	Schedules []Schedule `yaml:"schedules"`
}

// Logging controls the slog handler built at startup.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

// Server holds the dashboard HTTP settings.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store configures run-history persistence.
type Store struct {
	Driver string `yaml:"driver"` // "sqlite" or "bbolt"
	Path   string `yaml:"path"`
}

// Manatal holds the applicant-tracking API settings. The API key is read
// from MANATAL_API_KEY at load time.
type Manatal struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

// TestDome holds the assessment API settings. Client credentials are read
// from TESTDOME_CLIENT_ID / TESTDOME_CLIENT_SECRET at load time.
type TestDome struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	PageSize     int    `yaml:"page_size"`
}

// Gmail holds the mailbox read settings (OAuth user-consent flow with a
// locally cached token).
type Gmail struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	SearchAfter     string `yaml:"search_after"` // Gmail date filter, e.g. 2025/10/16
	MaxResults      int64  `yaml:"max_results"`
}

// SMTP holds outbound mail-submission settings. Credentials come from
// GMAIL_USER / GMAIL_APP_PASSWORD at load time.
type SMTP struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"-"`
	AppPassword string `yaml:"-"`
	Subject     string `yaml:"subject"`
	// PaceSeconds is the pause between consecutive sends, honoring the
	// provider's sending throttle.
	PaceSeconds int `yaml:"pace_seconds"`
}

// Classify exposes the score thresholds used by the classification rules.
type Classify struct {
	PassThreshold float64 `yaml:"pass_threshold"`
	FailThreshold float64 `yaml:"fail_threshold"`
}

// Templates points at the directory of editable email body templates.
type Templates struct {
	Dir        string `yaml:"dir"`
	DropFile   string `yaml:"drop_file"`
	PassFile   string `yaml:"pass_file"`
	InviteFile string `yaml:"invite_file"`
}

// Board describes one hiring pipeline: a job plus its named stages.
// Stage values are the human-readable labels as they appear in the ATS;
// they are resolved to backend identifiers at operation runtime.
type Board struct {
	Name          string            `yaml:"name"`
	JobID         string            `yaml:"job_id"`
	JobIDEnv      string            `yaml:"job_id_env"` // optional env var holding the job id
	SubjectPrefix string            `yaml:"subject_prefix"`
	Stages        map[string]string `yaml:"stages"`
}

// Stage keys every board is expected to declare.
const (
	StageNewApplication  = "new_application"
	StagePreliminaryTest = "preliminary_test"
	StageInterview       = "interview"
)

// Schedule starts an operation on a cron expression, exactly as an
// operator would from the dashboard.
type Schedule struct {
	Operation string         `yaml:"operation"`
	Cron      string         `yaml:"cron"`
	Params    map[string]any `yaml:"params"`
}

// StageLabel returns the configured label for a stage key, or "" if the
// board does not declare it.
func (b Board) StageLabel(key string) string {
	return b.Stages[key]
}
