package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults, and validates a screenops configuration file.
// Credentials are overlaid from the environment so they never live in the
// YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)
	overlayEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./screenops.db"
	}

	if cfg.Manatal.BaseURL == "" {
		cfg.Manatal.BaseURL = "https://api.manatal.com/open/v3"
	}
	if cfg.TestDome.BaseURL == "" {
		cfg.TestDome.BaseURL = "https://api.testdome.com"
	}
	if cfg.TestDome.PageSize == 0 {
		cfg.TestDome.PageSize = 100
	}

	if cfg.Gmail.CredentialsFile == "" {
		cfg.Gmail.CredentialsFile = "config/google-oauth-credentials.json"
	}
	if cfg.Gmail.TokenFile == "" {
		cfg.Gmail.TokenFile = "config/token.json"
	}
	if cfg.Gmail.MaxResults == 0 {
		cfg.Gmail.MaxResults = 50
	}

	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 465
	}
	if cfg.SMTP.Subject == "" {
		cfg.SMTP.Subject = "Your application"
	}
	if cfg.SMTP.PaceSeconds == 0 {
		cfg.SMTP.PaceSeconds = 65
	}

	if cfg.Classify.PassThreshold == 0 {
		cfg.Classify.PassThreshold = 80
	}
	if cfg.Classify.FailThreshold == 0 {
		cfg.Classify.FailThreshold = 60
	}

	if cfg.Templates.Dir == "" {
		cfg.Templates.Dir = "./emails"
	}
	if cfg.Templates.DropFile == "" {
		cfg.Templates.DropFile = "drop.txt"
	}
	if cfg.Templates.PassFile == "" {
		cfg.Templates.PassFile = "pass.txt"
	}
	if cfg.Templates.InviteFile == "" {
		cfg.Templates.InviteFile = "invite.txt"
	}
}

// overlayEnv pulls credentials and per-board job id overrides from the
// process environment.
func overlayEnv(cfg *Config) {
	cfg.Manatal.APIKey = os.Getenv("MANATAL_API_KEY")
	cfg.TestDome.ClientID = os.Getenv("TESTDOME_CLIENT_ID")
	cfg.TestDome.ClientSecret = os.Getenv("TESTDOME_CLIENT_SECRET")
	cfg.SMTP.User = os.Getenv("GMAIL_USER")
	cfg.SMTP.AppPassword = os.Getenv("GMAIL_APP_PASSWORD")

	for i := range cfg.Boards {
		board := &cfg.Boards[i]
		if board.JobIDEnv != "" {
			if v := os.Getenv(board.JobIDEnv); v != "" {
				board.JobID = v
			}
		}
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	validDrivers := map[string]bool{
		"sqlite": true,
		"bbolt":  true,
	}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("invalid store driver: %s (must be 'sqlite' or 'bbolt')", cfg.Store.Driver)
	}

	if cfg.Classify.FailThreshold > cfg.Classify.PassThreshold {
		return fmt.Errorf("classify.fail_threshold (%.0f) must not exceed classify.pass_threshold (%.0f)",
			cfg.Classify.FailThreshold, cfg.Classify.PassThreshold)
	}

	if len(cfg.Boards) == 0 {
		return fmt.Errorf("no boards defined in configuration")
	}

	boardNames := make(map[string]bool)
	for i, board := range cfg.Boards {
		if board.Name == "" {
			return fmt.Errorf("board at index %d is missing a name", i)
		}
		if boardNames[board.Name] {
			return fmt.Errorf("duplicate board name: %s", board.Name)
		}
		boardNames[board.Name] = true

		if board.JobID == "" {
			return fmt.Errorf("board %s has no job id (set job_id or export %s)",
				board.Name, envOrPlaceholder(board.JobIDEnv))
		}
		if len(board.Stages) == 0 {
			return fmt.Errorf("board %s declares no stages", board.Name)
		}
	}

	for i, sched := range cfg.Schedules {
		if sched.Operation == "" {
			return fmt.Errorf("schedule at index %d is missing an operation", i)
		}
		if strings.TrimSpace(sched.Cron) == "" {
			return fmt.Errorf("schedule for %s is missing a cron expression", sched.Operation)
		}
	}

	return nil
}

func envOrPlaceholder(env string) string {
	if env == "" {
		return "job_id_env"
	}
	return env
}

// BoardByName returns the configured board with the given name.
func (c *Config) BoardByName(name string) (Board, bool) {
	for _, b := range c.Boards {
		if b.Name == name {
			return b, true
		}
	}
	return Board{}, false
}

// BoardNames returns the configured board names in declaration order.
func (c *Config) BoardNames() []string {
	names := make([]string, 0, len(c.Boards))
	for _, b := range c.Boards {
		names = append(names, b.Name)
	}
	return names
}
