package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	intervalPattern = regexp.MustCompile(`^every\s+(\d+)\s*(s|sec|second|seconds|m|min|minute|minutes|h|hour|hours|d|day|days)$`)
)

// ParseExpr parses a schedule expression. Accepted forms are standard
// cron (5 or 6 fields), descriptors such as "@hourly" and "@daily",
// and readable intervals such as "every 30m".
func ParseExpr(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule expression cannot be empty")
	}

	if strings.HasPrefix(strings.ToLower(expr), "every ") {
		sched, err := parseInterval(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid interval expression %q: %w", expr, err)
		}
		return sched, nil
	}

	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

func parseInterval(expr string) (cron.Schedule, error) {
	matches := intervalPattern.FindStringSubmatch(strings.ToLower(expr))
	if len(matches) != 3 {
		return nil, fmt.Errorf("expected 'every <number> <unit>'")
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil || value <= 0 {
		return nil, fmt.Errorf("interval must be a positive integer")
	}

	var unit time.Duration
	switch matches[2][0] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	}
	interval := time.Duration(value) * unit

	if interval < time.Second {
		return nil, fmt.Errorf("interval must be at least 1 second")
	}
	return cron.Every(interval), nil
}

// ValidateExpr reports whether an expression would be accepted.
func ValidateExpr(expr string) error {
	_, err := ParseExpr(expr)
	return err
}
