package ops

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EnvPrefix marks the environment variables carrying run parameters
// into the child process.
const EnvPrefix = "SCREENING_PARAM_"

// Params are the decoded textual parameters of one run.
type Params map[string]string

// EncodeEnv serializes parameters into environment variable pairs.
// Booleans become lowercase true/false, numbers their decimal form,
// and composites JSON, so the child can decode without a schema.
func EncodeEnv(params map[string]any) ([]string, error) {
	env := make([]string, 0, len(params))
	for name, value := range params {
		text, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", name, err)
		}
		env = append(env, EnvPrefix+strings.ToUpper(name)+"="+text)
	}
	sort.Strings(env)
	return env, nil
}

func encodeValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		// JSON numbers decode as float64; keep integers undecorated.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// DecodeEnv extracts run parameters from an environment listing as
// produced by os.Environ.
func DecodeEnv(environ []string) Params {
	params := make(Params)
	for _, pair := range environ {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		if key == "" {
			continue
		}
		params[key] = value
	}
	return params
}

// String returns the named parameter or a fallback when unset.
func (p Params) String(name, fallback string) string {
	if v, ok := p[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Bool parses the named parameter, returning the fallback when unset
// or unparseable.
func (p Params) Bool(name string, fallback bool) bool {
	v, ok := p[name]
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

// Int parses the named parameter, returning the fallback when unset or
// unparseable.
func (p Params) Int(name string, fallback int) int {
	v, ok := p[name]
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}
