// Package config turns the CONFIG environment variable (a flat JSON object)
// into one immutable Config that is handed to every component. Nothing else
// in the tool reads process state.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/stepsync-dev/stepsync/internal/account"
)

// EnvVar names the environment variable holding the JSON configuration.
const EnvVar = "CONFIG"

// accountSeparator splits the USER and PWD lists.
const accountSeparator = "#"

// Defaults, matching the documented configuration table.
const (
	DefaultMinStep     = 6000
	DefaultMaxStep     = 24000
	DefaultSleepGap    = 5 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2.0
	DefaultPushMax     = 30
)

// StepMode selects the generator table.
const (
	StepModeRamp  = "ramp"
	StepModeFixed = "fixed"
)

// Push holds the notification settings.
type Push struct {
	Token       string
	Hour        int // -1: no hour filter
	MaxAccounts int
}

// Enabled reports whether a usable token is configured. The literal "NO"
// disables notifications, a quirk kept for compatibility with existing
// deployments.
func (p Push) Enabled() bool {
	return p.Token != "" && p.Token != "NO"
}

type Config struct {
	Accounts []account.Account

	Endpoint string // empty: use the built-in endpoint
	StepMode string
	MinStep  int
	MaxStep  int

	SleepGap    time.Duration
	Concurrent  bool
	MaxRetries  int
	BackoffBase float64

	Push Push
}

// Load reads the CONFIG variable, optionally seeded from a .env file.
// On error the returned Config still carries whatever Push settings could
// be parsed, so a startup failure can be notified.
func Load() (Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is normal

	raw, ok := os.LookupEnv(EnvVar)
	if !ok {
		return Config{Push: Push{Hour: -1, MaxAccounts: DefaultPushMax}},
			errors.Errorf("%s environment variable is not set", EnvVar)
	}
	return Parse(raw)
}

// Parse decodes the JSON object and applies defaults. Structural problems
// (non-object payload, mismatched account/secret lists, zero accounts) are
// fatal configuration errors; no submission may start after one.
func Parse(raw string) (Config, error) {
	cfg := Config{
		StepMode:    StepModeRamp,
		MinStep:     DefaultMinStep,
		MaxStep:     DefaultMaxStep,
		SleepGap:    DefaultSleepGap,
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		Push:        Push{Hour: -1, MaxAccounts: DefaultPushMax},
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return cfg, errors.Wrapf(err, "%s is not a valid JSON object", EnvVar)
	}

	// Push settings first: a later structural error should still be
	// notifiable.
	cfg.Push.Token = getString(m, "PUSH_PLUS_TOKEN", "")
	cfg.Push.Hour = parseHour(getString(m, "PUSH_PLUS_HOUR", ""))
	cfg.Push.MaxAccounts = getInt(m, "PUSH_PLUS_MAX", DefaultPushMax)

	users := splitList(getString(m, "USER", ""))
	secrets := splitList(getString(m, "PWD", ""))
	if len(users) != len(secrets) {
		return cfg, errors.Errorf("USER has %d entries but PWD has %d; the lists must pair up",
			len(users), len(secrets))
	}
	if len(users) == 0 {
		return cfg, errors.New("no accounts configured; set USER and PWD")
	}
	cfg.Accounts = make([]account.Account, len(users))
	for i := range users {
		cfg.Accounts[i] = account.Account{Identifier: users[i], Secret: secrets[i]}
	}

	cfg.Endpoint = getString(m, "API", "")
	cfg.MinStep = getInt(m, "MIN_STEP", DefaultMinStep)
	cfg.MaxStep = getInt(m, "MAX_STEP", DefaultMaxStep)
	if cfg.MinStep <= 0 || cfg.MaxStep < cfg.MinStep {
		return cfg, errors.Errorf("invalid step bounds [%d,%d]", cfg.MinStep, cfg.MaxStep)
	}

	cfg.StepMode = strings.ToLower(getString(m, "STEP_MODE", StepModeRamp))
	if cfg.StepMode != StepModeRamp && cfg.StepMode != StepModeFixed {
		return cfg, errors.Errorf("STEP_MODE must be %q or %q, got %q", StepModeRamp, StepModeFixed, cfg.StepMode)
	}

	if gap := getInt(m, "SLEEP_GAP", int(DefaultSleepGap/time.Second)); gap >= 0 {
		cfg.SleepGap = time.Duration(gap) * time.Second
	}
	cfg.Concurrent = getBool(m, "USE_CONCURRENT", false)
	cfg.MaxRetries = getInt(m, "MAX_RETRIES", DefaultMaxRetries)
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BackoffBase = getFloat(m, "BACKOFF_BASE", DefaultBackoffBase)
	if cfg.BackoffBase < 1 {
		cfg.BackoffBase = DefaultBackoffBase
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, accountSeparator)
}

// The original deployments set numbers both as JSON numbers and as quoted
// strings; both are accepted, anything else falls back to the default.

func getString(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return def
	}
}

func getInt(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(m map[string]any, key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return def
}

// parseHour returns -1 for anything that is not a plain hour; a configured
// but non-numeric value means "no filter", as before.
func parseHour(s string) int {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	return h
}
