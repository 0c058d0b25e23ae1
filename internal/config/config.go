package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"unical/internal/week"
)

// RedisConfig enables the Redis-backed preference store when URL is set.
type RedisConfig struct {
	URL    string `yaml:"url" json:"url"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the viewer's IANA zone; every event is rendered in it.
	Timezone string `yaml:"timezone" json:"timezone"`

	// BackendURL is the base URL of the proxy in front of the platforms.
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	// CalendarID is the default calendar/course identifier sent with fetches.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`

	// SlotTimezone is the zone the canonical lesson slots are defined in.
	SlotTimezone string `yaml:"slot_timezone" json:"slot_timezone"`

	// Slots are the six daily lesson slots as "HH:MM" clock times.
	Slots []week.ClockSlot `yaml:"slots" json:"slots"`

	// RefreshCron schedules forced cache refreshes (e.g. "0 */2 * * *").
	// Empty disables periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RequestTimeoutSeconds bounds each backend call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	// ReauthDelaySeconds is how long the session-expired notice stays up
	// before the front-end should redirect to login.
	ReauthDelaySeconds int `yaml:"reauth_delay_seconds" json:"reauth_delay_seconds"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Redis RedisConfig `yaml:"redis" json:"redis"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                "127.0.0.1:8080",
		Timezone:              "Asia/Yekaterinburg",
		BackendURL:            "http://127.0.0.1:8000",
		SlotTimezone:          "Asia/Yekaterinburg",
		Slots:                 append([]week.ClockSlot(nil), week.DefaultClockSlots...),
		RefreshCron:           "0 */2 * * *",
		RequestTimeoutSeconds: 15,
		ReauthDelaySeconds:    3,
		LogLevel:              "INFO",
		Redis:                 RedisConfig{Prefix: "unical:prefs"},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.BackendURL == "" {
		c.BackendURL = def.BackendURL
	}
	if c.SlotTimezone == "" {
		c.SlotTimezone = c.Timezone
	}
	// A slot table that does not describe six valid slots is replaced as a
	// whole; mixing user and default slots would shift the grid.
	if len(c.Slots) != week.SlotCount || week.ValidateClockSlots(c.Slots) != nil {
		c.Slots = def.Slots
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = def.RequestTimeoutSeconds
	}
	if c.ReauthDelaySeconds <= 0 {
		c.ReauthDelaySeconds = def.ReauthDelaySeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = def.Redis.Prefix
	}
}

// RequestTimeout returns the backend call timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ReauthDelay returns the session-expired notice delay.
func (c *Config) ReauthDelay() time.Duration {
	return time.Duration(c.ReauthDelaySeconds) * time.Second
}

// envOverrides maps environment variables onto config fields.
var envOverrides = map[string]func(*Config, string){
	"UNICAL_LISTEN":      func(c *Config, v string) { c.Listen = v },
	"UNICAL_TIMEZONE":    func(c *Config, v string) { c.Timezone = v },
	"UNICAL_BACKEND_URL": func(c *Config, v string) { c.BackendURL = v },
	"UNICAL_CALENDAR_ID": func(c *Config, v string) { c.CalendarID = v },
	"UNICAL_REDIS_URL":   func(c *Config, v string) { c.Redis.URL = v },
	"UNICAL_LOG_LEVEL":   func(c *Config, v string) { c.LogLevel = v },
}

// ApplyEnv loads the given .env files (missing files are ignored) and then
// applies UNICAL_* environment variables on top of c.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	for key, apply := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			apply(c, v)
		}
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".unical-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
