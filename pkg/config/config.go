package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

const (
	xdgAppName = "opcal"
	configFile = "config.toml"
	envPrefix  = "OPCAL_"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "OPCAL_CONFIG"

	defaultTimeMin = "2025-02-01T00:00:00Z"
)

// ErrIncomplete is returned by Validate when required keys are missing.
var ErrIncomplete = errors.New("incomplete configuration")

// Config is built once at startup and handed to everything that needs it.
type Config struct {
	OpenProjectURL    string `toml:"openproject_url"`
	OpenProjectAPIKey string `toml:"openproject_api_key"`
	Project           string `toml:"project"`
	DueHourField      string `toml:"due_hour_field"`
	PageSize          int    `toml:"page_size"`

	CalendarID      string `toml:"calendar_id"`
	CalendarTimeMin string `toml:"calendar_time_min"`
	Timezone        string `toml:"timezone"`

	SheetID   string `toml:"sheet_id"`
	AuditFile string `toml:"audit_file"`

	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
}

// Dir returns the directory holding the config file, token and audit log.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		DueHourField:    "customField19",
		PageSize:        100,
		CalendarID:      "primary",
		CalendarTimeMin: defaultTimeMin,
		Timezone:        "Local",
	}
	if dir, err := Dir(); err == nil {
		cfg.CredentialsFile = filepath.Join(dir, "credentials.json")
		cfg.TokenFile = filepath.Join(dir, "token.json")
	}
	return cfg
}

// Load reads the config file at path (GetConfigPath when empty), then applies
// OPCAL_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides every field whose upper-cased toml key is set as OPCAL_<KEY>.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("toml")
		val, ok := lookup(envPrefix + strings.ToUpper(key))
		if !ok {
			continue
		}
		f := v.Field(i)
		switch f.Kind() {
		case reflect.String:
			f.SetString(val)
		case reflect.Int:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, strings.ToUpper(key), err)
			}
			f.SetInt(int64(n))
		}
	}
	return nil
}

// Validate reports every required key that is empty.
func (c *Config) Validate() error {
	var missing []string
	for key, val := range map[string]string{
		"openproject_url":     c.OpenProjectURL,
		"openproject_api_key": c.OpenProjectAPIKey,
		"project":             c.Project,
		"calendar_id":         c.CalendarID,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.TimeMin(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; "" and "Local" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TimeMin is the earliest event start considered part of the calendar snapshot.
func (c *Config) TimeMin() (time.Time, error) {
	s := c.CalendarTimeMin
	if s == "" {
		s = defaultTimeMin
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar_time_min %q: %w", s, err)
	}
	return t, nil
}

func Save(path string, cfg *Config) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
