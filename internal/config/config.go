// Package config loads server settings from defaults, an optional JSONC
// file and the environment. Command-line flags are applied by the caller.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

var (
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigFileNotFound = errors.New("config file not found")
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Notifier kinds.
const (
	NotifyNone  = "none"
	NotifySpool = "spool"
	NotifyGmail = "gmail"
)

// Duration is a time.Duration written as "10s" in config files.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all configuration options.
type Config struct {
	Listen      string `json:"listen"`
	Driver      string `json:"driver"` // postgres or sqlite
	DatabaseURL string `json:"database_url,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty"`

	Notify Notify `json:"notify"`
	Admin  Admin  `json:"admin"`

	// Source is the config file that was loaded, if any.
	Source string `json:"-"`
}

// Notify selects how assignees hear about new assignments.
type Notify struct {
	Kind            string   `json:"kind"` // none, spool or gmail
	SpoolDir        string   `json:"spool_dir,omitempty"`
	Sender          string   `json:"sender,omitempty"`
	CredentialsFile string   `json:"credentials_file,omitempty"`
	Timeout         Duration `json:"timeout,omitempty"`
}

// Admin is an account created at startup when no user by that name exists.
type Admin struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Listen:     ":8080",
		Driver:     DriverSQLite,
		SQLitePath: "taskviewer.db",
		Notify: Notify{
			Kind:    NotifyNone,
			Sender:  "taskviewer@localhost",
			Timeout: Duration(3 * time.Second),
		},
	}
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	Path string            // explicit config file; must exist when set
	Env  map[string]string // environment variables
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Config file (JSON with comments and trailing commas)
// 3. Environment: PORT, DATABASE_URL, TASKVIEWER_ADMIN_PASSWORD
//
// The result is not validated; call Validate after applying flags.
func Load(in LoadInput) (Config, error) {
	cfg := Default()

	if in.Path != "" {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, in.Path)
			}
			return Config{}, fmt.Errorf("read config %s: %w", in.Path, err)
		}
		if err := parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, in.Path, err)
		}
		cfg.Source = in.Path
	}

	if port := in.Env["PORT"]; port != "" {
		cfg.Listen = ":" + port
	}
	if url := in.Env["DATABASE_URL"]; url != "" {
		cfg.DatabaseURL = url
		cfg.Driver = DriverPostgres
	}
	if pw := in.Env["TASKVIEWER_ADMIN_PASSWORD"]; pw != "" {
		cfg.Admin.Password = pw
	}
	return cfg, nil
}

// parse decodes JSONC data over cfg, keeping values the file leaves out.
func parse(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address is empty", ErrConfigInvalid)
	}
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: driver postgres needs database_url", ErrConfigInvalid)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: driver sqlite needs sqlite_path", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrConfigInvalid, c.Driver)
	}
	switch c.Notify.Kind {
	case NotifyNone:
	case NotifySpool:
		if c.Notify.SpoolDir == "" {
			return fmt.Errorf("%w: notify kind spool needs spool_dir", ErrConfigInvalid)
		}
	case NotifyGmail:
		if c.Notify.CredentialsFile == "" || c.Notify.Sender == "" {
			return fmt.Errorf("%w: notify kind gmail needs credentials_file and sender", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown notify kind %q", ErrConfigInvalid, c.Notify.Kind)
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("%w: notify timeout must be positive", ErrConfigInvalid)
	}
	if c.Admin.Username != "" && c.Admin.Password == "" {
		return fmt.Errorf("%w: admin %q has no password", ErrConfigInvalid, c.Admin.Username)
	}
	return nil
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
