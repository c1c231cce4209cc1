// Package config loads the pgdbcopy YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vbp1/pgdbcopy/internal/clone"
	"github.com/vbp1/pgdbcopy/internal/pgtool"
)

// Config is the whole configuration. Zero values are filled by Defaults.
type Config struct {
	LiveDatabase        string            `yaml:"live_database"`
	TargetMarker        string            `yaml:"target_marker"`
	MaintenanceDatabase string            `yaml:"maintenance_database"`
	Template            string            `yaml:"template"`
	Connection          pgtool.ConnParams `yaml:"connection"`
	Dump                Dump              `yaml:"dump"`
	PostProcess         []string          `yaml:"post_process"`
	MaxConcurrent       int64             `yaml:"max_concurrent"`
	Notify              Notify            `yaml:"notify"`
}

// Dump configures dump storage.
type Dump struct {
	// Dir empty means temporary dumps.
	Dir       string `yaml:"dir"`
	Keep      int    `yaml:"keep"`
	MinFreeMB uint64 `yaml:"min_free_mb"`
}

// Notify configures outcome mail.
type Notify struct {
	From       string            `yaml:"from"`
	OpsMailbox string            `yaml:"ops_mailbox"`
	Users      map[string]string `yaml:"users"`
	SMTP       SMTP              `yaml:"smtp"`
}

// SMTP relay settings. An empty Host logs messages instead of sending them.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		TargetMarker:        "_test",
		MaintenanceDatabase: "postgres",
		Template:            clone.DefaultTemplate,
		PostProcess:         append([]string(nil), clone.DefaultPostProcess...),
		MaxConcurrent:       1,
		Notify:              Notify{SMTP: SMTP{Port: 25}},
	}
}

// Load reads path over Defaults. An empty path returns Defaults.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.TargetMarker == "" {
		errs = append(errs, errors.New("target_marker must not be empty"))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent must be >= 1, got %d", c.MaxConcurrent))
	}
	if c.Dump.Keep < 0 {
		errs = append(errs, fmt.Errorf("dump.keep must be >= 0, got %d", c.Dump.Keep))
	}
	if c.Connection.Port < 0 || c.Connection.Port > 65535 {
		errs = append(errs, fmt.Errorf("connection.port out of range: %d", c.Connection.Port))
	}
	if c.Notify.SMTP.Host != "" && c.Notify.From == "" {
		errs = append(errs, errors.New("notify.from is required when notify.smtp.host is set"))
	}
	return errors.Join(errs...)
}

// Rules returns the target safety predicate.
func (c *Config) Rules() clone.Rules {
	return clone.Rules{Marker: c.TargetMarker, LiveDatabase: c.LiveDatabase}
}

// MinFreeBytes converts Dump.MinFreeMB.
func (c *Config) MinFreeBytes() uint64 { return c.Dump.MinFreeMB * 1024 * 1024 }
