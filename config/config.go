// Package config holds the settings shared by the command line tools.
//
// A config file is YAML. Fields it leaves out keep the values of Default,
// unknown fields are rejected, and the result is checked with validator
// struct tags before it is used.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/ssccs/compiler"
	"github.com/sbl8/ssccs/explore"
	"github.com/sbl8/ssccs/session"
	"github.com/sbl8/ssccs/store"
)

// EnvPath names the environment variable the CLIs read the config path from.
const EnvPath = "SSCCS_CONFIG"

// Config is the root of a config file.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Compile CompileConfig `yaml:"compile"`
	Explore ExploreConfig `yaml:"explore"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// StoreConfig locates the scheme store.
type StoreConfig struct {
	Path       string        `yaml:"path" validate:"required_without=InMemory"`
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// CompileConfig holds the pipeline defaults of ssc.
type CompileConfig struct {
	Profile          string `yaml:"profile" validate:"required,profile"`
	StrictAddressing bool   `yaml:"strict_addressing"`
	AllowCycles      bool   `yaml:"allow_cycles"`
	// Parallel is how many blueprints ssc compiles at once.
	Parallel int `yaml:"parallel" validate:"gte=1"`
}

// ExploreConfig holds the walk defaults of ssrun.
type ExploreConfig struct {
	Workers    int           `yaml:"workers" validate:"gte=0"`
	MaxDepth   int           `yaml:"max_depth" validate:"gte=0"`
	MaxStates  int           `yaml:"max_states" validate:"gte=0"`
	FailFast   bool          `yaml:"fail_fast"`
	JobTimeout time.Duration `yaml:"job_timeout" validate:"gte=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required,hostname_port"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Path:       defaultStorePath(),
			SyncWrites: true,
			GCInterval: 5 * time.Minute,
		},
		Compile: CompileConfig{Profile: "cpu:4", Parallel: 4},
		Explore: ExploreConfig{MaxDepth: 8, MaxStates: 100000},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9464", Path: "/metrics"},
	}
}

func defaultStorePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "ssccs", "store")
	}
	return filepath.Join(os.TempDir(), "ssccs-store")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("profile", func(fl validator.FieldLevel) bool {
		_, err := compiler.ParseProfile(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every field and reports all failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		p := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			p += "=" + fe.Param()
		}
		problems = append(problems, p)
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Write stores c as YAML at path, creating the directory if needed.
func Write(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Options converts the store section. The caller sets the logger.
func (c StoreConfig) Options() store.Config {
	return store.Config{
		Path:           c.Path,
		InMemory:       c.InMemory,
		SyncWrites:     c.SyncWrites,
		GCInterval:     c.GCInterval,
		GCDiscardRatio: 0.5,
	}
}

// HardwareProfile parses the configured profile.
func (c CompileConfig) HardwareProfile() (compiler.HardwareProfile, error) {
	return compiler.ParseProfile(c.Profile)
}

// Options converts the compile section into pipeline options.
func (c CompileConfig) Options() compiler.Options {
	opts := compiler.DefaultOptions()
	opts.StrictAddressing = c.StrictAddressing
	opts.AllowCycles = c.AllowCycles
	return opts
}

// Bound returns the configured walk bound.
func (c ExploreConfig) Bound() explore.Bound {
	return explore.Bound{MaxDepth: c.MaxDepth, MaxStates: c.MaxStates}
}

// SessionOptions converts the explore section into runner options.
func (c ExploreConfig) SessionOptions() session.Options {
	return session.Options{
		Workers:    c.Workers,
		FailFast:   c.FailFast,
		JobTimeout: c.JobTimeout,
	}
}
