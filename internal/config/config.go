// Package config loads myschema.toml, applies MYSCHEMA_ environment overrides
// and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/myschema/myschema/internal/plan"
)

const (
	FileName  = "myschema.toml"
	EnvPrefix = "MYSCHEMA_"
)

var (
	ErrUnknownModelSet = errors.New("unknown model set")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// Config is the resolved configuration
type Config struct {
	Connection ConnectionConfig          `toml:"connection"`
	Render     RenderConfig              `toml:"render"`
	Plan       PlanConfig                `toml:"plan"`
	ModelSets  map[string]ModelSetConfig `toml:"model_sets"`

	ConfigFilePath string `toml:"-"`
}

// ConnectionConfig addresses the MySQL server. The database is chosen per command.
type ConnectionConfig struct {
	Host     string `toml:"host"     env:"HOST"`
	Port     int    `toml:"port"     env:"PORT"`
	User     string `toml:"user"     env:"USER"`
	Password string `toml:"password" env:"PASSWORD"`
}

// RenderConfig controls script rendering
type RenderConfig struct {
	Delimiter      string `toml:"delimiter"       env:"DELIMITER"`
	CreateDatabase bool   `toml:"create_database" env:"CREATE_DATABASE"`
	Charset        string `toml:"charset"         env:"CHARSET"`
	Collation      string `toml:"collation"       env:"COLLATION"`
}

// PlanConfig controls planning
type PlanConfig struct {
	IncludeViews bool   `toml:"include_views" env:"INCLUDE_VIEWS"`
	OutputDir    string `toml:"output_dir"    env:"OUTPUT_DIR"`
	// Parallelism bounds how many databases are planned at once
	Parallelism int `toml:"parallelism" env:"PARALLELISM"`
}

// ModelSetConfig names the descriptor files of one model set. Relative patterns
// resolve against the directory of the config file.
type ModelSetConfig struct {
	Files []string `toml:"files"`
}

// Default returns the configuration used when no file sets a value
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Host: "localhost",
			Port: 3306,
			User: "root",
		},
		Render: RenderConfig{
			Delimiter:      plan.DefaultDelimiter,
			CreateDatabase: true,
			Charset:        plan.DefaultCharset,
			Collation:      plan.DefaultCollation,
		},
		Plan: PlanConfig{
			OutputDir:   "migrations",
			Parallelism: 4,
		},
		ModelSets: map[string]ModelSetConfig{},
	}
}

// Load finds myschema.toml by walking up from startDir to the nearest project
// root, then applies environment overrides. A missing file yields the defaults.
func Load(startDir string) (*Config, error) {
	path, err := find(startDir)
	if err != nil {
		return nil, err
	}
	return load(path)
}

// LoadFile reads an explicit config file, then applies environment overrides
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(path)
}

func load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.ConfigFilePath = path
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// find returns the path of the nearest config file, or "" when there is none
func find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		if isProjectRoot(dir) {
			return "", nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	for _, marker := range []string{".git", "go.mod"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Connection.Port < 1 || c.Connection.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Connection.Port)
	}
	if c.Connection.User == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidConfig)
	}
	d := c.Render.Delimiter
	if d == "" || d == ";" || strings.ContainsAny(d, " \t\r\n") {
		return fmt.Errorf("%w: delimiter %q must be non-empty, not \";\" and without whitespace", ErrInvalidConfig, d)
	}
	if c.Plan.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1", ErrInvalidConfig)
	}
	for name, set := range c.ModelSets {
		if len(set.Files) == 0 {
			return fmt.Errorf("%w: model set %s lists no files", ErrInvalidConfig, name)
		}
	}
	return nil
}

// ModelSet returns the named model set
func (c *Config) ModelSet(name string) (ModelSetConfig, error) {
	set, ok := c.ModelSets[name]
	if !ok {
		return ModelSetConfig{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownModelSet, name, strings.Join(c.ModelSetNames(), ", "))
	}
	return set, nil
}

// ModelSetNames returns the configured model set names, sorted
func (c *Config) ModelSetNames() []string {
	names := make([]string, 0, len(c.ModelSets))
	for name := range c.ModelSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseDir is the directory relative model-set patterns resolve against
func (c *Config) BaseDir() string {
	if c.ConfigFilePath == "" {
		return "."
	}
	return filepath.Dir(c.ConfigFilePath)
}

// Renderer returns a script renderer configured from the render section
func (c *Config) Renderer() *plan.Renderer {
	return &plan.Renderer{
		Delimiter:      c.Render.Delimiter,
		CreateDatabase: c.Render.CreateDatabase,
		Charset:        c.Render.Charset,
		Collation:      c.Render.Collation,
	}
}
