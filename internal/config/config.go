package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcin-skalski/prwatch/internal/pr"
)

var ErrRepoExists = errors.New("repository already configured")

type Config struct {
	Username        string        `yaml:"username"`
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval,omitempty"`
	FetchTimeout    time.Duration `yaml:"-"`
	RawFetchTimeout string        `yaml:"fetch_timeout,omitempty"`
	FetchLimit      int           `yaml:"fetch_limit,omitempty"`
	LogFile         string        `yaml:"log_file,omitempty"`
	Log             LogConfig     `yaml:"log,omitempty"`
	TUI             TUIConfig     `yaml:"tui,omitempty"`
	Review          ReviewConfig  `yaml:"review,omitempty"`
	Repos           []RepoConfig  `yaml:"repositories"`

	// file holds the values setDefaults replaced, so Save writes back what
	// the user wrote rather than the resolved defaults.
	file *fileValues
}

type fileValues struct {
	fetchLimit int
	logFile    string
	logLevel   string
}

type RepoConfig struct {
	Owner     string `yaml:"owner"`
	Name      string `yaml:"name"`
	LocalPath string `yaml:"local_path,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

type TUIConfig struct {
	FrameInterval time.Duration `yaml:"-"`
	RawInterval   string        `yaml:"frame_interval,omitempty"`
}

// ReviewConfig describes the external command launched by the review action.
// Args are text/template strings rendered against the selected pull request.
type ReviewConfig struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Fetch   bool     `yaml:"fetch,omitempty"`
}

// DefaultPath returns $XDG_CONFIG_HOME/prwatch/config.yaml or its platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "prwatch", "config.yaml"), nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.TUI.FrameInterval = 0
	if f := cfg.file; f != nil {
		out.FetchLimit = f.fetchLimit
		out.LogFile = f.logFile
		out.Log.Level = f.logLevel
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) setDefaults() error {
	var err error
	if c.RefreshInterval, err = parseDuration("refresh_interval", c.RawInterval, "30s"); err != nil {
		return err
	}
	if c.FetchTimeout, err = parseDuration("fetch_timeout", c.RawFetchTimeout, "20s"); err != nil {
		return err
	}
	if c.TUI.FrameInterval, err = parseDuration("tui.frame_interval", c.TUI.RawInterval, "1s"); err != nil {
		return err
	}

	c.file = &fileValues{fetchLimit: c.FetchLimit, logFile: c.LogFile, logLevel: c.Log.Level}

	if c.FetchLimit == 0 {
		c.FetchLimit = 100
	}
	if c.LogFile == "" {
		c.LogFile = defaultLogFile()
	}
	c.LogFile = ExpandHome(c.LogFile)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	for i := range c.Repos {
		c.Repos[i].Owner = strings.TrimSpace(c.Repos[i].Owner)
		c.Repos[i].Name = strings.TrimSpace(c.Repos[i].Name)
	}

	return nil
}

func parseDuration(field, raw, def string) (time.Duration, error) {
	if raw == "" {
		raw = def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	return d, nil
}

func (c *Config) validate() error {
	if c.Username == "" {
		return fmt.Errorf("username required")
	}
	if len(c.Repos) == 0 {
		return fmt.Errorf("no repositories configured")
	}
	if c.FetchLimit < 0 {
		return fmt.Errorf("fetch_limit must be positive, got %d", c.FetchLimit)
	}
	seen := make(map[string]bool, len(c.Repos))
	for i, r := range c.Repos {
		if r.Owner == "" {
			return fmt.Errorf("repositories[%d]: owner required", i)
		}
		if r.Name == "" {
			return fmt.Errorf("repositories[%d]: name required", i)
		}
		key := r.Owner + "/" + r.Name
		if seen[key] {
			return fmt.Errorf("repositories[%d]: %s: %w", i, key, ErrRepoExists)
		}
		seen[key] = true
	}
	for i, a := range c.Review.Args {
		if _, err := template.New("arg").Parse(a); err != nil {
			return fmt.Errorf("review.args[%d]: %w", i, err)
		}
	}
	return nil
}

// Repositories converts the configured repositories into the model type.
func (c *Config) Repositories() []pr.Repository {
	repos := make([]pr.Repository, 0, len(c.Repos))
	for _, r := range c.Repos {
		repos = append(repos, pr.Repository{Owner: r.Owner, Name: r.Name, LocalPath: r.LocalPath})
	}
	return repos
}

// AddRepo appends a repository, rejecting duplicates.
func (c *Config) AddRepo(r RepoConfig) error {
	for _, existing := range c.Repos {
		if existing.Owner == r.Owner && existing.Name == r.Name {
			return fmt.Errorf("%s/%s: %w", r.Owner, r.Name, ErrRepoExists)
		}
	}
	c.Repos = append(c.Repos, r)
	return nil
}

// RemoveRepo removes owner/name and reports whether it was configured.
func (c *Config) RemoveRepo(fullName string) bool {
	for i, r := range c.Repos {
		if r.Owner+"/"+r.Name == fullName {
			c.Repos = append(c.Repos[:i], c.Repos[i+1:]...)
			return true
		}
	}
	return false
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func defaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "prwatch", "prwatch.log")
	}
	return filepath.Join("~", ".local", "state", "prwatch", "prwatch.log")
}
