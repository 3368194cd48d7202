// Package config loads and validates the optional .cogrun YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file looked up by Load.
const FileName = ".cogrun"

// Default values for the generator invocation.
const (
	DefaultTarget      = "CMakeLists.txt"
	DefaultMaxOutput   = 1 << 20 // 1 MB
	DefaultHistorySize = 16
)

// DefaultTool is the argv prefix used when no tool is configured.
var DefaultTool = []string{"python", "-m", "cogapp"}

// Config holds the parsed .cogrun configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version       int               `yaml:"version"`
	Tool          []string          `yaml:"tool"`           // e.g. [cog] or [python, -m, cogapp]
	Target        string            `yaml:"target"`         // file rewritten in place
	Defines       map[string]string `yaml:"defines"`        // passed as -D name=value
	Args          []string          `yaml:"args"`           // extra flags placed before -r
	RawTimeout    string            `yaml:"timeout"`        // e.g. "30s"; empty waits forever
	RawMaxOutput  int               `yaml:"max_output"`     // bytes per stream
	PropagateExit bool              `yaml:"propagate_exit"` // exit with the tool's status on failure
	History       HistoryConfig     `yaml:"history"`
}

// HistoryConfig controls where run results are kept.
type HistoryConfig struct {
	Dir  string `yaml:"dir"`  // default: <user cache dir>/cogrun/runs
	Size int    `yaml:"size"` // in-memory cache entries for the MCP server
}

// ToolArgv returns the configured tool prefix or the default.
func (c *Config) ToolArgv() []string {
	if len(c.Tool) > 0 {
		return c.Tool
	}
	return DefaultTool
}

// TargetFile returns the configured target or CMakeLists.txt.
func (c *Config) TargetFile() string {
	if c.Target != "" {
		return c.Target
	}
	return DefaultTarget
}

// Timeout returns the configured timeout. Zero means no timeout.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// HistorySize returns the number of runs cached in memory.
func (c *Config) HistorySize() int {
	if c.History.Size > 0 {
		return c.History.Size
	}
	return DefaultHistorySize
}

// HistoryDir returns the directory run results are written to. An empty
// string means no stable location could be determined.
func (c *Config) HistoryDir() string {
	if c.History.Dir != "" {
		return c.History.Dir
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "cogrun", "runs")
}

// CommandLine builds a generator command line for target:
// tool, sorted -D defines, extra args, then -r target.
func (c *Config) CommandLine(tool []string, target string) []string {
	argv := append([]string(nil), tool...)

	names := make([]string, 0, len(c.Defines))
	for name := range c.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		argv = append(argv, "-D", name+"="+c.Defines[name])
	}

	argv = append(argv, c.Args...)
	return append(argv, "-r", target)
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	for i, arg := range c.Tool {
		if arg == "" {
			errs = append(errs, fmt.Errorf("tool[%d] is empty", i))
		}
	}
	if c.RawTimeout != "" {
		if d, err := time.ParseDuration(c.RawTimeout); err != nil {
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("timeout %q is negative", c.RawTimeout))
		}
	}
	if c.RawMaxOutput < 0 {
		errs = append(errs, fmt.Errorf("max_output %d is negative", c.RawMaxOutput))
	}
	for name := range c.Defines {
		if name == "" {
			errs = append(errs, errors.New("defines: empty name"))
		}
	}
	return errors.Join(errs...)
}

// LoadResult holds the parsed config and the directory the tool runs in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .cogrun; falls back to workspace
	Path   string // path of the loaded file, empty when defaults are used
}

// Load reads the .cogrun file, walking upward from workspace no further
// than the enclosing repository root. If no file is found, a default
// Config rooted at workspace is returned.
func Load(workspace string) (*LoadResult, error) {
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	path, err := findConfig(workspace)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}

	root := filepath.Dir(path)
	if cfg.History.Dir != "" && !filepath.IsAbs(cfg.History.Dir) {
		cfg.History.Dir = filepath.Join(root, cfg.History.Dir)
	}
	return &LoadResult{Config: cfg, Root: root, Path: path}, nil
}

// vcsMarkers mark a repository root; the config search does not go above one.
var vcsMarkers = []string{".git", ".hg"}

// findConfig walks upward from dir looking for a .cogrun file. The walk
// stops at the first repository root so that a stray file in a parent
// directory such as $HOME is never picked up.
func findConfig(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		if isRepoRoot(dir) {
			return "", fmt.Errorf("%s not found below repository root %s", FileName, dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}

func isRepoRoot(dir string) bool {
	for _, m := range vcsMarkers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}
