package conway

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProjectFileName is the name of the project configuration file.
const ProjectFileName = "conway.toml"

// DefaultPrompt is the REPL prompt used when none is configured.
const DefaultPrompt = "Conway> "

// ProjectConfig represents a conway.toml project configuration file.
type ProjectConfig struct {
	Run  RunConfig  `toml:"run"`
	REPL REPLConfig `toml:"repl"`
}

type RunConfig struct {
	// Main is the file `conway run` evaluates when given no arguments,
	// relative to conway.toml.
	Main string `toml:"main,omitempty"`

	// Strict makes undefined names errors instead of Nothing.
	Strict bool `toml:"strict,omitempty"`
}

type REPLConfig struct {
	Prompt string `toml:"prompt,omitempty"`

	// History persists REPL input across sessions. Defaults to true.
	History *bool `toml:"history,omitempty"`
}

// HistoryEnabled reports whether REPL history should be persisted.
func (c REPLConfig) HistoryEnabled() bool {
	return c.History == nil || *c.History
}

// DefaultProjectConfig returns the configuration used when no conway.toml is
// found.
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		REPL: REPLConfig{Prompt: DefaultPrompt},
	}
}

// LoadProjectConfig loads a conway.toml file from the given path.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	config := DefaultProjectConfig()
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing %s: unknown keys %v", path, undecoded)
	}
	if config.REPL.Prompt == "" {
		config.REPL.Prompt = DefaultPrompt
	}
	return config, nil
}

// FindProjectConfig searches for a conway.toml file starting from dir and
// walking up to parent directories. Returns the path to conway.toml and the
// parsed config, or ("", nil, nil) if not found.
func FindProjectConfig(dir string) (string, *ProjectConfig, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(path); err == nil {
			config, err := LoadProjectConfig(path)
			if err != nil {
				return "", nil, err
			}
			return path, config, nil
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// MainFile resolves Run.Main against the directory holding conway.toml.
func (c *ProjectConfig) MainFile(configPath string) string {
	if c.Run.Main == "" {
		return ""
	}
	if filepath.IsAbs(c.Run.Main) || configPath == "" {
		return c.Run.Main
	}
	return filepath.Join(filepath.Dir(configPath), c.Run.Main)
}
