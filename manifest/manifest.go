// Package manifest handles funge.toml (or funge.yaml) project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chazu/funge/vm"
)

// FileNames lists the manifest names searched for, in priority order.
var FileNames = []string{"funge.toml", "funge.yaml", "funge.yml"}

// DefaultHistoryPath is the run history database, relative to the manifest.
const DefaultHistoryPath = ".funge/history.db"

// Manifest represents a funge project configuration.
type Manifest struct {
	Project Project       `toml:"project" yaml:"project"`
	Run     RunConfig     `toml:"run" yaml:"run"`
	Image   ImageConfig   `toml:"image" yaml:"image"`
	History HistoryConfig `toml:"history" yaml:"history"`
	Log     LogConfig     `toml:"log" yaml:"log"`

	// Dir is the directory containing the manifest (set at load time).
	Dir string `toml:"-" yaml:"-"`
	// Path is the manifest file itself (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name" yaml:"name"`
	Version string `toml:"version" yaml:"version"`
	Entry   string `toml:"entry" yaml:"entry"` // program file, relative to Dir
}

// RunConfig sets the interpreter's initial state.
type RunConfig struct {
	StartX    int    `toml:"start-x" yaml:"start-x"`
	StartY    int    `toml:"start-y" yaml:"start-y"`
	Direction string `toml:"direction" yaml:"direction"`
	Debug     bool   `toml:"debug" yaml:"debug"`
	Seed      uint64 `toml:"seed" yaml:"seed"` // 0 = nondeterministic '?'
}

// ImageConfig configures grid image output.
type ImageConfig struct {
	Output string `toml:"output" yaml:"output"` // written after each run when set
}

// HistoryConfig configures the run history ledger.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	File      string `toml:"file" yaml:"file"`
}

// Default returns the configuration used when no manifest exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Run.Direction == "" {
		m.Run.Direction = "right"
	}
	if m.History.Path == "" {
		m.History.Path = DefaultHistoryPath
	}
}

// Load parses the manifest in the given directory.
func Load(dir string) (*Manifest, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("no manifest in %s", dir)
}

// LoadFile parses a manifest file. The format follows the extension.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}

	m.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.Dir = filepath.Dir(m.Path)
	m.applyDefaults()

	if _, err := m.StartDirection(); err != nil {
		return nil, fmt.Errorf("%s: run.direction: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a manifest, then loads and
// returns it. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return LoadFile(path)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StartDirection parses Run.Direction.
func (m *Manifest) StartDirection() (vm.Direction, error) {
	return vm.ParseDirection(m.Run.Direction)
}

// EntryPath returns the absolute path of the entry program, or "" if none
// is configured.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// HistoryPath returns the absolute path of the history database.
func (m *Manifest) HistoryPath() string {
	return m.resolve(m.History.Path)
}

// ImageOutputPath returns the absolute image output path, or "" if unset.
func (m *Manifest) ImageOutputPath() string {
	return m.resolve(m.Image.Output)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
