// Package manifest handles lya.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/lya/pkg/bytecode"
)

// FileName is the name of the manifest file.
const FileName = "lya.toml"

// DefaultCachePath is where the compile cache lives, relative to the
// manifest directory.
const DefaultCachePath = ".lya/cache.db"

// Manifest represents a lya.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	VM      VMConfig    `toml:"vm"`
	Cache   CacheConfig `toml:"cache"`

	// Dir is the directory containing the lya.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`
	Entry   string `toml:"entry"`
}

// VMConfig sizes the virtual machine.
type VMConfig struct {
	Memory   int  `toml:"memory,omitempty"`
	MaxSteps int  `toml:"max-steps,omitempty"`
	Trace    bool `toml:"trace,omitempty"`
}

// CacheConfig configures the compile cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no lya.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.Project.Entry = "main.lya"
	m.Cache.Enabled = true
	m.Cache.Path = DefaultCachePath
	return m
}

// Load parses a lya.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := Default(abs)
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if m.VM.Memory < 0 || m.VM.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: vm memory and max-steps must not be negative", path)
	}
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a lya.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Save writes m as dir/lya.toml. It refuses to overwrite an existing file.
func (m *Manifest) Save(dir string) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}

// EntryPath returns the absolute path of the entry source file.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CachePath returns the absolute path of the compile cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// MachineConfig returns the machine configuration the manifest asks for.
func (m *Manifest) MachineConfig() bytecode.Config {
	return bytecode.Config{
		MemorySize: m.VM.Memory,
		MaxSteps:   m.VM.MaxSteps,
		Trace:      m.VM.Trace,
	}
}
