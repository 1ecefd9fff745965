// Package manifest handles libeval.toml configuration: the unit table,
// the decimal separator, host objects and logging.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/libeval/compiler"
	"github.com/chazu/libeval/host"
	"github.com/chazu/libeval/vm"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "libeval.toml"

// Manifest represents a libeval.toml configuration.
type Manifest struct {
	Compiler  CompilerConfig            `toml:"compiler"`
	Units     []UnitConfig              `toml:"units"`
	Variables map[string]any            `toml:"variables"`
	Objects   map[string]map[string]any `toml:"objects"`
	Database  DatabaseConfig            `toml:"database"`
	Log       LogConfig                 `toml:"log"`

	// Dir is the directory containing the libeval.toml file (set at load time).
	Dir string `toml:"-"`
}

// CompilerConfig configures expression compilation.
type CompilerConfig struct {
	DecimalSeparator string `toml:"decimal-separator"`
}

// UnitConfig is one entry of the unit table.
type UnitConfig struct {
	Name   string  `toml:"name"`
	Factor float64 `toml:"factor"`
}

// DatabaseConfig names an optional SQLite property store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures the commonlog backend.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a libeval.toml file from the given directory.
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

	m, err := Parse(data, abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. dir anchors relative paths.
func Parse(data []byte, dir string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.Dir = dir

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a libeval.toml file,
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
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	if n := len(m.Compiler.DecimalSeparator); n > 1 {
		return fmt.Errorf("decimal-separator %q must be a single character", m.Compiler.DecimalSeparator)
	}

	seen := make(map[string]bool)
	for i, u := range m.Units {
		if u.Name == "" {
			return fmt.Errorf("units[%d]: missing name", i)
		}
		if u.Factor == 0 {
			return fmt.Errorf("unit %s: factor must be non-zero", u.Name)
		}
		if seen[u.Name] {
			return fmt.Errorf("unit %s: defined twice", u.Name)
		}
		seen[u.Name] = true
	}

	for name, v := range m.Variables {
		if _, err := toValue(v); err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
	}
	for obj, props := range m.Objects {
		for prop, v := range props {
			if _, err := toValue(v); err != nil {
				return fmt.Errorf("object %s.%s: %w", obj, prop, err)
			}
		}
	}
	return nil
}

// UnitTable returns the configured units, or the default table when none
// are configured.
func (m *Manifest) UnitTable() compiler.Units {
	if len(m.Units) == 0 {
		return compiler.DefaultUnits()
	}
	units := make(compiler.Units, len(m.Units))
	for i, u := range m.Units {
		units[i] = compiler.Unit{Name: u.Name, Factor: u.Factor}
	}
	return units
}

// Separator returns the configured decimal separator, '.' by default.
func (m *Manifest) Separator() byte {
	if m.Compiler.DecimalSeparator == "" {
		return '.'
	}
	return m.Compiler.DecimalSeparator[0]
}

// CompilerOptions returns the compiler options the manifest describes.
func (m *Manifest) CompilerOptions() []compiler.Option {
	return []compiler.Option{
		compiler.WithUnits(m.UnitTable()),
		compiler.WithDecimalSeparator(m.Separator()),
	}
}

// DatabasePath returns the absolute database path, or "" when no database
// is configured.
func (m *Manifest) DatabasePath() string {
	p := m.Database.Path
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// PopulateTable loads the manifest's variables and objects into t.
func (m *Manifest) PopulateTable(t *host.Table) {
	for name, v := range m.Variables {
		val, _ := toValue(v)
		t.SetVar(name, val)
	}
	for obj, props := range m.Objects {
		values := make(map[string]vm.Value, len(props))
		for prop, v := range props {
			values[prop], _ = toValue(v)
		}
		t.Define(obj, values)
	}
}

// PopulateStore writes the manifest's variables and objects to s.
// Variables are stored as the object's own value.
func (m *Manifest) PopulateStore(s *host.Store) error {
	for _, name := range sortedKeys(m.Variables) {
		val, _ := toValue(m.Variables[name])
		if err := s.Put(name, "", val); err != nil {
			return err
		}
	}
	for _, obj := range sortedKeys(m.Objects) {
		props := m.Objects[obj]
		for _, prop := range sortedKeys(props) {
			val, _ := toValue(props[prop])
			if err := s.Put(obj, prop, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// OpenHost builds the host the manifest describes: a SQLite store when a
// database is configured, an in-memory table otherwise. Manifest
// variables and objects are loaded into either. The returned function
// releases the host.
func (m *Manifest) OpenHost() (vm.Host, func() error, error) {
	path := m.DatabasePath()
	if path == "" {
		t := host.NewTable()
		m.PopulateTable(t)
		return t, func() error { return nil }, nil
	}

	s, err := host.OpenStore(path)
	if err != nil {
		return nil, nil, err
	}
	if err := m.PopulateStore(s); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, s.Close, nil
}

// toValue converts a decoded TOML value to a vm.Value.
func toValue(x any) (vm.Value, error) {
	switch v := x.(type) {
	case int64:
		return vm.NewNumber(float64(v)), nil
	case float64:
		return vm.NewNumber(v), nil
	case string:
		return vm.NewString(v), nil
	case bool:
		return vm.Bool(v), nil
	}
	return vm.Value{}, fmt.Errorf("unsupported value %v (%T)", x, x)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
