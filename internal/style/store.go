package style

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// DefaultName is the template used when none is requested.
const DefaultName = "classic"

//go:embed templates/*
var builtin embed.FS

var extensions = []string{".json", ".yaml", ".yml"}

// Store resolves template names to files in a directory. Names not present
// on disk fall back to the built-in templates.
type Store struct {
	dir string
}

// NewStore creates a store over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the template directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads, decodes and validates the named template.
func (s *Store) Load(name string) (*Config, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, types.NewAppErrorWithDetails(types.ErrConfigNotFound, "style template not found", name, nil)
	}

	for _, ext := range extensions {
		path := filepath.Join(s.dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrConfigNotFound, "style template unreadable", path, err)
		}
		logger.Debug("loading style template", logger.String("style", name), logger.String("path", path))
		return decode(name, data, ext)
	}

	for _, ext := range extensions {
		data, err := builtin.ReadFile("templates/" + name + ext)
		if err != nil {
			continue
		}
		logger.Debug("loading built-in style template", logger.String("style", name))
		return decode(name, data, ext)
	}

	logger.Warn("style template not found", logger.String("style", name), logger.String("dir", s.dir))
	return nil, types.NewAppErrorWithDetails(types.ErrConfigNotFound, "style template not found", name, nil)
}

// Parse decodes and validates template data; ext selects the decoder.
func Parse(name string, data []byte, ext string) (*Config, error) {
	return decode(name, data, ext)
}

func decode(name string, data []byte, ext string) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrConfigParse, "style template is empty", name, nil)
	}

	cfg := &Config{}
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrConfigParse, "style template is not valid "+strings.TrimPrefix(ext, "."), name, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrConfigParse, "style template is invalid", name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cfg, nil
}

// Names lists templates available on disk and built in, sorted and unique.
func (s *Store) Names() ([]string, error) {
	seen := map[string]bool{}

	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, types.NewAppError(types.ErrFileNotFound, "failed to read styles directory", err)
	}
	for _, e := range entries {
		if n, ok := templateName(e); ok {
			seen[n] = true
		}
	}

	builtins, _ := builtin.ReadDir("templates")
	for _, e := range builtins {
		if n, ok := templateName(e); ok {
			seen[n] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// EnsureDefault creates the directory and writes the built-in templates into
// it when it holds no templates yet. It reports whether anything was written.
func (s *Store) EnsureDefault() (bool, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return false, types.NewAppError(types.ErrConfig, "failed to create styles directory", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false, types.NewAppError(types.ErrConfig, "failed to read styles directory", err)
	}
	for _, e := range entries {
		if _, ok := templateName(e); ok {
			return false, nil
		}
	}

	builtins, err := builtin.ReadDir("templates")
	if err != nil {
		return false, types.NewAppError(types.ErrInternal, "built-in templates missing", err)
	}
	for _, e := range builtins {
		data, err := builtin.ReadFile("templates/" + e.Name())
		if err != nil {
			return false, types.NewAppError(types.ErrInternal, "built-in template unreadable", err)
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.WriteFile(path, data, 0644); err != nil {
			return false, types.NewAppError(types.ErrConfig, "failed to write style template", err)
		}
		logger.Info("created style template", logger.String("path", path))
	}
	return true, nil
}

// Default returns the built-in classic template.
func Default() *Config {
	data, err := builtin.ReadFile("templates/" + DefaultName + ".json")
	if err != nil {
		panic("style: built-in classic template missing: " + err.Error())
	}
	cfg, err := decode(DefaultName, data, ".json")
	if err != nil {
		panic("style: built-in classic template invalid: " + err.Error())
	}
	return cfg
}

func templateName(e fs.DirEntry) (string, bool) {
	if e.IsDir() {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(e.Name()))
	for _, x := range extensions {
		if ext == x {
			return strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), true
		}
	}
	return "", false
}
