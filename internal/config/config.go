// Package config loads docstore settings from JSON-with-comments files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".docstore.json"

var (
	ErrFileNotFound   = errors.New("config file not found")
	ErrFileRead       = errors.New("cannot read config file")
	ErrInvalid        = errors.New("invalid config file")
	ErrDBDirEmpty     = errors.New("db_dir cannot be empty")
	ErrFileExtInvalid = errors.New("file_ext must be a non-empty extension without path separators")
	ErrLogLevel       = errors.New("log_level must be debug, info, warn or error")
	ErrFileExists     = errors.New("config file already exists")
)

// Config holds all settings.
type Config struct {
	DBDir    string  `json:"db_dir"`
	FileExt  string  `json:"file_ext,omitempty"`
	LogLevel string  `json:"log_level,omitempty"`
	Seed     *uint64 `json:"seed,omitempty"`

	// Resolved, not serialized.
	EffectiveCwd string  `json:"-"`
	DBDirAbs     string  `json:"-"`
	Sources      Sources `json:"-"`
}

// Sources records which files contributed to a Config.
type Sources struct {
	Global  string
	Project string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBDir:    ".docstore",
		FileExt:  ".txt",
		LogLevel: "warn",
	}
}

// Level returns LogLevel as a slog level.
func (c Config) Level() slog.Level {
	var level slog.Level

	// Validated on load.
	_ = level.UnmarshalText([]byte(c.LogLevel))

	return level
}

// GlobalPath returns $XDG_CONFIG_HOME/docstore/config.json, falling back to
// ~/.config/docstore/config.json. Empty if neither variable is set.
func GlobalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "docstore", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "docstore", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd; os.Getwd() if empty
	ConfigPath      string            // -c/--config
	DBDirOverride   string            // --db-dir
	Env             map[string]string // environment
}

// Load resolves the configuration. Later sources win:
//
//  1. defaults
//  2. global config
//  3. project config (.docstore.json in the working directory)
//  4. explicit config file (replaces the project config lookup)
//  5. CLI overrides
func Load(in LoadInput) (Config, error) {
	workDir := in.WorkDirOverride
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}

		workDir = wd
	} else if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("resolve %s: %w", workDir, err)
		}

		workDir = abs
	}

	cfg := Default()

	if path := GlobalPath(in.Env); path != "" {
		global, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, global)
			cfg.Sources.Global = path
		}
	}

	projectPath, mustExist := filepath.Join(workDir, FileName), false
	if in.ConfigPath != "" {
		projectPath, mustExist = in.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	project, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, project)
		cfg.Sources.Project = projectPath
	}

	if in.DBDirOverride != "" {
		cfg.DBDir = in.DBDirOverride
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	if !strings.HasPrefix(cfg.FileExt, ".") {
		cfg.FileExt = "." + cfg.FileExt
	}

	cfg.EffectiveCwd = workDir
	cfg.DBDirAbs = cfg.DBDir

	if !filepath.IsAbs(cfg.DBDirAbs) {
		cfg.DBDirAbs = filepath.Join(workDir, cfg.DBDir)
	}

	return cfg, nil
}

// loadFile reads one config file. A missing optional file is not an error.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)

	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && mustExist:
		return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case errors.Is(err, os.ErrNotExist):
		return Config{}, false, nil
	default:
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var cfg Config

	err = dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DBDir != "" {
		base.DBDir = overlay.DBDir
	}

	if overlay.FileExt != "" {
		base.FileExt = overlay.FileExt
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.Seed != nil {
		seed := *overlay.Seed
		base.Seed = &seed
	}

	return base
}

func validate(cfg Config) error {
	if cfg.DBDir == "" {
		return ErrDBDirEmpty
	}

	ext := strings.TrimPrefix(cfg.FileExt, ".")
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		return fmt.Errorf("%w: %q", ErrFileExtInvalid, cfg.FileExt)
	}

	var level slog.Level
	if cfg.LogLevel == "" || level.UnmarshalText([]byte(cfg.LogLevel)) != nil {
		return fmt.Errorf("%w: %q", ErrLogLevel, cfg.LogLevel)
	}

	return nil
}

// WriteProject writes cfg's serialized fields to .docstore.json in workDir,
// atomically. It refuses to overwrite an existing file unless force is set.
func WriteProject(workDir string, cfg Config, force bool) (string, error) {
	path := filepath.Join(workDir, FileName)

	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return "", fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	formatted, err := hujson.Format(data)
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	err = atomic.WriteFile(path, bytes.NewReader(formatted))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}
