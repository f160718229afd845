// Package config loads per-project settings and resolves where the index
// keeps its files.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	// PrivateDirName is the index directory created under the project root.
	PrivateDirName = ".index"
	appName        = "codeindex"
	envPrefix      = "CODEINDEX_"
)

// Duration is a time.Duration read from strings such as "500ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Std().String()), nil
}

// Config holds the tunables of one project.
type Config struct {
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`

	Debounce      Duration `toml:"debounce" env:"DEBOUNCE"`
	BulkThreshold int      `toml:"bulk_threshold" env:"BULK_THRESHOLD"`
	BulkWindow    Duration `toml:"bulk_window" env:"BULK_WINDOW"`
	MaxFileSize   int64    `toml:"max_file_size" env:"MAX_FILE_SIZE"`
	// Extensions replaces the default set of indexed extensions when non-empty.
	Extensions []string `toml:"extensions" env:"EXTENSIONS" envSeparator:","`

	Ollama OllamaConfig `toml:"ollama"`
}

// OllamaConfig configures the scoring and embedding models.
type OllamaConfig struct {
	URL          string   `toml:"url" env:"OLLAMA_URL"`
	ScoreModel   string   `toml:"score_model" env:"SCORE_MODEL"`
	EmbedModel   string   `toml:"embed_model" env:"EMBED_MODEL"`
	ScoreTimeout Duration `toml:"score_timeout" env:"SCORE_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:      "info",
		Debounce:      Duration(500 * time.Millisecond),
		BulkThreshold: 40,
		BulkWindow:    Duration(2 * time.Second),
		MaxFileSize:   2 << 20,
		Ollama: OllamaConfig{
			URL:          "http://localhost:11434",
			ScoreModel:   "qwen3:8b",
			EmbedModel:   "nomic-embed-text",
			ScoreTimeout: Duration(30 * time.Second),
		},
	}
}

// Paths locates the files the index owns for one project.
type Paths struct {
	Root        string
	DataDir     string
	DBPath      string
	ExcludeFile string
	ConfigFile  string
	// PrivateDir is the data directory's name when it lives directly under
	// Root, so walkers can skip it; empty otherwise.
	PrivateDir string
}

// ResolvePaths picks the data directory for root. dataDir overrides the
// choice; otherwise <root>/.index is used when it can be created, falling
// back to a per-project directory under the user config dir.
func ResolvePaths(root, dataDir string) (Paths, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve root: %w", err)
	}
	if dataDir == "" {
		dataDir = filepath.Join(abs, PrivateDirName)
		if err := os.MkdirAll(dataDir, 0o755); err != nil || !writable(dataDir) {
			if dataDir, err = fallbackDir(abs); err != nil {
				return Paths{}, err
			}
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create data dir: %w", err)
	}
	p := Paths{
		Root:        abs,
		DataDir:     dataDir,
		DBPath:      filepath.Join(dataDir, "index.db"),
		ExcludeFile: filepath.Join(dataDir, "exclude"),
		ConfigFile:  filepath.Join(dataDir, "config.toml"),
	}
	if filepath.Dir(dataDir) == abs {
		p.PrivateDir = filepath.Base(dataDir)
	}
	return p, nil
}

func fallbackDir(root string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(base, appName, "projects", hex.EncodeToString(sum[:])[:16]), nil
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// Load reads path over the defaults, then applies CODEINDEX_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("config env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the coordinator cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Debounce.Std() < 0:
		return errors.New("debounce must not be negative")
	case c.BulkThreshold < 1:
		return errors.New("bulk_threshold must be at least 1")
	case c.BulkWindow.Std() <= 0:
		return errors.New("bulk_window must be positive")
	case c.MaxFileSize <= 0:
		return errors.New("max_file_size must be positive")
	case c.Ollama.ScoreTimeout.Std() <= 0:
		return errors.New("ollama.score_timeout must be positive")
	}
	_, err := ParseLevel(c.LogLevel)
	return err
}

// ExtensionSet returns the configured extensions without dots, or nil for
// the defaults.
func (c Config) ExtensionSet() map[string]bool {
	if len(c.Extensions) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Extensions))
	for _, e := range c.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = true
		}
	}
	return set
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("log level %q: %w", level, err)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the given level.
func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}
