package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Nil(t, cfg.ExtensionSet())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"
debounce = "250ms"
bulk_threshold = 10
extensions = [".go", "PY"]

[ollama]
score_model = "llama3"
score_timeout = "5s"
`), 0o644))
	t.Setenv("CODEINDEX_BULK_THRESHOLD", "7")
	t.Setenv("CODEINDEX_OLLAMA_URL", "http://ollama:11434")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce.Std())
	assert.Equal(t, 7, cfg.BulkThreshold)
	assert.Equal(t, 2*time.Second, cfg.BulkWindow.Std())
	assert.Equal(t, "llama3", cfg.Ollama.ScoreModel)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Equal(t, 5*time.Second, cfg.Ollama.ScoreTimeout.Std())
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.URL)
	assert.Equal(t, map[string]bool{"go": true, "py": true}, cfg.ExtensionSet())
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"syntax":    "debounce = ",
		"duration":  `debounce = "soon"`,
		"threshold": "bulk_threshold = 0",
		"level":     `log_level = "loud"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestResolvePathsPrefersProjectDir(t *testing.T) {
	root := t.TempDir()
	p, err := ResolvePaths(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".index"), p.DataDir)
	assert.Equal(t, filepath.Join(root, ".index", "index.db"), p.DBPath)
	assert.Equal(t, filepath.Join(root, ".index", "exclude"), p.ExcludeFile)
	assert.Equal(t, ".index", p.PrivateDir)
	assert.DirExists(t, p.DataDir)

	other := t.TempDir()
	p, err = ResolvePaths(root, other)
	require.NoError(t, err)
	assert.Equal(t, other, p.DataDir)
	assert.Empty(t, p.PrivateDir)
}

func TestFallbackDirIsStablePerRoot(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	a, err := fallbackDir("/projects/a")
	require.NoError(t, err)
	again, err := fallbackDir("/projects/a")
	require.NoError(t, err)
	b, err := fallbackDir("/projects/b")
	require.NoError(t, err)
	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
	assert.Len(t, filepath.Base(a), 16)
	assert.Equal(t, "projects", filepath.Base(filepath.Dir(a)))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown k=1")

	_, err = NewLogger("verbose", &buf)
	assert.Error(t, err)
}
