package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quire.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[database]
path = "pipeline.db"

[engine]
workers = 4
stage_timeout_seconds = 120

[split]
default_budget = 1500
merge_threshold = 0.10

[split.class_budgets]
"appendix." = 3000
"draft." = 1200
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "pipeline.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 120, cfg.Engine.StageTimeoutSeconds)
	assert.Equal(t, 1500, cfg.Split.DefaultBudget)
	assert.InDelta(t, 0.10, cfg.Split.MergeThreshold, 1e-9)
	assert.Equal(t, 3000, cfg.Split.ClassBudgets["appendix."])
}

func TestLoadFromFileDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "quire.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Engine.Workers)
	assert.Equal(t, 0, cfg.Engine.StageTimeoutSeconds)
	assert.Equal(t, 1500, cfg.Split.DefaultBudget)
	assert.InDelta(t, 0.10, cfg.Split.MergeThreshold, 1e-9)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Engine: EngineConfig{Workers: 2},
		Split:  SplitConfig{DefaultBudget: 1000, MergeThreshold: 0.1},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Engine.Workers = -1 }},
		{"negative timeout", func(c *Config) { c.Engine.StageTimeoutSeconds = -5 }},
		{"zero budget", func(c *Config) { c.Split.DefaultBudget = 0 }},
		{"zero class budget", func(c *Config) { c.Split.ClassBudgets = map[string]int{"x": 0} }},
		{"threshold too large", func(c *Config) { c.Split.MergeThreshold = 1.0 }},
		{"negative threshold", func(c *Config) { c.Split.MergeThreshold = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBudgetFor(t *testing.T) {
	sc := SplitConfig{
		DefaultBudget: 1500,
		ClassBudgets: map[string]int{
			"appendix.":       3000,
			"appendix.tables": 5000,
		},
	}

	assert.Equal(t, 1500, sc.BudgetFor("lit_review"))
	assert.Equal(t, 3000, sc.BudgetFor("appendix.figures"))
	// Longest matching prefix wins
	assert.Equal(t, 5000, sc.BudgetFor("appendix.tables_v2"))
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, `
[split]
default_budget = 1500
`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()
	w.debouncePeriod = 20 * time.Millisecond

	reloaded := make(chan *Config, 1)
	w.OnReload(func(c *Config) error {
		select {
		case reloaded <- c:
		default:
		}
		return nil
	})
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("[split]\ndefault_budget = 900\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 900, cfg.Split.DefaultBudget)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload callback never fired")
	}
}

func TestProjectConfigPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quire.toml"), []byte(""), 0o644))

	// The nearest quire.toml up the tree governs the working directory
	t.Chdir(sub)
	assert.Equal(t, filepath.Join(dir, "quire.toml"), ProjectConfigPath())
}
