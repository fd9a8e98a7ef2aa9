package config

import (
	"github.com/spf13/viper"
)

// Default file permissions for the ~/.quire directory
const DefaultDirPermissions = 0o755

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "quire.db")

	// Engine defaults
	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.stage_timeout_seconds", 0) // no implicit timeout on executors
	v.SetDefault("engine.dispatch_per_minute", 0)   // unlimited

	// Splitter defaults
	v.SetDefault("split.default_budget", 1500)
	v.SetDefault("split.merge_threshold", 0.10) // near-empty remainder merges into predecessor
}
