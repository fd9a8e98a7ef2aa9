package config

import "strings"

// Config represents the core Quire configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Split    SplitConfig    `mapstructure:"split"`
}

// DatabaseConfig configures the SQLite database backing the artifact store,
// run state, cross-reference index and gate results
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig configures the execution engine
type EngineConfig struct {
	// Workers is the size of the bounded worker pool. Two stages run
	// concurrently only if neither depends on the other.
	Workers int `mapstructure:"workers"`

	// StageTimeoutSeconds is the default per-stage timeout. 0 = no timeout
	// (executors are opaque, potentially long-running calls). A stage
	// definition may override this per stage.
	StageTimeoutSeconds int `mapstructure:"stage_timeout_seconds"`

	// DispatchPerMinute rate-limits stage dispatches. 0 = unlimited.
	// Useful when executors call external services with their own quotas.
	DispatchPerMinute int `mapstructure:"dispatch_per_minute"`
}

// SplitConfig configures the length monitor and splitter
type SplitConfig struct {
	// DefaultBudget is the per-artifact size budget in lines for artifacts
	// not matched by any class prefix
	DefaultBudget int `mapstructure:"default_budget"`

	// MergeThreshold: a final part smaller than MergeThreshold*budget is
	// merged into its predecessor instead of being emitted near-empty
	MergeThreshold float64 `mapstructure:"merge_threshold"`

	// ClassBudgets maps an artifact-name prefix to a size budget, letting
	// different artifact classes carry different budgets.
	// Longest matching prefix wins.
	ClassBudgets map[string]int `mapstructure:"class_budgets"`
}

// BudgetFor returns the size budget for an artifact name, preferring the
// longest matching class prefix and falling back to DefaultBudget.
func (c SplitConfig) BudgetFor(name string) int {
	budget := c.DefaultBudget
	longest := -1
	for prefix, b := range c.ClassBudgets {
		if len(prefix) > longest && strings.HasPrefix(name, prefix) {
			longest = len(prefix)
			budget = b
		}
	}
	return budget
}
