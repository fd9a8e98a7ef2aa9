package config

import "github.com/teranos/quire/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Workers: 0 = run stages serially on the scheduler goroutine pool of 1,
	// negative = invalid
	if c.Engine.Workers < 0 {
		return errors.Newf("engine.workers must be >= 0, got %d", c.Engine.Workers)
	}

	// Stage timeout: 0 = no timeout, negative = invalid
	if c.Engine.StageTimeoutSeconds < 0 {
		return errors.Newf("engine.stage_timeout_seconds must be >= 0, got %d", c.Engine.StageTimeoutSeconds)
	}

	// Dispatch rate: 0 = unlimited, negative = invalid
	if c.Engine.DispatchPerMinute < 0 {
		return errors.Newf("engine.dispatch_per_minute must be >= 0, got %d", c.Engine.DispatchPerMinute)
	}

	// Size budget must be positive: a zero budget would split everything forever
	if c.Split.DefaultBudget <= 0 {
		return errors.Newf("split.default_budget must be > 0, got %d", c.Split.DefaultBudget)
	}
	for prefix, budget := range c.Split.ClassBudgets {
		if budget <= 0 {
			return errors.Newf("split.class_budgets[%q] must be > 0, got %d", prefix, budget)
		}
	}

	// Merge threshold is a fraction of the budget
	if c.Split.MergeThreshold < 0 || c.Split.MergeThreshold >= 1 {
		return errors.Newf("split.merge_threshold must be in [0, 1), got %f", c.Split.MergeThreshold)
	}

	return nil
}
