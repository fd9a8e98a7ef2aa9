package logger

// Standard field names for consistent structured logging across Quire.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID    = "run_id"
	FieldStage    = "stage"
	FieldArtifact = "artifact"
	FieldVersion  = "version"
	FieldTarget   = "target"

	// Components
	FieldComponent = "component"
	FieldHandler   = "handler"
	FieldCheck     = "check"

	// Sizes and counts
	FieldLines  = "lines"
	FieldParts  = "parts"
	FieldCount  = "count"
	FieldBudget = "budget"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors and status
	FieldError  = "error"
	FieldStatus = "status"
)
