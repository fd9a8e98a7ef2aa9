package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrDependencyCycle,
		ErrMissingInput,
		ErrStageExecution,
		ErrStageTimeout,
		ErrSplitIntegrity,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(New("other")))
	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsNotFoundError(Wrap(ErrNotFound, "artifact lit_review")))
	assert.True(t, IsNotFoundError(NewNotFoundError("artifact %s", "lit_review")))
}

func TestNewCycleError(t *testing.T) {
	err := NewCycleError([]string{"draft", "review", "draft"})
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "draft")

	hints := GetAllHints(err)
	require.NotEmpty(t, hints)
}

func TestStageErrorsCarryDetail(t *testing.T) {
	err := Wrap(ErrStageExecution, "executor failed")
	err = WithDetailf(err, "stage: %s", "methods")
	err = WithDetailf(err, "artifact: %s@%d", "outline", 2)

	assert.True(t, Is(err, ErrStageExecution))
	details := GetAllDetails(err)
	assert.Contains(t, details, "stage: methods")
	assert.Contains(t, details, "artifact: outline@2")
}

func TestTimeoutIsDistinctFromExecution(t *testing.T) {
	err := Wrap(ErrStageTimeout, "stage overran 30s budget")
	assert.True(t, IsStageTimeoutError(err))
	assert.False(t, Is(err, ErrStageExecution))
}
