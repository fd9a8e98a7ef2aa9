package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/quire/errors"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(ErrRunFailed))
	assert.Equal(t, 1, ExitCode(ErrNotReady))
	assert.Equal(t, 1, ExitCode(errors.New("database exploded")))
	assert.Equal(t, 2, ExitCode(errors.NewCycleError([]string{"a", "b"})))
	assert.Equal(t, 3, ExitCode(errors.Wrap(errors.ErrSplitIntegrity, "assembly blocked")))
}
