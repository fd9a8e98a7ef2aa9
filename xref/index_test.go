package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/quire/errors"
	quiretest "github.com/teranos/quire/internal/testing"
)

func TestRegisterAndResolve(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	loc := Location{Artifact: "lit_review", Part: 0, Anchor: "methodology"}
	require.NoError(t, ix.Register("sec-methodology", loc))

	got, err := ix.Resolve("sec-methodology")
	require.NoError(t, err)
	assert.Equal(t, loc, got)
}

func TestRegisterUpdatesLocation(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	require.NoError(t, ix.Register("sec-methodology", Location{Artifact: "lit_review", Part: 0, Anchor: "methodology"}))
	// After a split the same target moves into part 2
	require.NoError(t, ix.Register("sec-methodology", Location{Artifact: "lit_review", Part: 2, Anchor: "methodology"}))

	got, err := ix.Resolve("sec-methodology")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Part)
}

func TestResolveMissIsHardError(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	_, err := ix.Resolve("never-registered")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.Contains(t, err.Error(), "never-registered")
}

func TestRegisterRejectsEmptyTarget(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))
	assert.Error(t, ix.Register("", Location{}))
}

func TestInvalidateKeepsPins(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	require.NoError(t, ix.Register("plain", Location{Artifact: "lit_review", Anchor: "a"}))
	require.NoError(t, ix.Register("cited-externally", Location{Artifact: "lit_review", Anchor: "b"}))
	require.NoError(t, ix.SetPin("cited-externally"))
	require.NoError(t, ix.Register("other-artifact", Location{Artifact: "methods", Anchor: "c"}))

	require.NoError(t, ix.Invalidate("lit_review"))

	// Plain target gone
	_, err := ix.Resolve("plain")
	assert.True(t, errors.IsNotFoundError(err))

	// Pinned target survives invalidation
	_, err = ix.Resolve("cited-externally")
	assert.NoError(t, err)

	// Targets in other artifacts untouched
	_, err = ix.Resolve("other-artifact")
	assert.NoError(t, err)
}

func TestSetPinUnknownTarget(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))
	assert.True(t, errors.IsNotFoundError(ix.SetPin("missing")))
}

func TestPins(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	require.NoError(t, ix.Register("a", Location{Artifact: "doc", Part: 1, Anchor: "a"}))
	require.NoError(t, ix.Register("b", Location{Artifact: "doc", Part: 2, Anchor: "b"}))
	require.NoError(t, ix.SetPin("b"))

	pins, err := ix.Pins("doc")
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, "b", pins[0].Target)
	assert.Equal(t, 2, pins[0].Location.Part)
}

func TestTargets(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	require.NoError(t, ix.Register("z", Location{Artifact: "doc", Anchor: "z"}))
	require.NoError(t, ix.Register("a", Location{Artifact: "doc", Anchor: "a"}))
	require.NoError(t, ix.Register("m", Location{Artifact: "other", Anchor: "m"}))

	targets, err := ix.Targets("doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, targets)
}

func TestPinned(t *testing.T) {
	ix := NewIndex(quiretest.CreateTestDB(t))

	require.NoError(t, ix.Register("doc#a", Location{Artifact: "doc", Part: 1, Anchor: "a"}))

	pinned, err := ix.Pinned("doc#a")
	require.NoError(t, err)
	assert.False(t, pinned)

	require.NoError(t, ix.SetPin("doc#a"))
	pinned, err = ix.Pinned("doc#a")
	require.NoError(t, err)
	assert.True(t, pinned)

	// An unregistered target is simply not pinned
	pinned, err = ix.Pinned("doc#missing")
	require.NoError(t, err)
	assert.False(t, pinned)
}
