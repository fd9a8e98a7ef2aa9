package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/quire/graph"
)

func TestFileExecutorReadsFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("the notes\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "outline.md"), []byte("the outline\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	out, err := FileExecutor{Dir: dir}.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Outputs{"notes": "the notes\n", "outline": "the outline\n"}, out)
}

func TestFileExecutorBacksPipelineStages(t *testing.T) {
	f := newEngineFixture(t)
	f.seedTopic(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("staged notes\n"), 0o644))

	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "intake", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"notes"}, Handler: "file",
	}))
	require.NoError(t, f.executors.Register("file", FileExecutor{Dir: dir}))

	result, err := f.engine().Run(context.Background(), "fixtures")
	require.NoError(t, err)
	assert.Equal(t, RunComplete, result.Status)

	notes, err := f.artifacts.Get("notes")
	require.NoError(t, err)
	assert.Equal(t, "staged notes\n", notes.Content)
}

func TestFileExecutorMissingDir(t *testing.T) {
	_, err := FileExecutor{Dir: "/nonexistent/fixtures"}.Execute(context.Background(), nil)
	assert.Error(t, err)
}
