package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
)

// FileExecutor serves staged fixture files as stage outputs: every regular
// file in Dir becomes an output keyed by its name without extension. The
// engine keeps only the kinds the stage declares, so one fixture directory
// can back every file-handled stage in a pipeline. Meant for demos and
// pipeline dry runs, not production executors.
type FileExecutor struct {
	Dir string
}

// Execute reads the fixture directory. Inputs are ignored.
func (f FileExecutor) Execute(ctx context.Context, in Inputs) (Outputs, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixture directory %s", f.Dir)
	}

	out := make(Outputs)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(f.Dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "read fixture %s", name)
		}
		kind := strings.TrimSuffix(name, filepath.Ext(name))
		out[graph.Kind(kind)] = string(data)
	}
	return out, nil
}
