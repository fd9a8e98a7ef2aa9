package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/quire/engine"
	"github.com/teranos/quire/pipeline"
)

// ResumeCmd represents the resume command
var ResumeCmd = &cobra.Command{
	Use:   "resume <pipeline-def> <run-id>",
	Short: "Resume an interrupted or failed run",
	Long: `resume — Continue a run where it stopped

Completed stages keep their committed outputs and are not re-executed;
failed, blocked and interrupted stages are reset to pending and run again.

Examples:
  quire resume research.toml 7f3c2a10-...
  quire resume research.toml 7f3c2a10-... --fixtures ./fixtures`,
	Args: cobra.ExactArgs(2),
	RunE: runResume,
}

var resumeFixturesDir string

func init() {
	ResumeCmd.Flags().StringVar(&resumeFixturesDir, "fixtures", "", "Directory of staged files backing 'file'-handled stages")
}

func runResume(cmd *cobra.Command, args []string) error {
	def, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}
	registry, err := def.Build()
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	executors := engine.NewExecutorRegistry()
	if resumeFixturesDir != "" {
		if err := executors.Register("file", engine.FileExecutor{Dir: resumeFixturesDir}); err != nil {
			return err
		}
	}

	eng := engine.New(registry, executors, svc.store, svc.state, svc.cfg.Engine,
		engine.WithLockPath(svc.lockPath()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Resume(ctx, args[1])
	if err != nil {
		return err
	}

	order, _ := registry.Resolve()
	renderStages(result, order)

	if _, err := svc.splitter.Sweep(); err != nil {
		return err
	}

	if result.Failed() {
		return ErrRunFailed
	}
	return nil
}
