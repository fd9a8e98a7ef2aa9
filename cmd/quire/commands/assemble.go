package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/quire/assemble"
	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/pipeline"
)

// AssembleCmd represents the assemble command
var AssembleCmd = &cobra.Command{
	Use:   "assemble <pipeline-def>",
	Short: "Compile the deliverable and run the quality gate",
	Long: `assemble — Build the deliverable declared by a pipeline definition

Pulls every mapped artifact (stitching split parts back together), runs the
registered quality checks over them and renders the readiness report.
Assembly always completes: failing checks and gaps degrade the report to
conditional instead of blocking the output.

Examples:
  quire assemble research.toml
  quire assemble research.toml --out report.md
  quire assemble research.toml --run 7f3c2a10-...

Exit codes:
  0  deliverable ready
  1  deliverable conditional (failed checks or missing required sections)
  3  a pinned reference blocks a split of a mapped artifact`,
	Args: cobra.ExactArgs(1),
	RunE: runAssemble,
}

var (
	assembleRunID string
	assembleOut   string
)

func init() {
	AssembleCmd.Flags().StringVar(&assembleRunID, "run", "", "Run to attribute gate results to (default: most recent)")
	AssembleCmd.Flags().StringVar(&assembleOut, "out", "", "Write the deliverable to a file instead of stdout")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	def, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}
	if def.Deliverable == nil {
		return errors.Newf("pipeline %s declares no deliverable mapping", def.Name)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	runID := assembleRunID
	if runID == "" {
		runs, err := svc.state.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			runID = runs[0].ID
		} else {
			runID = "standalone"
		}
	}

	validators := assemble.NewValidatorRegistry()
	if err := validators.Register(assemble.NonEmptyValidator{}); err != nil {
		return err
	}
	if err := validators.Register(assemble.NewReferenceValidator(svc.index)); err != nil {
		return err
	}
	if err := validators.Register(assemble.NewBudgetValidator(svc.db, svc.cfg.Split)); err != nil {
		return err
	}

	assembler := assemble.NewAssembler(svc.store, assemble.NewGate(svc.db, validators))
	deliverable, report, err := assembler.Assemble(runID, *def.Deliverable)
	if err != nil {
		return err
	}

	if assembleOut != "" {
		if err := os.WriteFile(assembleOut, []byte(deliverable.Content), 0o644); err != nil {
			return errors.Wrapf(err, "write deliverable to %s", assembleOut)
		}
		fmt.Printf("wrote %s\n", assembleOut)
	} else {
		fmt.Print(deliverable.Content)
	}

	renderReadiness(report)
	if report.Ready {
		return nil
	}

	// A standing split conflict on a mapped artifact is the integrity exit;
	// anything else conditional is the plain failure exit
	flags, err := svc.splitter.Flags()
	if err != nil {
		return err
	}
	mapped := make(map[string]bool)
	for _, section := range def.Deliverable.Sections {
		mapped[section.Artifact] = true
	}
	for _, f := range flags {
		if mapped[f.Artifact] {
			err := errors.Wrapf(errors.ErrSplitIntegrity, "assembly blocked: %s pinned by %s", f.Artifact, f.Target)
			return errors.WithHint(err, "release the pin or adjust the size budget, then reassemble")
		}
	}
	return ErrNotReady
}
