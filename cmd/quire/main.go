package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/quire/cmd/quire/commands"
	"github.com/teranos/quire/logger"
)

var (
	verbosity  int
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "quire",
	Short: "Quire - content pipeline orchestration",
	Long: `Quire - dependency-ordered content pipeline orchestration.

Quire runs multi-stage content pipelines: stages declare the artifact kinds
they consume and produce, the engine executes them in dependency order, every
output is committed to a versioned artifact store, oversized artifacts are
split against a size budget with cross-references kept intact, and the
deliverable is assembled behind a quality gate.

Available commands:
  run          - Execute a pipeline definition
  resume       - Continue an interrupted or failed run
  status       - Show recorded runs and stage states
  split-report - Inspect the length monitor's work
  assemble     - Compile the deliverable and run the quality gate
  db           - Manage the quire database
  version      - Show version information

Examples:
  quire run research.toml --fixtures ./fixtures
  quire status
  quire split-report draft
  quire assemble research.toml --out report.md`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logger.VerbosityToLevel(verbosity)
		if err := logger.InitializeWithLevel(jsonOutput, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ResumeCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.SplitReportCmd)
	rootCmd.AddCommand(commands.AssembleCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(commands.ExitCode(err))
}
