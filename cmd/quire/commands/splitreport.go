package commands

import (
	"github.com/spf13/cobra"
)

// SplitReportCmd represents the split-report command
var SplitReportCmd = &cobra.Command{
	Use:   "split-report [artifact]",
	Short: "Show split state of an artifact, or all standing split conflicts",
	Long: `split-report — Inspect the length monitor's work

With an artifact name, shows its size against budget, its parts if split,
and any standing pinned-reference conflict. Without arguments, lists every
artifact currently flagged as unsplittable.

Examples:
  quire split-report draft
  quire split-report`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSplitReport,
}

func runSplitReport(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	if len(args) == 1 {
		report, err := svc.splitter.ReportFor(args[0])
		if err != nil {
			return err
		}
		renderSplitReport(report)
		if report.Flag != nil {
			pinned, err := svc.index.Pinned(report.Flag.Target)
			if err != nil {
				return err
			}
			if pinned {
				cmd.Printf("pin on %s still stands; release it or raise the budget, then re-run the sweep\n", report.Flag.Target)
			} else {
				cmd.Printf("pin on %s has been released; re-run the sweep, then 'quire split-report' to confirm\n", report.Flag.Target)
			}
		}
		return nil
	}

	flags, err := svc.splitter.Flags()
	if err != nil {
		return err
	}
	if len(flags) == 0 {
		cmd.Println("no standing split conflicts")
		return nil
	}
	for _, f := range flags {
		cmd.Printf("%s: pinned %s blocks split (%s)\n", f.Artifact, f.Target, f.Reason)
	}
	return nil
}
