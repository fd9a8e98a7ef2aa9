package commands

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/teranos/quire/graph"
)

// StatusCmd represents the status command
var StatusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recorded runs, or the stage states of one run",
	Long: `status — Inspect persisted run state

Without arguments, lists every recorded run. With a run id, shows the
per-stage status of that run as persisted in the state database.

Examples:
  quire status
  quire status 7f3c2a10-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	if len(args) == 0 {
		runs, err := svc.state.ListRuns()
		if err != nil {
			return err
		}
		renderRuns(runs)
		return nil
	}

	runID := args[0]
	if _, err := svc.state.GetRun(runID); err != nil {
		return err
	}
	records, err := svc.state.StageRecords(runID)
	if err != nil {
		return err
	}

	// Stable order: deterministic even without the pipeline definition
	order := make([]graph.StageID, 0, len(records))
	for id := range records {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	renderStageRecords(records, order)
	return nil
}
