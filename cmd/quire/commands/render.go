package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/quire/assemble"
	"github.com/teranos/quire/engine"
	"github.com/teranos/quire/graph"
	"github.com/teranos/quire/split"
)

func renderStages(result *engine.RunResult, order []graph.StageID) {
	data := pterm.TableData{{"STAGE", "STATUS", "DURATION", "ERROR"}}
	for _, id := range order {
		outcome := result.Stages[id]
		errText := ""
		if outcome.Err != nil {
			errText = outcome.Err.Error()
		}
		duration := ""
		if outcome.Duration > 0 {
			duration = outcome.Duration.Round(1e6).String()
		}
		data = append(data, []string{string(id), statusLabel(outcome.Status), duration, errText})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	fmt.Printf("\nrun %s: %s\n", result.RunID, result.Status)
}

func statusLabel(s graph.Status) string {
	switch s {
	case graph.StatusComplete:
		return pterm.Green(string(s))
	case graph.StatusFailed:
		return pterm.Red(string(s))
	case graph.StatusBlockedDownstream:
		return pterm.Yellow(string(s))
	default:
		return string(s)
	}
}

func renderRuns(runs []engine.Run) {
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}
	data := pterm.TableData{{"RUN", "PIPELINE", "STATUS", "STARTED", "COMPLETED"}}
	for _, run := range runs {
		completed := "-"
		if run.CompletedAt != nil {
			completed = run.CompletedAt.Format("2006-01-02 15:04:05")
		}
		data = append(data, []string{
			run.ID, run.Pipeline, string(run.Status),
			run.StartedAt.Format("2006-01-02 15:04:05"), completed,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderStageRecords(records map[graph.StageID]engine.StageRecord, order []graph.StageID) {
	data := pterm.TableData{{"STAGE", "STATUS", "ERROR"}}
	for _, id := range order {
		rec, ok := records[id]
		if !ok {
			continue
		}
		data = append(data, []string{string(id), statusLabel(rec.Status), rec.Error})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderSplitReport(r *split.Report) {
	fmt.Printf("%s: %d lines, budget %d\n", r.Artifact, r.Lines, r.Budget)
	if r.Flag != nil {
		pterm.Warning.Printfln("split blocked by pinned %s: %s", r.Flag.Target, r.Flag.Reason)
	}
	if len(r.Parts) == 0 {
		if r.OverBudget {
			fmt.Println("over budget, not yet split")
		} else {
			fmt.Println("within budget, not split")
		}
		return
	}
	data := pterm.TableData{{"PART", "LINES", "ANCHORS"}}
	for _, part := range r.Parts {
		data = append(data, []string{part.Name, fmt.Sprintf("%d", part.Lines), strings.Join(part.Anchors, ", ")})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderReadiness(report *assemble.ReadinessReport) {
	data := pterm.TableData{{"SECTION", "ARTIFACT", "STATUS", "FAILING CHECKS"}}
	for _, section := range report.Sections {
		status := pterm.Green("ready")
		switch {
		case section.Missing:
			status = pterm.Red("missing")
		case !section.Ready:
			status = pterm.Yellow("conditional")
		}
		data = append(data, []string{
			section.Title, section.Artifact, status, strings.Join(section.FailedChecks, ", "),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if report.Ready {
		pterm.Success.Println("deliverable is ready")
	} else {
		pterm.Warning.Println("deliverable is conditional")
	}
}
