package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// DbCmd represents the db command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the quire database",
	Long: `db — Database operations

Examples:
  quire db migrate      # Apply pending schema migrations
  quire db stats        # Show table counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openServices migrates on open; reaching here means it succeeded
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	fmt.Println("database is up to date")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	tables := []struct {
		label string
		query string
	}{
		{"artifacts (versions)", `SELECT COUNT(*) FROM artifacts`},
		{"artifacts (names)", `SELECT COUNT(DISTINCT name) FROM artifacts`},
		{"runs", `SELECT COUNT(*) FROM runs`},
		{"stage records", `SELECT COUNT(*) FROM run_stages`},
		{"reference targets", `SELECT COUNT(*) FROM xref_locations`},
		{"pinned targets", `SELECT COUNT(*) FROM xref_locations WHERE pinned = 1`},
		{"gate results", `SELECT COUNT(*) FROM gate_results`},
		{"split conflicts", `SELECT COUNT(*) FROM split_flags`},
	}

	data := pterm.TableData{{"TABLE", "ROWS"}}
	for _, table := range tables {
		var count int
		if err := svc.db.QueryRow(table.query).Scan(&count); err != nil {
			return fmt.Errorf("failed to count %s: %w", table.label, err)
		}
		data = append(data, []string{table.label, fmt.Sprintf("%d", count)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
