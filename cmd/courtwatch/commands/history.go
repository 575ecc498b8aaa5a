package commands

import (
	"fmt"
	"os"
	"time"

	"courtwatch/lib/serviceutil"
	"courtwatch/lib/timezone"
	"courtwatch/services/history"
	historydb "courtwatch/services/history/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "How many runs to show.")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the per target results of this run instead.")
	rootCmd.AddCommand(historyCmd)
}

func runsTable(runs []historydb.Run) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Run", "Started", "Took", "Status", "Succeeded", "Failed", "Notes"})
	for _, r := range runs {
		var notes string
		if r.LoginFailed {
			notes = "login failed"
		}
		if r.DeadlineExceeded {
			if notes != "" {
				notes += ", "
			}
			notes += "deadline exceeded"
		}
		started := time.Unix(r.StartedAt, 0).In(timezone.Location)
		t.AppendRow(table.Row{
			r.ID,
			started.Format("02 Jan 15:04"),
			time.Duration(r.FinishedAt-r.StartedAt) * time.Second,
			r.Status,
			r.Succeeded,
			r.Failed,
			notes,
		})
	}
	return t.Render()
}

func resultsTable(results []historydb.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Venue", "Date", "Outcome", "Path", "Diagnostic"})
	for _, r := range results {
		t.AppendRow(table.Row{r.VenueID, r.Date, r.Outcome, r.Path, r.Diagnostic})
	}
	return t.Render()
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>] [--run <id>]",
	Short: "Lists the most recent runs.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		database, err := cfg.History.Database.OpenWithSchema(historydb.Schema)
		if err != nil {
			serviceutil.Fatal("failed to open history", err)
		}
		defer database.Close()

		store := history.NewStore(database, history.Options{})
		if historyRun != "" {
			results, err := store.RunResults(cmd.Context(), historyRun)
			if err != nil {
				serviceutil.Fatal("failed to read run results", err)
			}
			fmt.Fprintln(os.Stdout, resultsTable(results))
			return
		}

		runs, err := store.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}
		fmt.Fprintln(os.Stdout, runsTable(runs))
	},
}
