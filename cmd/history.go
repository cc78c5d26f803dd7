package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"vaultrecon/internal/config"
	"vaultrecon/internal/history"
	"vaultrecon/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past reconciliation runs",
	Long: `Show runs recorded in the local history database. With --table the loss
trend of one table across runs is shown instead.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("table", "", "show the trend for one table")
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().String("history-db", "", "history database (default history.path or ~/.vaultrecon/history.db)")
}

func historyPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("history-db"); path != "" {
		return path
	}
	if cfg, err := config.Load(configFile()); err == nil && cfg.History.Path != "" {
		return cfg.History.Path
	}
	return config.DefaultHistoryPath()
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := history.Open(historyPath(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()
	table := tablewriter.NewWriter(out)
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	if name, _ := cmd.Flags().GetString("table"); name != "" {
		points, err := store.TableTrend(cmd.Context(), name, limit)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			ui.ShowInfo(fmt.Sprintf("No recorded runs for %s", name))
			return nil
		}

		table.SetHeader([]string{"Run", "Started", "Revision", "Source", "Hub", "Src>Hub", "Lost", "Deleted"})
		for _, p := range points {
			table.Append([]string{
				strconv.FormatInt(p.RunID, 10),
				p.StartedAt.Format("2006-01-02 15:04:05"),
				orDash(shortRevision(p.Revision)),
				strconv.FormatInt(p.SourceCount, 10),
				strconv.FormatInt(p.HubCount, 10),
				ui.FormatLoss(p.SourceToHub),
				ui.FormatLoss(p.TotalRowsLost),
				strconv.FormatInt(p.DeletedRecords, 10),
			})
		}
		table.Render()
		return nil
	}

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.ShowInfo("No recorded runs")
		return nil
	}

	table.SetHeader([]string{"Run", "Started", "Duration", "Revision", "Tables", "Lost", "Config"})
	for _, r := range runs {
		table.Append([]string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			orDash(shortRevision(r.Revision)),
			strconv.Itoa(r.TableCount),
			ui.FormatLoss(r.TotalRowsLost),
			orDash(r.ConfigFile),
		})
	}
	table.Render()
	return nil
}

// shortRevision trims a commit hash to 7 characters, keeping a -dirty suffix.
func shortRevision(rev string) string {
	if len(rev) < 7 {
		return rev
	}
	short := rev[:7]
	if len(rev) > 40 {
		short += rev[40:]
	}
	return short
}
