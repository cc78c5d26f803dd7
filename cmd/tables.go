package cmd

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"vaultrecon/internal/config"
	"vaultrecon/internal/recon"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List configured table pairs",
	Long: `List the source tables in the configuration with the vault objects they are
reconciled against. With --sql the EXCEPT query used to find missing rows is
printed for each table.`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().Bool("sql", false, "print the EXCEPT query for each table")
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if showSQL, _ := cmd.Flags().GetBool("sql"); showSQL {
		for _, tc := range cfg.Tables {
			fmt.Fprintf(out, "-- %s\n", tc.TableName())
			if q := recon.ExceptQuery(tc); q != "" {
				fmt.Fprintf(out, "%s;\n\n", q)
			} else {
				fmt.Fprint(out, "-- no EXCEPT query: source_key and hub_key are required\n\n")
			}
		}
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Table", "Source", "Hub", "Link", "Satellite", "Bizview", "Keys", "Compare"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, tc := range cfg.Tables {
		keys := "-"
		if tc.SourceKey != "" {
			keys = tc.SourceKey + " = " + tc.HubKey
		}
		table.Append([]string{
			tc.TableName(),
			tc.SourceTable,
			tc.HubTable,
			orDash(tc.LinkTable),
			orDash(tc.CurSatelliteTable),
			orDash(tc.BizviewTable),
			keys,
			orDash(strings.Join(tc.ColumnsToCompare, ", ")),
		})
	}
	table.Render()
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
