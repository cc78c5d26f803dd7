package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vaultrecon/internal/common"
	"vaultrecon/internal/config"
	"vaultrecon/internal/history"
	"vaultrecon/internal/recon"
	"vaultrecon/internal/report"
	"vaultrecon/internal/snowflake"
	"vaultrecon/internal/ui"
	"vaultrecon/pkg/errors"
	"vaultrecon/pkg/models"
)

// warehouse is what reconcile needs from a Snowflake session.
type warehouse interface {
	recon.Querier
	report.Executor
	Close() error
}

// connectWarehouse opens the Snowflake session; tests replace it.
var connectWarehouse = func(ctx context.Context, cfg *models.Config) (warehouse, error) {
	svc, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func connect(ctx context.Context, cfg *models.Config) (*snowflake.Service, error) {
	password, err := config.ResolvePassword(cfg.Snowflake)
	if err != nil {
		return nil, err
	}

	sfConfig := snowflake.Config{
		Account:      cfg.Snowflake.Account,
		Username:     cfg.Snowflake.Username,
		Password:     password,
		Database:     cfg.Snowflake.Database,
		Schema:       cfg.Snowflake.Schema,
		Warehouse:    cfg.Snowflake.Warehouse,
		Role:         cfg.Snowflake.Role,
		LoginTimeout: config.LoginTimeout(cfg),
		QueryTimeout: config.QueryTimeout(cfg),
	}
	if err := snowflake.ValidateConfig(sfConfig); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Incomplete Snowflake configuration")
	}

	svc := snowflake.NewService(sfConfig)
	if err := svc.Connect(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Count rows through every vault layer and report losses",
	Long: `Reconcile each configured source table against its hub, link, satellite and
business view. Rows present in the source but missing from the hub are counted
with an EXCEPT query and a sample of them is included in the report.

Examples:
  vaultrecon reconcile
  vaultrecon reconcile --table ORDERS --table CUSTOMERS --format json -o recon.json
  vaultrecon reconcile --interactive --measure-layers --fail-on-loss`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	f := reconcileCmd.Flags()
	f.StringSliceP("table", "t", nil, "reconcile only these tables (name or fully qualified source table)")
	f.BoolP("interactive", "i", false, "choose tables interactively")
	f.StringP("format", "f", "table", "output format (table, json, csv)")
	f.StringP("output", "o", "", "write the report to a file instead of stdout")
	f.Int("sample-limit", config.DefaultSampleLimit, "missing rows sampled per table")
	f.Bool("measure-layers", false, "count hub, link, satellite and bizview instead of deriving them")
	f.String("results-table", "", "also write summary rows to this Snowflake table")
	f.String("history-db", "", "record the run in this SQLite database (default ~/.vaultrecon/history.db)")
	f.Bool("no-history", false, "do not record the run")
	f.Bool("fail-on-loss", false, "exit non-zero when any table lost rows")
	bindFlags(f, "format", "output", "sample-limit", "measure-layers", "results-table", "history-db", "no-history", "fail-on-loss")
}

// applyOverrides lets flags and VAULTRECON_* variables override the config file.
func applyOverrides(cfg *models.Config) {
	if viper.IsSet("sample_limit") {
		cfg.Reconcile.SampleLimit = viper.GetInt("sample_limit")
	}
	if viper.IsSet("measure_layers") {
		cfg.Reconcile.MeasureLayers = viper.GetBool("measure_layers")
	}
	if viper.IsSet("results_table") {
		cfg.Reconcile.ResultsTable = viper.GetString("results_table")
	}
	if viper.IsSet("fail_on_loss") {
		cfg.Reconcile.FailOnLoss = viper.GetBool("fail_on_loss")
	}
	if path := viper.GetString("history_db"); path != "" {
		enabled := true
		cfg.History.Enabled = &enabled
		cfg.History.Path = path
	}
	if viper.GetBool("no_history") {
		disabled := false
		cfg.History.Enabled = &disabled
	}
	config.ApplyDefaults(cfg)
}

// filterTables keeps the tables named by TableName or SourceTable, in config order.
func filterTables(tables []models.TableConfig, names []string) ([]models.TableConfig, error) {
	if len(names) == 0 {
		return tables, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToUpper(strings.TrimSpace(n))] = false
	}

	var selected []models.TableConfig
	for _, tc := range tables {
		matched := false
		for _, key := range []string{strings.ToUpper(tc.TableName()), strings.ToUpper(tc.SourceTable)} {
			if _, ok := wanted[key]; ok {
				wanted[key] = true
				matched = true
			}
		}
		if matched {
			selected = append(selected, tc)
		}
	}

	var unknown []string
	for n, found := range wanted {
		if !found {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.ValidationError("table", strings.Join(unknown, ", "), "not found in configuration").
			WithSuggestions("Run 'vaultrecon tables' to list configured tables")
	}
	return selected, nil
}

func chooseTables(tables []models.TableConfig) ([]models.TableConfig, error) {
	names := make([]string, len(tables))
	for i, tc := range tables {
		names[i] = tc.TableName()
	}
	chosen, err := ui.SelectTables(names)
	if err != nil {
		return nil, err
	}
	return filterTables(tables, chosen)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := configFile()

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	applyOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	format, err := report.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}

	names, _ := cmd.Flags().GetStringSlice("table")
	tables, err := filterTables(cfg.Tables, names)
	if err != nil {
		return err
	}
	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if tables, err = chooseTables(tables); err != nil {
			return err
		}
	}

	revision, err := config.Revision(path)
	if err != nil {
		log.WithError(err).Warn("Could not determine config revision")
	}

	output := viper.GetString("output")
	// progress goes to stdout, so only show it when stdout carries no machine-readable report
	interactiveOutput := format == report.FormatTable || output != ""

	if interactiveOutput {
		ui.ShowHeader("vaultrecon - data vault reconciliation")
		ui.ShowKeyValue("Config", path)
		if revision != "" {
			ui.ShowKeyValue("Revision", revision)
		}
		ui.ShowKeyValue("Tables", fmt.Sprintf("%d", len(tables)))
	}

	wh, err := connectWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	opts := recon.Options{
		SampleLimit:   cfg.Reconcile.SampleLimit,
		MeasureLayers: cfg.Reconcile.MeasureLayers,
	}
	var progress *ui.ProgressBar
	if interactiveOutput {
		progress = ui.NewProgressBar(len(tables))
		opts.Progress = progress.Update
	}

	started := time.Now()
	results, err := recon.NewReconciler(wh, log, opts).Run(ctx, tables)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeReconcileFailed, "Reconciliation interrupted").
			WithContext("completed_tables", len(results))
	}
	if progress != nil {
		progress.Finish()
	}

	report.WriteSummary(log, results)

	if err := writeReport(cmd.OutOrStdout(), output, results, format, report.Meta{
		ConfigFile:  path,
		Revision:    revision,
		GeneratedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	if table := cfg.Reconcile.ResultsTable; table != "" {
		if err := report.Persist(ctx, wh, table, results); err != nil {
			return err
		}
		log.Infof("Wrote %d result rows to %s", len(results), table)
	}

	if cfg.History.IsEnabled() {
		if err := saveHistory(ctx, cfg.History.Path, history.Run{
			StartedAt:  started,
			FinishedAt: time.Now(),
			ConfigFile: path,
			Revision:   revision,
			Results:    results,
		}); err != nil {
			log.WithError(err).Warn("Failed to record run history")
		}
	}

	total := report.TotalLost(results)
	if total > 0 && cfg.Reconcile.FailOnLoss {
		return errors.New(errors.ErrCodeRowsLost, fmt.Sprintf("%d rows lost across %d tables", total, len(results))).
			WithContext("total_rows_lost", total).
			WithSuggestions("Inspect LOST_RECORDS_DETAILS for sampled source rows")
	}
	if interactiveOutput {
		if total > 0 {
			ui.ShowWarning(fmt.Sprintf("%d rows lost", total))
		} else {
			ui.ShowSuccess("No rows lost")
		}
	}
	return nil
}

func writeReport(stdout io.Writer, output string, results []recon.Result, format report.Format, meta report.Meta) error {
	if output == "" {
		return report.Render(stdout, results, format, meta)
	}

	path, err := common.CleanPath(output)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeReportFailed, "Invalid output path")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, common.FilePermissionNormal) // #nosec G304 - path is validated
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeReportFailed, "Failed to create report file").
			WithContext("path", path)
	}
	defer f.Close()

	if err := report.Render(f, results, format, meta); err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("Report written to %s", path))
	return nil
}

func saveHistory(ctx context.Context, path string, run history.Run) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	log.WithField("run_id", id).Infof("Recorded run in %s", path)
	return nil
}
