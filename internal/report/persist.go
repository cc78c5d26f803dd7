package report

import (
	"context"
	"fmt"
	"strings"

	"vaultrecon/internal/config"
	"vaultrecon/internal/recon"
	"vaultrecon/internal/snowflake"
	"vaultrecon/pkg/errors"
)

// Executor runs statements in a single transaction.
type Executor interface {
	ExecuteStatements(ctx context.Context, statements []snowflake.Statement) error
}

// CreateTableSQL returns the DDL for the results table.
func CreateTableSQL(table string) string {
	cols := make([]string, 0, len(recon.Columns))
	for _, c := range recon.Columns {
		cols = append(cols, "    "+c+" "+columnType(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", table, strings.Join(cols, ",\n"))
}

// InsertSQL returns the parameterized insert for one result row. VARIANT
// values cannot be bound directly, so the details go through PARSE_JSON.
func InsertSQL(table string) string {
	params := make([]string, 0, len(recon.Columns))
	for _, c := range recon.Columns {
		if c == "LOST_RECORDS_DETAILS" {
			params = append(params, "PARSE_JSON(?)")
			continue
		}
		params = append(params, "?")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s",
		table, strings.Join(recon.Columns, ", "), strings.Join(params, ", "))
}

func columnType(col string) string {
	switch {
	case col == "LOST_RECORDS_DETAILS":
		return "VARIANT"
	case strings.HasSuffix(col, "_COUNT"), strings.HasSuffix(col, "_LOSS"),
		col == "TOTAL_ROWS_LOST", col == "DELETED_RECORDS":
		return "NUMBER(38,0)"
	default:
		return "VARCHAR"
	}
}

// Persist writes the results to a Snowflake table, creating it when needed.
func Persist(ctx context.Context, exec Executor, table string, results []recon.Result) error {
	if !config.IsObjectName(table) {
		return errors.ValidationError("results_table", table, "must be a valid object name")
	}
	if len(results) == 0 {
		return nil
	}

	statements := []snowflake.Statement{{Query: CreateTableSQL(table)}}
	insert := InsertSQL(table)
	for _, r := range results {
		details := string(r.LostRecordsDetails)
		if details == "" {
			details = "{}"
		}
		statements = append(statements, snowflake.Statement{
			Query: insert,
			Args: []interface{}{
				r.TableName,
				r.SourceTable,
				r.HubTable,
				r.SatelliteTable,
				r.BizviewTable,
				r.SourceCount,
				r.HubCount,
				r.LinkCount,
				r.CurrentSatelliteCount,
				r.BizviewCount,
				r.SourceToHubLoss,
				r.HubToLinkLoss,
				r.HubToSatLoss,
				r.LinkToSatLoss,
				r.SatToBizviewLoss,
				r.TotalRowsLost,
				r.DeletedRecords,
				details,
			},
		})
	}

	if err := exec.ExecuteStatements(ctx, statements); err != nil {
		return errors.Wrap(err, errors.ErrCodeReportFailed, "Failed to persist results").
			WithContext("table", table).
			WithContext("rows", len(results))
	}
	return nil
}
