package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"vaultrecon/pkg/errors"
	"vaultrecon/pkg/models"
)

var (
	unquotedIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	quotedIdent   = regexp.MustCompile(`^"(?:[^"]|"")+"$`)
)

// IsIdentifier reports whether s is a single unquoted or double-quoted Snowflake identifier.
func IsIdentifier(s string) bool {
	return unquotedIdent.MatchString(s) || quotedIdent.MatchString(s)
}

// IsObjectName reports whether s is an identifier optionally qualified by
// database and schema (at most three parts).
func IsObjectName(s string) bool {
	parts := models.SplitObjectName(s)
	if len(parts) == 0 || len(parts) > 3 {
		return false
	}
	for _, p := range parts {
		if !IsIdentifier(p) {
			return false
		}
	}
	return true
}

// Validate checks that the configuration can drive a reconciliation run.
func Validate(cfg *models.Config) error {
	if len(cfg.Tables) == 0 {
		return errors.ConfigError("No tables configured", "tables")
	}

	if _, err := time.ParseDuration(cfg.Reconcile.QueryTimeout); err != nil {
		return errors.ConfigError(fmt.Sprintf("Invalid query timeout %q", cfg.Reconcile.QueryTimeout), "reconcile.query_timeout")
	}
	if cfg.Reconcile.ResultsTable != "" && !IsObjectName(cfg.Reconcile.ResultsTable) {
		return errors.ConfigError(fmt.Sprintf("Invalid results table %q", cfg.Reconcile.ResultsTable), "reconcile.results_table")
	}

	seen := make(map[string]int)
	for i, t := range cfg.Tables {
		if err := ValidateTable(t); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("Invalid table configuration #%d", i+1)).
				WithContext("source_table", t.SourceTable)
		}
		name := strings.ToUpper(t.TableName())
		if prev, ok := seen[name]; ok {
			return errors.ConfigError(
				fmt.Sprintf("Tables #%d and #%d share the name %s", prev+1, i+1, name),
				"tables.source_table",
			)
		}
		seen[name] = i
	}
	return nil
}

// ValidateTable checks a single table pair. Every name interpolated into SQL
// must be a plain identifier.
func ValidateTable(t models.TableConfig) error {
	if t.SourceTable == "" {
		return errors.ValidationError("source_table", t.SourceTable, "is required")
	}
	if t.HubTable == "" {
		return errors.ValidationError("hub_table", t.HubTable, "is required")
	}

	objects := map[string]string{
		"source_table":        t.SourceTable,
		"hub_table":           t.HubTable,
		"link_table":          t.LinkTable,
		"cur_satellite_table": t.CurSatelliteTable,
		"satellite_table":     t.SatelliteTable,
		"bizview_table":       t.BizviewTable,
	}
	for field, v := range objects {
		if v != "" && !IsObjectName(v) {
			return errors.ValidationError(field, v, "is not a valid object name")
		}
	}

	columns := map[string]string{
		"source_key":         t.SourceKey,
		"hub_key":            t.HubKey,
		"satellite_hash_key": t.SatelliteHashKey,
		"bizview_key":        t.BizviewKey,
		"deleted_column":     t.DeletedColumn,
	}
	for field, v := range columns {
		if v != "" && !IsIdentifier(v) {
			return errors.ValidationError(field, v, "is not a valid column name")
		}
	}
	for _, c := range t.ColumnsToCompare {
		if !IsIdentifier(c) {
			return errors.ValidationError("columns_to_compare", c, "is not a valid column name")
		}
	}

	if strings.Contains(t.CustomExceptQuery, ";") {
		return errors.ValidationError("custom_except_query", truncate(t.CustomExceptQuery), "must be a single statement")
	}
	return nil
}

func truncate(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
