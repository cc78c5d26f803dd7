package recon

import (
	"fmt"
	"strings"

	"vaultrecon/pkg/models"
)

// CountQuery counts every row of table.
func CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
}

// DistinctCountQuery counts distinct values of key in table.
func DistinctCountQuery(table, key string) string {
	return fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", key, table)
}

// NonDeletedCountQuery counts rows whose soft-delete flag is false.
func NonDeletedCountQuery(table, deletedColumn string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = FALSE", table, deletedColumn)
}

// ExceptQuery returns the set difference "source rows not present in the
// vault". A configured custom query wins; otherwise one is generated from the
// key and compare columns. The result is empty when neither is possible.
func ExceptQuery(tc models.TableConfig) string {
	if q := strings.TrimSpace(tc.CustomExceptQuery); q != "" {
		return q
	}
	if tc.SourceKey == "" || tc.HubKey == "" {
		return ""
	}

	cols := tc.ColumnsToCompare
	satellite := tc.HistorySatellite()
	if len(cols) > 0 && (satellite == "" || tc.SatelliteHashKey == "") {
		return ""
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(tc.SourceKey)
	for _, c := range cols {
		b.WriteString(", ")
		b.WriteString(c)
	}
	b.WriteString("\nFROM ")
	b.WriteString(tc.SourceTable)
	if tc.DeletedColumn != "" {
		fmt.Fprintf(&b, "\nWHERE %s = FALSE", tc.DeletedColumn)
	}

	b.WriteString("\nEXCEPT\nSELECT H.")
	b.WriteString(tc.HubKey)
	for _, c := range cols {
		b.WriteString(", S.")
		b.WriteString(c)
	}
	b.WriteString("\nFROM ")
	b.WriteString(tc.HubTable)
	b.WriteString(" H")
	if len(cols) > 0 {
		fmt.Fprintf(&b, "\nJOIN %s S ON H.%s = S.%s", satellite, tc.SatelliteHashKey, tc.SatelliteHashKey)
	}
	return b.String()
}

// MissingCountQuery counts the rows returned by an EXCEPT query.
func MissingCountQuery(except string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s)", except)
}

// MissingSampleQuery returns up to limit missing rows, each serialized by
// the warehouse as one JSON object in RECORD_JSON.
func MissingSampleQuery(except string, limit int) string {
	return fmt.Sprintf(`WITH missing_records AS (
%s
LIMIT %d
)
SELECT TO_JSON(OBJECT_CONSTRUCT(*)) AS RECORD_JSON
FROM missing_records`, except, limit)
}
