package models

import "strings"

type Config struct {
	Snowflake Snowflake       `yaml:"snowflake"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	History   HistoryConfig   `yaml:"history"`
	Tables    []TableConfig   `yaml:"tables"`
}

type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Timeout   string `yaml:"timeout"` // login timeout, e.g. "60s"
}

// ReconcileConfig tunes how each table pair is reconciled
type ReconcileConfig struct {
	SampleLimit   int    `yaml:"sample_limit"`   // missing rows serialized per table
	QueryTimeout  string `yaml:"query_timeout"`  // per statement, e.g. "5m"
	MeasureLayers bool   `yaml:"measure_layers"` // count hub/link/satellite/bizview instead of deriving
	FailOnLoss    bool   `yaml:"fail_on_loss"`
	ResultsTable  string `yaml:"results_table"` // optional warehouse table receiving summary rows
}

// HistoryConfig points at the local run history database. History is
// recorded unless enabled is explicitly false.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// IsEnabled reports whether runs are recorded.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// TableConfig describes one source table and the vault objects loaded from it.
type TableConfig struct {
	SourceTable       string   `yaml:"source_table" json:"source_table"`
	HubTable          string   `yaml:"hub_table" json:"hub_table"`
	LinkTable         string   `yaml:"link_table,omitempty" json:"link_table,omitempty"`
	CurSatelliteTable string   `yaml:"cur_satellite_table" json:"cur_satellite_table"`
	SatelliteTable    string   `yaml:"satellite_table,omitempty" json:"satellite_table,omitempty"`
	BizviewTable      string   `yaml:"bizview_table" json:"bizview_table"`
	SourceKey         string   `yaml:"source_key" json:"source_key"`
	HubKey            string   `yaml:"hub_key" json:"hub_key"`
	SatelliteHashKey  string   `yaml:"satellite_hash_key" json:"satellite_hash_key"`
	BizviewKey        string   `yaml:"bizview_key" json:"bizview_key"`
	DeletedColumn     string   `yaml:"deleted_column,omitempty" json:"deleted_column,omitempty"`
	ColumnsToCompare  []string `yaml:"columns_to_compare" json:"columns_to_compare"`
	CustomExceptQuery string   `yaml:"custom_except_query,omitempty" json:"custom_except_query,omitempty"`
}

// TableName is the last segment of the fully qualified source table. A
// quoted segment keeps its quotes.
func (t TableConfig) TableName() string {
	parts := SplitObjectName(t.SourceTable)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// SplitObjectName splits a qualified object name on dots outside double quotes.
func SplitObjectName(s string) []string {
	if s == "" {
		return nil
	}
	var (
		parts   []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case r == '.' && !quoted:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(parts, current.String())
}

// HistorySatellite is the satellite joined by generated EXCEPT queries.
func (t TableConfig) HistorySatellite() string {
	if t.SatelliteTable != "" {
		return t.SatelliteTable
	}
	return t.CurSatelliteTable
}
