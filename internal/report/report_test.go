package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrecon/internal/recon"
	"vaultrecon/internal/snowflake"
	"vaultrecon/pkg/errors"
)

func sampleResult() recon.Result {
	sample := make([]recon.Record, 0, 11)
	for i := 0; i < 10; i++ {
		sample = append(sample, recon.Record{"ID": json.Number(fmt.Sprint(i))})
	}
	sample = append(sample, recon.Record{recon.KeyNote: "Showing 10 of 12 total missing records"})

	return recon.Result{
		TableName:             "ENTITY_TABLE",
		SourceTable:           "SRC.PUBLIC.ENTITY_TABLE",
		HubTable:              "DV.RAW.H_ENTITY",
		SatelliteTable:        "DV.RAW.S_ENTITY_CURRENT",
		BizviewTable:          "DV.BIZ.FACT_ENTITY",
		SourceCount:           100,
		HubCount:              88,
		LinkCount:             88,
		CurrentSatelliteCount: 88,
		BizviewCount:          88,
		SourceToHubLoss:       12,
		TotalRowsLost:         12,
		DeletedRecords:        4,
		LostRecordsDetails:    json.RawMessage(`{"missing_count":12}`),
		Lost:                  recon.LostRecords{SourceToHub: sample, MissingCount: 12, Deleted: 4},
		SampleLimit:           10,
	}
}

func cleanResult() recon.Result {
	return recon.Result{
		TableName:          "CLEAN",
		SourceTable:        "SRC.PUBLIC.CLEAN",
		HubTable:           "DV.RAW.H_CLEAN",
		SourceCount:        5,
		HubCount:           5,
		LostRecordsDetails: json.RawMessage(`{"missing_count":0}`),
		SampleLimit:        10,
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, " csv ": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}

func TestRenderTable(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, []recon.Result{sampleResult(), cleanResult()}, FormatTable, Meta{}))

	out := buf.String()
	assert.Contains(t, out, "ENTITY_TABLE")
	assert.Contains(t, out, "CLEAN")
	assert.Contains(t, out, "10/12")
	assert.Contains(t, out, "0/0")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := Meta{
		ConfigFile:  "/etc/vaultrecon/config.yaml",
		Revision:    "abc123",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, Render(&buf, []recon.Result{sampleResult(), cleanResult()}, FormatJSON, meta))

	var decoded struct {
		Revision      string                   `json:"revision"`
		GeneratedAt   time.Time                `json:"generated_at"`
		Tables        int                      `json:"tables"`
		TotalRowsLost int64                    `json:"total_rows_lost"`
		Results       []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "abc123", decoded.Revision)
	assert.True(t, meta.GeneratedAt.Equal(decoded.GeneratedAt))
	assert.Equal(t, 2, decoded.Tables)
	assert.Equal(t, int64(12), decoded.TotalRowsLost)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "ENTITY_TABLE", decoded.Results[0]["TABLE_NAME"])
	assert.Equal(t, float64(12), decoded.Results[0]["SOURCE_TO_HUB_LOSS"])
	assert.Equal(t, map[string]interface{}{"missing_count": float64(12)}, decoded.Results[0]["LOST_RECORDS_DETAILS"])
}

func TestRenderJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, FormatJSON, Meta{}))
	assert.Contains(t, buf.String(), `"results": []`)
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, []recon.Result{sampleResult()}, FormatCSV, Meta{}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recon.Columns, rows[0])
	assert.Equal(t, "ENTITY_TABLE", rows[1][0])
	assert.Equal(t, "100", rows[1][5])
	assert.Equal(t, `{"missing_count":12}`, rows[1][17])
}

func TestWriteSummary(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	WriteSummary(log, []recon.Result{sampleResult()})

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, "=== VALIDATION SUMMARY ===", messages[0])
	assert.Contains(t, messages, "Table: ENTITY_TABLE")
	assert.Contains(t, messages, "  Total Rows Lost: 12")
	assert.Contains(t, messages, "  Deleted: 4")
	assert.Contains(t, messages, "  Lost records sample: 10 records of 12 total")
}

func TestTotalLost(t *testing.T) {
	assert.Equal(t, int64(12), TotalLost([]recon.Result{sampleResult(), cleanResult()}))
	assert.Zero(t, TotalLost(nil))
}

type recordingExecutor struct {
	statements []snowflake.Statement
	err        error
}

func (e *recordingExecutor) ExecuteStatements(_ context.Context, statements []snowflake.Statement) error {
	e.statements = statements
	return e.err
}

func TestInsertSQL(t *testing.T) {
	sql := InsertSQL("DV.AUDIT.RECON_RESULTS")
	assert.Contains(t, sql, "INSERT INTO DV.AUDIT.RECON_RESULTS (TABLE_NAME, SOURCE_TABLE,")
	assert.Contains(t, sql, "SELECT ?, ?, ?")
	assert.Contains(t, sql, ", PARSE_JSON(?)")
}

func TestCreateTableSQL(t *testing.T) {
	ddl := CreateTableSQL("RECON_RESULTS")
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS RECON_RESULTS (")
	assert.Contains(t, ddl, "TABLE_NAME VARCHAR")
	assert.Contains(t, ddl, "HUB_COUNT NUMBER(38,0)")
	assert.Contains(t, ddl, "SAT_TO_BIZVIEW_LOSS NUMBER(38,0)")
	assert.Contains(t, ddl, "DELETED_RECORDS NUMBER(38,0)")
	assert.Contains(t, ddl, "LOST_RECORDS_DETAILS VARIANT")
}

func TestPersist(t *testing.T) {
	exec := &recordingExecutor{}
	noDetails := cleanResult()
	noDetails.LostRecordsDetails = nil

	err := Persist(context.Background(), exec, "DV.AUDIT.RECON_RESULTS", []recon.Result{sampleResult(), noDetails})
	require.NoError(t, err)

	require.Len(t, exec.statements, 3)
	assert.Equal(t, CreateTableSQL("DV.AUDIT.RECON_RESULTS"), exec.statements[0].Query)
	assert.Equal(t, InsertSQL("DV.AUDIT.RECON_RESULTS"), exec.statements[1].Query)

	args := exec.statements[1].Args
	require.Len(t, args, len(recon.Columns))
	assert.Equal(t, "ENTITY_TABLE", args[0])
	assert.Equal(t, int64(100), args[5])
	assert.Equal(t, `{"missing_count":12}`, args[17])
	assert.Equal(t, "{}", exec.statements[2].Args[17])
}

func TestPersistErrors(t *testing.T) {
	ctx := context.Background()

	err := Persist(ctx, &recordingExecutor{}, "RESULTS; DROP TABLE X", []recon.Result{sampleResult()})
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))

	exec := &recordingExecutor{}
	require.NoError(t, Persist(ctx, exec, "RESULTS", nil))
	assert.Empty(t, exec.statements)

	exec = &recordingExecutor{err: fmt.Errorf("warehouse suspended")}
	err = Persist(ctx, exec, "RESULTS", []recon.Result{sampleResult()})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeReportFailed, errors.GetErrorCode(err))
}
