// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"vaultrecon/internal/common"
	"vaultrecon/internal/snowflake"
)

// NewMockService returns a connected service backed by sqlmock. Queries are
// matched verbatim, after whitespace normalization.
func NewMockService(t *testing.T) (*snowflake.Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return snowflake.NewServiceFromDB(db, snowflake.Config{QueryTimeout: 5 * time.Second}), mock
}

// CountRows is a single COUNT(*) result.
func CountRows(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(n)
}

// JSONRows is a RECORD_JSON result set; pass nil for a NULL row.
func JSONRows(values ...interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"RECORD_JSON"})
	for _, v := range values {
		rows.AddRow(v)
	}
	return rows
}

// WriteFile writes content to name under a fresh temp directory and returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure))
	require.NoError(t, os.WriteFile(path, []byte(content), common.FilePermissionSecure))
	return path
}
