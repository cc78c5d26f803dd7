package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrecon/pkg/errors"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewServiceFromDB(db, Config{QueryTimeout: 5 * time.Second}), mock
}

func TestNewService(t *testing.T) {
	config := Config{
		Account:   "test123.us-east-1",
		Username:  "testuser",
		Password:  "testpass",
		Database:  "TEST_DB",
		Schema:    "PUBLIC",
		Warehouse: "TEST_WH",
		Role:      "SYSADMIN",
	}

	service := NewService(config)

	assert.NotNil(t, service)
	assert.Equal(t, config, service.config)
	assert.False(t, service.connected)
	assert.Equal(t, "closed", service.circuitBreaker.GetState())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				Account:   "test123.us-east-1",
				Username:  "testuser",
				Password:  "testpass",
				Warehouse: "TEST_WH",
			},
		},
		{
			name:      "missing account",
			config:    Config{Username: "testuser", Password: "testpass", Warehouse: "TEST_WH"},
			wantError: true,
			errorMsg:  "account is required",
		},
		{
			name:      "missing username",
			config:    Config{Account: "test123", Password: "testpass", Warehouse: "TEST_WH"},
			wantError: true,
			errorMsg:  "username is required",
		},
		{
			name:      "missing password",
			config:    Config{Account: "test123", Username: "testuser", Warehouse: "TEST_WH"},
			wantError: true,
			errorMsg:  "password is required",
		},
		{
			name:      "missing warehouse",
			config:    Config{Account: "test123", Username: "testuser", Password: "testpass"},
			wantError: true,
			errorMsg:  "warehouse is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.wantError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	dsn, err := Config{
		Account:   "xy12345",
		Username:  "recon_user",
		Password:  "secret",
		Database:  "DV_DB",
		Warehouse: "RECON_WH",
		Role:      "ANALYST",
	}.DSN()
	require.NoError(t, err)

	assert.Contains(t, dsn, "recon_user:secret@")
	assert.Contains(t, dsn, "warehouse=RECON_WH")
	assert.Contains(t, dsn, "role=ANALYST")
	assert.Contains(t, dsn, "application=vaultrecon")
}

func TestQueryInt64(t *testing.T) {
	service, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT(*) FROM DB.S.T").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(42)))
	n, err := service.QueryInt64(ctx, "SELECT COUNT(*) FROM DB.S.T")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	mock.ExpectQuery("SELECT COUNT(*) FROM DB.S.MISSING").
		WillReturnError(fmt.Errorf("Object 'DB.S.MISSING' does not exist or not authorized"))
	_, err = service.QueryInt64(ctx, "SELECT COUNT(*) FROM DB.S.MISSING")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLObjectNotFound, errors.GetErrorCode(err))

	mock.ExpectQuery("SELECT COUNT(*) FROM DB.S.EMPTY").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}))
	_, err = service.QueryInt64(ctx, "SELECT COUNT(*) FROM DB.S.EMPTY")
	assert.Equal(t, errors.ErrCodeNoResults, errors.GetErrorCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryStrings(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectQuery("SELECT RECORD_JSON FROM X").
		WillReturnRows(sqlmock.NewRows([]string{"RECORD_JSON"}).
			AddRow(`{"ID":1}`).
			AddRow(nil))

	values, err := service.QueryStrings(context.Background(), "SELECT RECORD_JSON FROM X")
	require.NoError(t, err)
	assert.Equal(t, []sql.NullString{
		{String: `{"ID":1}`, Valid: true},
		{},
	}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteStatements(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantError bool
		errorMsg  string
	}{
		{
			name: "commit",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS R (A INT)").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("INSERT INTO R (A) VALUES (?)").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "rollback on failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS R (A INT)").WillReturnError(fmt.Errorf("Insufficient privileges"))
				mock.ExpectRollback()
			},
			wantError: true,
			errorMsg:  "Failed to execute statement 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock := newMockService(t)
			tt.setupMock(mock)

			err := service.ExecuteStatements(context.Background(), []Statement{
				{Query: "CREATE TABLE IF NOT EXISTS R (A INT)"},
				{Query: "INSERT INTO R (A) VALUES (?)", Args: []interface{}{1}},
			})

			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Equal(t, errors.ErrCodeSQLPermission, errors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNotConnected(t *testing.T) {
	service := NewService(Config{})
	ctx := context.Background()

	_, err := service.QueryInt64(ctx, "SELECT 1")
	assert.Equal(t, errors.ErrCodeNotConnected, errors.GetErrorCode(err))

	_, err = service.QueryStrings(ctx, "SELECT 1")
	assert.Equal(t, errors.ErrCodeNotConnected, errors.GetErrorCode(err))

	assert.Error(t, service.ExecuteStatements(ctx, nil))
	assert.Error(t, service.Ping(ctx))
	assert.NoError(t, service.Close())
}

func TestCloseAndPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	service := NewServiceFromDB(db, Config{})
	mock.ExpectPing()
	assert.NoError(t, service.Ping(context.Background()))

	mock.ExpectClose()
	assert.NoError(t, service.Close())
	assert.False(t, service.connected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
