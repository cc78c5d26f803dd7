package snowflake

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"vaultrecon/pkg/errors"
)

// incorrectCredentials is the Snowflake error number for a failed password login.
const incorrectCredentials = 390100

// Service provides Snowflake database operations
type Service struct {
	db             *sql.DB
	config         Config
	connected      bool
	circuitBreaker *errors.CircuitBreaker
}

// Config holds Snowflake connection configuration
type Config struct {
	Account      string
	Username     string
	Password     string
	Database     string
	Schema       string
	Warehouse    string
	Role         string
	LoginTimeout time.Duration
	QueryTimeout time.Duration
}

// Statement is a single parameterized statement for ExecuteStatements.
type Statement struct {
	Query string
	Args  []interface{}
}

// NewService creates a new Snowflake service
func NewService(config Config) *Service {
	return &Service{
		config:         config,
		circuitBreaker: errors.NewCircuitBreaker("snowflake", 5, 30*time.Second),
	}
}

// NewServiceFromDB wraps an already opened connection pool.
func NewServiceFromDB(db *sql.DB, config Config) *Service {
	s := NewService(config)
	s.db = db
	s.connected = true
	return s
}

// DSN renders the gosnowflake connection string for the configuration.
func (c Config) DSN() (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:      c.Account,
		User:         c.Username,
		Password:     c.Password,
		Database:     c.Database,
		Schema:       c.Schema,
		Warehouse:    c.Warehouse,
		Role:         c.Role,
		LoginTimeout: c.LoginTimeout,
		Application:  "vaultrecon",
	})
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	return s.circuitBreaker.Execute(ctx, func() error {
		return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
			dsn, err := s.config.DSN()
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to build Snowflake DSN").
					WithContext("account", s.config.Account)
			}

			db, err := sql.Open("snowflake", dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open Snowflake connection", err).
					WithContext("account", s.config.Account).
					WithContext("warehouse", s.config.Warehouse)
			}

			// one session is enough for sequential reconciliation
			db.SetMaxOpenConns(2)
			db.SetMaxIdleConns(1)
			db.SetConnMaxLifetime(30 * time.Minute)

			pingCtx, cancel := context.WithTimeout(ctx, s.loginTimeout())
			defer cancel()

			if err := db.PingContext(pingCtx); err != nil {
				db.Close()

				if isAuthFailure(err) {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check if your account is locked",
							"Ensure MFA is properly configured if required",
						)
				}

				return errors.ConnectionError("Failed to connect to Snowflake", err).
					WithContext("account", s.config.Account).
					AsRecoverable()
			}

			s.db = db
			s.connected = true
			return nil
		})
	})
}

func isAuthFailure(err error) bool {
	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) && sfErr.Number == incorrectCredentials {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "authentication")
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Ping checks the session is alive.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.loginTimeout())
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return errors.ConnectionError("Snowflake ping failed", err)
	}
	return nil
}

// QueryInt64 runs a query returning a single number, such as COUNT(*).
func (s *Service) QueryInt64(ctx context.Context, query string) (int64, error) {
	if err := s.ensureConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, errors.New(errors.ErrCodeNoResults, "Query returned no rows").
				WithContext("query", query)
		}
		return 0, errors.SQLError("Failed to execute count query", query, err)
	}
	return n.Int64, nil
}

// QueryStrings returns the first column of every row. NULLs are kept so
// callers can tell them apart from empty strings.
func (s *Service) QueryStrings(ctx context.Context, query string) ([]sql.NullString, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.SQLError("Failed to execute query", query, err)
	}
	defer rows.Close()

	var values []sql.NullString
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan result row").
				WithContext("query", query)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed while reading results", query, err)
	}
	return values, nil
}

// ExecuteStatements runs the statements in one transaction and rolls back on
// the first failure.
func (s *Service) ExecuteStatements(ctx context.Context, statements []Statement) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
			sqlErr := errors.SQLError(
				fmt.Sprintf("Failed to execute statement %d", i+1),
				stmt.Query,
				err,
			).WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))

			if rbErr := tx.Rollback(); rbErr != nil {
				sqlErr.WithContext("rollback_error", rbErr.Error())
			}
			return sqlErr
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction")
	}
	return nil
}

// Helper methods

func (s *Service) ensureConnected() error {
	if !s.connected {
		return errors.New(errors.ErrCodeNotConnected, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}
	return nil
}

func (s *Service) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.QueryTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) loginTimeout() time.Duration {
	if s.config.LoginTimeout == 0 {
		return 60 * time.Second
	}
	return s.config.LoginTimeout
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	return nil
}
