package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"whisk/pkg/errors"
)

// Service provides Snowflake database operations
type Service struct {
	db             *sql.DB
	config         Config
	connected      bool
	circuitBreaker *errors.CircuitBreaker
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Warehouse string
	Role      string
	Timeout   time.Duration
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
	if config.Database == "" {
		return fmt.Errorf("database is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Role == "" {
		return fmt.Errorf("role is required")
	}
	return nil
}

// NewService creates a new warehouse service
func NewService(config Config) *Service {
	return &Service{
		config:         config,
		circuitBreaker: errors.NewCircuitBreaker("snowflake", 5, 30*time.Second),
	}
}

// NewServiceWithDB wraps an existing connection. Used in tests.
func NewServiceWithDB(db *sql.DB, config Config) *Service {
	return &Service{
		db:             db,
		config:         config,
		connected:      true,
		circuitBreaker: errors.NewCircuitBreaker("snowflake", 5, 30*time.Second),
	}
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return s.circuitBreaker.Execute(context.Background(), func() error {
		return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
			dsn := fmt.Sprintf("%s:%s@%s/%s?warehouse=%s&role=%s",
				s.config.Username,
				s.config.Password,
				s.config.Account,
				s.config.Database,
				s.config.Warehouse,
				s.config.Role,
			)

			db, err := sql.Open("snowflake", dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open Snowflake connection", err).
					WithContext("account", s.config.Account).
					WithContext("warehouse", s.config.Warehouse)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(10 * time.Minute)

			connCtx, cancel := s.getContext()
			defer cancel()

			if err := db.PingContext(connCtx); err != nil {
				db.Close()

				if strings.Contains(err.Error(), "authentication") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check if your account is locked",
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

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// Ping tests the database connection
func (s *Service) Ping(ctx context.Context) error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return err
		}
	}
	return s.db.PingContext(ctx)
}

// Exec executes a single statement
func (s *Service) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}

	execCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to execute statement", query, err)
	}
	return result, nil
}

// Query executes a query and returns rows. The caller's context governs
// the lifetime of the returned rows, so no timeout is layered on here.
func (s *Service) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}

	return s.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query expected to return at most one row
func (s *Service) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// ExecuteScript executes multiple semicolon-separated statements inside
// a single transaction
func (s *Service) ExecuteScript(ctx context.Context, script string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}

	execCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(execCtx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}

	statements := splitStatements(script)
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := tx.ExecContext(execCtx, stmt); err != nil {
			_ = tx.Rollback()

			sqlErr := errors.SQLError(
				fmt.Sprintf("Failed to execute statement %d", i+1),
				stmt,
				err,
			).WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))

			errStr := err.Error()
			if strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "not found") {
				sqlErr.Code = errors.ErrCodeSQLObjectNotFound
				sqlErr.WithSuggestions(
					"Verify the object exists in the target database/schema",
					"Run 'whisk init' to provision warehouse objects",
				)
			}

			return sqlErr
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction")
	}

	return nil
}

// DB returns the underlying database connection
func (s *Service) DB() *sql.DB {
	return s.db
}

// Database returns the configured database name
func (s *Service) Database() string {
	return s.config.Database
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	return s.withTimeout(context.Background())
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// splitStatements splits a script on semicolons not within strings
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := rune(0)

	for i, char := range script {
		if !inString {
			if char == '\'' || char == '"' {
				inString = true
				stringChar = char
			} else if char == ';' {
				if i == 0 || script[i-1] != '\\' {
					statements = append(statements, current.String())
					current.Reset()
					continue
				}
			}
		} else {
			if char == stringChar && (i == 0 || script[i-1] != '\\') {
				inString = false
			}
		}
		current.WriteRune(char)
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidIdentifier rejects names that cannot be safely interpolated into
// DDL and MERGE statements
func ValidIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid identifier %q", name)).
			WithSuggestions("Identifiers may contain letters, digits, underscores and $ and must not start with a digit")
	}
	return nil
}
