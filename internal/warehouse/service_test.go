package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Account:   "test123.us-east-2",
		Username:  "LOADER",
		Password:  "testpass",
		Database:  "BAKERY",
		Warehouse: "COMPUTE_WH",
		Role:      "SYSADMIN",
		Timeout:   30 * time.Second,
	}
}

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewServiceWithDB(db, testConfig()), mock
}

func TestNewService(t *testing.T) {
	service := NewService(testConfig())

	assert.NotNil(t, service)
	assert.Equal(t, testConfig(), service.config)
	assert.False(t, service.connected)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"missing account", func(c *Config) { c.Account = "" }, "account is required"},
		{"missing username", func(c *Config) { c.Username = "" }, "username is required"},
		{"missing password", func(c *Config) { c.Password = "" }, "password is required"},
		{"missing database", func(c *Config) { c.Database = "" }, "database is required"},
		{"missing warehouse", func(c *Config) { c.Warehouse = "" }, "warehouse is required"},
		{"missing role", func(c *Config) { c.Role = "" }, "role is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(&config)

			err := ValidateConfig(config)
			if tt.wantError == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantError)
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.NoError(t, ValidIdentifier("RAW"))
	assert.NoError(t, ValidIdentifier("DIM_CUSTOMERS_SCD"))
	assert.NoError(t, ValidIdentifier("_private$1"))

	assert.Error(t, ValidIdentifier("1RAW"))
	assert.Error(t, ValidIdentifier("RAW; DROP TABLE ORDERS"))
	assert.Error(t, ValidIdentifier("raw.orders"))
	assert.Error(t, ValidIdentifier(""))
}

func TestSplitStatements(t *testing.T) {
	statements := splitStatements("CREATE SCHEMA IF NOT EXISTS RAW; SELECT 'a;b'; ")
	require.Len(t, statements, 3)
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS RAW", statements[0])
	assert.Equal(t, " SELECT 'a;b'", statements[1])
}

func TestExecNotConnected(t *testing.T) {
	service := NewService(testConfig())
	_, err := service.Exec(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestEnsureObjects(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS RAW").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS ANALYTICS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS RAW.ORDERS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS RAW.CUSTOMERS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS RAW.SYNC_STATE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ANALYTICS.DIM_CUSTOMERS_SCD").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ANALYTICS.FUTURE_ORDERS").WillReturnResult(sqlmock.NewResult(0, 0))

	err := service.EnsureObjects(context.Background(), Schemas{Raw: "RAW", Analytics: "ANALYTICS"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureObjectsRejectsBadSchema(t *testing.T) {
	service, _ := newMockService(t)
	err := service.EnsureObjects(context.Background(), Schemas{Raw: "RAW;DROP", Analytics: "ANALYTICS"})
	assert.Error(t, err)
}

func TestExecuteScript(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS RAW").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := service.ExecuteScript(context.Background(), "CREATE SCHEMA IF NOT EXISTS RAW; SELECT 1;")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteScriptRollsBackOnFailure(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT BROKEN").WillReturnError(fmt.Errorf("object does not exist"))
	mock.ExpectRollback()

	err := service.ExecuteScript(context.Background(), "SELECT 1; SELECT BROKEN;")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
