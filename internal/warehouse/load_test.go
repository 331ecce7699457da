package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisk/pkg/models"
)

func sampleOrder(id int64, updated time.Time) models.Order {
	return models.Order{
		ID:              id,
		Name:            "#1001",
		CreatedAt:       updated.Add(-time.Hour),
		UpdatedAt:       updated,
		FinancialStatus: "paid",
		TotalPrice:      decimal.RequireFromString("84.50"),
		Customer:        &models.Customer{ID: 701},
		NoteAttributes: []models.NoteAttribute{
			{Name: "theme", Value: "dinosaurs"},
			{Name: "pickup_date", Value: "2026-09-12"},
		},
	}
}

func TestBuildMerge(t *testing.T) {
	query := buildMerge("RAW", "CUSTOMERS", "CUSTOMER_ID",
		[]string{"CUSTOMER_ID", "EMAIL"}, 2)

	assert.Contains(t, query, "MERGE INTO RAW.CUSTOMERS AS tgt")
	assert.Contains(t, query, "VALUES (?, ?), (?, ?) AS v(CUSTOMER_ID, EMAIL)")
	assert.Contains(t, query, "ON tgt.CUSTOMER_ID = src.CUSTOMER_ID")
	assert.Contains(t, query, "UPDATE SET tgt.EMAIL = src.EMAIL")
	assert.NotContains(t, query, "tgt.CUSTOMER_ID = src.CUSTOMER_ID,")
	assert.Contains(t, query, "INSERT (CUSTOMER_ID, EMAIL) VALUES (src.CUSTOMER_ID, src.EMAIL)")
}

func TestUpsertOrders(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("MERGE INTO RAW.ORDERS AS tgt").
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows, err := service.UpsertOrders(context.Background(), "RAW", []models.Order{
		sampleOrder(1, time.Now()),
		sampleOrder(2, time.Now()),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOrdersEmptyBatch(t *testing.T) {
	service, mock := newMockService(t)

	rows, err := service.UpsertOrders(context.Background(), "RAW", nil)
	require.NoError(t, err)
	assert.Zero(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupeOrdersKeepsLatest(t *testing.T) {
	older := sampleOrder(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	older.FinancialStatus = "pending"
	newer := sampleOrder(1, time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC))

	out := dedupeOrders([]models.Order{older, newer, sampleOrder(2, time.Now())})

	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, "paid", out[0].FinancialStatus)
	assert.Equal(t, int64(2), out[1].ID)
}

func TestUpsertCustomers(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("MERGE INTO RAW.CUSTOMERS AS tgt").
		WithArgs(
			int64(701), "maya@example.com", "Maya", "Ortiz", nil,
			4, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := service.UpsertCustomers(context.Background(), "RAW", []models.Customer{
		{
			ID:          701,
			Email:       "maya@example.com",
			FirstName:   "Maya",
			LastName:    "Ortiz",
			OrdersCount: 4,
			CreatedAt:   time.Now().Add(-24 * time.Hour),
			UpdatedAt:   time.Now(),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectsBadSchema(t *testing.T) {
	service, _ := newMockService(t)
	_, err := service.UpsertOrders(context.Background(), "bad schema", []models.Order{sampleOrder(1, time.Now())})
	assert.Error(t, err)
}
