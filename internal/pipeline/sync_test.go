package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisk/internal/shopify"
	"whisk/pkg/errors"
	"whisk/pkg/models"
)

type fakeSource struct {
	orderPages    []shopify.OrderPage
	customerPages []shopify.CustomerPage
	orderSince    time.Time
	customerSince time.Time
}

func (f *fakeSource) EachOrderPage(ctx context.Context, since time.Time, fn func(shopify.OrderPage) error) error {
	f.orderSince = since
	for _, page := range f.orderPages {
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) EachCustomerPage(ctx context.Context, since time.Time, fn func(shopify.CustomerPage) error) error {
	f.customerSince = since
	for _, page := range f.customerPages {
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

type fakeWarehouse struct {
	mu          sync.Mutex
	cursors     map[string]time.Time
	saved       map[string]time.Time
	savedRows   map[string]int64
	upsertErr   error
	orderRows   int64
	orderSchema string
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{
		cursors:   map[string]time.Time{},
		saved:     map[string]time.Time{},
		savedRows: map[string]int64{},
	}
}

func (f *fakeWarehouse) UpsertOrders(ctx context.Context, schema string, orders []models.Order) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.orderSchema = schema
	f.orderRows += int64(len(orders))
	return int64(len(orders)), nil
}

func (f *fakeWarehouse) UpsertCustomers(ctx context.Context, schema string, customers []models.Customer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(customers)), nil
}

func (f *fakeWarehouse) LoadCursor(ctx context.Context, schema, entity string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[entity], nil
}

func (f *fakeWarehouse) SaveCursor(ctx context.Context, schema, entity string, cursor time.Time, rows int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[entity] = cursor
	f.savedRows[entity] = rows
	return nil
}

type fakeLake struct {
	mu     sync.Mutex
	landed map[string]int
	err    error
}

func (f *fakeLake) Land(ctx context.Context, entity string, records []json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.landed == nil {
		f.landed = map[string]int{}
	}
	f.landed[entity] += len(records)
	return "raw/" + entity + "/part.ndjson.gz", nil
}

func orderPage(ids ...int64) shopify.OrderPage {
	page := shopify.OrderPage{}
	for _, id := range ids {
		page.Orders = append(page.Orders, models.Order{
			ID:        id,
			UpdatedAt: time.Date(2026, 8, 1, 0, 0, int(id), 0, time.UTC),
		})
		page.Raw = append(page.Raw, json.RawMessage(`{}`))
	}
	return page
}

func TestRunSyncsOrdersAndAdvancesCursor(t *testing.T) {
	source := &fakeSource{orderPages: []shopify.OrderPage{orderPage(1, 2), orderPage(3)}}
	wh := newFakeWarehouse()
	lake := &fakeLake{}

	syncer := NewSyncer(source, wh, lake, "RAW", 2)
	results, err := syncer.Run(context.Background(), Options{Entities: []string{"orders"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, "orders", result.Entity)
	assert.Equal(t, int64(3), result.Rows)
	assert.Equal(t, 2, result.Pages)
	assert.Len(t, result.LandedKeys, 2)
	assert.Equal(t, "RAW", wh.orderSchema)
	assert.Equal(t, 3, lake.landed["orders"])

	// Cursor is the max updated_at seen across all pages.
	want := time.Date(2026, 8, 1, 0, 0, 3, 0, time.UTC)
	assert.Equal(t, want, result.Cursor)
	assert.Equal(t, want, wh.saved["orders"])
	assert.Equal(t, int64(3), wh.savedRows["orders"])
}

func TestRunUsesStoredCursorAsWindowStart(t *testing.T) {
	stored := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{}
	wh := newFakeWarehouse()
	wh.cursors["orders"] = stored

	syncer := NewSyncer(source, wh, nil, "RAW", 1)
	_, err := syncer.Run(context.Background(), Options{Entities: []string{"orders"}})
	require.NoError(t, err)
	assert.Equal(t, stored, source.orderSince)
}

func TestRunFullIgnoresStoredCursor(t *testing.T) {
	source := &fakeSource{}
	wh := newFakeWarehouse()
	wh.cursors["orders"] = time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

	syncer := NewSyncer(source, wh, nil, "RAW", 1)
	_, err := syncer.Run(context.Background(), Options{Entities: []string{"orders"}, Full: true})
	require.NoError(t, err)
	assert.True(t, source.orderSince.IsZero())
}

func TestRunExplicitSinceOverridesCursor(t *testing.T) {
	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{}
	wh := newFakeWarehouse()
	wh.cursors["orders"] = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	syncer := NewSyncer(source, wh, nil, "RAW", 1)
	_, err := syncer.Run(context.Background(), Options{Entities: []string{"orders"}, Since: since})
	require.NoError(t, err)
	assert.Equal(t, since, source.orderSince)
}

func TestRunDoesNotAdvanceCursorOnLoadFailure(t *testing.T) {
	source := &fakeSource{orderPages: []shopify.OrderPage{orderPage(1)}}
	wh := newFakeWarehouse()
	wh.upsertErr = errors.New(errors.ErrCodeSQLExecution, "merge failed")

	syncer := NewSyncer(source, wh, nil, "RAW", 1)
	results, err := syncer.Run(context.Background(), Options{Entities: []string{"orders"}})
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.NotContains(t, wh.saved, "orders")
}

func TestRunDoesNotAdvanceCursorOnLandFailure(t *testing.T) {
	source := &fakeSource{orderPages: []shopify.OrderPage{orderPage(1)}}
	wh := newFakeWarehouse()
	lake := &fakeLake{err: errors.New(errors.ErrCodeStorageUpload, "upload failed")}

	syncer := NewSyncer(source, wh, lake, "RAW", 1)
	_, err := syncer.Run(context.Background(), Options{Entities: []string{"orders"}})
	require.Error(t, err)
	assert.Zero(t, wh.orderRows)
	assert.NotContains(t, wh.saved, "orders")
}

func TestRunEmptyWindowSavesNothing(t *testing.T) {
	source := &fakeSource{}
	wh := newFakeWarehouse()
	lake := &fakeLake{}

	syncer := NewSyncer(source, wh, lake, "RAW", 1)
	results, err := syncer.Run(context.Background(), Options{Entities: []string{"orders", "customers"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, wh.saved)
	assert.Empty(t, lake.landed)
}

func TestRunRejectsUnknownEntity(t *testing.T) {
	syncer := NewSyncer(&fakeSource{}, newFakeWarehouse(), nil, "RAW", 1)
	results, err := syncer.Run(context.Background(), Options{Entities: []string{"products"}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
	require.Len(t, results, 1)
}

func TestRunSyncsEntitiesConcurrently(t *testing.T) {
	source := &fakeSource{
		orderPages:    []shopify.OrderPage{orderPage(1)},
		customerPages: []shopify.CustomerPage{{Customers: []models.Customer{{ID: 9, UpdatedAt: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)}}}},
	}
	wh := newFakeWarehouse()

	syncer := NewSyncer(source, wh, nil, "RAW", 2)
	results, err := syncer.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Results come back sorted by entity name regardless of finish order.
	assert.Equal(t, "customers", results[0].Entity)
	assert.Equal(t, "orders", results[1].Entity)
	assert.Contains(t, wh.saved, "orders")
	assert.Contains(t, wh.saved, "customers")
}
