package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderUnmarshal(t *testing.T) {
	payload := `{
		"id": 5291840274,
		"name": "#1042",
		"created_at": "2026-08-01T10:15:00Z",
		"updated_at": "2026-08-02T08:00:00Z",
		"financial_status": "paid",
		"total_price": "84.5000",
		"customer": {
			"id": 701,
			"email": "maya@example.com",
			"first_name": "Maya",
			"last_name": "Ortiz",
			"orders_count": 4,
			"created_at": "2025-01-01T00:00:00Z",
			"updated_at": "2026-08-02T08:00:00Z"
		},
		"line_items": [
			{"id": 1, "title": "Custom Cake", "quantity": 1, "price": "84.50", "sku": "CAKE-CUSTOM"}
		],
		"note_attributes": [
			{"name": "Theme", "value": "dinosaurs"},
			{"name": "flavor", "value": "lemon"},
			{"name": "allergies", "value": "tree nuts"},
			{"name": "draft_type", "value": "sketch"},
			{"name": "pickup_date", "value": "2026-09-12"}
		]
	}`

	var order Order
	require.NoError(t, json.Unmarshal([]byte(payload), &order))

	assert.Equal(t, int64(5291840274), order.ID)
	assert.Equal(t, "#1042", order.Name)
	assert.Equal(t, "84.5", order.TotalPrice.String())
	assert.Equal(t, int64(701), order.CustomerID())
	assert.Nil(t, order.ProcessedAt)

	// Note attributes are matched case-insensitively
	assert.Equal(t, "dinosaurs", order.Theme())
	assert.Equal(t, "lemon", order.Flavor())
	assert.Equal(t, "tree nuts", order.Allergies())
	assert.Equal(t, "sketch", order.DraftType())

	pickup := order.PickupDate()
	require.NotNil(t, pickup)
	assert.Equal(t, "2026-09-12", pickup.Format("2006-01-02"))
}

func TestOrderGuestCheckout(t *testing.T) {
	order := Order{ID: 1}
	assert.Equal(t, int64(0), order.CustomerID())
}

func TestPickupDateMalformed(t *testing.T) {
	order := Order{
		NoteAttributes: []NoteAttribute{{Name: "pickup_date", Value: "next friday"}},
	}
	assert.Nil(t, order.PickupDate())
}
