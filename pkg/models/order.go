package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a storefront customer as returned by the Admin API.
type Customer struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	OrdersCount int       `json:"orders_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LineItem is a single purchased item on an order.
type LineItem struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	SKU      string          `json:"sku"`
}

// NoteAttribute is a free-form key/value pair attached to an order at
// checkout. The storefront's cake-order form files its custom fields
// (theme, flavor, allergies, pickup date) here.
type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Order is a storefront order as returned by the Admin API.
type Order struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	FinancialStatus string          `json:"financial_status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Customer        *Customer       `json:"customer"`
	LineItems       []LineItem      `json:"line_items"`
	NoteAttributes  []NoteAttribute `json:"note_attributes"`
	Tags            string          `json:"tags"`
}

// CustomerID returns the owning customer's id, or zero for guest checkouts.
func (o *Order) CustomerID() int64 {
	if o.Customer == nil {
		return 0
	}
	return o.Customer.ID
}

// Attribute returns the named note attribute, case-insensitively.
func (o *Order) Attribute(name string) string {
	for _, attr := range o.NoteAttributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Value
		}
	}
	return ""
}

func (o *Order) DraftType() string { return o.Attribute("draft_type") }
func (o *Order) Theme() string     { return o.Attribute("theme") }
func (o *Order) Flavor() string    { return o.Attribute("flavor") }
func (o *Order) Allergies() string { return o.Attribute("allergies") }

// PickupDate parses the pickup_date note attribute. The checkout form
// submits it as YYYY-MM-DD; a missing or malformed value returns nil.
func (o *Order) PickupDate() *time.Time {
	raw := o.Attribute("pickup_date")
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
