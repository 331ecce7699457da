package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"whisk/pkg/models"
)

// UpsertOrders merges a batch of orders into the raw orders table,
// keyed on the platform order id. Replaying a batch is idempotent.
func (s *Service) UpsertOrders(ctx context.Context, schema string, orders []models.Order) (int64, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	if err := ValidIdentifier(schema); err != nil {
		return 0, err
	}

	orders = dedupeOrders(orders)

	columns := []string{
		"ORDER_ID", "ORDER_NAME", "CREATED_AT", "PROCESSED_AT", "UPDATED_AT",
		"FINANCIAL_STATUS", "CUSTOMER_ID", "TOTAL_PRICE",
		"DRAFT_TYPE", "THEME", "FLAVOR", "ALLERGIES", "PICKUP_DATE",
	}

	var args []interface{}
	for _, o := range orders {
		var customerID interface{}
		if id := o.CustomerID(); id != 0 {
			customerID = id
		}
		var pickup interface{}
		if t := o.PickupDate(); t != nil {
			pickup = *t
		}
		var processed interface{}
		if o.ProcessedAt != nil {
			processed = *o.ProcessedAt
		}

		args = append(args,
			o.ID, o.Name, o.CreatedAt, processed, o.UpdatedAt,
			o.FinancialStatus, customerID, o.TotalPrice.String(),
			nullable(o.DraftType()), nullable(o.Theme()), nullable(o.Flavor()),
			nullable(o.Allergies()), pickup,
		)
	}

	query := buildMerge(schema, "ORDERS", "ORDER_ID", columns, len(orders))

	result, err := s.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpsertCustomers merges a batch of customers into the raw customers
// table, keyed on the platform customer id.
func (s *Service) UpsertCustomers(ctx context.Context, schema string, customers []models.Customer) (int64, error) {
	if len(customers) == 0 {
		return 0, nil
	}
	if err := ValidIdentifier(schema); err != nil {
		return 0, err
	}

	customers = dedupeCustomers(customers)

	columns := []string{
		"CUSTOMER_ID", "EMAIL", "FIRST_NAME", "LAST_NAME", "PHONE",
		"NUMBER_OF_ORDERS", "CREATED_AT", "UPDATED_AT",
	}

	var args []interface{}
	for _, c := range customers {
		args = append(args,
			c.ID, nullable(c.Email), nullable(c.FirstName), nullable(c.LastName),
			nullable(c.Phone), c.OrdersCount, c.CreatedAt, c.UpdatedAt,
		)
	}

	query := buildMerge(schema, "CUSTOMERS", "CUSTOMER_ID", columns, len(customers))

	result, err := s.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// buildMerge renders a MERGE of a bound VALUES list into schema.table
func buildMerge(schema, table, key string, columns []string, rows int) string {
	placeholderRow := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	valueRows := make([]string, rows)
	for i := range valueRows {
		valueRows[i] = placeholderRow
	}

	var updates []string
	var inserts []string
	for _, col := range columns {
		inserts = append(inserts, "src."+col)
		if col != key {
			updates = append(updates, fmt.Sprintf("tgt.%s = src.%s", col, col))
		}
	}

	return fmt.Sprintf(`MERGE INTO %s.%s AS tgt
USING (SELECT * FROM VALUES %s AS v(%s)) AS src
ON tgt.%s = src.%s
WHEN MATCHED THEN UPDATE SET %s, tgt.LOADED_AT = CURRENT_TIMESTAMP()
WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)`,
		schema, table,
		strings.Join(valueRows, ", "), strings.Join(columns, ", "),
		key, key,
		strings.Join(updates, ", "),
		strings.Join(columns, ", "), strings.Join(inserts, ", "),
	)
}

// dedupeOrders keeps the most recently updated record per order id. The
// API can return the same order on two pages when it changes mid-sync,
// and MERGE rejects duplicate source keys.
func dedupeOrders(orders []models.Order) []models.Order {
	latest := make(map[int64]models.Order, len(orders))
	for _, o := range orders {
		if existing, ok := latest[o.ID]; !ok || o.UpdatedAt.After(existing.UpdatedAt) {
			latest[o.ID] = o
		}
	}

	out := make([]models.Order, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func dedupeCustomers(customers []models.Customer) []models.Customer {
	latest := make(map[int64]models.Customer, len(customers))
	for _, c := range customers {
		if existing, ok := latest[c.ID]; !ok || c.UpdatedAt.After(existing.UpdatedAt) {
			latest[c.ID] = c
		}
	}

	out := make([]models.Customer, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
