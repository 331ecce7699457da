package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/shopspring/decimal"

	"whisk/pkg/errors"
	"whisk/pkg/models"
)

// Loader is the warehouse surface the seeder writes through.
// Satisfied by *warehouse.Service.
type Loader interface {
	UpsertOrders(ctx context.Context, schema string, orders []models.Order) (int64, error)
	UpsertCustomers(ctx context.Context, schema string, customers []models.Customer) (int64, error)
}

var (
	draftTypes = []string{"custom cake", "standard cake", "cupcakes", "cookies"}
	themes     = []string{"birthday", "wedding", "baby shower", "graduation", "anniversary", "holiday"}
	flavors    = []string{"vanilla", "chocolate", "red velvet", "lemon", "carrot", "funfetti", "marble"}
	allergies  = []string{"", "", "", "nuts", "gluten", "dairy", "eggs"}
	statuses   = []string{"paid", "paid", "paid", "pending", "partially_paid"}
)

// Seeder writes synthetic bakery orders and customers into the raw
// tables so the transform layer can be exercised without live
// credentials.
type Seeder struct {
	loader    Loader
	rawSchema string
	batchSize int
	rng       *rand.Rand
	now       func() time.Time
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithRand fixes the random source for reproducible output.
func WithRand(rng *rand.Rand) Option {
	return func(s *Seeder) { s.rng = rng }
}

// WithClock fixes the seeder's notion of now.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// WithBatchSize caps rows per upsert batch.
func WithBatchSize(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewSeeder(loader Loader, rawSchema string, opts ...Option) *Seeder {
	s := &Seeder{
		loader:    loader,
		rawSchema: rawSchema,
		batchSize: 500,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports what a seed run wrote.
type Result struct {
	Customers int64
	Orders    int64
}

// Run generates the requested number of customers, spreads orders across
// them, and upserts both into the raw schema.
func (s *Seeder) Run(ctx context.Context, customerCount, orderCount int) (Result, error) {
	if customerCount <= 0 || orderCount <= 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidInput,
			"customer and order counts must be positive").
			WithContext("customers", customerCount).
			WithContext("orders", orderCount)
	}

	customers := s.Customers(customerCount)
	orders := s.Orders(customers, orderCount)

	var result Result
	for start := 0; start < len(customers); start += s.batchSize {
		end := min(start+s.batchSize, len(customers))
		written, err := s.loader.UpsertCustomers(ctx, s.rawSchema, customers[start:end])
		if err != nil {
			return result, err
		}
		result.Customers += written
	}

	for start := 0; start < len(orders); start += s.batchSize {
		end := min(start+s.batchSize, len(orders))
		written, err := s.loader.UpsertOrders(ctx, s.rawSchema, orders[start:end])
		if err != nil {
			return result, err
		}
		result.Orders += written
	}
	return result, nil
}

// Customers generates n synthetic customers with stable sequential IDs.
func (s *Seeder) Customers(n int) []models.Customer {
	now := s.now().UTC()
	customers := make([]models.Customer, 0, n)
	for i := 0; i < n; i++ {
		first := randomdata.FirstName(randomdata.RandomGender)
		last := randomdata.LastName()
		created := now.AddDate(0, 0, -s.rng.Intn(365)-30)
		customers = append(customers, models.Customer{
			ID:        int64(1000 + i),
			Email:     fmt.Sprintf("%s.%s@%s", strings.ToLower(first), strings.ToLower(last), emailDomain(s.rng)),
			FirstName: first,
			LastName:  last,
			Phone:     randomdata.PhoneNumber(),
			CreatedAt: created,
			UpdatedAt: now,
		})
	}
	return customers
}

// Orders generates n orders spread across the given customers. Pickup
// dates land between tomorrow and eight weeks out so the future-orders
// report has rows to show.
func (s *Seeder) Orders(customers []models.Customer, n int) []models.Order {
	now := s.now().UTC()
	counts := make(map[int64]int, len(customers))

	orders := make([]models.Order, 0, n)
	for i := 0; i < n; i++ {
		customer := customers[s.rng.Intn(len(customers))]
		counts[customer.ID]++

		pickup := now.AddDate(0, 0, 1+s.rng.Intn(56)).Format("2006-01-02")
		created := now.Add(-time.Duration(s.rng.Intn(14*24)) * time.Hour)
		price := decimal.NewFromInt(int64(25 + s.rng.Intn(200))).
			Add(decimal.New(int64(s.rng.Intn(100)), -2))

		orders = append(orders, models.Order{
			ID:              int64(500000 + i),
			Name:            fmt.Sprintf("#%d", 1001+i),
			CreatedAt:       created,
			ProcessedAt:     &created,
			UpdatedAt:       now,
			FinancialStatus: pick(s.rng, statuses),
			TotalPrice:      price,
			Customer:        &customer,
			NoteAttributes: []models.NoteAttribute{
				{Name: "draft_type", Value: pick(s.rng, draftTypes)},
				{Name: "theme", Value: pick(s.rng, themes)},
				{Name: "flavor", Value: pick(s.rng, flavors)},
				{Name: "allergies", Value: pick(s.rng, allergies)},
				{Name: "pickup_date", Value: pickup},
			},
		})
	}

	for i := range orders {
		orders[i].Customer.OrdersCount = counts[orders[i].Customer.ID]
	}
	return orders
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

func emailDomain(rng *rand.Rand) string {
	domains := []string{"gmail.com", "yahoo.com", "outlook.com", "icloud.com"}
	return domains[rng.Intn(len(domains))]
}
