package transform

import (
	"context"
	"fmt"
	"time"
)

// The far-future end date marking the open-ended active dimension row.
const scdFarFuture = "9999-12-31"

// Attributes whose change opens a new dimension row.
var scdTrackedColumns = []string{"EMAIL", "FIRST_NAME", "LAST_NAME", "PHONE", "NUMBER_OF_ORDERS"}

// RunDimCustomersSCD maintains the type-2 customers dimension. Changed
// customers have their active row closed as of the run date and a new
// active row opened; unseen customers get their first active row. A raw
// table with no changes writes nothing.
func (r *Runner) RunDimCustomersSCD(ctx context.Context) error {
	runDate := r.now().UTC().Format("2006-01-02")

	closeStmt := fmt.Sprintf(`UPDATE %[2]s.DIM_CUSTOMERS_SCD AS tgt
SET EFFECTIVE_END_DATE = TO_DATE(?), IS_ACTIVE = FALSE
WHERE tgt.IS_ACTIVE = TRUE
  AND EXISTS (
    SELECT 1 FROM %[1]s.CUSTOMERS AS src
    WHERE src.CUSTOMER_ID = tgt.CUSTOMER_ID
      AND (%[3]s)
  )`, r.schemas.Raw, r.schemas.Analytics, scdChangePredicate())

	if _, err := r.executor.Exec(ctx, closeStmt, runDate); err != nil {
		return err
	}

	// After closing, both changed and brand-new customers lack an
	// active row; a single insert opens them.
	insertStmt := fmt.Sprintf(`INSERT INTO %[2]s.DIM_CUSTOMERS_SCD
  (CUSTOMER_ID, EMAIL, FIRST_NAME, LAST_NAME, PHONE, NUMBER_OF_ORDERS, UPDATED_AT,
   EFFECTIVE_START_DATE, EFFECTIVE_END_DATE, IS_ACTIVE)
SELECT src.CUSTOMER_ID, src.EMAIL, src.FIRST_NAME, src.LAST_NAME, src.PHONE,
       src.NUMBER_OF_ORDERS, src.UPDATED_AT,
       TO_DATE(?), TO_DATE('%[3]s'), TRUE
FROM %[1]s.CUSTOMERS AS src
LEFT JOIN %[2]s.DIM_CUSTOMERS_SCD AS tgt
  ON tgt.CUSTOMER_ID = src.CUSTOMER_ID AND tgt.IS_ACTIVE = TRUE
WHERE tgt.CUSTOMER_ID IS NULL`, r.schemas.Raw, r.schemas.Analytics, scdFarFuture)

	if _, err := r.executor.Exec(ctx, insertStmt, runDate); err != nil {
		return err
	}

	return nil
}

func scdChangePredicate() string {
	predicate := ""
	for i, col := range scdTrackedColumns {
		if i > 0 {
			predicate += " OR "
		}
		predicate += fmt.Sprintf("src.%s IS DISTINCT FROM tgt.%s", col, col)
	}
	return predicate
}

// RunFutureOrders rebuilds the upcoming-pickups report: active
// customers joined to orders with a pickup date beyond the run date,
// ordered soonest first.
func (r *Runner) RunFutureOrders(ctx context.Context) error {
	stmt := fmt.Sprintf(`INSERT OVERWRITE INTO %[2]s.FUTURE_ORDERS
  (ORDER_NAME, FIRST_NAME, FINANCIAL_STATUS, DRAFT_TYPE, THEME, FLAVOR, ALLERGIES, PICKUP_DATE)
SELECT o.ORDER_NAME, c.FIRST_NAME, o.FINANCIAL_STATUS, o.DRAFT_TYPE, o.THEME,
       o.FLAVOR, o.ALLERGIES, o.PICKUP_DATE
FROM %[2]s.DIM_CUSTOMERS_SCD AS c
JOIN %[1]s.ORDERS AS o
  ON c.CUSTOMER_ID = o.CUSTOMER_ID
WHERE c.IS_ACTIVE = TRUE
  AND o.PICKUP_DATE > ?
ORDER BY o.PICKUP_DATE`, r.schemas.Raw, r.schemas.Analytics)

	runDate := r.now().UTC().Format("2006-01-02")
	_, err := r.executor.Exec(ctx, stmt, runDate)
	return err
}

// WithClock overrides the run-date clock. Used in tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}
