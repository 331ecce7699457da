package warehouse

import (
	"context"
	"fmt"
)

// Schemas names the two schemas whisk manages: RAW holds landed API
// records and sync state, Analytics holds transformed tables.
type Schemas struct {
	Raw       string
	Analytics string
}

// EnsureObjects provisions the schemas and tables whisk needs. All
// statements are IF NOT EXISTS so the command is safe to re-run.
func (s *Service) EnsureObjects(ctx context.Context, schemas Schemas) error {
	if err := ValidIdentifier(schemas.Raw); err != nil {
		return err
	}
	if err := ValidIdentifier(schemas.Analytics); err != nil {
		return err
	}

	for _, stmt := range provisioningStatements(schemas) {
		if _, err := s.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func provisioningStatements(schemas Schemas) []string {
	return []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemas.Raw),
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemas.Analytics),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ORDERS (
			ORDER_ID NUMBER NOT NULL,
			ORDER_NAME VARCHAR,
			CREATED_AT TIMESTAMP_NTZ,
			PROCESSED_AT TIMESTAMP_NTZ,
			UPDATED_AT TIMESTAMP_NTZ,
			FINANCIAL_STATUS VARCHAR,
			CUSTOMER_ID NUMBER,
			TOTAL_PRICE NUMBER(20,4),
			DRAFT_TYPE VARCHAR,
			THEME VARCHAR,
			FLAVOR VARCHAR,
			ALLERGIES VARCHAR,
			PICKUP_DATE TIMESTAMP_NTZ,
			LOADED_AT TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
			PRIMARY KEY (ORDER_ID)
		)`, schemas.Raw),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.CUSTOMERS (
			CUSTOMER_ID NUMBER NOT NULL,
			EMAIL VARCHAR,
			FIRST_NAME VARCHAR,
			LAST_NAME VARCHAR,
			PHONE VARCHAR,
			NUMBER_OF_ORDERS NUMBER,
			CREATED_AT TIMESTAMP_NTZ,
			UPDATED_AT TIMESTAMP_NTZ,
			LOADED_AT TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
			PRIMARY KEY (CUSTOMER_ID)
		)`, schemas.Raw),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.SYNC_STATE (
			ENTITY VARCHAR NOT NULL,
			CURSOR_TS TIMESTAMP_NTZ,
			LAST_RUN_AT TIMESTAMP_NTZ,
			LAST_RUN_ROWS NUMBER,
			PRIMARY KEY (ENTITY)
		)`, schemas.Raw),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.DIM_CUSTOMERS_SCD (
			CUSTOMER_ID NUMBER NOT NULL,
			EMAIL VARCHAR,
			FIRST_NAME VARCHAR,
			LAST_NAME VARCHAR,
			PHONE VARCHAR,
			NUMBER_OF_ORDERS NUMBER,
			UPDATED_AT TIMESTAMP_NTZ,
			EFFECTIVE_START_DATE DATE,
			EFFECTIVE_END_DATE DATE,
			IS_ACTIVE BOOLEAN
		)`, schemas.Analytics),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.FUTURE_ORDERS (
			ORDER_NAME VARCHAR,
			FIRST_NAME VARCHAR,
			FINANCIAL_STATUS VARCHAR,
			DRAFT_TYPE VARCHAR,
			THEME VARCHAR,
			FLAVOR VARCHAR,
			ALLERGIES VARCHAR,
			PICKUP_DATE TIMESTAMP_NTZ
		)`, schemas.Analytics),
	}
}
