package transform

import (
	"fmt"
	"os"
	"path/filepath"

	"whisk/internal/common"
	"whisk/pkg/errors"
)

const stgOrdersModel = `-- materialized: view
SELECT
    ORDER_ID,
    ORDER_NAME,
    CUSTOMER_ID,
    FINANCIAL_STATUS,
    TOTAL_PRICE,
    DRAFT_TYPE,
    THEME,
    FLAVOR,
    ALLERGIES,
    PICKUP_DATE,
    UPDATED_AT
FROM {{ source "orders" }}
WHERE FINANCIAL_STATUS IS NOT NULL
`

const weeklyStreamlineOrdersModel = `-- materialized: table
SELECT
    ORDER_NAME,
    DRAFT_TYPE,
    THEME,
    FLAVOR,
    ALLERGIES,
    PICKUP_DATE
FROM {{ ref "stg_orders" }}
WHERE PICKUP_DATE >= DATE_TRUNC('week', CURRENT_DATE)
  AND PICKUP_DATE < DATEADD('week', 1, DATE_TRUNC('week', CURRENT_DATE))
ORDER BY PICKUP_DATE
`

const projectFile = `# Transformation project settings. Model files live alongside this
# file; each declares its own materialization in a leading comment.
name: bakery
version: "1.0"
`

// Scaffold initializes a transformation project: a models directory
// with a project file and two starter models covering the common
// staging and weekly report layers.
func Scaffold(dir string) error {
	cleaned, err := common.CleanPath(dir)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid models directory")
	}

	if err := os.MkdirAll(cleaned, common.DirPermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeModelInvalid, "failed to create models directory")
	}

	starters := map[string]string{
		"project.yml":                  projectFile,
		"stg_orders.sql":               stgOrdersModel,
		"weekly_streamline_orders.sql": weeklyStreamlineOrdersModel,
	}

	for name, body := range starters {
		path := filepath.Join(cleaned, name)
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrCodeModelInvalid,
				fmt.Sprintf("model %s already exists", name)).
				WithSuggestions("Remove the existing file or scaffold into an empty directory")
		}
		if err := os.WriteFile(path, []byte(body), common.FilePermissionNormal); err != nil {
			return errors.Wrap(err, errors.ErrCodeModelInvalid, "failed to write starter model").
				WithContext("path", path)
		}
	}

	return nil
}
