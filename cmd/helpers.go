package cmd

import (
	"context"
	"time"

	"whisk/internal/config"
	"whisk/internal/lake"
	"whisk/internal/secrets"
	"whisk/internal/shopify"
	"whisk/internal/warehouse"
	"whisk/pkg/errors"
	"whisk/pkg/models"
)

// loadConfig loads the saved configuration and refuses to proceed when
// setup has never been run.
func loadConfig() (*models.Config, error) {
	if !config.Exists() {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "no configuration found").
			WithSuggestions("Run 'whisk setup' to create one")
	}
	return config.Load()
}

func openSecrets() (*secrets.Store, error) {
	return secrets.NewStore(config.GetConfigPath())
}

// warehouseService resolves the Snowflake password from the secret
// store and returns a connected service.
func warehouseService(cfg *models.Config, store *secrets.Store) (*warehouse.Service, error) {
	password, err := store.Get(cfg.Snowflake.PasswordRef)
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(cfg.Snowflake.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	service := warehouse.NewService(warehouse.Config{
		Account:   cfg.Snowflake.Account,
		Username:  cfg.Snowflake.Username,
		Password:  password,
		Database:  cfg.Snowflake.Database,
		Warehouse: cfg.Snowflake.Warehouse,
		Role:      cfg.Snowflake.Role,
		Timeout:   timeout,
	})
	if err := service.Connect(); err != nil {
		return nil, err
	}
	return service, nil
}

func shopifyClient(cfg *models.Config, store *secrets.Store) (*shopify.Client, error) {
	token, err := store.Get(cfg.Shop.TokenRef)
	if err != nil {
		return nil, err
	}
	return shopify.NewClient(cfg.Shop.Domain, cfg.Shop.APIVersion, token,
		shopify.WithPageSize(cfg.Sync.PageSize)), nil
}

// lakeWriter returns nil without error when S3 landing is disabled.
func lakeWriter(ctx context.Context, cfg *models.Config, store *secrets.Store) (*lake.Writer, error) {
	if !cfg.Lake.Enabled {
		return nil, nil
	}
	var secretKey string
	if cfg.Lake.SecretKeyRef != "" {
		var err error
		secretKey, err = store.Get(cfg.Lake.SecretKeyRef)
		if err != nil {
			return nil, err
		}
	}
	return lake.NewWriter(ctx, cfg.Lake, secretKey)
}

func schemas(cfg *models.Config) warehouse.Schemas {
	return warehouse.Schemas{
		Raw:       cfg.Snowflake.RawSchema,
		Analytics: cfg.Snowflake.Schema,
	}
}
