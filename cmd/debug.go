package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whisk/internal/ui"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Check connectivity to every configured backend",
	Long: `Verify the configuration, secret store, Snowflake connection, Shopify
Admin API credentials, and S3 bucket access, reporting each check
separately. Useful before the first sync and whenever credentials
rotate.`,
	Run: runDebug,
}

func runDebug(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	checks := 4
	if cfg.Lake.Enabled {
		checks++
	}
	progress := ui.NewStepProgress(checks)
	failed := false

	progress.Step("config", true, "loaded")

	store, err := openSecrets()
	if err != nil {
		progress.Step("secret store", false, err.Error())
		progress.Finish()
		ui.ShowError(err)
		os.Exit(1)
	}
	progress.Step("secret store", true, "reachable")

	if service, err := warehouseService(cfg, store); err != nil {
		progress.Step("snowflake", false, err.Error())
		failed = true
	} else {
		err := service.Ping(ctx)
		service.Close()
		if err != nil {
			progress.Step("snowflake", false, err.Error())
			failed = true
		} else {
			progress.Step("snowflake", true, cfg.Snowflake.Account)
		}
	}

	if client, err := shopifyClient(cfg, store); err != nil {
		progress.Step("shopify", false, err.Error())
		failed = true
	} else if shop, err := client.GetShop(ctx); err != nil {
		progress.Step("shopify", false, err.Error())
		failed = true
	} else {
		progress.Step("shopify", true, fmt.Sprintf("%s (%s)", shop.Name, shop.Domain))
	}

	if cfg.Lake.Enabled {
		if writer, err := lakeWriter(ctx, cfg, store); err != nil {
			progress.Step("s3", false, err.Error())
			failed = true
		} else if err := writer.Ping(ctx); err != nil {
			progress.Step("s3", false, err.Error())
			failed = true
		} else {
			progress.Step("s3", true, "s3://"+cfg.Lake.Bucket)
		}
	}

	progress.Finish()

	if failed {
		os.Exit(1)
	}
	fmt.Println()
	ui.ShowSuccess("All checks passed")
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
