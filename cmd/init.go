package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whisk/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision warehouse schemas and tables",
	Long: `Create the raw and analytics schemas plus every table whisk loads
into, using CREATE ... IF NOT EXISTS so re-running is safe.`,
	Run: runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	store, err := openSecrets()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	spinner := ui.NewSpinner("Connecting to Snowflake")
	spinner.Start()
	service, err := warehouseService(cfg, store)
	if err != nil {
		spinner.Stop(false, "Connection failed")
		ui.ShowError(err)
		os.Exit(1)
	}
	defer service.Close()
	spinner.Stop(true, "Connected to "+cfg.Snowflake.Account)

	spinner = ui.NewSpinner("Provisioning schemas and tables")
	spinner.Start()
	if err := service.EnsureObjects(ctx, schemas(cfg)); err != nil {
		spinner.Stop(false, "Provisioning failed")
		ui.ShowError(err)
		os.Exit(1)
	}
	spinner.Stop(true, "Warehouse objects ready")

	fmt.Println()
	ui.ShowSuccess(fmt.Sprintf("Database %s is ready (schemas %s, %s)",
		cfg.Snowflake.Database, cfg.Snowflake.RawSchema, cfg.Snowflake.Schema))
}

func init() {
	rootCmd.AddCommand(initCmd)
}
