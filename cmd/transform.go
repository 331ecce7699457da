package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"whisk/internal/config"
	"whisk/internal/transform"
	"whisk/internal/ui"
)

var (
	transformSelect       []string
	transformDryRun       bool
	transformSkipBuiltins bool
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Build the analytics layer",
	Long: `Run the SQL models in the models directory against the analytics
schema, then refresh the built-in customer dimension and the
future-orders report.

Models reference each other with {{ ref "name" }} and the raw tables
with {{ source "name" }}; whisk resolves the dependency graph and runs
them in order.`,
	Run: runTransform,
}

var transformInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a starter models directory",
	Run:   runTransformInit,
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.AddCommand(transformInitCmd)

	transformCmd.Flags().StringSliceVarP(&transformSelect, "select", "s", nil, "Only build these models (plus everything they ref)")
	transformCmd.Flags().BoolVarP(&transformDryRun, "dry-run", "d", false, "Print the rendered SQL without executing")
	transformCmd.Flags().BoolVar(&transformSkipBuiltins, "skip-builtins", false, "Skip the customer dimension and future-orders refresh")
}

func modelsDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(config.GetConfigPath(), dir)
}

func runTransform(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	models, err := transform.LoadModels(modelsDir(cfg.Transform.ModelsDir))
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	if transformDryRun {
		runner := transform.NewRunner(nil, schemas(cfg))
		results, err := runner.RunModels(ctx, models, transform.RunOptions{
			Select: transformSelect,
			DryRun: true,
		})
		if err != nil {
			ui.ShowError(err)
			os.Exit(1)
		}
		for _, result := range results {
			fmt.Printf("-- model: %s (%s)\n%s\n\n", result.Name, result.Materialized, result.SQL)
		}
		return
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
	spinner.Stop(true, "Connected")

	runner := transform.NewRunner(service, schemas(cfg))

	steps := len(models)
	if !transformSkipBuiltins {
		steps += 2
	}
	progress := ui.NewStepProgress(steps)

	results, runErr := runner.RunModels(ctx, models, transform.RunOptions{
		Select: transformSelect,
	})
	for _, result := range results {
		detail := string(result.Materialized)
		if result.Err != nil {
			detail = result.Err.Error()
		}
		progress.Step(result.Name, result.Err == nil, detail)
	}
	if runErr != nil {
		progress.Finish()
		ui.ShowError(runErr)
		os.Exit(1)
	}

	if !transformSkipBuiltins {
		if err := runner.RunDimCustomersSCD(ctx); err != nil {
			progress.Step("dim_customers_scd", false, err.Error())
			progress.Finish()
			ui.ShowError(err)
			os.Exit(1)
		}
		progress.Step("dim_customers_scd", true, "history tracked")

		if err := runner.RunFutureOrders(ctx); err != nil {
			progress.Step("future_orders", false, err.Error())
			progress.Finish()
			ui.ShowError(err)
			os.Exit(1)
		}
		progress.Step("future_orders", true, "report rebuilt")
	}
	progress.Finish()
}

func runTransformInit(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	dir := modelsDir(cfg.Transform.ModelsDir)
	if err := transform.Scaffold(dir); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	ui.ShowSuccess("Starter models written to " + dir)
	fmt.Println("Edit them, then run: whisk transform")
}
