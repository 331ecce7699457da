package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whisk/internal/seed"
	"whisk/internal/ui"
)

var (
	seedCustomers int
	seedOrders    int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load synthetic bakery data into the raw tables",
	Long: `Generate fake customers and orders (themes, flavors, allergies,
future pickup dates) and MERGE them into the raw schema so the
transform layer can be exercised without store credentials.`,
	Run: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedCustomers, "customers", 25, "Number of customers to generate")
	seedCmd.Flags().IntVar(&seedOrders, "orders", 100, "Number of orders to generate")
}

func runSeed(cmd *cobra.Command, args []string) {
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
	spinner.Stop(true, "Connected")

	spinner = ui.NewSpinner(fmt.Sprintf("Seeding %d customers and %d orders", seedCustomers, seedOrders))
	spinner.Start()
	seeder := seed.NewSeeder(service, cfg.Snowflake.RawSchema,
		seed.WithBatchSize(cfg.Sync.BatchSize))
	result, err := seeder.Run(ctx, seedCustomers, seedOrders)
	if err != nil {
		spinner.Stop(false, "Seeding failed")
		ui.ShowError(err)
		os.Exit(1)
	}
	spinner.Stop(true, fmt.Sprintf("Wrote %d customers and %d orders", result.Customers, result.Orders))

	fmt.Println()
	fmt.Println("Run 'whisk transform' to build the analytics layer on top.")
}
