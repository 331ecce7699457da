package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"whisk/internal/ui"
	"whisk/internal/warehouse"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync cursors and warehouse row counts",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
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

	service, err := warehouseService(cfg, store)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
	defer service.Close()

	states, err := service.ListSyncState(ctx, cfg.Snowflake.RawSchema)
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	ui.ShowHeader("Sync Status")
	fmt.Println(renderSyncTable(states, cfg.Sync.Entities))

	ui.ShowHeader("Row Counts")
	fmt.Println(renderCountTable(ctx, service, cfg.Snowflake.RawSchema, cfg.Snowflake.Schema))
}

func renderSyncTable(states []warehouse.SyncState, entities []string) string {
	byEntity := make(map[string]warehouse.SyncState, len(states))
	for _, state := range states {
		byEntity[state.Entity] = state
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Entity", "Cursor", "Last Run", "Rows"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, entity := range entities {
		state, synced := byEntity[entity]
		if !synced {
			table.Append([]string{entity, color.YellowString("never synced"), "-", "-"})
			continue
		}
		table.Append([]string{
			entity,
			state.Cursor.UTC().Format(time.RFC3339),
			state.LastRunAt.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d", state.LastRunRows),
		})
	}

	table.Render()
	return buf.String()
}

func renderCountTable(ctx context.Context, service *warehouse.Service, rawSchema, analyticsSchema string) string {
	tables := []struct {
		schema string
		name   string
	}{
		{rawSchema, "ORDERS"},
		{rawSchema, "CUSTOMERS"},
		{analyticsSchema, "DIM_CUSTOMERS_SCD"},
		{analyticsSchema, "FUTURE_ORDERS"},
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Table", "Rows"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, t := range tables {
		count, err := service.TableCount(ctx, t.schema, t.name)
		rows := fmt.Sprintf("%d", count)
		if err != nil {
			rows = color.RedString("unavailable")
		}
		table.Append([]string{t.schema + "." + t.name, rows})
	}

	table.Render()
	return buf.String()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
