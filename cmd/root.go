package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"whisk/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "whisk",
	Short: "Pull storefront orders into Snowflake and bake analytics on top",
	Long: `Whisk syncs orders and customers from a Shopify store into Snowflake,
landing raw payloads in S3 along the way, and runs the SQL models that
turn them into reporting tables.

Start with 'whisk setup', provision the warehouse with 'whisk init',
then 'whisk sync' and 'whisk transform'.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(config.GetConfigPath())

	if err := viper.ReadInConfig(); err != nil {
		// Missing config is fine; setup creates it.
	}
}
