package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"whisk/internal/config"
	"whisk/internal/ui"
	"whisk/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration wizard",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	ui.ShowHeader("Whisk Setup")

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	store, err := openSecrets()
	if err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	cfg := config.ApplyDefaults(&models.Config{})

	fmt.Println("Shopify store")
	fmt.Println("-------------")

	shopQs := []*survey.Question{
		{
			Name: "domain",
			Prompt: &survey.Input{
				Message: "Store domain (e.g., bake-my-day.myshopify.com):",
			},
			Validate: survey.Required,
		},
		{
			Name: "apiversion",
			Prompt: &survey.Input{
				Message: "Admin API version:",
				Default: cfg.Shop.APIVersion,
			},
			Validate: survey.Required,
		},
	}
	shopAnswers := struct {
		Domain     string
		APIVersion string `survey:"apiversion"`
	}{}
	if err := survey.Ask(shopQs, &shopAnswers); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Shop.Domain = shopAnswers.Domain
	cfg.Shop.APIVersion = shopAnswers.APIVersion

	var token string
	if err := survey.AskOne(&survey.Password{
		Message: "Admin API access token:",
	}, &token, survey.WithValidator(survey.Required)); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Shop.TokenRef = "shopify_token"
	if err := store.Set(cfg.Shop.TokenRef, token); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Snowflake")
	fmt.Println("---------")

	snowflakeQs := []*survey.Question{
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Account (e.g., xy12345.us-east-1):",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "role",
			Prompt: &survey.Input{
				Message: "Role:",
				Default: "SYSADMIN",
			},
			Validate: survey.Required,
		},
		{
			Name: "warehouse",
			Prompt: &survey.Input{
				Message: "Warehouse:",
				Default: "COMPUTE_WH",
			},
			Validate: survey.Required,
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Database:",
				Default: "BAKERY",
			},
			Validate: survey.Required,
		},
	}
	if err := survey.Ask(snowflakeQs, &cfg.Snowflake); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var password string
	if err := survey.AskOne(&survey.Password{
		Message: "Password:",
	}, &password, survey.WithValidator(survey.Required)); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Snowflake.PasswordRef = "snowflake_password"
	if err := store.Set(cfg.Snowflake.PasswordRef, password); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("S3 landing zone")
	fmt.Println("---------------")

	var enableLake bool
	survey.AskOne(&survey.Confirm{
		Message: "Land raw API payloads in S3 before loading?",
		Default: true,
	}, &enableLake)

	if enableLake {
		lakeQs := []*survey.Question{
			{
				Name: "bucket",
				Prompt: &survey.Input{
					Message: "Bucket name:",
				},
				Validate: survey.Required,
			},
			{
				Name: "prefix",
				Prompt: &survey.Input{
					Message: "Key prefix:",
					Default: "whisk",
				},
			},
			{
				Name: "region",
				Prompt: &survey.Input{
					Message: "Region:",
					Default: "us-east-1",
				},
				Validate: survey.Required,
			},
			{
				Name: "accesskeyid",
				Prompt: &survey.Input{
					Message: "Access key ID (blank to use the default AWS credential chain):",
				},
			},
		}
		lakeAnswers := struct {
			Bucket      string
			Prefix      string
			Region      string
			AccessKeyID string `survey:"accesskeyid"`
		}{}
		if err := survey.Ask(lakeQs, &lakeAnswers); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Lake.Enabled = true
		cfg.Lake.Bucket = lakeAnswers.Bucket
		cfg.Lake.Prefix = lakeAnswers.Prefix
		cfg.Lake.Region = lakeAnswers.Region
		cfg.Lake.AccessKeyID = lakeAnswers.AccessKeyID

		if lakeAnswers.AccessKeyID != "" {
			var secretKey string
			if err := survey.AskOne(&survey.Password{
				Message: "Secret access key:",
			}, &secretKey, survey.WithValidator(survey.Required)); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			cfg.Lake.SecretKeyRef = "aws_secret_key"
			if err := store.Set(cfg.Lake.SecretKeyRef, secretKey); err != nil {
				ui.ShowError(err)
				os.Exit(1)
			}
		}
	}

	if err := config.Save(cfg); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}

	fmt.Println()
	ui.ShowSuccess("Configuration saved to " + config.GetConfigFile())
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  whisk init       provision the warehouse schemas and tables")
	fmt.Println("  whisk sync       pull orders and customers")
	fmt.Println("  whisk transform  build the analytics layer")
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
