package config

import (
	"fmt"

	"swarmpool/cli/root"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sidecarURLFlag string
var contentStoreAPIFlag string
var poolENSFlag string

func init() {
	configCmd.Flags().StringVar(&sidecarURLFlag, "sidecar_url", "", "Sidecar url to update to")
	configCmd.Flags().StringVar(&contentStoreAPIFlag, "content_store_api", "", "Content store api address to update to")
	configCmd.Flags().StringVar(&poolENSFlag, "pool_ens", "", "Pool identity to update to")
	root.RootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Update config values",
	Long:  `Update one or more configuration values. Use flags to specify which values to update.`,
	Run: func(cmd *cobra.Command, args []string) {
		updated := false

		if sidecarURLFlag != "" {
			viper.Set("sidecar_url", sidecarURLFlag)
			fmt.Printf("Sidecar url updated to: %s\n", sidecarURLFlag)
			updated = true
		}

		if contentStoreAPIFlag != "" {
			viper.Set("content_store_api", contentStoreAPIFlag)
			fmt.Printf("Content store api updated to: %s\n", contentStoreAPIFlag)
			updated = true
		}

		if poolENSFlag != "" {
			viper.Set("pool_ens", poolENSFlag)
			fmt.Printf("Pool identity updated to: %s\n", poolENSFlag)
			updated = true
		}

		if !updated {
			fmt.Println("No configuration values specified to update.")
			fmt.Println("Use --help to see available options.")
			return
		}

		err := viper.WriteConfig()
		if err != nil {
			fmt.Printf("Failed to write config: %v\n", err)
			fmt.Printf("Config file path: %s\n", viper.ConfigFileUsed())
			return
		}
	},
}
