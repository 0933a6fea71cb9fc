package root

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.SetConfigName(".swarmpool")
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME/.config")

	viper.SetDefault("sidecar_url", "redis://localhost:6379/0")
	viper.SetDefault("content_store_api", "localhost:5001")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	_ = godotenv.Load()
}

var RootCmd = &cobra.Command{
	Use:   "swarmpool",
	Short: "Operator tooling for the pool daemon",
	Long:  `Inspect published pool state, sealed epochs and miner stats.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
