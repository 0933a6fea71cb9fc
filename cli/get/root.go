package get

import (
	"context"
	"fmt"
	"time"

	"swarmpool/cli/root"
	"swarmpool/internal/ipfs"
	"swarmpool/internal/sidecar"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func init() {
	root.RootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch pool data from the sidecar / content store",
	Long:  `Fetch published pool data from the sidecar or content store and display it`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Get pool info")
	},
}

func clients() (*sidecar.Client, *ipfs.Client, error) {
	sc, err := sidecar.New(viper.GetString("sidecar_url"))
	if err != nil {
		return nil, nil, err
	}
	store := ipfs.NewClient(viper.GetString("content_store_api"), zap.NewNop().Sugar())
	return sc, store, nil
}

func readCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
