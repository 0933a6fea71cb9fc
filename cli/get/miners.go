package get

import (
	"fmt"
	"os"
	"sort"

	"swarmpool/internal/sidecar"
	"swarmpool/internal/utils"

	"github.com/spf13/cobra"
)

func init() {
	getCmd.AddCommand(minersCMD)
}

var minersCMD = &cobra.Command{
	Use:   "miners",
	Short: "List miners from the latest pool state",
	Long:  `List miners from the latest pool state`,
	Run: func(cmd *cobra.Command, args []string) {
		sc, store, err := clients()
		if err != nil {
			fmt.Println("Error connecting to sidecar: " + err.Error())
			os.Exit(1)
		}
		ctx, cancel := readCtx()
		defer cancel()
		cid, err := sc.Get(ctx, sidecar.StateCidKey)
		if err != nil || cid == "" {
			fmt.Println(utils.Wrap("no state published yet", err))
			return
		}
		blob, err := store.FetchJSON(cid)
		if err != nil {
			fmt.Println(utils.Wrap("error fetching state snapshot", err))
			os.Exit(1)
		}
		miners, ok := blob["miners"].(map[string]any)
		if !ok || len(miners) == 0 {
			fmt.Println("No miners registered")
			return
		}
		names := make([]string, 0, len(miners))
		for ens := range miners {
			names = append(names, ens)
		}
		sort.Strings(names)
		for _, ens := range names {
			m, ok := miners[ens].(map[string]any)
			if !ok {
				continue
			}
			fmt.Printf(
				"%-40s %-8v completed=%v running=%v mode=%v\n",
				ens,
				m["status"],
				m["jobs_completed"],
				m["running_jobs"],
				m["mode"],
			)
		}
	},
}
