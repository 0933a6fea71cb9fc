package get

import (
	"fmt"
	"os"

	"swarmpool/internal/sidecar"
	"swarmpool/internal/utils"

	"github.com/spf13/cobra"
)

var epochsLimitFlag int64

func init() {
	getCmd.AddCommand(epochsCMD)
	epochsCMD.Flags().Int64Var(&epochsLimitFlag, "limit", 10, "Number of sealed epochs to show, newest first")
}

var epochsCMD = &cobra.Command{
	Use:   "epochs",
	Short: "List sealed epochs",
	Long:  `List sealed epochs, newest first`,
	Run: func(cmd *cobra.Command, args []string) {
		sc, store, err := clients()
		if err != nil {
			fmt.Println("Error connecting to sidecar: " + err.Error())
			os.Exit(1)
		}
		ctx, cancel := readCtx()
		defer cancel()
		history, err := sc.LRange(ctx, sidecar.HistoryKey, 0, epochsLimitFlag-1)
		if err != nil {
			fmt.Println(utils.Wrap("error reading epoch history", err))
			os.Exit(1)
		}
		if len(history) == 0 {
			fmt.Println("No sealed epochs yet")
			return
		}
		for _, id := range history {
			cid, err := sc.Get(ctx, sidecar.EpochKey(id))
			if err != nil || cid == "" {
				fmt.Printf("%s  (no snapshot recorded)\n", id)
				continue
			}
			blob, err := store.FetchJSON(cid)
			if err != nil {
				fmt.Printf("%s  %s  (unfetchable)\n", id, cid)
				continue
			}
			fmt.Printf(
				"%s  jobs=%v proofs=%v volume=%v root=%v\n  %s\n",
				id,
				blob["jobs"],
				blob["proofs"],
				blob["total_volume"],
				blob["merkle_root"],
				cid,
			)
		}
	},
}
