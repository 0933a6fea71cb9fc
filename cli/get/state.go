package get

import (
	"encoding/json"
	"fmt"
	"os"

	"swarmpool/internal/sidecar"
	"swarmpool/internal/utils"

	"github.com/spf13/cobra"
)

var stateJSONFlag bool

func init() {
	getCmd.AddCommand(stateCMD)
	stateCMD.Flags().BoolVar(&stateJSONFlag, "json", false, "Print the raw state snapshot")
}

var stateCMD = &cobra.Command{
	Use:   "state",
	Short: "Show the latest published pool state",
	Long:  `Show the latest published pool state`,
	Run: func(cmd *cobra.Command, args []string) {
		sc, store, err := clients()
		if err != nil {
			fmt.Println("Error connecting to sidecar: " + err.Error())
			os.Exit(1)
		}
		ctx, cancel := readCtx()
		defer cancel()
		cid, err := sc.Get(ctx, sidecar.StateCidKey)
		if err != nil {
			fmt.Println(utils.Wrap("error reading state cid", err))
			os.Exit(1)
		}
		if cid == "" {
			fmt.Println("No state published yet")
			return
		}
		blob, err := store.FetchJSON(cid)
		if err != nil {
			fmt.Println(utils.Wrap("error fetching state snapshot", err))
			os.Exit(1)
		}
		if stateJSONFlag {
			pretty, _ := json.MarshalIndent(blob, "", "  ")
			fmt.Println(string(pretty))
			return
		}
		fmt.Printf("Pool:         %v\n", blob["pool"])
		fmt.Printf("State CID:    %s\n", cid)
		fmt.Printf("Total jobs:   %v\n", blob["total_jobs"])
		fmt.Printf("Total proofs: %v\n", blob["total_proofs"])
		fmt.Printf("Total volume: %v\n", blob["total_volume"])
		if epoch, ok := blob["epoch"].(map[string]any); ok {
			fmt.Printf("Epoch:        %v (%v jobs, volume %v)\n", epoch["id"], epoch["jobs"], epoch["volume"])
		}
		if pending, ok := blob["pending_jobs"].([]any); ok {
			fmt.Printf("Pending:      %d\n", len(pending))
		}
		if claimed, ok := blob["claimed_jobs"].(map[string]any); ok {
			fmt.Printf("Claimed:      %d\n", len(claimed))
		}
	},
}
