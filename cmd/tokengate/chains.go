package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/tokengate/db"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chains",
	RunE:  runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, args []string) error {
	a, err := setupApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	chains, err := db.GetChains()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEXPLORER\tRPC")
	for _, chain := range chains {
		explorerStatus, rpcStatus := "-", "-"
		if chainCfg := a.cfg.GetChain(chain.Id); chainCfg != nil {
			explorerStatus = chainCfg.ExplorerUrl
			if chainCfg.RpcUrl != "" {
				rpcStatus = "configured"
			}
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", chain.Id, chain.Name, explorerStatus, rpcStatus)
	}
	return w.Flush()
}
