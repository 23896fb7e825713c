package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <address>",
	Short: "Start tracking a token contract",
	Long:  "Looks up token metadata for an address and adds it to the tracked contracts. Registering a tracked contract again returns the existing entry.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().Uint64("chain", 1, "Chain id")
	registerCmd.Flags().Bool("ingest", false, "Ingest the transfer history right away")
}

func runRegister(cmd *cobra.Command, args []string) error {
	chainId, _ := cmd.Flags().GetUint64("chain")
	ingest, _ := cmd.Flags().GetBool("ingest")

	a, err := setupApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.checkRpc(cmd.Context(), chainId); err != nil {
		return err
	}

	contract, err := a.contracts.GetOrInit(cmd.Context(), args[0], chainId)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "contract %v: %v %v (erc%v, %v decimals) on chain %v\n", contract.Id, contract.TokenName, contract.Address, contract.ErcStandard, contract.Decimals, contract.ChainId)

	if !ingest {
		return nil
	}

	summary, err := a.coordinator.ProcessContracts(cmd.Context(), &contract.Id)
	if err != nil {
		return err
	}
	if len(summary.Skipped) > 0 {
		return summary.Skipped[0].Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %v transfers\n", summary.Inserted())
	return nil
}
