package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/tokengate/utils"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest transfers once",
	Long:  "Ingests new transfers for one or all tracked contracts and refreshes wallet balances",
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Uint64("contract", 0, "Only ingest the contract with this id")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := setupApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	var contractId *uint64
	if cmd.Flags().Changed("contract") {
		id, _ := cmd.Flags().GetUint64("contract")
		contractId = &id
	}

	ctx, cancel := utils.SignalContext(cmd.Context())
	defer cancel()

	summary, err := a.coordinator.ProcessContracts(ctx, contractId)
	if err != nil {
		return err
	}

	for _, result := range summary.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "contract %v: fetched %v, inserted %v in %v batches, last block %v\n", result.ContractId, result.Fetched, result.Inserted, result.Batches, result.LastBlock)
	}
	for _, skipped := range summary.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "contract %v: skipped: %v\n", skipped.Contract.Id, skipped.Err)
	}
	if len(summary.Skipped) > 0 && len(summary.Results) == len(summary.Skipped) {
		return fmt.Errorf("all %v contracts failed", len(summary.Skipped))
	}
	return nil
}
