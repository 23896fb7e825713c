package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <address>",
	Short: "Detect the token standard of an address",
	Long:  "Reads the bytecode of an address via RPC and reports whether it is an EOA, a generic contract or an ERC20/721/1155 token",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().Uint64("chain", 1, "Chain id")
}

func runClassify(cmd *cobra.Command, args []string) error {
	chainId, _ := cmd.Flags().GetUint64("chain")
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid address: %v", args[0])
	}

	a, err := setupApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.checkRpc(cmd.Context(), chainId); err != nil {
		return err
	}

	addressType, err := a.classifier.Classify(cmd.Context(), common.HexToAddress(args[0]), chainId)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), addressType.String())
	return nil
}
