package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/tokengate/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Continuously ingest all tracked contracts",
	Long:  "Ingests new transfers for every tracked contract and refreshes wallet balances, repeating every ingestion interval until interrupted",
	RunE:  runIndexer,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("once", false, "Run a single ingestion cycle and exit")
}

func runIndexer(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")

	a, err := setupApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.startMetrics(); err != nil {
		utils.LogFatal(err, "error starting metrics server", 0)
	}

	ctx, cancel := utils.SignalContext(cmd.Context())
	defer cancel()

	interval := a.cfg.Ingestion.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	for {
		a.runCycle(ctx)
		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			a.logger.Infof("shutting down")
			return nil
		case <-time.After(interval):
		}
	}
}

func (a *app) runCycle(ctx context.Context) {
	t1 := time.Now()
	summary, err := a.coordinator.ProcessContracts(ctx, nil)
	if err != nil {
		a.logger.Errorf("ingestion cycle failed: %v", err)
		return
	}

	for _, skipped := range summary.Skipped {
		a.logger.Warnf("skipped contract %v (%v): %v", skipped.Contract.Id, skipped.Contract.Address, skipped.Err)
	}
	a.logger.Infof("ingestion cycle done: %v contracts, %v inserted, %v skipped, aggregated: %v (%v ms)", len(summary.Results), summary.Inserted(), len(summary.Skipped), summary.Aggregated, time.Since(t1).Milliseconds())
}
