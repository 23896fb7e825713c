package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/tokengate/cache"
	"github.com/ethpandaops/tokengate/clients/execution"
	"github.com/ethpandaops/tokengate/clients/explorer"
	"github.com/ethpandaops/tokengate/contracttype"
	"github.com/ethpandaops/tokengate/db"
	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/indexer/transfers"
	"github.com/ethpandaops/tokengate/metrics"
	"github.com/ethpandaops/tokengate/services"
	"github.com/ethpandaops/tokengate/types"
	"github.com/ethpandaops/tokengate/utils"
)

// app holds the wired components shared by all subcommands.
type app struct {
	cfg    *types.Config
	logger *logrus.Entry
	withDb bool

	explorers   *explorer.ClientPool
	rpcPool     *execution.Pool
	signatures  *services.FnSignaturesService
	classifier  *contracttype.Classifier
	contracts   *services.ContractService
	coordinator *transfers.Coordinator
}

func setupApp(cmd *cobra.Command, withDb bool) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := &types.Config{}
	if err := utils.ReadConfig(cfg, configPath); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := utils.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}

	logger := logrus.StandardLogger().WithField("module", "tokengate")
	logger.WithFields(logrus.Fields{
		"config":  configPath,
		"version": utils.GetVersion(),
		"command": cmd.Name(),
	}).Infof("starting")

	a := &app{
		cfg:    cfg,
		logger: logger,
		withDb: withDb,
	}

	if withDb {
		if err := a.initDb(); err != nil {
			return nil, err
		}
	}

	sigCache, err := cache.NewTieredCache(
		logrus.StandardLogger().WithField("module", "cache"),
		cfg.TxSignature.LocalCacheSize,
		cfg.TxSignature.RedisCacheAddr,
		cfg.TxSignature.RedisCachePrefix,
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("error initializing signature cache: %w", err)
	}

	a.explorers = explorer.NewClientPool(cfg, logrus.StandardLogger().WithField("module", "explorer"))
	a.rpcPool = execution.NewPool(cfg.Chains, logrus.StandardLogger().WithField("module", "rpc"))
	a.signatures = services.NewFnSignaturesService(services.FnSignaturesConfig{
		LookupUrl:        cfg.TxSignature.LookupUrl,
		LookupTimeout:    cfg.TxSignature.LookupTimeout,
		ConcurrencyLimit: cfg.TxSignature.ConcurrencyLimit,
		CacheTtl:         cfg.TxSignature.CacheTtl,
	}, sigCache, logrus.StandardLogger().WithField("module", "txsig"))
	a.classifier = contracttype.NewClassifier(a.rpcPool, a.signatures, logrus.StandardLogger().WithField("module", "classifier"))
	a.contracts = services.NewContractService(a.explorers, a.classifier, logrus.StandardLogger().WithField("module", "contracts"))

	store := transfers.DbStore{}
	transfersLogger := logrus.StandardLogger().WithField("module", "transfers")
	a.coordinator = transfers.NewCoordinator(
		transfers.NewFetcher(a.explorers, store, cfg.Explorer.PageSize, transfersLogger),
		store,
		transfers.CoordinatorConfig{
			BatchSize:       cfg.Ingestion.BatchSize,
			SkipAggregation: cfg.Ingestion.SkipAggregation,
		},
		transfersLogger,
	)

	return a, nil
}

func (a *app) initDb() error {
	if err := db.InitDB(&a.cfg.Database); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	if err := db.ApplyEmbeddedDbSchema(-2); err != nil {
		db.MustCloseDB()
		return fmt.Errorf("error initializing db schema: %w", err)
	}

	chains := make([]*dbtypes.Chain, 0, len(a.cfg.Chains))
	for _, chain := range a.cfg.Chains {
		chains = append(chains, &dbtypes.Chain{Id: chain.Id, Name: chain.Name})
	}
	err := db.RunDBTransaction(func(tx *sqlx.Tx) error {
		return db.EnsureChains(chains, tx)
	})
	if err != nil {
		db.MustCloseDB()
		return fmt.Errorf("error seeding chains: %w", err)
	}
	return nil
}

// checkRpc verifies that the rpc endpoint of chainId serves that chain before it is used for classification.
func (a *app) checkRpc(ctx context.Context, chainId uint64) error {
	if !a.rpcPool.HasChain(chainId) {
		return nil
	}
	return a.rpcPool.CheckChain(ctx, chainId)
}

// startMetrics serves prometheus metrics if enabled in the config.
func (a *app) startMetrics() error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}

	if a.withDb {
		metrics.AddPreCollectFn(func() {
			contracts, err := db.GetContracts()
			if err != nil {
				a.logger.Debugf("error counting tracked contracts: %v", err)
				return
			}
			metrics.TrackedContracts.Set(float64(len(contracts)))
		})
	}

	return metrics.StartMetricsServer(logrus.StandardLogger().WithField("module", "metrics"), a.cfg.Metrics.Host, a.cfg.Metrics.Port)
}

func (a *app) close() {
	if a.rpcPool != nil {
		a.rpcPool.Close()
	}
	if a.withDb {
		db.MustCloseDB()
	}
}
