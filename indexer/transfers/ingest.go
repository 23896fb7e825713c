package transfers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/clients/explorer"
	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/metrics"
	"github.com/ethpandaops/tokengate/utils"
)

const defaultBatchSize = 1000

type CoordinatorConfig struct {
	BatchSize       int
	SkipAggregation bool
}

// Coordinator drains the fetcher into the ledger and triggers the balance aggregation.
type Coordinator struct {
	fetcher        *Fetcher
	store          Store
	config         CoordinatorConfig
	logger         logrus.FieldLogger
	aggregateMutex sync.Mutex
}

type IngestResult struct {
	ContractId uint64
	Fetched    int
	Inserted   int64
	Batches    int
	// LastBlock is the highest block seen in this run, 0 if nothing was fetched.
	LastBlock uint64
}

type SkippedContract struct {
	Contract *dbtypes.Contract
	Err      error
}

type RunSummary struct {
	Results    []*IngestResult
	Skipped    []*SkippedContract
	Aggregated bool
}

func (s *RunSummary) Inserted() int64 {
	var inserted int64
	for _, result := range s.Results {
		inserted += result.Inserted
	}
	return inserted
}

func NewCoordinator(fetcher *Fetcher, store Store, config CoordinatorConfig, logger logrus.FieldLogger) *Coordinator {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}

	return &Coordinator{
		fetcher: fetcher,
		store:   store,
		config:  config,
		logger:  logger,
	}
}

// IngestContract fetches all new transfers of contract and inserts them batch by batch.
// Batches committed before a failure stay committed; the next run resumes after them.
func (c *Coordinator) IngestContract(ctx context.Context, contract *dbtypes.Contract) (*IngestResult, error) {
	result := &IngestResult{
		ContractId: contract.Id,
	}
	chainLabel := strconv.FormatUint(contract.ChainId, 10)
	logger := c.logger.WithFields(logrus.Fields{
		"contract": contract.Address,
		"chain":    contract.ChainId,
	})

	batch := make([]*dbtypes.Transaction, 0, c.config.BatchSize)
	logIndexes := map[string]uint64{}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		inserted, err := c.store.InsertTransactions(batch)
		if err != nil {
			return fmt.Errorf("error inserting batch of %v transactions: %w", len(batch), err)
		}

		metrics.TransactionsInserted.WithLabelValues(chainLabel).Add(float64(inserted))
		result.Inserted += inserted
		result.Batches++
		logger.Debugf("inserted %v/%v transactions (up to block %v)", inserted, len(batch), batch[len(batch)-1].BlockNumber)

		batch = batch[:0]
		return nil
	}

	err := func() error {
		for event, err := range c.fetcher.Fetch(ctx, contract) {
			if err != nil {
				return err
			}

			batch = append(batch, convertTransferEvent(contract, event, logIndexes))
			result.Fetched++
			result.LastBlock = event.BlockNumber

			if len(batch) >= c.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	}()
	if err != nil {
		metrics.IngestionRuns.WithLabelValues("error").Inc()
		return result, err
	}

	metrics.IngestionRuns.WithLabelValues("ok").Inc()
	logger.Infof("ingested %v new transactions (%v fetched)", result.Inserted, result.Fetched)
	return result, nil
}

// RunAll ingests the given contracts one after another. Failing contracts are logged and
// reported in the summary, they do not stop the run.
func (c *Coordinator) RunAll(ctx context.Context, contracts []*dbtypes.Contract) *RunSummary {
	summary := &RunSummary{}

	for idx, contract := range contracts {
		if ctx.Err() != nil {
			for _, remaining := range contracts[idx:] {
				summary.Skipped = append(summary.Skipped, &SkippedContract{Contract: remaining, Err: ctx.Err()})
			}
			break
		}

		result, err := c.ingestContractSafe(ctx, contract)
		if result != nil {
			summary.Results = append(summary.Results, result)
		}
		if err != nil {
			c.logger.WithError(err).Errorf("skipping contract %v (%v on chain %v)", contract.Id, contract.Address, contract.ChainId)
			summary.Skipped = append(summary.Skipped, &SkippedContract{Contract: contract, Err: err})
		}
	}

	return summary
}

func (c *Coordinator) ingestContractSafe(ctx context.Context, contract *dbtypes.Contract) (result *IngestResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			utils.LogError(fmt.Errorf("%v", recovered), "panic while ingesting contract", 0)
			err = fmt.Errorf("panic while ingesting contract %v: %v", contract.Id, recovered)
		}
	}()

	return c.IngestContract(ctx, contract)
}

// Aggregate refreshes the wallet balances and the holder counts. Concurrent calls are serialized.
func (c *Coordinator) Aggregate(ctx context.Context) error {
	c.aggregateMutex.Lock()
	defer c.aggregateMutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t1 := time.Now()
	if err := c.store.RefreshBalances(); err != nil {
		return fmt.Errorf("error refreshing wallet balances: %w", err)
	}
	if err := c.store.UpdateHolders(); err != nil {
		return fmt.Errorf("error updating holder counts: %w", err)
	}

	duration := time.Since(t1)
	metrics.AggregationDuration.Observe(duration.Seconds())
	c.logger.Infof("balance aggregation done (%v ms)", duration.Milliseconds())
	return nil
}

var ErrContractNotFound = errors.New("contract not found")

// ProcessContracts ingests one contract (contractId set) or all tracked contracts and runs the aggregation.
func (c *Coordinator) ProcessContracts(ctx context.Context, contractId *uint64) (*RunSummary, error) {
	var contracts []*dbtypes.Contract
	if contractId != nil {
		contract, err := c.store.GetContractById(*contractId)
		if err != nil {
			return nil, err
		}
		if contract == nil {
			return nil, fmt.Errorf("%w: %v", ErrContractNotFound, *contractId)
		}
		contracts = []*dbtypes.Contract{contract}
	} else {
		var err error
		contracts, err = c.store.GetContracts()
		if err != nil {
			return nil, err
		}
	}

	summary := c.RunAll(ctx, contracts)
	c.logger.Infof("processed %v contracts: %v new transactions, %v skipped", len(contracts), summary.Inserted(), len(summary.Skipped))

	if c.config.SkipAggregation {
		return summary, nil
	}

	if err := c.Aggregate(ctx); err != nil {
		return summary, err
	}
	summary.Aggregated = true
	return summary, nil
}

// convertTransferEvent maps an explorer transfer onto a ledger row. Without an explorer log index
// the position of the transfer among the transfers of the same transaction is used.
func convertTransferEvent(contract *dbtypes.Contract, event *explorer.TransferEvent, logIndexes map[string]uint64) *dbtypes.Transaction {
	tx := &dbtypes.Transaction{
		ChainId:           contract.ChainId,
		ContractId:        contract.Id,
		BlockNumber:       event.BlockNumber,
		BlockHash:         event.BlockHash,
		TxHash:            event.Hash,
		TxIndex:           event.TransactionIndex,
		Timestamp:         event.Timestamp,
		Nonce:             event.Nonce,
		FromAddress:       event.From,
		ToAddress:         event.To,
		Gas:               event.Gas,
		GasPrice:          "0",
		GasUsed:           event.GasUsed,
		CumulativeGasUsed: event.CumulativeGasUsed,
		Confirmations:     event.Confirmations,
	}

	if event.LogIndex != nil {
		tx.LogIndex = *event.LogIndex
	} else {
		tx.LogIndex = logIndexes[event.Hash]
		logIndexes[event.Hash]++
	}

	if amount := event.Amount(); amount != nil {
		value := amount.Dec()
		tx.Value = &value
	}
	if event.TokenId != nil {
		tokenId := event.TokenId.Dec()
		tx.TokenId = &tokenId
	}
	if event.GasPrice != nil {
		tx.GasPrice = event.GasPrice.Dec()
	}

	return tx
}
