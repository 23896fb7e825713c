package transfers

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/clients/explorer"
	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/metrics"
	"github.com/ethpandaops/tokengate/types"
)

const defaultPageSize = 5000

// Fetcher pages through the explorer transfer history of a contract, starting after its checkpoint.
type Fetcher struct {
	clients  *explorer.ClientPool
	store    Store
	pageSize int
	logger   logrus.FieldLogger
}

func NewFetcher(clients *explorer.ClientPool, store Store, pageSize int, logger logrus.FieldLogger) *Fetcher {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Fetcher{
		clients:  clients,
		store:    store,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Fetch returns the transfers of contract in non-decreasing block order. Pages are requested lazily
// while the sequence is consumed. A failure is yielded as the last element with a nil event.
func (f *Fetcher) Fetch(ctx context.Context, contract *dbtypes.Contract) iter.Seq2[*explorer.TransferEvent, error] {
	return func(yield func(*explorer.TransferEvent, error) bool) {
		client, err := f.clients.GetClient(contract.ChainId)
		if err != nil {
			yield(nil, err)
			return
		}

		action, ok := explorer.TransferAction(contract.ErcStandard)
		if !ok {
			yield(nil, &types.ConfigError{
				ChainId: contract.ChainId,
				Reason:  fmt.Sprintf("unsupported token standard %v for %v", contract.ErcStandard, contract.Address),
			})
			return
		}

		maxBlock, ingested, err := f.store.GetMaxBlockNumber(contract.Id)
		if err != nil {
			yield(nil, fmt.Errorf("error loading checkpoint of contract %v: %w", contract.Id, err))
			return
		}

		cursor := uint64(0)
		if ingested {
			cursor = maxBlock + 1
		}

		logger := f.logger.WithFields(logrus.Fields{
			"contract": contract.Address,
			"chain":    contract.ChainId,
		})

		for {
			logger.Debugf("requesting %v page from block %v", action, cursor)

			events, err := client.GetTransfers(ctx, &explorer.TransferQuery{
				Action:          action,
				ContractAddress: contract.Address,
				StartBlock:      cursor,
				PageSize:        f.pageSize,
			})
			if err != nil {
				yield(nil, err)
				return
			}

			if len(events) == 0 {
				logger.Debugf("no more transfers after block %v", cursor)
				return
			}

			sort.SliceStable(events, func(a, b int) bool {
				return events[a].BlockNumber < events[b].BlockNumber
			})
			pageMax := events[len(events)-1].BlockNumber

			if pageMax < cursor {
				// upstream ignored startblock, the page only repeats blocks that were already yielded
				logger.Warnf("explorer returned no transfers from block %v on, stopping", cursor)
				return
			}

			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}

			if len(events) >= f.pageSize && pageMax == cursor {
				metrics.OverflowGuardHits.WithLabelValues(strconv.FormatUint(contract.ChainId, 10)).Inc()
				logger.Warnf("block %v has more transfers than one page of %v can return, skipping the rest of this contract", pageMax, f.pageSize)
				return
			}

			cursor = pageMax + 1
		}
	}
}
