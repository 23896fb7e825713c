package execution

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/clients/execution/rpc"
	"github.com/ethpandaops/tokengate/types"
)

// Pool holds the json-rpc client of every chain that has an endpoint configured.
type Pool struct {
	logger  logrus.FieldLogger
	clients map[uint64]*rpc.ExecutionClient
}

func NewPool(chains []types.ChainConfig, logger logrus.FieldLogger) *Pool {
	pool := &Pool{
		logger:  logger,
		clients: map[uint64]*rpc.ExecutionClient{},
	}

	for _, chain := range chains {
		if chain.RpcUrl == "" {
			continue
		}
		pool.clients[chain.Id] = rpc.NewExecutionClient(fmt.Sprintf("%v-rpc", chain.Name), chain.Id, chain.RpcUrl, chain.RpcHeaders, logger.WithField("chain", chain.Id))
	}

	return pool
}

func (pool *Pool) getClient(ctx context.Context, chainId uint64) (*rpc.ExecutionClient, error) {
	client := pool.clients[chainId]
	if client == nil {
		return nil, &types.ConfigError{ChainId: chainId, Reason: "no rpc endpoint configured"}
	}

	if err := client.Initialize(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// HasChain reports whether an rpc endpoint is configured for the chain.
func (pool *Pool) HasChain(chainId uint64) bool {
	return pool.clients[chainId] != nil
}

// CheckChain connects to the endpoint of chainId and verifies it serves that chain.
// Code and storage reads never do this on their own.
func (pool *Pool) CheckChain(ctx context.Context, chainId uint64) error {
	client, err := pool.getClient(ctx, chainId)
	if err != nil {
		return err
	}
	return client.CheckChainId(ctx)
}

func (pool *Pool) GetCode(ctx context.Context, chainId uint64, address common.Address) ([]byte, error) {
	client, err := pool.getClient(ctx, chainId)
	if err != nil {
		return nil, err
	}

	code, err := client.GetCodeAt(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode for %v on %v failed: %w", address.Hex(), client.GetName(), err)
	}
	return code, nil
}

func (pool *Pool) GetStorageAt(ctx context.Context, chainId uint64, address common.Address, slot common.Hash) (common.Hash, error) {
	client, err := pool.getClient(ctx, chainId)
	if err != nil {
		return common.Hash{}, err
	}

	word, err := client.GetStorageAt(ctx, address, slot)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_getStorageAt for %v on %v failed: %w", address.Hex(), client.GetName(), err)
	}
	return word, nil
}

func (pool *Pool) Close() {
	for _, client := range pool.clients {
		client.Close()
	}
}
