package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

type ExecutionClient struct {
	name      string
	chainId   uint64
	endpoint  string
	headers   map[string]string
	logger    logrus.FieldLogger
	initMutex sync.Mutex
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewExecutionClient is used to create a new execution client
func NewExecutionClient(name string, chainId uint64, endpoint string, headers map[string]string, logger logrus.FieldLogger) *ExecutionClient {
	return &ExecutionClient{
		name:     name,
		chainId:  chainId,
		endpoint: endpoint,
		headers:  headers,
		logger:   logger.WithField("client", name),
	}
}

// Initialize dials the endpoint. Safe to call repeatedly, only the first successful call connects.
func (ec *ExecutionClient) Initialize(ctx context.Context) error {
	ec.initMutex.Lock()
	defer ec.initMutex.Unlock()

	if ec.ethClient != nil {
		return nil
	}

	rpcClient, err := rpc.DialContext(ctx, ec.endpoint)
	if err != nil {
		return fmt.Errorf("could not dial %v: %w", ec.name, err)
	}

	for hKey, hVal := range ec.headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	ec.rpcClient = rpcClient
	ec.ethClient = ethclient.NewClient(rpcClient)
	ec.logger.Debugf("connected to %v", ec.endpoint)

	return nil
}

// CheckChainId fails if the endpoint serves another chain than the one it is configured for.
func (ec *ExecutionClient) CheckChainId(ctx context.Context) error {
	chainId, err := ec.ethClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("could not get chain id from %v: %w", ec.name, err)
	}
	if chainId.Uint64() != ec.chainId {
		return fmt.Errorf("%v serves chain %v, expected %v", ec.name, chainId, ec.chainId)
	}
	return nil
}

func (ec *ExecutionClient) GetName() string {
	return ec.name
}

// GetCodeAt returns the deployed code at the latest block. Empty for accounts without code.
func (ec *ExecutionClient) GetCodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return ec.ethClient.CodeAt(ctx, address, nil)
}

// GetStorageAt reads one storage word at the latest block.
func (ec *ExecutionClient) GetStorageAt(ctx context.Context, address common.Address, slot common.Hash) (common.Hash, error) {
	data, err := ec.ethClient.StorageAt(ctx, address, slot, nil)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

func (ec *ExecutionClient) Close() {
	if ec.rpcClient != nil {
		ec.rpcClient.Close()
	}
}
