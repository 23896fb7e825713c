package explorer

import (
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/types"
)

// ClientPool holds one explorer client per configured chain.
type ClientPool struct {
	clients map[uint64]*Client
}

func NewClientPool(config *types.Config, logger logrus.FieldLogger) *ClientPool {
	pool := &ClientPool{
		clients: map[uint64]*Client{},
	}

	for _, chain := range config.Chains {
		if chain.ExplorerUrl == "" {
			continue
		}

		pool.clients[chain.Id] = NewClient(ClientConfig{
			ChainId:    chain.Id,
			ChainName:  chain.Name,
			BaseUrl:    chain.ExplorerUrl,
			ApiKey:     chain.ExplorerApiKey,
			Timeout:    config.Explorer.RequestTimeout,
			RateLimit:  config.Explorer.RateLimit,
			RateBurst:  config.Explorer.RateBurst,
			MaxRetries: config.Explorer.MaxRetries,
		}, logger)
	}

	return pool
}

// GetClient returns the explorer client of a chain or a *types.ConfigError if the chain has none.
func (pool *ClientPool) GetClient(chainId uint64) (*Client, error) {
	client := pool.clients[chainId]
	if client == nil {
		return nil, &types.ConfigError{ChainId: chainId, Reason: "no explorer configured"}
	}
	return client, nil
}
