package utils

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/tokengate/config"
	"github.com/ethpandaops/tokengate/types"
)

// MaxExplorerPageSize is the hard page size limit of etherscan-like explorers.
const MaxExplorerPageSize = 10000

// ReadConfig loads the embedded defaults, applies the config file at path (if any) and the
// environment on top, then validates the result.
func ReadConfig(cfg *types.Config, path string) error {
	err := yaml.Unmarshal([]byte(config.DefaultConfigYml), cfg)
	if err != nil {
		return fmt.Errorf("error decoding default config: %v", err)
	}

	defaultChains := cfg.Chains
	cfg.Chains = nil

	if path != "" {
		err = readConfigFile(cfg, path)
		if err != nil {
			return err
		}
	}

	cfg.Chains, err = mergeChains(defaultChains, cfg.Chains)
	if err != nil {
		return err
	}

	err = readConfigEnv(cfg)
	if err != nil {
		return fmt.Errorf("error reading config from environment: %v", err)
	}

	for i := range cfg.Chains {
		chain := &cfg.Chains[i]
		if key := cfg.Explorer.ApiKeys[chain.Id]; key != "" {
			chain.ExplorerApiKey = key
		}
		if endpoint := cfg.Rpc.Endpoints[chain.Id]; endpoint != "" {
			chain.RpcUrl = endpoint
		}
	}

	err = validateConfig(cfg)
	if err != nil {
		return err
	}

	chainNames := make([]string, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		chainNames = append(chainNames, fmt.Sprintf("%v:%v", chain.Id, chain.Name))
	}

	logrus.WithFields(logrus.Fields{
		"chains":    strings.Join(chainNames, ", "),
		"pageSize":  cfg.Explorer.PageSize,
		"batchSize": cfg.Ingestion.BatchSize,
		"dbEngine":  cfg.Database.Engine,
	}).Infof("did init config")

	return nil
}

func readConfigFile(cfg *types.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(cfg)
	if err != nil {
		return fmt.Errorf("error decoding config file %v: %v", path, err)
	}

	return nil
}

func readConfigEnv(cfg *types.Config) error {
	return envconfig.Process("", cfg)
}

// mergeChains overlays user chain entries onto the default chain table by chain id.
// Unknown ids are appended.
func mergeChains(defaults []types.ChainConfig, overrides []types.ChainConfig) ([]types.ChainConfig, error) {
	chains := make([]types.ChainConfig, len(defaults))
	copy(chains, defaults)

	for _, override := range overrides {
		found := false
		for i := range chains {
			if chains[i].Id != override.Id {
				continue
			}

			err := mergo.Merge(&chains[i], override, mergo.WithOverride)
			if err != nil {
				return nil, fmt.Errorf("error merging chain config %v: %v", override.Id, err)
			}
			found = true
			break
		}

		if !found {
			chains = append(chains, override)
		}
	}

	return chains, nil
}

func validateConfig(cfg *types.Config) error {
	if cfg.Explorer.PageSize <= 0 || cfg.Explorer.PageSize > MaxExplorerPageSize {
		return &types.ConfigError{Reason: fmt.Sprintf("explorer page size must be between 1 and %v, got %v", MaxExplorerPageSize, cfg.Explorer.PageSize)}
	}
	if cfg.Ingestion.BatchSize <= 0 {
		return &types.ConfigError{Reason: fmt.Sprintf("ingestion batch size must be positive, got %v", cfg.Ingestion.BatchSize)}
	}

	seen := map[uint64]bool{}
	for _, chain := range cfg.Chains {
		if chain.Id == 0 {
			return &types.ConfigError{Reason: "chain entry without id"}
		}
		if seen[chain.Id] {
			return &types.ConfigError{ChainId: chain.Id, Reason: "duplicate chain id"}
		}
		seen[chain.Id] = true

		if chain.ExplorerUrl == "" {
			return &types.ConfigError{ChainId: chain.Id, Reason: "missing explorer url"}
		}
	}

	return nil
}
