package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/clients/explorer"
	"github.com/ethpandaops/tokengate/contracttype"
	"github.com/ethpandaops/tokengate/db"
	"github.com/ethpandaops/tokengate/dbtypes"
)

var ErrTokenInfoMissing = errors.New("no token info available")

type AddressClassifier interface {
	Classify(ctx context.Context, address common.Address, chainId uint64) (contracttype.AddressType, error)
}

// ContractService registers token contracts for ingestion.
type ContractService struct {
	explorers  *explorer.ClientPool
	classifier AddressClassifier
	logger     logrus.FieldLogger
}

func NewContractService(explorers *explorer.ClientPool, classifier AddressClassifier, logger logrus.FieldLogger) *ContractService {
	return &ContractService{
		explorers:  explorers,
		classifier: classifier,
		logger:     logger,
	}
}

// GetOrInit returns the tracked contract for address on chainId, creating it on first use.
// The token standard comes from the explorer token info, or from the bytecode classifier if the
// explorer does not report one. Addresses that are not a token fail with *contracttype.ClassificationError.
func (cs *ContractService) GetOrInit(ctx context.Context, address string, chainId uint64) (*dbtypes.Contract, error) {
	address, err := explorer.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	contract, err := db.GetContractByAddress(address, chainId)
	if err != nil {
		return nil, fmt.Errorf("error loading contract: %w", err)
	}
	if contract != nil {
		return contract, nil
	}

	client, err := cs.explorers.GetClient(chainId)
	if err != nil {
		return nil, err
	}

	info, err := client.GetTokenInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: contract %v not found on chain %v", ErrTokenInfoMissing, address, chainId)
	}

	standard, ok := info.ErcStandard()
	if _, supported := explorer.TransferAction(standard); !ok || !supported {
		cs.logger.Infof("no usable token standard reported for %v (%q), detecting from bytecode", address, info.TokenType)

		addressType, err := cs.classifier.Classify(ctx, common.HexToAddress(address), chainId)
		if err != nil {
			return nil, err
		}
		cs.logger.Infof("detected %v as %v", address, addressType)

		standard, ok = addressType.Standard()
		if !ok {
			return nil, &contracttype.ClassificationError{
				Address: address,
				ChainId: chainId,
				Reason:  fmt.Sprintf("address is %v", addressType),
			}
		}
	}

	err = db.RunDBTransaction(func(tx *sqlx.Tx) error {
		return db.InsertContract(&dbtypes.Contract{
			Address:     address,
			ChainId:     chainId,
			ErcStandard: standard,
			TokenName:   info.Name,
			Decimals:    info.Divisor,
			Holders:     0,
		}, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating contract: %w", err)
	}

	contract, err = db.GetContractByAddress(address, chainId)
	if err != nil {
		return nil, fmt.Errorf("error loading contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("contract %v vanished after insert", address)
	}

	cs.logger.Infof("registered %v (%v, erc%v) on chain %v as contract %v", contract.TokenName, address, standard, chainId, contract.Id)
	return contract, nil
}
