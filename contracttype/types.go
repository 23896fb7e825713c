package contracttype

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/tokengate/evm"
)

type AddressType uint8

const (
	AddressTypeUnknown AddressType = iota
	AddressTypeEOA
	AddressTypeContract
	AddressTypeERC20
	AddressTypeERC721
	AddressTypeERC1155
)

func (t AddressType) String() string {
	switch t {
	case AddressTypeEOA:
		return "eoa"
	case AddressTypeContract:
		return "contract"
	case AddressTypeERC20:
		return "erc20"
	case AddressTypeERC721:
		return "erc721"
	case AddressTypeERC1155:
		return "erc1155"
	default:
		return "unknown"
	}
}

// Standard returns the numeric token standard (20, 721, 1155). ok is false for non-token types.
func (t AddressType) Standard() (standard uint16, ok bool) {
	switch t {
	case AddressTypeERC20:
		return 20, true
	case AddressTypeERC721:
		return 721, true
	case AddressTypeERC1155:
		return 1155, true
	default:
		return 0, false
	}
}

// CodeReader reads code and storage from the chain. Implemented by the execution client pool.
type CodeReader interface {
	GetCode(ctx context.Context, chainId uint64, address common.Address) ([]byte, error)
	GetStorageAt(ctx context.Context, chainId uint64, address common.Address, slot common.Hash) (common.Hash, error)
}

// SignatureResolver maps selectors to text signatures. Implemented by the fn signatures service.
type SignatureResolver interface {
	ResolveSignatures(ctx context.Context, selectors []evm.Selector) evm.SignatureSet
}
