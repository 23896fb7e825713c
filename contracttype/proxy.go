package contracttype

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/evm"
)

var (
	// EIP-1167 clone factory initcode, followed by the 20 byte delegate address.
	minimalProxyInitPrefix = common.FromHex("0x3d602d80600a3d3981f3363d3d373d3d3d363d73")
	// deployed runtime code of an EIP-1167 clone
	minimalProxyRuntimePrefix = common.FromHex("0x363d3d373d3d3d363d73")

	// keccak256("eip1967.proxy.implementation") - 1
	Eip1967ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	// keccak256("org.zeppelinos.proxy.implementation")
	ZeppelinosImplementationSlot = common.HexToHash("0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3")
)

const implementationSignature = "implementation()"

// ProxyResolver detects minimal proxies and storage slot proxies.
type ProxyResolver struct {
	codeReader CodeReader
	logger     logrus.FieldLogger
}

func NewProxyResolver(codeReader CodeReader, logger logrus.FieldLogger) *ProxyResolver {
	return &ProxyResolver{
		codeReader: codeReader,
		logger:     logger,
	}
}

// Resolve returns the delegate address if the contract is a proxy, or nil.
// A storage read is only done for contracts exposing implementation().
func (pr *ProxyResolver) Resolve(ctx context.Context, code []byte, signatures evm.SignatureSet, address common.Address, chainId uint64) (*common.Address, error) {
	if delegate := MinimalProxyDelegate(code); delegate != nil {
		pr.logger.Debugf("%v is a minimal proxy for %v", lowerHex(address), lowerHex(*delegate))
		return delegate, nil
	}

	if !signatures.Contains(implementationSignature) {
		return nil, nil
	}

	for _, slot := range []common.Hash{Eip1967ImplementationSlot, ZeppelinosImplementationSlot} {
		word, err := pr.codeReader.GetStorageAt(ctx, chainId, address, slot)
		if err != nil {
			return nil, err
		}

		if word == (common.Hash{}) {
			continue
		}

		delegate := common.BytesToAddress(word[12:])
		pr.logger.Debugf("%v is a storage slot proxy for %v (slot %v)", lowerHex(address), lowerHex(delegate), slot.Hex())
		return &delegate, nil
	}

	if signatures.ContainsAll(UpgradeableProxyInterface.Signatures) {
		pr.logger.Infof("%v exposes the %v interface but has no implementation slot set", lowerHex(address), UpgradeableProxyInterface.Name)
	}
	return nil, nil
}

// MinimalProxyDelegate returns the delegate embedded in EIP-1167 clone code, or nil.
func MinimalProxyDelegate(code []byte) *common.Address {
	for _, prefix := range [][]byte{minimalProxyInitPrefix, minimalProxyRuntimePrefix} {
		if !bytes.HasPrefix(code, prefix) || len(code) < len(prefix)+common.AddressLength {
			continue
		}

		delegate := common.BytesToAddress(code[len(prefix) : len(prefix)+common.AddressLength])
		return &delegate
	}
	return nil
}

func lowerHex(address common.Address) string {
	return fmt.Sprintf("0x%x", address.Bytes())
}
