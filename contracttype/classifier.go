package contracttype

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/evm"
	"github.com/ethpandaops/tokengate/metrics"
)

// Classifier determines the token standard of an address from its deployed code.
type Classifier struct {
	codeReader    CodeReader
	sigResolver   SignatureResolver
	proxyResolver *ProxyResolver
	interfaces    []*Interface
	logger        logrus.FieldLogger
}

func NewClassifier(codeReader CodeReader, sigResolver SignatureResolver, logger logrus.FieldLogger) *Classifier {
	return &Classifier{
		codeReader:    codeReader,
		sigResolver:   sigResolver,
		proxyResolver: NewProxyResolver(codeReader, logger),
		interfaces:    TokenInterfaces,
		logger:        logger,
	}
}

// Classify returns the type of address on chainId. Proxies are followed to their delegate,
// a proxy chain that revisits an address fails with *ClassificationError.
func (c *Classifier) Classify(ctx context.Context, address common.Address, chainId uint64) (AddressType, error) {
	addressType, err := c.classify(ctx, address, chainId, map[common.Address]bool{})
	if err != nil {
		metrics.Classifications.WithLabelValues("error").Inc()
		return AddressTypeUnknown, err
	}

	metrics.Classifications.WithLabelValues(addressType.String()).Inc()
	return addressType, nil
}

func (c *Classifier) classify(ctx context.Context, address common.Address, chainId uint64, visited map[common.Address]bool) (AddressType, error) {
	if visited[address] {
		return AddressTypeUnknown, &ClassificationError{
			Address: address.Hex(),
			ChainId: chainId,
			Reason:  fmt.Sprintf("circular proxy chain (%v proxies visited)", len(visited)),
		}
	}
	visited[address] = true

	code, err := c.codeReader.GetCode(ctx, chainId, address)
	if err != nil {
		return AddressTypeUnknown, err
	}

	if len(code) == 0 {
		return AddressTypeEOA, nil
	}

	selectors, err := evm.SelectorsFromCode(code)
	if err != nil {
		c.logger.Debugf("no selectors for %v: %v", lowerHex(address), err)
	}

	signatures := evm.NewSignatureSet()
	if len(selectors) > 0 {
		signatures = c.sigResolver.ResolveSignatures(ctx, selectors)
	}
	c.logger.Debugf("%v: %v selectors, %v signatures", lowerHex(address), len(selectors), signatures.Len())

	delegate, err := c.proxyResolver.Resolve(ctx, code, signatures, address, chainId)
	if err != nil {
		return AddressTypeUnknown, err
	}
	if delegate != nil {
		return c.classify(ctx, *delegate, chainId, visited)
	}

	if signatures.Len() == 0 {
		return AddressTypeContract, nil
	}

	if iface := MatchInterface(signatures, c.interfaces); iface != nil {
		return iface.Type, nil
	}
	return AddressTypeContract, nil
}
