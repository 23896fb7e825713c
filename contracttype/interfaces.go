package contracttype

import "github.com/ethpandaops/tokengate/evm"

// Interface is a named reference set of function signatures a contract must expose.
type Interface struct {
	Name       string
	Type       AddressType
	Signatures evm.SignatureSet
}

var (
	ERC20Interface = &Interface{
		Name: "ERC-20",
		Type: AddressTypeERC20,
		Signatures: evm.NewSignatureSet(
			"balanceOf(address)",
			"totalSupply()",
			"transfer(address,uint256)",
			"transferFrom(address,address,uint256)",
			"approve(address,uint256)",
			"allowance(address,address)",
		),
	}

	ERC721Interface = &Interface{
		Name: "ERC-721",
		Type: AddressTypeERC721,
		Signatures: evm.NewSignatureSet(
			"balanceOf(address)",
			"ownerOf(uint256)",
			"approve(address,uint256)",
			"getApproved(uint256)",
			"setApprovalForAll(address,bool)",
			"isApprovedForAll(address,address)",
			"transferFrom(address,address,uint256)",
			"safeTransferFrom(address,address,uint256)",
			"safeTransferFrom(address,address,uint256,bytes)",
		),
	}

	ERC1155Interface = &Interface{
		Name: "ERC-1155",
		Type: AddressTypeERC1155,
		Signatures: evm.NewSignatureSet(
			"setApprovalForAll(address,bool)",
			"isApprovedForAll(address,address)",
			"safeTransferFrom(address,address,uint256,uint256,bytes)",
			"safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)",
		),
	}

	// UpgradeableProxyInterface is not a token standard. Only its implementation() getter
	// matters for proxy detection, the full set is used for log output.
	UpgradeableProxyInterface = &Interface{
		Name: "upgradeable proxy",
		Type: AddressTypeContract,
		Signatures: evm.NewSignatureSet(
			"implementation()",
			"upgradeTo(address)",
			"upgradeToAndCall(address,bytes)",
		),
	}
)

// TokenInterfaces is the matching order of the token standards. The first interface whose
// signatures are all contained in a contract's signature set decides its type.
// ERC-20 comes first as its set is the smallest.
var TokenInterfaces = []*Interface{
	ERC20Interface,
	ERC721Interface,
	ERC1155Interface,
}

// MatchInterface returns the first interface of ifaces fully contained in signatures, or nil.
func MatchInterface(signatures evm.SignatureSet, ifaces []*Interface) *Interface {
	for _, iface := range ifaces {
		if signatures.ContainsAll(iface.Signatures) {
			return iface
		}
	}
	return nil
}
