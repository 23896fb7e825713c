package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/types"
)

const (
	zeroAddress  = "0x0000000000000000000000000000000000000000"
	aliceAddress = "0x00000000000000000000000000000000000000a1"
	bobAddress   = "0x00000000000000000000000000000000000000b0"
)

func setupTestDb(t *testing.T) {
	t.Helper()

	err := InitDB(&types.DatabaseConfig{
		Engine: "sqlite",
		Sqlite: &types.SqliteDatabaseConfig{
			File: filepath.Join(t.TempDir(), "tokengate.sqlite"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(MustCloseDB)

	require.NoError(t, ApplyEmbeddedDbSchema(-2))
}

func setupTestContract(t *testing.T, standard uint16) *dbtypes.Contract {
	t.Helper()

	err := RunDBTransaction(func(tx *sqlx.Tx) error {
		if err := EnsureChains([]*dbtypes.Chain{{Id: 1, Name: "Ethereum"}}, tx); err != nil {
			return err
		}
		return InsertContract(&dbtypes.Contract{
			Address:     "0xdac17f958d2ee523a2206206994597c13d831ec7",
			ChainId:     1,
			ErcStandard: standard,
			TokenName:   "Tether USD",
			Decimals:    6,
		}, tx)
	})
	require.NoError(t, err)

	contract, err := GetContractByAddress("0xdac17f958d2ee523a2206206994597c13d831ec7", 1)
	require.NoError(t, err)
	require.NotNil(t, contract)
	return contract
}

func strPtr(s string) *string {
	return &s
}

func testTransfer(contract *dbtypes.Contract, block uint64, hash string, logIndex uint64, from, to string, value *string, tokenId *string) *dbtypes.Transaction {
	return &dbtypes.Transaction{
		ChainId:     contract.ChainId,
		ContractId:  contract.Id,
		BlockNumber: block,
		BlockHash:   "0xblock",
		TxHash:      hash,
		LogIndex:    logIndex,
		Timestamp:   time.Unix(1700000000+int64(block), 0).UTC(),
		FromAddress: from,
		ToAddress:   to,
		Value:       value,
		TokenId:     tokenId,
		GasPrice:    "1000000000",
	}
}

func TestEnsureChainsIsIdempotent(t *testing.T) {
	setupTestDb(t)

	chains := []*dbtypes.Chain{{Id: 1, Name: "Ethereum"}, {Id: 56, Name: "Binance Smart Chain"}}
	for i := 0; i < 2; i++ {
		err := RunDBTransaction(func(tx *sqlx.Tx) error {
			return EnsureChains(chains, tx)
		})
		require.NoError(t, err)
	}

	// existing rows are never renamed
	err := RunDBTransaction(func(tx *sqlx.Tx) error {
		return EnsureChains([]*dbtypes.Chain{{Id: 1, Name: "Mainnet"}}, tx)
	})
	require.NoError(t, err)

	stored, err := GetChains()
	require.NoError(t, err)
	assert.Equal(t, []*dbtypes.Chain{{Id: 1, Name: "Ethereum"}, {Id: 56, Name: "Binance Smart Chain"}}, stored)
}

func TestInsertContractGetOrCreate(t *testing.T) {
	setupTestDb(t)
	contract := setupTestContract(t, 20)

	assert.Equal(t, uint16(20), contract.ErcStandard)
	assert.Equal(t, uint64(6), contract.Decimals)

	// second insert for the same (address, chain) is ignored
	err := RunDBTransaction(func(tx *sqlx.Tx) error {
		return InsertContract(&dbtypes.Contract{
			Address:     contract.Address,
			ChainId:     1,
			ErcStandard: 721,
		}, tx)
	})
	require.NoError(t, err)

	contracts, err := GetContracts()
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, uint16(20), contracts[0].ErcStandard)

	byId, err := GetContractById(contract.Id)
	require.NoError(t, err)
	assert.Equal(t, contract, byId)

	missing, err := GetContractByAddress(contract.Address, 56)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertTransactionsIdempotent(t *testing.T) {
	setupTestDb(t)
	contract := setupTestContract(t, 20)

	maxBlock, ok, err := GetMaxBlockNumber(contract.Id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), maxBlock)

	batch := []*dbtypes.Transaction{
		testTransfer(contract, 100, "0xaa", 0, zeroAddress, aliceAddress, strPtr("100"), nil),
		testTransfer(contract, 100, "0xaa", 1, zeroAddress, bobAddress, strPtr("5"), nil),
		testTransfer(contract, 105, "0xbb", 0, aliceAddress, bobAddress, strPtr("30"), nil),
	}

	var inserted int64
	err = RunDBTransaction(func(tx *sqlx.Tx) error {
		inserted, err = InsertTransactions(batch, tx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), inserted)

	err = RunDBTransaction(func(tx *sqlx.Tx) error {
		inserted, err = InsertTransactions(batch, tx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	count, err := GetTransactionCount(contract.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	maxBlock, ok, err = GetMaxBlockNumber(contract.Id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(105), maxBlock)

	stored, err := GetTransactionsByContract(contract.Id, 0, 10)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "0xaa", stored[0].TxHash)
	assert.Equal(t, "100", *stored[0].Value)
	assert.Nil(t, stored[0].TokenId)
	assert.Equal(t, uint64(105), stored[2].BlockNumber)
}

func TestInsertTransactionsLargeBatch(t *testing.T) {
	setupTestDb(t)
	contract := setupTestContract(t, 20)

	// more rows than one statement can bind
	batch := make([]*dbtypes.Transaction, 0, 2500)
	for i := 0; i < 2500; i++ {
		batch = append(batch, testTransfer(contract, uint64(100+i/10), fmt.Sprintf("0x%064x", i), 0, zeroAddress, aliceAddress, strPtr("1"), nil))
	}

	var inserted int64
	err := RunDBTransaction(func(tx *sqlx.Tx) error {
		var err error
		inserted, err = InsertTransactions(batch, tx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), inserted)

	err = RunDBTransaction(func(tx *sqlx.Tx) error {
		var err error
		inserted, err = InsertTransactions(batch, tx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	count, err := GetTransactionCount(contract.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), count)

	maxBlock, ok, err := GetMaxBlockNumber(contract.Id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(349), maxBlock)
}

func TestRefreshWalletBalances(t *testing.T) {
	setupTestDb(t)
	contract := setupTestContract(t, 20)

	bigMint := "1000000000000000000000000"
	batch := []*dbtypes.Transaction{
		testTransfer(contract, 100, "0xaa", 0, zeroAddress, aliceAddress, strPtr(bigMint), nil),
		testTransfer(contract, 101, "0xbb", 0, aliceAddress, bobAddress, strPtr("30"), nil),
		testTransfer(contract, 102, "0xcc", 0, bobAddress, aliceAddress, strPtr("30"), nil),
		testTransfer(contract, 103, "0xdd", 0, aliceAddress, bobAddress, strPtr("1"), nil),
	}
	err := RunDBTransaction(func(tx *sqlx.Tx) error {
		_, err := InsertTransactions(batch, tx)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, RefreshWalletBalances())
	require.NoError(t, RunDBTransaction(UpdateContractHolders))

	balances, err := GetWalletBalances(contract.Id)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, aliceAddress, balances[0].Address)
	assert.Equal(t, "999999999999999999999999", balances[0].Balance)
	assert.Equal(t, bobAddress, balances[1].Address)
	assert.Equal(t, "1", balances[1].Balance)

	updated, err := GetContractById(contract.Id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Holders)

	// refresh replaces the previous projection
	require.NoError(t, RefreshWalletBalances())
	balances, err = GetWalletBalances(contract.Id)
	require.NoError(t, err)
	assert.Len(t, balances, 2)
}

func TestRefreshWalletBalancesNft(t *testing.T) {
	setupTestDb(t)
	contract := setupTestContract(t, 721)

	batch := []*dbtypes.Transaction{
		testTransfer(contract, 100, "0xaa", 0, zeroAddress, aliceAddress, nil, strPtr("1")),
		testTransfer(contract, 100, "0xaa", 1, zeroAddress, aliceAddress, nil, strPtr("2")),
		testTransfer(contract, 101, "0xbb", 0, aliceAddress, bobAddress, nil, strPtr("2")),
	}
	err := RunDBTransaction(func(tx *sqlx.Tx) error {
		_, err := InsertTransactions(batch, tx)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, RefreshWalletBalances())

	balances, err := GetWalletBalances(contract.Id)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, aliceAddress, balances[0].Address)
	assert.Equal(t, "1", *balances[0].TokenId)
	assert.Equal(t, "1", balances[0].Balance)
	assert.Equal(t, bobAddress, balances[1].Address)
	assert.Equal(t, "2", *balances[1].TokenId)
}
