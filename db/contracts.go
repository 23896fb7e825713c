package db

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ethpandaops/tokengate/dbtypes"
)

const contractColumns = "id, address, chain_id, erc_standard, token_name, decimals, holders"

// GetContractByAddress returns the contract or nil if it is not tracked yet.
func GetContractByAddress(address string, chainId uint64) (*dbtypes.Contract, error) {
	contract := &dbtypes.Contract{}
	err := ReaderDb.Get(contract, `SELECT `+contractColumns+` FROM contracts WHERE address = $1 AND chain_id = $2`, address, chainId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contract, nil
}

func GetContractById(id uint64) (*dbtypes.Contract, error) {
	contract := &dbtypes.Contract{}
	err := ReaderDb.Get(contract, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contract, nil
}

func GetContracts() ([]*dbtypes.Contract, error) {
	contracts := []*dbtypes.Contract{}
	err := ReaderDb.Select(&contracts, `SELECT `+contractColumns+` FROM contracts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// InsertContract creates the contract unless (address, chain) is already known.
// Callers re-read the row to get the id in both cases.
func InsertContract(contract *dbtypes.Contract, tx *sqlx.Tx) error {
	_, err := tx.Exec(EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql: `
			INSERT INTO contracts (address, chain_id, erc_standard, token_name, decimals, holders)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (address, chain_id) DO NOTHING`,
		dbtypes.DBEngineSqlite: `
			INSERT OR IGNORE INTO contracts (address, chain_id, erc_standard, token_name, decimals, holders)
			VALUES ($1, $2, $3, $4, $5, $6)`,
	}), contract.Address, contract.ChainId, contract.ErcStandard, contract.TokenName, contract.Decimals, contract.Holders)
	return err
}

// UpdateContractHolders recomputes the holder count of every contract from wallet_balances.
func UpdateContractHolders(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
		UPDATE contracts SET holders = (
			SELECT COUNT(DISTINCT wallet_balances.address)
			FROM wallet_balances
			WHERE wallet_balances.contract_id = contracts.id
		)`)
	return err
}
