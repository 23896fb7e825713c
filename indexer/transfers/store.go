package transfers

import (
	"github.com/jmoiron/sqlx"

	"github.com/ethpandaops/tokengate/db"
	"github.com/ethpandaops/tokengate/dbtypes"
)

// Store is the persistence used by the fetcher and the coordinator.
type Store interface {
	// GetMaxBlockNumber returns the checkpoint of a contract, ok is false if nothing was ingested.
	GetMaxBlockNumber(contractId uint64) (uint64, bool, error)
	// InsertTransactions stores one batch in its own db transaction, skipping known rows.
	InsertTransactions(txs []*dbtypes.Transaction) (int64, error)
	RefreshBalances() error
	UpdateHolders() error
	GetContracts() ([]*dbtypes.Contract, error)
	GetContractById(id uint64) (*dbtypes.Contract, error)
}

// DbStore implements Store on top of the db package.
type DbStore struct{}

func (DbStore) GetMaxBlockNumber(contractId uint64) (uint64, bool, error) {
	return db.GetMaxBlockNumber(contractId)
}

func (DbStore) InsertTransactions(txs []*dbtypes.Transaction) (int64, error) {
	var inserted int64
	err := db.RunDBTransaction(func(tx *sqlx.Tx) error {
		var err error
		inserted, err = db.InsertTransactions(txs, tx)
		return err
	})
	return inserted, err
}

func (DbStore) RefreshBalances() error {
	return db.RefreshWalletBalances()
}

func (DbStore) UpdateHolders() error {
	return db.RunDBTransaction(db.UpdateContractHolders)
}

func (DbStore) GetContracts() ([]*dbtypes.Contract, error) {
	return db.GetContracts()
}

func (DbStore) GetContractById(id uint64) (*dbtypes.Contract, error) {
	return db.GetContractById(id)
}
