package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ethpandaops/tokengate/dbtypes"
)

const transactionFieldCount = 18

// rows per statement, 18000 bind variables stay below the sqlite (32766) and pgsql (65535) limits
const transactionInsertChunkSize = 1000

// InsertTransactions bulk inserts ledger rows. Rows already present under
// (contract_id, tx_hash, log_index) are skipped. Returns the number of inserted rows.
func InsertTransactions(txs []*dbtypes.Transaction, tx *sqlx.Tx) (int64, error) {
	var inserted int64
	for start := 0; start < len(txs); start += transactionInsertChunkSize {
		end := min(start+transactionInsertChunkSize, len(txs))
		count, err := insertTransactionChunk(txs[start:end], tx)
		if err != nil {
			return inserted, err
		}
		inserted += count
	}
	return inserted, nil
}

func insertTransactionChunk(txs []*dbtypes.Transaction, tx *sqlx.Tx) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	var sql strings.Builder
	fmt.Fprint(&sql,
		EngineQuery(map[dbtypes.DBEngineType]string{
			dbtypes.DBEnginePgsql:  "INSERT INTO transactions ",
			dbtypes.DBEngineSqlite: "INSERT OR IGNORE INTO transactions ",
		}),
		"(chain_id, contract_id, block_number, block_hash, tx_hash, tx_index, log_index, timestamp, nonce, from_address, to_address, value, token_id, gas, gas_price, gas_used, cumulative_gas_used, confirmations)",
		" VALUES ",
	)
	argIdx := 0
	fieldCount := transactionFieldCount

	args := make([]any, len(txs)*fieldCount)
	for i, entry := range txs {
		if i > 0 {
			fmt.Fprint(&sql, ", ")
		}
		fmt.Fprint(&sql, "(")
		for f := 0; f < fieldCount; f++ {
			if f > 0 {
				fmt.Fprint(&sql, ", ")
			}
			fmt.Fprintf(&sql, "$%v", argIdx+f+1)
		}
		fmt.Fprint(&sql, ")")

		args[argIdx+0] = entry.ChainId
		args[argIdx+1] = entry.ContractId
		args[argIdx+2] = entry.BlockNumber
		args[argIdx+3] = entry.BlockHash
		args[argIdx+4] = entry.TxHash
		args[argIdx+5] = entry.TxIndex
		args[argIdx+6] = entry.LogIndex
		args[argIdx+7] = entry.Timestamp.UTC()
		args[argIdx+8] = entry.Nonce
		args[argIdx+9] = entry.FromAddress
		args[argIdx+10] = entry.ToAddress
		args[argIdx+11] = entry.Value
		args[argIdx+12] = entry.TokenId
		args[argIdx+13] = entry.Gas
		args[argIdx+14] = entry.GasPrice
		args[argIdx+15] = entry.GasUsed
		args[argIdx+16] = entry.CumulativeGasUsed
		args[argIdx+17] = entry.Confirmations
		argIdx += fieldCount
	}
	fmt.Fprint(&sql, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql:  " ON CONFLICT (contract_id, tx_hash, log_index) DO NOTHING",
		dbtypes.DBEngineSqlite: "",
	}))

	res, err := tx.Exec(sql.String(), args...)
	if err != nil {
		return 0, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetMaxBlockNumber returns the highest ingested block of a contract. ok is false if nothing was ingested yet.
func GetMaxBlockNumber(contractId uint64) (uint64, bool, error) {
	var maxBlock sql.NullInt64
	err := ReaderDb.Get(&maxBlock, `SELECT MAX(block_number) FROM transactions WHERE contract_id = $1`, contractId)
	if err != nil {
		return 0, false, err
	}
	if !maxBlock.Valid {
		return 0, false, nil
	}
	return uint64(maxBlock.Int64), true, nil
}

func GetTransactionCount(contractId uint64) (uint64, error) {
	var count uint64
	err := ReaderDb.Get(&count, `SELECT COUNT(*) FROM transactions WHERE contract_id = $1`, contractId)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func GetTransactionsByContract(contractId uint64, offset uint64, limit uint32) ([]*dbtypes.Transaction, error) {
	txs := []*dbtypes.Transaction{}
	err := ReaderDb.Select(&txs, `
		SELECT id, chain_id, contract_id, block_number, block_hash, tx_hash, tx_index, log_index, timestamp, nonce,
			from_address, to_address, value, token_id, gas, gas_price, gas_used, cumulative_gas_used, confirmations
		FROM transactions
		WHERE contract_id = $1
		ORDER BY block_number ASC, tx_index ASC, log_index ASC
		LIMIT $2 OFFSET $3`, contractId, limit, offset)
	if err != nil {
		return nil, err
	}
	return txs, nil
}
