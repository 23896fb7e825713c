package dbtypes

import (
	"fmt"
	"time"
)

type DBEngineType int

const (
	DBEngineAny    DBEngineType = 0
	DBEngineSqlite DBEngineType = 1
	DBEnginePgsql  DBEngineType = 2
)

func ParseEngine(engine string) (DBEngineType, error) {
	switch engine {
	case "sqlite":
		return DBEngineSqlite, nil
	case "pgsql":
		return DBEnginePgsql, nil
	default:
		return DBEngineAny, fmt.Errorf("unknown database engine type: %v", engine)
	}
}

type Chain struct {
	Id   uint64 `db:"id"`
	Name string `db:"name"`
}

// Contract is a tracked token contract. Decimals is write-once, Holders is refreshed by the aggregation pass.
type Contract struct {
	Id          uint64 `db:"id"`
	Address     string `db:"address"`
	ChainId     uint64 `db:"chain_id"`
	ErcStandard uint16 `db:"erc_standard"`
	TokenName   string `db:"token_name"`
	Decimals    uint64 `db:"decimals"`
	Holders     uint64 `db:"holders"`
}

// Transaction is one ledger entry (a single token transfer).
// Value and TokenId are decimal strings of up to 78 digits.
type Transaction struct {
	Id                uint64    `db:"id"`
	ChainId           uint64    `db:"chain_id"`
	ContractId        uint64    `db:"contract_id"`
	BlockNumber       uint64    `db:"block_number"`
	BlockHash         string    `db:"block_hash"`
	TxHash            string    `db:"tx_hash"`
	TxIndex           uint64    `db:"tx_index"`
	LogIndex          uint64    `db:"log_index"`
	Timestamp         time.Time `db:"timestamp"`
	Nonce             uint64    `db:"nonce"`
	FromAddress       string    `db:"from_address"`
	ToAddress         string    `db:"to_address"`
	Value             *string   `db:"value"`
	TokenId           *string   `db:"token_id"`
	Gas               uint64    `db:"gas"`
	GasPrice          string    `db:"gas_price"`
	GasUsed           uint64    `db:"gas_used"`
	CumulativeGasUsed uint64    `db:"cumulative_gas_used"`
	Confirmations     uint64    `db:"confirmations"`
}

// WalletBalance is a row of the wallet_balances projection.
type WalletBalance struct {
	Address    string    `db:"address"`
	ChainId    uint64    `db:"chain_id"`
	ContractId uint64    `db:"contract_id"`
	TokenId    *string   `db:"token_id"`
	Balance    string    `db:"balance"`
	Date       time.Time `db:"date"`
}
