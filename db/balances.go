package db

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ethpandaops/tokengate/dbtypes"
)

const walletBalancesView = "wallet_balances"

// RefreshWalletBalances recomputes the wallet_balances projection from the full ledger.
// pgsql refreshes the materialized view, sqlite rebuilds the table in one transaction.
// Callers must not run refreshes concurrently.
func RefreshWalletBalances() error {
	switch DbEngine {
	case dbtypes.DBEnginePgsql:
		_, err := writerDb.Exec(fmt.Sprintf("REFRESH MATERIALIZED VIEW CONCURRENTLY %v.%v", pq.QuoteIdentifier("public"), pq.QuoteIdentifier(walletBalancesView)))
		return err
	case dbtypes.DBEngineSqlite:
		return RunDBTransaction(rebuildWalletBalances)
	default:
		return fmt.Errorf("unknown database engine")
	}
}

type balanceKey struct {
	address    string
	chainId    uint64
	contractId uint64
	tokenId    string
	hasTokenId bool
}

type ledgerMovement struct {
	ChainId     uint64  `db:"chain_id"`
	ContractId  uint64  `db:"contract_id"`
	FromAddress string  `db:"from_address"`
	ToAddress   string  `db:"to_address"`
	Value       *string `db:"value"`
	TokenId     *string `db:"token_id"`
}

func rebuildWalletBalances(tx *sqlx.Tx) error {
	rows, err := tx.Queryx(`SELECT chain_id, contract_id, from_address, to_address, value, token_id FROM transactions`)
	if err != nil {
		return err
	}
	defer rows.Close()

	balances := map[balanceKey]*big.Int{}
	keys := []balanceKey{}
	addMovement := func(key balanceKey, amount *big.Int, negate bool) {
		balance := balances[key]
		if balance == nil {
			balance = new(big.Int)
			balances[key] = balance
			keys = append(keys, key)
		}
		if negate {
			balance.Sub(balance, amount)
		} else {
			balance.Add(balance, amount)
		}
	}

	for rows.Next() {
		movement := ledgerMovement{}
		if err := rows.StructScan(&movement); err != nil {
			return err
		}

		amount := big.NewInt(1)
		if movement.Value != nil {
			if _, ok := amount.SetString(*movement.Value, 10); !ok {
				return fmt.Errorf("invalid ledger value %q for contract %v", *movement.Value, movement.ContractId)
			}
		}

		key := balanceKey{
			chainId:    movement.ChainId,
			contractId: movement.ContractId,
		}
		if movement.TokenId != nil {
			key.tokenId = *movement.TokenId
			key.hasTokenId = true
		}

		key.address = movement.ToAddress
		addMovement(key, amount, false)
		key.address = movement.FromAddress
		addMovement(key, amount, true)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM wallet_balances`); err != nil {
		return err
	}

	now := time.Now().UTC()
	positive := make([]*dbtypes.WalletBalance, 0, len(keys))
	for _, key := range keys {
		balance := balances[key]
		if balance.Sign() <= 0 {
			continue
		}

		entry := &dbtypes.WalletBalance{
			Address:    key.address,
			ChainId:    key.chainId,
			ContractId: key.contractId,
			Balance:    balance.String(),
			Date:       now,
		}
		if key.hasTokenId {
			tokenId := key.tokenId
			entry.TokenId = &tokenId
		}
		positive = append(positive, entry)
	}

	// 6 fields per row, stay well below the sqlite variable limit
	for start := 0; start < len(positive); start += 1000 {
		end := min(start+1000, len(positive))
		if err := insertWalletBalances(positive[start:end], tx); err != nil {
			return err
		}
	}

	return nil
}

func insertWalletBalances(balances []*dbtypes.WalletBalance, tx *sqlx.Tx) error {
	var sql strings.Builder
	fmt.Fprint(&sql, "INSERT INTO wallet_balances (address, chain_id, contract_id, token_id, balance, date) VALUES ")

	args := make([]any, 0, len(balances)*6)
	for i, balance := range balances {
		if i > 0 {
			fmt.Fprint(&sql, ", ")
		}
		n := len(args)
		fmt.Fprintf(&sql, "($%v, $%v, $%v, $%v, $%v, $%v)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, balance.Address, balance.ChainId, balance.ContractId, balance.TokenId, balance.Balance, balance.Date)
	}

	_, err := tx.Exec(sql.String(), args...)
	return err
}

func GetWalletBalances(contractId uint64) ([]*dbtypes.WalletBalance, error) {
	balances := []*dbtypes.WalletBalance{}
	err := ReaderDb.Select(&balances, `
		SELECT address, chain_id, contract_id, token_id, balance, date
		FROM wallet_balances
		WHERE contract_id = $1
		ORDER BY address ASC, token_id ASC`, contractId)
	if err != nil {
		return nil, err
	}
	return balances, nil
}
