package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ethpandaops/tokengate/dbtypes"
)

// EnsureChains inserts the given chains, existing rows are left untouched.
func EnsureChains(chains []*dbtypes.Chain, tx *sqlx.Tx) error {
	if len(chains) == 0 {
		return nil
	}

	var sql strings.Builder
	fmt.Fprint(&sql, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql:  `INSERT INTO chains (id, name) VALUES `,
		dbtypes.DBEngineSqlite: `INSERT OR IGNORE INTO chains (id, name) VALUES `,
	}))

	args := make([]any, 0, len(chains)*2)
	for i, chain := range chains {
		if i > 0 {
			fmt.Fprint(&sql, ", ")
		}
		fmt.Fprintf(&sql, "($%v, $%v)", len(args)+1, len(args)+2)
		args = append(args, chain.Id, chain.Name)
	}

	fmt.Fprint(&sql, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql:  " ON CONFLICT (id) DO NOTHING",
		dbtypes.DBEngineSqlite: "",
	}))

	_, err := tx.Exec(sql.String(), args...)
	return err
}

func GetChains() ([]*dbtypes.Chain, error) {
	chains := []*dbtypes.Chain{}
	err := ReaderDb.Select(&chains, `SELECT id, name FROM chains ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return chains, nil
}
