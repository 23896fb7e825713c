package db

import (
	"embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/dbtypes"
	"github.com/ethpandaops/tokengate/types"
)

//go:embed schema/pgsql/*.sql
var EmbedPgsqlSchema embed.FS

//go:embed schema/sqlite/*.sql
var EmbedSqliteSchema embed.FS

// DbEngine is the engine of the open database
var DbEngine dbtypes.DBEngineType
var ReaderDb *sqlx.DB
var writerDb *sqlx.DB
var writerMutex sync.Mutex

var logger = logrus.StandardLogger().WithField("module", "db")

func checkDbConn(dbConn *sqlx.DB, dataBaseName string) error {
	// The golang sql driver does not properly implement PingContext
	// therefore we use a timer to catch db connection timeouts
	dbConnectionTimeout := time.NewTimer(15 * time.Second)
	defer dbConnectionTimeout.Stop()

	pingResult := make(chan error, 1)
	go func() {
		pingResult <- dbConn.Ping()
	}()

	select {
	case err := <-pingResult:
		if err != nil {
			return fmt.Errorf("unable to ping %s: %w", dataBaseName, err)
		}
		return nil
	case <-dbConnectionTimeout.C:
		return fmt.Errorf("timeout while connecting to %s", dataBaseName)
	}
}

func initSqlite(config *types.SqliteDatabaseConfig) (*sqlx.DB, error) {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 50
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxOpenConns < config.MaxIdleConns {
		config.MaxIdleConns = config.MaxOpenConns
	}

	logger.Infof("initializing sqlite connection to %v with %v/%v conn limit", config.File, config.MaxIdleConns, config.MaxOpenConns)
	dbConn, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", config.File))
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	err = checkDbConn(dbConn, "database")
	if err != nil {
		return nil, err
	}

	dbConn.SetConnMaxIdleTime(0)
	dbConn.SetConnMaxLifetime(0)
	dbConn.SetMaxOpenConns(config.MaxOpenConns)
	dbConn.SetMaxIdleConns(config.MaxIdleConns)

	return dbConn, nil
}

func openPgsql(config *types.PgsqlDatabaseConfig, name string) (*sqlx.DB, error) {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 50
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxOpenConns < config.MaxIdleConns {
		config.MaxIdleConns = config.MaxOpenConns
	}

	logger.Infof("initializing pgsql %v connection to %v with %v/%v conn limit", name, config.Host, config.MaxIdleConns, config.MaxOpenConns)
	dbConn, err := sqlx.Open("pgx", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", config.Username, config.Password, config.Host, config.Port, config.Name))
	if err != nil {
		return nil, fmt.Errorf("error getting pgsql %v database: %w", name, err)
	}

	err = checkDbConn(dbConn, name+" database")
	if err != nil {
		return nil, err
	}

	dbConn.SetConnMaxIdleTime(time.Second * 30)
	dbConn.SetConnMaxLifetime(time.Second * 60)
	dbConn.SetMaxOpenConns(config.MaxOpenConns)
	dbConn.SetMaxIdleConns(config.MaxIdleConns)

	return dbConn, nil
}

func initPgsql(config *types.DatabaseConfig) (*sqlx.DB, *sqlx.DB, error) {
	if config.Pgsql == nil {
		return nil, nil, fmt.Errorf("missing pgsql database config")
	}

	readerDb, err := openPgsql(config.Pgsql, "reader")
	if err != nil {
		return nil, nil, err
	}

	if config.PgsqlWriter == nil || config.PgsqlWriter.Host == "" {
		return readerDb, readerDb, nil
	}

	writerConfig := types.PgsqlDatabaseConfig(*config.PgsqlWriter)
	writerDb, err := openPgsql(&writerConfig, "writer")
	if err != nil {
		readerDb.Close()
		return nil, nil, err
	}

	return writerDb, readerDb, nil
}

// InitDB opens the configured database. ApplyEmbeddedDbSchema must be called before first use.
func InitDB(config *types.DatabaseConfig) error {
	engine, err := dbtypes.ParseEngine(config.Engine)
	if err != nil {
		return err
	}

	switch engine {
	case dbtypes.DBEngineSqlite:
		if config.Sqlite == nil {
			return fmt.Errorf("missing sqlite database config")
		}
		dbConn, err := initSqlite(config.Sqlite)
		if err != nil {
			return err
		}
		writerDb, ReaderDb = dbConn, dbConn
	case dbtypes.DBEnginePgsql:
		writerDb, ReaderDb, err = initPgsql(config)
		if err != nil {
			return err
		}
	}

	DbEngine = engine
	return nil
}

func MustCloseDB() {
	err := writerDb.Close()
	if err != nil {
		logger.Errorf("Error closing writer db connection: %v", err)
	}
	if ReaderDb != writerDb {
		err = ReaderDb.Close()
		if err != nil {
			logger.Errorf("Error closing reader db connection: %v", err)
		}
	}
}

func RunDBTransaction(handler func(tx *sqlx.Tx) error) error {
	if DbEngine == dbtypes.DBEngineSqlite {
		writerMutex.Lock()
		defer writerMutex.Unlock()
	}

	tx, err := writerDb.Beginx()
	if err != nil {
		return fmt.Errorf("error starting db transactions: %v", err)
	}

	defer tx.Rollback()

	err = handler(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("error committing db transaction: %v", err)
	}

	return nil
}

func ApplyEmbeddedDbSchema(version int64) error {
	var engineDialect string
	var schemaDirectory string
	switch DbEngine {
	case dbtypes.DBEnginePgsql:
		goose.SetBaseFS(EmbedPgsqlSchema)
		engineDialect = "postgres"
		schemaDirectory = "schema/pgsql"
	case dbtypes.DBEngineSqlite:
		goose.SetBaseFS(EmbedSqliteSchema)
		engineDialect = "sqlite3"
		schemaDirectory = "schema/sqlite"
	default:
		return fmt.Errorf("unknown database engine")
	}
	if err := goose.SetDialect(engineDialect); err != nil {
		return err
	}

	if version == -2 {
		if err := goose.Up(writerDb.DB, schemaDirectory, goose.WithAllowMissing()); err != nil {
			return err
		}
	} else if version == -1 {
		if err := goose.UpByOne(writerDb.DB, schemaDirectory, goose.WithAllowMissing()); err != nil {
			return err
		}
	} else {
		if err := goose.UpTo(writerDb.DB, schemaDirectory, version, goose.WithAllowMissing()); err != nil {
			return err
		}
	}

	return nil
}

func EngineQuery(queryMap map[dbtypes.DBEngineType]string) string {
	if queryMap[DbEngine] != "" {
		return queryMap[DbEngine]
	}
	return queryMap[dbtypes.DBEngineAny]
}
