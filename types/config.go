package types

import "time"

// Config is a struct to hold the configuration data
type Config struct {
	Logging struct {
		OutputLevel  string `yaml:"outputLevel" envconfig:"LOGGING_OUTPUT_LEVEL"`
		OutputStderr bool   `yaml:"outputStderr" envconfig:"LOGGING_OUTPUT_STDERR"`
		OutputJson   bool   `yaml:"outputJson" envconfig:"LOGGING_OUTPUT_JSON"`

		FilePath       string `yaml:"filePath" envconfig:"LOGGING_FILE_PATH"`
		FileLevel      string `yaml:"fileLevel" envconfig:"LOGGING_FILE_LEVEL"`
		FileMaxSize    int    `yaml:"fileMaxSize" envconfig:"LOGGING_FILE_MAX_SIZE"`
		FileMaxBackups int    `yaml:"fileMaxBackups" envconfig:"LOGGING_FILE_MAX_BACKUPS"`
	} `yaml:"logging"`

	// Chains is the fixed chain table. Entries from the user config are merged into the
	// default table by id.
	Chains []ChainConfig `yaml:"chains"`

	Explorer struct {
		PageSize       int           `yaml:"pageSize" envconfig:"EXPLORER_PAGE_SIZE"`
		RequestTimeout time.Duration `yaml:"requestTimeout" envconfig:"EXPLORER_REQUEST_TIMEOUT"`
		RateLimit      float64       `yaml:"rateLimit" envconfig:"EXPLORER_RATE_LIMIT"`
		RateBurst      int           `yaml:"rateBurst" envconfig:"EXPLORER_RATE_BURST"`
		MaxRetries     int           `yaml:"maxRetries" envconfig:"EXPLORER_MAX_RETRIES"`

		ApiKeys ChainMap `yaml:"apiKeys" envconfig:"EXPLORER_API_KEYS"`
	} `yaml:"explorer"`

	Rpc struct {
		Endpoints ChainMap `yaml:"endpoints" envconfig:"RPC_ENDPOINTS"`
	} `yaml:"rpc"`

	Ingestion struct {
		BatchSize       int           `yaml:"batchSize" envconfig:"INGESTION_BATCH_SIZE"`
		Interval        time.Duration `yaml:"interval" envconfig:"INGESTION_INTERVAL"`
		SkipAggregation bool          `yaml:"skipAggregation" envconfig:"INGESTION_SKIP_AGGREGATION"`
	} `yaml:"ingestion"`

	TxSignature struct {
		LookupUrl        string        `yaml:"lookupUrl" envconfig:"TXSIG_LOOKUP_URL"`
		LookupTimeout    time.Duration `yaml:"lookupTimeout" envconfig:"TXSIG_LOOKUP_TIMEOUT"`
		ConcurrencyLimit uint64        `yaml:"concurrencyLimit" envconfig:"TXSIG_CONCURRENCY_LIMIT"`
		CacheTtl         time.Duration `yaml:"cacheTtl" envconfig:"TXSIG_CACHE_TTL"`
		LocalCacheSize   int           `yaml:"localCacheSize" envconfig:"TXSIG_LOCAL_CACHE_SIZE"`
		RedisCacheAddr   string        `yaml:"redisCacheAddr" envconfig:"TXSIG_REDIS_CACHE_ADDR"`
		RedisCachePrefix string        `yaml:"redisCachePrefix" envconfig:"TXSIG_REDIS_CACHE_PREFIX"`
	} `yaml:"txsig"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
		Host    string `yaml:"host" envconfig:"METRICS_HOST"`
		Port    string `yaml:"port" envconfig:"METRICS_PORT"`
	} `yaml:"metrics"`

	Database DatabaseConfig `yaml:"database"`
}

// ChainConfig describes one supported EVM chain and the endpoints used to index it.
type ChainConfig struct {
	Id             uint64            `yaml:"id"`
	Name           string            `yaml:"name"`
	ExplorerUrl    string            `yaml:"explorerUrl"`
	ExplorerApiKey string            `yaml:"explorerApiKey"`
	RpcUrl         string            `yaml:"rpcUrl"`
	RpcHeaders     map[string]string `yaml:"rpcHeaders"`
}

type DatabaseConfig struct {
	Engine      string                     `yaml:"engine" envconfig:"DATABASE_ENGINE"`
	Sqlite      *SqliteDatabaseConfig      `yaml:"sqlite"`
	Pgsql       *PgsqlDatabaseConfig       `yaml:"pgsql"`
	PgsqlWriter *PgsqlWriterDatabaseConfig `yaml:"pgsqlWriter"`
}

type SqliteDatabaseConfig struct {
	File         string `yaml:"file" envconfig:"DATABASE_SQLITE_FILE"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_SQLITE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_SQLITE_MAX_IDLE_CONNS"`
}

type PgsqlDatabaseConfig struct {
	Username     string `yaml:"user" envconfig:"DATABASE_PGSQL_USERNAME"`
	Password     string `yaml:"password" envconfig:"DATABASE_PGSQL_PASSWORD"`
	Name         string `yaml:"name" envconfig:"DATABASE_PGSQL_NAME"`
	Host         string `yaml:"host" envconfig:"DATABASE_PGSQL_HOST"`
	Port         string `yaml:"port" envconfig:"DATABASE_PGSQL_PORT"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_PGSQL_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_PGSQL_MAX_IDLE_CONNS"`
}

type PgsqlWriterDatabaseConfig struct {
	Username     string `yaml:"user" envconfig:"DATABASE_PGSQL_WRITER_USERNAME"`
	Password     string `yaml:"password" envconfig:"DATABASE_PGSQL_WRITER_PASSWORD"`
	Name         string `yaml:"name" envconfig:"DATABASE_PGSQL_WRITER_NAME"`
	Host         string `yaml:"host" envconfig:"DATABASE_PGSQL_WRITER_HOST"`
	Port         string `yaml:"port" envconfig:"DATABASE_PGSQL_WRITER_PORT"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_PGSQL_WRITER_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_PGSQL_WRITER_MAX_IDLE_CONNS"`
}

// GetChain returns the chain config with the given id or nil.
func (c *Config) GetChain(chainId uint64) *ChainConfig {
	for i := range c.Chains {
		if c.Chains[i].Id == chainId {
			return &c.Chains[i]
		}
	}
	return nil
}
