package config

import (
	_ "embed"
)

// default config incl. the supported chain table
//
//go:embed default.config.yml
var DefaultConfigYml string
