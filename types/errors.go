package types

import "fmt"

// ConfigError reports a missing or invalid per-chain setting, or a token standard
// the explorer has no transfer action for.
type ConfigError struct {
	ChainId uint64
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.ChainId == 0 {
		return fmt.Sprintf("config error: %v", e.Reason)
	}
	return fmt.Sprintf("config error (chain %v): %v", e.ChainId, e.Reason)
}
