package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ChainMap holds one string per chain id, e.g. api keys or rpc endpoints.
// In the environment it is written as "1:value,56:value". Only the first colon of a pair
// separates the id, so values may contain colons (urls).
type ChainMap map[uint64]string

// Decode implements envconfig.Decoder.
func (m *ChainMap) Decode(value string) error {
	entries := ChainMap{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idStr, entry, found := strings.Cut(pair, ":")
		if !found {
			return fmt.Errorf("invalid chain map entry %q, expected <chain id>:<value>", pair)
		}
		chainId, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chain id in chain map entry %q: %w", pair, err)
		}
		entries[chainId] = strings.TrimSpace(entry)
	}

	*m = entries
	return nil
}
