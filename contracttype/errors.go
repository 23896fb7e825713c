package contracttype

import (
	"fmt"
	"strings"
)

// ClassificationError reports that the type of an address could not be determined.
type ClassificationError struct {
	Address string
	ChainId uint64
	Reason  string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("contract type undeterminable for %v on chain %v: %v", strings.ToLower(e.Address), e.ChainId, e.Reason)
}
