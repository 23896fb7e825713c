package explorer

import "fmt"

// FetchError is a malformed or unusable explorer response.
type FetchError struct {
	ChainId uint64
	Action  string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("explorer %v request failed (chain %v): %v: %v", e.Action, e.ChainId, e.Message, e.Err)
	}
	return fmt.Sprintf("explorer %v request failed (chain %v): %v", e.Action, e.ChainId, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TokenInfoError is returned when the token info endpoint answers with a non-"1" status.
type TokenInfoError struct {
	Address string
	Message string
}

func (e *TokenInfoError) Error() string {
	return fmt.Sprintf("token info lookup for %v failed: %v", e.Address, e.Message)
}
