package evm

import "sort"

// SignatureSet is a set of textual function signatures, e.g. "transfer(address,uint256)".
// An empty set means no signatures could be resolved.
type SignatureSet map[string]struct{}

func NewSignatureSet(signatures ...string) SignatureSet {
	set := make(SignatureSet, len(signatures))
	for _, sig := range signatures {
		set.Add(sig)
	}
	return set
}

func (s SignatureSet) Add(signatures ...string) {
	for _, sig := range signatures {
		if sig == "" {
			continue
		}
		s[sig] = struct{}{}
	}
}

func (s SignatureSet) Contains(signature string) bool {
	_, ok := s[signature]
	return ok
}

// ContainsAll reports whether every signature of other is part of s.
func (s SignatureSet) ContainsAll(other SignatureSet) bool {
	if len(other) > len(s) {
		return false
	}
	for sig := range other {
		if !s.Contains(sig) {
			return false
		}
	}
	return true
}

// Merge adds all signatures of other to s.
func (s SignatureSet) Merge(other SignatureSet) {
	for sig := range other {
		s[sig] = struct{}{}
	}
}

func (s SignatureSet) Len() int {
	return len(s)
}

func (s SignatureSet) Sorted() []string {
	res := make([]string, 0, len(s))
	for sig := range s {
		res = append(res, sig)
	}
	sort.Strings(res)
	return res
}
