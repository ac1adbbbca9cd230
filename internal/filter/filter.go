// Package filter implements the peer accept/reject substring filter,
// ported 1:1 from original_source's filter.rs.
package filter

import "strings"

// Kind selects whether a Filter's substring list allow-lists or
// deny-lists peers.
type Kind int

const (
	// Reject denies peers matching any substring (the default: reject
	// nothing, i.e. accept all, when the list is empty).
	Reject Kind = iota
	// Accept allows only peers matching at least one substring.
	Accept
)

// Filter gates connections by a substring match against the peer address.
type Filter struct {
	Kind       Kind
	Substrings []string
}

// Default returns the zero-value filter: Reject with no substrings, which
// accepts every peer.
func Default() Filter {
	return Filter{Kind: Reject}
}

// Accepts reports whether peer should be allowed to connect.
func (f Filter) Accepts(peer string) bool {
	switch f.Kind {
	case Accept:
		for _, s := range f.Substrings {
			if strings.Contains(peer, s) {
				return true
			}
		}
		return false
	default: // Reject
		for _, s := range f.Substrings {
			if strings.Contains(peer, s) {
				return false
			}
		}
		return true
	}
}

// Rejects is the negation of Accepts.
func (f Filter) Rejects(peer string) bool {
	return !f.Accepts(peer)
}
