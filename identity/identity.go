// Package identity parses, normalizes, and validates Torsion peer
// identifiers and converts between their two textual forms: the
// torsion:<base32> contact ID and the <base32>.onion hidden service
// hostname.
package identity

import (
	"regexp"
	"strings"
)

// idPattern matches a fully-formed contact ID: the literal prefix
// "torsion:" followed by exactly 16 characters of the base32 alphabet
// Tor uses for onion service hostnames (a-z2-7).
var idPattern = regexp.MustCompile(`^torsion:[a-z2-7]{16}$`)

const (
	idPrefix     = "torsion:"
	base32Length = 16
	onionSuffix  = ".onion"
)

// State is the result of validating a candidate ID against the contact
// ID grammar.
type State int

const (
	// Reject means the text can never become a valid ID by further typing.
	Reject State = iota
	// Intermediate means the text is empty, a strict prefix of a valid ID,
	// or otherwise not yet decidable.
	Intermediate
	// Accept means the text is a complete, valid contact ID.
	Accept
)

// ExistingContactLookup is supplied by the identity-storage layer so the
// Validator can downgrade a full match to Intermediate when the ID already
// names a known contact, and report which contact it found.
type ExistingContactLookup func(id string) (contact any, ok bool)

// Validator validates candidate contact ID text as a user types it.
//
// A Validator with no ExistingContactLookup configured behaves as a pure
// grammar check; it never downgrades an Accept.
type Validator struct {
	lookup ExistingContactLookup

	// OnContactExists, if set, is invoked when a fully-valid ID already
	// names a known contact. It is the "already-exists" notification from
	// the distilled spec's §4.A, modeled as an injected callback instead
	// of a signal/slot emission.
	OnContactExists func(contact any)
}

// New returns a Validator with no existing-contact lookup; Validate never
// downgrades Accept results.
func New() *Validator {
	return &Validator{}
}

// NewWithLookup returns a Validator that consults lookup to detect
// already-added contacts.
func NewWithLookup(lookup ExistingContactLookup) *Validator {
	return &Validator{lookup: lookup}
}

// Validate normalizes text (trim, lowercase) and classifies it.
func (v *Validator) Validate(text string) State {
	text = Normalize(text)

	if text == "" {
		return Intermediate
	}

	if idPattern.MatchString(text) {
		if v.lookup != nil {
			if contact, ok := v.lookup(text); ok {
				if v.OnContactExists != nil {
					v.OnContactExists(contact)
				}
				return Intermediate
			}
		}
		return Accept
	}

	if isPrefixOfValidID(text) {
		return Intermediate
	}

	return Reject
}

// Normalize trims surrounding whitespace and lowercases text, matching the
// fixup() routine a text field would apply before each validation pass.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// isPrefixOfValidID reports whether text could be extended by further
// typing into a string matched by idPattern.
func isPrefixOfValidID(text string) bool {
	if len(text) >= len(idPrefix) {
		if !strings.HasPrefix(idPrefix, text) && !strings.HasPrefix(text, idPrefix) {
			return false
		}
	} else {
		return strings.HasPrefix(idPrefix, text)
	}

	rest := text[len(idPrefix):]
	if len(rest) > base32Length {
		return false
	}
	for _, r := range rest {
		if !isBase32Rune(r) {
			return false
		}
	}
	return true
}

func isBase32Rune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '2' && r <= '7')
}

// IsValid reports whether text is a complete, valid contact ID, ignoring
// any existing-contact lookup.
func IsValid(text string) bool {
	return idPattern.MatchString(Normalize(text))
}

// IDToHostname converts a canonical torsion:<base32> ID to its
// <base32>.onion hidden service hostname. It returns "" on invalid input.
func IDToHostname(id string) string {
	id = Normalize(id)
	if !idPattern.MatchString(id) {
		return ""
	}
	return id[len(idPrefix):] + onionSuffix
}

// HostnameToID converts either the bare 16-character base32 hostname or
// the 22-character <base32>.onion form to the canonical torsion:<base32>
// ID. It returns "" on invalid input.
func HostnameToID(hostname string) string {
	h := Normalize(hostname)

	switch {
	case len(h) == base32Length:
		// bare base32, fall through to validation below
	case len(h) == base32Length+len(onionSuffix) && strings.HasSuffix(h, onionSuffix):
		h = strings.TrimSuffix(h, onionSuffix)
	default:
		return ""
	}

	id := idPrefix + h
	if !idPattern.MatchString(id) {
		return ""
	}
	return id
}
