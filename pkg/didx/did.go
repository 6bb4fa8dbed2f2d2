// Package didx resolves public keys from decentralized identifiers.
//
// Two methods are built in: did:key, which encodes the key in the identifier
// itself, and did:web, which publishes a DID document over HTTPS. Resolution
// failures are split into ErrNotFound (the DID or key does not exist) and
// ErrUnavailable (the lookup itself failed and may succeed later).
package didx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDID        = errors.New("didx: invalid DID")
	ErrUnsupportedMethod = errors.New("didx: unsupported DID method")
	ErrNotFound          = errors.New("didx: not found")
	ErrUnavailable       = errors.New("didx: resolution unavailable")
)

// DID is a parsed decentralized identifier "did:<method>:<id>".
type DID struct {
	Method string
	ID     string
}

func (d DID) String() string {
	return "did:" + d.Method + ":" + d.ID
}

// URL is a DID with an optional fragment naming a verification method,
// e.g. "did:web:example.com#key-1".
type URL struct {
	DID
	Fragment string
}

func (u URL) String() string {
	if u.Fragment == "" {
		return u.DID.String()
	}
	return u.DID.String() + "#" + u.Fragment
}

// Parse parses a bare DID. Paths, queries and fragments are rejected.
func Parse(s string) (DID, error) {
	rest, ok := strings.CutPrefix(s, "did:")
	if !ok {
		return DID{}, fmt.Errorf("%w: %q lacks did: prefix", ErrInvalidDID, s)
	}

	method, id, ok := strings.Cut(rest, ":")
	if !ok || method == "" || id == "" {
		return DID{}, fmt.Errorf("%w: %q", ErrInvalidDID, s)
	}
	if !isMethodName(method) {
		return DID{}, fmt.Errorf("%w: bad method name %q", ErrInvalidDID, method)
	}
	if strings.ContainsAny(id, "/?#") {
		return DID{}, fmt.Errorf("%w: %q has a path, query or fragment", ErrInvalidDID, s)
	}
	if strings.HasSuffix(id, ":") {
		return DID{}, fmt.Errorf("%w: %q ends with a colon", ErrInvalidDID, s)
	}

	return DID{Method: method, ID: id}, nil
}

// ParseURL parses a DID optionally followed by "#fragment".
func ParseURL(s string) (URL, error) {
	base, frag, hasFrag := strings.Cut(s, "#")
	if hasFrag && frag == "" {
		return URL{}, fmt.Errorf("%w: empty fragment in %q", ErrInvalidDID, s)
	}

	d, err := Parse(base)
	if err != nil {
		return URL{}, err
	}
	return URL{DID: d, Fragment: frag}, nil
}

func isMethodName(m string) bool {
	for _, r := range m {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
