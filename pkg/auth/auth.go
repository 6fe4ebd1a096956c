// Package auth provides static bearer-token authentication. Tokens are
// configured as a comma-separated list of "token:user_id:display_name"
// triples, typically through the AUTH_TOKENS environment variable.
package auth

import (
	"fmt"
	"strings"
)

// User identifies the authenticated caller.
type User struct {
	ID   string
	Name string
}

// Validator resolves bearer tokens to users.
type Validator struct {
	tokens map[string]User
}

// ParseTokens builds a validator from the configured token list. Empty
// entries are skipped; malformed entries are an error.
func ParseTokens(spec string) (*Validator, error) {
	tokens := make(map[string]User)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed token entry %q, expected token:user_id:name", entry)
		}
		tokens[parts[0]] = User{ID: parts[1], Name: parts[2]}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no auth tokens configured")
	}
	return &Validator{tokens: tokens}, nil
}

// Validate resolves a bearer token.
func (v *Validator) Validate(token string) (User, bool) {
	user, ok := v.tokens[token]
	return user, ok
}
