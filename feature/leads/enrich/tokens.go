package enrich

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoTokens is returned when every token in the pool has been invalidated.
var ErrNoTokens = errors.New("enrich: token pool exhausted")

// TokenSource hands out access tokens round-robin and drops the ones the
// job board rejects. Safe for concurrent use by the enrichment workers.
type TokenSource struct {
	mu     sync.Mutex
	tokens []string
	next   int
}

// NewTokenSource parses a comma-separated token list.
func NewTokenSource(raw string) *TokenSource {
	var tokens []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return &TokenSource{tokens: tokens}
}

// Next returns the next token in rotation.
func (ts *TokenSource) Next() (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.tokens) == 0 {
		return "", ErrNoTokens
	}
	tok := ts.tokens[ts.next%len(ts.tokens)]
	ts.next++
	return tok, nil
}

// Invalidate removes a rejected token from the pool.
func (ts *TokenSource) Invalidate(token string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for i, tok := range ts.tokens {
		if tok == token {
			ts.tokens = append(ts.tokens[:i], ts.tokens[i+1:]...)
			break
		}
	}
	if len(ts.tokens) > 0 {
		ts.next %= len(ts.tokens)
	}
}

// Remaining reports how many tokens are still usable.
func (ts *TokenSource) Remaining() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tokens)
}
