package ports

import "context"

// TokenProvider hands out bearer tokens, refreshing them before they expire.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}
