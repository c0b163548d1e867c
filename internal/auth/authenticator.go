package auth

import "context"

// Identity is the result of a successful credential check: the pair the
// coordinator needs to establish a session, nothing more.
type Identity struct {
	UserID   string
	Username string
}

// Authenticator maps a presented credential to an identity or rejects it.
// The session layer depends only on this interface; how credentials are
// issued and verified is this package's concern.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}
