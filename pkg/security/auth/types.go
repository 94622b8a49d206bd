package auth

// TokenInfo describes one allowed client token.
type TokenInfo struct {
	// Token is the bearer value
	Token string

	// Description identifies the holder in logs and metrics
	Description string
}

// TokenStore validates client tokens.
type TokenStore interface {
	// Validate returns the token's info, or ErrInvalidToken.
	Validate(token string) (*TokenInfo, error)

	// Open reports whether no tokens are configured, in which case every
	// request is accepted.
	Open() bool
}
