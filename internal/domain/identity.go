package domain

import "context"

// Identity is what the identity provider hands back after creating an account
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is a signed-in bearer token
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
}

// IdentityProvider issues user ids and validates bearer tokens
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error)
	// VerifyToken returns the user id behind token or ErrUnauthorized
	VerifyToken(ctx context.Context, token string) (string, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
}
