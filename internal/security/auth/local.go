package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/sity/internal/domain"
)

type account struct {
	id           string
	email        string
	passwordHash []byte
	metadata     map[string]any
}

// LocalProvider is an in-process identity provider for development, demos
// and tests. Accounts live in memory; tokens are locally signed JWTs.
type LocalProvider struct {
	mu       sync.RWMutex
	accounts map[string]*account // email -> account
	tokens   *TokenManager
	ttl      time.Duration
	cost     int
	logger   *slog.Logger
}

// LocalOption customizes a LocalProvider
type LocalOption func(*LocalProvider)

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost
func WithHashCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.cost = cost }
}

// NewLocalProvider creates a provider issuing tokens valid for ttl
func NewLocalProvider(tokens *TokenManager, ttl time.Duration, logger *slog.Logger, opts ...LocalOption) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	p := &LocalProvider{
		accounts: make(map[string]*account),
		tokens:   tokens,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateIdentity registers a new account with a confirmed email
func (p *LocalProvider) CreateIdentity(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "identity", Message: "failed to hash password", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[key]; exists {
		return nil, &domain.UpstreamError{
			Service:     "identity",
			Message:     "A user with this email address has already been registered",
			ClientFault: true,
		}
	}

	acct := &account{
		id:           uuid.NewString(),
		email:        key,
		passwordHash: hash,
		metadata:     metadata,
	}
	p.accounts[key] = acct

	p.logger.Info("identity created", slog.String("user_id", acct.id))
	return &domain.Identity{ID: acct.id, Email: acct.email, Metadata: metadata}, nil
}

// VerifyToken returns the user id behind a valid token
func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return claims.UserID, nil
}

// SignIn checks the password and issues a bearer token
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	acct, ok := p.accounts[normalizeEmail(email)]
	p.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		p.logger.Info("login failed", slog.String("email", email))
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	token, err := p.tokens.GenerateToken(acct.id, acct.email, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(p.ttl.Seconds()),
		UserID:      acct.id,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
