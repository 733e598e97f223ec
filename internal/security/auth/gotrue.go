package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/reliability/circuitbreaker"
	"github.com/yourorg/sity/pkg/cache"
)

// SupabaseConfig points at a Supabase project's auth (GoTrue) API
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	AnonKey        string
	Timeout        time.Duration
}

// SupabaseProvider talks to GoTrue through the auth-go client. Server-side
// failures feed a circuit breaker so a dead auth service fails fast instead
// of tying up request goroutines.
type SupabaseProvider struct {
	admin     gotrue.Client
	anon      gotrue.Client
	transport http.RoundTripper
	timeout   time.Duration
	breaker   *circuitbreaker.Breaker
	verified  *cache.Cache[string]
	logger    *slog.Logger
}

// verifiedTokenTTL bounds how long a revoked token keeps working
const (
	verifiedTokenTTL  = 30 * time.Second
	maxVerifiedTokens = 10000
	maxErrorBody      = 1 << 16
)

// NewSupabaseProvider creates a GoTrue client
func NewSupabaseProvider(cfg SupabaseConfig, logger *slog.Logger) (*SupabaseProvider, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	anonKey := cfg.AnonKey
	if anonKey == "" {
		anonKey = cfg.ServiceRoleKey
	}
	authURL := strings.TrimRight(cfg.URL, "/") + "/auth/v1"

	breaker := circuitbreaker.New(5, 1, 30*time.Second)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("identity provider circuit changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &SupabaseProvider{
		admin:     gotrue.New("", cfg.ServiceRoleKey).WithCustomAuthURL(authURL).WithToken(cfg.ServiceRoleKey),
		anon:      gotrue.New("", anonKey).WithCustomAuthURL(authURL),
		transport: otelhttp.NewTransport(http.DefaultTransport),
		timeout:   cfg.Timeout,
		breaker:   breaker,
		verified:  cache.New[string](verifiedTokenTTL),
		logger:    logger,
	}, nil
}

// gotrueError covers the error shapes GoTrue has used across versions
type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError is a non-2xx response from GoTrue
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

// CreateIdentity creates a confirmed user through the admin API
func (p *SupabaseProvider) CreateIdentity(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	var user *types.AdminCreateUserResponse
	err := p.call(ctx, p.admin, func(c gotrue.Client) (err error) {
		user, err = c.AdminCreateUser(types.AdminCreateUserRequest{
			Email:        email,
			Password:     &password,
			EmailConfirm: true,
			UserMetadata: metadata,
		})
		return err
	})
	if err != nil {
		return nil, p.upstream("create user", err)
	}
	if user == nil || user.ID == uuid.Nil {
		return nil, &domain.UpstreamError{Service: "supabase", Message: "create user returned no id"}
	}
	return &domain.Identity{ID: user.ID.String(), Email: user.Email, Metadata: user.UserMetadata}, nil
}

// VerifyToken asks GoTrue who owns token. Accepted tokens are remembered
// briefly so every authenticated request does not cost a round trip.
func (p *SupabaseProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthorized
	}
	if id, ok := p.verified.Get(token); ok {
		return id, nil
	}
	if p.verified.Len() > maxVerifiedTokens {
		p.verified.Prune()
	}

	var user *types.UserResponse
	err := p.call(ctx, p.anon.WithToken(token), func(c gotrue.Client) (err error) {
		user, err = c.GetUser()
		return err
	})
	var se *statusError
	if errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnauthorized, se.message)
	}
	if err != nil {
		return "", p.upstream("verify token", err)
	}
	if user == nil || user.ID == uuid.Nil {
		return "", domain.ErrUnauthorized
	}
	id := user.ID.String()
	p.verified.Set(token, id)
	return id, nil
}

// SignIn exchanges email and password for a session
func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var session *types.TokenResponse
	err := p.call(ctx, p.anon, func(c gotrue.Client) (err error) {
		session, err = c.SignInWithEmailPassword(email, password)
		return err
	})
	var se *statusError
	if errors.As(err, &se) && se.status >= 400 && se.status < 500 {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, p.upstream("sign in", err)
	}

	return &domain.Session{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   session.ExpiresIn,
		UserID:      session.User.ID.String(),
	}, nil
}

// call runs one auth-go request under the breaker. auth-go reports non-2xx
// responses as plain strings, so the transport records the status and body
// to keep caller faults apart from server faults.
func (p *SupabaseProvider) call(ctx context.Context, client gotrue.Client, fn func(gotrue.Client) error) error {
	return p.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		rec := &recordingTransport{ctx: ctx, next: p.transport}
		err := fn(client.WithClient(http.Client{Transport: rec}))
		if err == nil {
			return nil
		}
		if rec.status >= http.StatusMultipleChoices {
			var ge gotrueError
			_ = json.Unmarshal(rec.body, &ge)
			msg := ge.text()
			if msg == "" {
				msg = http.StatusText(rec.status)
			}
			return &statusError{status: rec.status, message: msg}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("request abandoned: %w", ctxErr)
		}
		return fmt.Errorf("request failed: %w", err)
	}, serverFault)
}

// recordingTransport binds each request to the caller's context and keeps
// the status and body of error responses
type recordingTransport struct {
	ctx    context.Context
	next   http.RoundTripper
	status int
	body   []byte
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		t.body = data
		resp.Body = io.NopCloser(bytes.NewReader(data))
	}
	return resp, nil
}

// serverFault decides which errors count against the breaker. A caller
// that hangs up says nothing about GoTrue's health.
func serverFault(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	return true
}

func (p *SupabaseProvider) upstream(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return &domain.UpstreamError{Service: "supabase", Message: op + ": service unavailable", Err: err}
	}
	var se *statusError
	if errors.As(err, &se) && se.status < 500 {
		return &domain.UpstreamError{Service: "supabase", Message: se.message, ClientFault: true}
	}
	p.logger.Error("identity provider call failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return &domain.UpstreamError{Service: "supabase", Message: op, Err: err}
}
