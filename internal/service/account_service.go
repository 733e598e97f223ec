package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/observability/tracing"
	"github.com/yourorg/sity/internal/security/audit"
	"github.com/yourorg/sity/internal/security/auth"
	"github.com/yourorg/sity/pkg/config"
)

// SignupInput is the signup form
type SignupInput struct {
	Email      string             `json:"email" validate:"required"`
	Password   string             `json:"password" validate:"required"`
	Name       string             `json:"name" validate:"required"`
	Phone      string             `json:"phone"`
	University string             `json:"university"`
	IsDriver   bool               `json:"is_driver"`
	CarDetails *domain.CarDetails `json:"car_details" validate:"-"`
}

// SignupResult is the identity record plus the stored profile
type SignupResult struct {
	Identity *domain.Identity
	User     *domain.User
}

// AccountService handles signup, login and profile lookup
type AccountService struct {
	users    domain.UserRepository
	identity domain.IdentityProvider
	audit    *audit.Logger
	logger   *slog.Logger

	emailMarker    string
	minPasswordLen int
	now            func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(
	users domain.UserRepository,
	identity domain.IdentityProvider,
	auditLog *audit.Logger,
	logger *slog.Logger,
	cfg *config.Config,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	s := &AccountService{
		users:          users,
		identity:       identity,
		audit:          auditLog,
		logger:         logger,
		emailMarker:    ".edu",
		minPasswordLen: 6,
		now:            time.Now,
	}
	if cfg != nil {
		if cfg.UniversityEmailMarker != "" {
			s.emailMarker = cfg.UniversityEmailMarker
		}
		if cfg.MinPasswordLength > 0 {
			s.minPasswordLen = cfg.MinPasswordLength
		}
	}
	return s
}

// Signup validates the form, creates the identity and stores the profile
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (res *SignupResult, err error) {
	ctx, span := tracing.Start(ctx, "account.signup")
	defer func() { tracing.End(span, err) }()

	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateSignup(in); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"name":       in.Name,
		"phone":      in.Phone,
		"university": in.University,
		"is_driver":  in.IsDriver,
	}
	if in.CarDetails != nil {
		metadata["car_details"] = in.CarDetails
	}

	identity, err := s.identity.CreateIdentity(ctx, in.Email, in.Password, metadata)
	if err != nil {
		s.audit.LogSignup(ctx, "", "failure", err.Error())
		return nil, err
	}

	user := &domain.User{
		ID:         identity.ID,
		Email:      in.Email,
		Name:       in.Name,
		Phone:      in.Phone,
		University: in.University,
		IsDriver:   in.IsDriver,
		CarDetails: in.CarDetails,
		Rating:     domain.DefaultRating,
		TotalRides: 0,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The identity exists without a profile; GET /user/{id} reports 404
		// until the signup is retried by an operator.
		s.logger.Error("failed to store user profile after identity creation",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		s.audit.LogSignup(ctx, identity.ID, "failure", "profile write failed")
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	s.logger.Info("user created", slog.String("user_id", user.ID), slog.Bool("is_driver", user.IsDriver))
	s.audit.LogSignup(ctx, user.ID, "success", "")
	return &SignupResult{Identity: identity, User: user}, nil
}

func (s *AccountService) validateSignup(in SignupInput) error {
	if err := validate.Struct(in); err != nil {
		return domain.NewValidationError("Missing required fields")
	}
	if !strings.Contains(in.Email, s.emailMarker) {
		return domain.NewValidationError("Please use your university email address")
	}
	if utf8.RuneCountInString(in.Password) < s.minPasswordLen {
		return domain.NewValidationError("Password must be at least %d characters", s.minPasswordLen)
	}
	if in.IsDriver {
		if !in.CarDetails.Complete() {
			return domain.NewValidationError("Drivers must provide car make, model, color and plate")
		}
	}
	return nil
}

// Login exchanges credentials for a bearer session
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("Missing required fields")
	}
	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.audit.LogDenied(ctx, "", "invalid credentials")
		}
		return nil, err
	}
	s.audit.LogAction(ctx, session.UserID, "login", "user", session.UserID, "success", "")
	return session, nil
}

// GetUser returns a stored profile
func (s *AccountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// SeedDemoAccounts signs up the demo logins, skipping ones that already
// exist. It returns how many were created.
func (s *AccountService) SeedDemoAccounts(ctx context.Context, accounts []auth.DemoAccount) int {
	created := 0
	for _, a := range accounts {
		_, err := s.Signup(ctx, SignupInput{
			Email:      a.Email,
			Password:   a.Password,
			Name:       a.Name,
			University: a.University,
			IsDriver:   a.IsDriver,
			CarDetails: a.CarDetails,
		})
		if err != nil {
			s.logger.Warn("demo account not seeded", slog.String("email", a.Email), slog.String("error", err.Error()))
			continue
		}
		created++
	}
	return created
}
