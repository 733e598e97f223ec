package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/security/auth"
)

func TestSignupStoresProfileWithDefaults(t *testing.T) {
	f := newFixture(t)
	res, err := f.accounts.Signup(context.Background(), SignupInput{
		Email:    "ada@state.edu",
		Password: "secret1",
		Name:     "Ada",
		IsDriver: true,
		CarDetails: &domain.CarDetails{
			Make: "Toyota", Model: "Prius", Color: "Silver", Plate: "ADA-1",
		},
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if res.Identity.ID == "" || res.Identity.ID != res.User.ID {
		t.Fatalf("expected profile keyed by identity id, got %+v / %+v", res.Identity, res.User)
	}

	stored, err := f.accounts.GetUser(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if stored.Rating != 5.0 || stored.TotalRides != 0 || !stored.IsDriver || stored.CarDetails.Plate != "ADA-1" {
		t.Fatalf("unexpected stored profile %+v", stored)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestSignupValidation(t *testing.T) {
	tests := []struct {
		name string
		in   SignupInput
		want string
	}{
		{
			name: "missing name",
			in:   SignupInput{Email: "a@state.edu", Password: "secret1"},
			want: "Missing required fields",
		},
		{
			name: "missing password",
			in:   SignupInput{Email: "a@state.edu", Name: "A"},
			want: "Missing required fields",
		},
		{
			name: "non university email",
			in:   SignupInput{Email: "a@gmail.com", Password: "secret1", Name: "A"},
			want: "Please use your university email address",
		},
		{
			name: "short password",
			in:   SignupInput{Email: "a@state.edu", Password: "12345", Name: "A"},
			want: "Password must be at least 6 characters",
		},
		{
			name: "driver without car",
			in:   SignupInput{Email: "a@state.edu", Password: "secret1", Name: "A", IsDriver: true},
			want: "Drivers must provide car make, model, color and plate",
		},
		{
			name: "driver with partial car",
			in: SignupInput{Email: "a@state.edu", Password: "secret1", Name: "A", IsDriver: true,
				CarDetails: &domain.CarDetails{Make: "Honda"}},
			want: "Drivers must provide car make, model, color and plate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.accounts.Signup(context.Background(), tt.in)
			if got := validationMessage(t, err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if len(f.identity.byEmail) != 0 {
				t.Fatalf("identity must not be created for invalid input")
			}
		})
	}
}

func TestSignupRiderWithPartialCarDetails(t *testing.T) {
	f := newFixture(t)
	res, err := f.accounts.Signup(context.Background(), SignupInput{
		Email:      "rider@state.edu",
		Password:   "secret1",
		Name:       "Rae",
		CarDetails: &domain.CarDetails{Make: "Honda"},
	})
	if err != nil {
		t.Fatalf("riders are not asked for car details, got %v", err)
	}
	if res.User.IsDriver {
		t.Fatalf("expected a rider profile, got %+v", res.User)
	}
}

func TestSignupDuplicateEmailIsClientFault(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "dup@state.edu", false)

	_, err := f.accounts.Signup(context.Background(), SignupInput{Email: "dup@state.edu", Password: "secret1", Name: "Again"})
	var up *domain.UpstreamError
	if !errors.As(err, &up) || !up.ClientFault {
		t.Fatalf("expected client-fault upstream error, got %v", err)
	}
}

func TestSignupIdentityOutage(t *testing.T) {
	f := newFixture(t)
	f.identity.createErr = &domain.UpstreamError{Service: "identity", Message: "service unavailable"}

	_, err := f.accounts.Signup(context.Background(), SignupInput{Email: "a@state.edu", Password: "secret1", Name: "A"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestGetUserMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.GetUser(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) || err.Error() != "User not found" {
		t.Fatalf("expected User not found, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	id := f.signup(t, "lin@state.edu", false)

	session, err := f.accounts.Login(context.Background(), "lin@state.edu", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.UserID != id || session.AccessToken == "" {
		t.Fatalf("unexpected session %+v", session)
	}

	if _, err := f.accounts.Login(context.Background(), "lin@state.edu", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.accounts.Login(context.Background(), "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSeedDemoAccountsSkipsExisting(t *testing.T) {
	f := newFixture(t)
	if n := f.accounts.SeedDemoAccounts(context.Background(), auth.DemoAccounts); n != len(auth.DemoAccounts) {
		t.Fatalf("expected %d demo accounts, got %d", len(auth.DemoAccounts), n)
	}
	if n := f.accounts.SeedDemoAccounts(context.Background(), auth.DemoAccounts); n != 0 {
		t.Fatalf("expected reseeding to create nothing, got %d", n)
	}
	if _, err := f.accounts.Login(context.Background(), "demo@university.edu", "demo123"); err != nil {
		t.Fatalf("demo login failed: %v", err)
	}
}
