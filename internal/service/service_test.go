package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/events"
	"github.com/yourorg/sity/internal/repository"
	"github.com/yourorg/sity/internal/security/audit"
	"github.com/yourorg/sity/pkg/config"
	"github.com/yourorg/sity/pkg/kv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeIdentity issues sequential ids and treats "token-{id}" as valid
type fakeIdentity struct {
	mu        sync.Mutex
	byEmail   map[string]string
	passwords map[string]string
	createErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{byEmail: map[string]string{}, passwords: map[string]string{}}
}

func (f *fakeIdentity) CreateIdentity(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[email]; ok {
		return nil, &domain.UpstreamError{Service: "identity", Message: "A user with this email address has already been registered", ClientFault: true}
	}
	id := uuid.NewString()
	f.byEmail[email] = id
	f.passwords[email] = password
	return &domain.Identity{ID: id, Email: email, Metadata: metadata}, nil
}

func (f *fakeIdentity) VerifyToken(ctx context.Context, token string) (string, error) {
	if len(token) > 6 && token[:6] == "token-" {
		return token[6:], nil
	}
	return "", domain.ErrUnauthorized
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok || f.passwords[email] != password {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Session{AccessToken: "token-" + id, TokenType: "bearer", ExpiresIn: 3600, UserID: id}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     kv.Store
	users     *repository.UserRepository
	rides     *repository.RideRepository
	requests  *repository.RequestRepository
	identity  *fakeIdentity
	publisher *recordingPublisher
	accounts  *AccountService
	rideSvc   *RideService
	reqSvc    *RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()
	store := kv.NewMemoryStore()
	f := &fixture{
		store:     store,
		users:     repository.NewUserRepository(store, log),
		rides:     repository.NewRideRepository(store, log),
		requests:  repository.NewRequestRepository(store, log),
		identity:  newFakeIdentity(),
		publisher: &recordingPublisher{},
	}
	auditLog := audit.NewLogger(log)
	f.accounts = NewAccountService(f.users, f.identity, auditLog, log, &config.Config{UniversityEmailMarker: ".edu", MinPasswordLength: 6})
	f.rideSvc = NewRideService(f.rides, f.users, f.publisher, auditLog, log)
	f.reqSvc = NewRequestService(f.rides, f.requests, f.publisher, auditLog, log)
	return f
}

func (f *fixture) signup(t *testing.T, email string, driver bool) string {
	t.Helper()
	in := SignupInput{Email: email, Password: "password123", Name: "Test User", IsDriver: driver}
	if driver {
		in.CarDetails = &domain.CarDetails{Make: "Honda", Model: "Civic", Color: "Blue", Plate: "SITY-1"}
	}
	res, err := f.accounts.Signup(context.Background(), in)
	if err != nil {
		t.Fatalf("signup %s failed: %v", email, err)
	}
	return res.User.ID
}

func (f *fixture) ride(t *testing.T, driverID, seats string) *domain.Ride {
	t.Helper()
	ride, err := f.rideSvc.CreateRide(context.Background(), driverID, CreateRideInput{
		Departure:   "North Campus",
		Destination: "Airport",
		Date:        "2026-11-20",
		Time:        "08:30",
		Seats:       json.Number(seats),
		Price:       "12.5",
	})
	if err != nil {
		t.Fatalf("create ride failed: %v", err)
	}
	return ride
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Message
}
