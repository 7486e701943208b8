package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"fiado/backend/internal/domain"
	apperrors "fiado/backend/internal/errors"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"owner": {
				Username:  "owner",
				Password:  "owner123",
				Role:      domain.RoleOwner,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, store)
	if store.updates == 0 {
		t.Fatalf("expected plain password to be rehashed on load")
	}
	if !strings.HasPrefix(store.users["owner"].Password, "$2") {
		t.Fatalf("expected bcrypt hash in store, got %q", store.users["owner"].Password)
	}

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "Owner", Password: "owner123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleOwner || resp.AccessToken == "" {
		t.Fatalf("unexpected login response: %+v", resp)
	}
}

func TestEnsureOwnerCreatesOnlyOnce(t *testing.T) {
	store := &userStoreStub{}
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, store)

	if err := manager.EnsureOwner(context.Background(), "owner", "secret-pass"); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}
	if err := manager.EnsureOwner(context.Background(), "other-owner", "another-pass"); err != nil {
		t.Fatalf("second ensure owner: %v", err)
	}
	if len(store.users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(store.users))
	}
	if store.users["owner"].Role != domain.RoleOwner {
		t.Fatalf("expected owner role, got %q", store.users["owner"].Role)
	}
}

func TestEnsureOwnerWithoutPasswordIsNoop(t *testing.T) {
	store := &userStoreStub{}
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, store)

	if err := manager.EnsureOwner(context.Background(), "owner", ""); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}
	if len(store.users) != 0 {
		t.Fatalf("expected no users, got %d", len(store.users))
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthManager(context.Background(), "secret-one", time.Hour, nil)
	verifier := NewAuthManager(context.Background(), "secret-two", time.Hour, nil)

	token, err := issuer.sign("owner", domain.RoleOwner, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	actor, err := issuer.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "owner" || actor.Role != domain.RoleOwner {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, nil)
	token, err := manager.sign("cashier1", domain.RoleCashier, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestCreateCashierValidatesAndRejectsDuplicates(t *testing.T) {
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, &userStoreStub{})
	ctx := context.Background()

	if _, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "ab", Password: "secret1"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "cajero1", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}

	cashier, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "Cajero1", Password: "secret1"})
	if err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	if cashier.Username != "cajero1" || cashier.Password != "" {
		t.Fatalf("unexpected cashier: %+v", cashier)
	}

	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "cajero1", Password: "secret2"})
	if _, ok := apperrors.IsDuplicateNameError(err); !ok {
		t.Fatalf("expected duplicate name error, got %v", err)
	}

	cashiers := manager.ListCashiers(ctx)
	if len(cashiers) != 1 || cashiers[0].Username != "cajero1" {
		t.Fatalf("unexpected cashier list: %+v", cashiers)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	hash, err := hashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &userStoreStub{users: map[string]domain.UserAccount{
		"cajero2": {Username: "cajero2", Password: hash, Role: domain.RoleCashier, Active: false},
	}}
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, store)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "cajero2", Password: "secret1"}); err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "cajero2", Password: "wrong"}); err != errInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
