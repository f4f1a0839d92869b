package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/biportal/internal/domain"
)

type memUserRepo struct {
	byUsername map[string]*domain.User
	byEmail    map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byUsername: map[string]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (m *memUserRepo) add(u *domain.User) {
	m.byUsername[u.Username] = u
	if u.FederatedEmail != "" {
		m.byEmail[strings.ToLower(u.FederatedEmail)] = u
	}
}

func (m *memUserRepo) GetActiveByUsername(_ context.Context, username string) (*domain.User, error) {
	if u, ok := m.byUsername[username]; ok && u.IsActive {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUserRepo) GetActiveByFederatedEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.byEmail[strings.ToLower(email)]; ok && u.IsActive {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error { m.add(u); return nil }

func (m *memUserRepo) Deactivate(_ context.Context, username string) error {
	if u, ok := m.byUsername[username]; ok {
		u.IsActive = false
		return nil
	}
	return domain.ErrUserNotFound
}

type memAuditRepo struct {
	entries []*domain.LoginAudit
	fail    bool
}

func (m *memAuditRepo) Append(_ context.Context, entry *domain.LoginAudit) error {
	if m.fail {
		return errors.New("audit table unavailable")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func seededService(t *testing.T) (*AuthService, *memUserRepo, *memAuditRepo) {
	t.Helper()
	users := newMemUserRepo()
	users.add(&domain.User{
		ID:             "u-1",
		Username:       "alice",
		PasswordHash:   hash(t, "correct horse"),
		FederatedEmail: "alice@corp.example",
		Role:           "clienta",
		IsActive:       true,
	})
	users.add(&domain.User{
		ID:           "u-2",
		Username:     "mallory",
		PasswordHash: hash(t, "whatever"),
		Role:         "clientb",
		IsActive:     false,
	})
	audits := &memAuditRepo{}
	return NewAuthService(users, audits, nil), users, audits
}

func TestResolveByPassword(t *testing.T) {
	s, _, audits := seededService(t)

	id, err := s.ResolveByPassword(context.Background(), "alice", "correct horse", LoginContext{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id.Role != "clienta" || id.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if len(audits.entries) != 1 {
		t.Fatalf("expected exactly one audit row, got %d", len(audits.entries))
	}
	if audits.entries[0].Method != domain.LoginMethodPassword {
		t.Fatalf("unexpected audit method %q", audits.entries[0].Method)
	}
}

func TestResolveByPasswordWrongPassword(t *testing.T) {
	s, _, audits := seededService(t)

	_, err := s.ResolveByPassword(context.Background(), "alice", "wrong", LoginContext{})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(audits.entries) != 0 {
		t.Fatalf("expected zero audit rows on failure, got %d", len(audits.entries))
	}
}

func TestResolveByPasswordUnknownUser(t *testing.T) {
	s, _, _ := seededService(t)

	_, err := s.ResolveByPassword(context.Background(), "nobody", "anything", LoginContext{})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestInactiveUserFailsBothPaths(t *testing.T) {
	s, users, _ := seededService(t)
	users.byUsername["mallory"].FederatedEmail = "mallory@corp.example"
	users.byEmail["mallory@corp.example"] = users.byUsername["mallory"]

	if _, err := s.ResolveByPassword(context.Background(), "mallory", "whatever", LoginContext{}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive user, got %v", err)
	}
	if _, err := s.ResolveByFederatedEmail(context.Background(), "mallory@corp.example", LoginContext{}); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for inactive user, got %v", err)
	}
}

func TestResolveByFederatedEmailCaseInsensitive(t *testing.T) {
	s, _, audits := seededService(t)

	id, err := s.ResolveByFederatedEmail(context.Background(), "ALICE@CORP.EXAMPLE", LoginContext{UserAgent: "browser"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id.FederatedEmail != "alice@corp.example" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if len(audits.entries) != 1 || audits.entries[0].Method != domain.LoginMethodMicrosoft {
		t.Fatalf("expected one microsoft audit row, got %+v", audits.entries)
	}
}

func TestResolveByFederatedEmailUnmapped(t *testing.T) {
	s, _, _ := seededService(t)

	_, err := s.ResolveByFederatedEmail(context.Background(), "stranger@corp.example", LoginContext{})
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuditFailureDoesNotFailLogin(t *testing.T) {
	s, _, audits := seededService(t)
	audits.fail = true

	id, err := s.ResolveByPassword(context.Background(), "alice", "correct horse", LoginContext{})
	if err != nil {
		t.Fatalf("login must succeed despite audit failure, got %v", err)
	}
	if id == nil {
		t.Fatalf("expected identity")
	}
}
