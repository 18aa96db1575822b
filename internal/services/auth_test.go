package services

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/teamtrack/apiserver/config"
	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/types"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *fakeTokenRepo) {
	t.Helper()
	users := newFakeUserRepo()
	admins := newFakeAdminRepo()
	tokens := newFakeTokenRepo()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users.add(types.User{
		ID:           1,
		Email:        "dev@example.com",
		Role:         types.RoleUser,
		Department:   "engineering",
		Approved:     true,
		IsActive:     true,
		PasswordHash: string(hash),
	})
	users.add(types.User{
		ID:           2,
		Email:        "pending@example.com",
		Role:         types.RoleUser,
		Approved:     false,
		IsActive:     true,
		PasswordHash: string(hash),
	})

	adminCfg := config.AdminConfig{Name: "Root", Email: "admin@example.com", Password: "admin pass"}
	service := NewAuthService(users, admins, tokens, adminCfg, 24*time.Hour)
	if err := service.EnsureAdmin(context.Background()); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	return service, users, tokens
}

func TestLogin(t *testing.T) {
	service, _, _ := newAuthFixture(t)
	ctx := context.Background()

	user, refresh, err := service.Login(ctx, "dev@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("user = %d, want 1", user.ID)
	}
	if refresh.Token == "" || refresh.SubjectType != types.PrincipalUser {
		t.Fatalf("bad refresh token: %+v", refresh)
	}

	if _, _, err := service.Login(ctx, "dev@example.com", "wrong"); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("wrong password: expected unauthenticated, got %v", err)
	}
	if _, _, err := service.Login(ctx, "nobody@example.com", "x"); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("unknown email: expected unauthenticated, got %v", err)
	}
	if _, _, err := service.Login(ctx, "pending@example.com", "correct horse"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("unapproved: expected forbidden, got %v", err)
	}
}

func TestLoginDeactivated(t *testing.T) {
	service, users, _ := newAuthFixture(t)
	ctx := context.Background()

	u := users.users[1]
	u.IsActive = false
	users.users[1] = u

	if _, _, err := service.Login(ctx, "dev@example.com", "correct horse"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("deactivated: expected forbidden, got %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	service, _, _ := newAuthFixture(t)
	ctx := context.Background()

	admin, refresh, err := service.AdminLogin(ctx, "admin@example.com", "admin pass")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if admin.Email != "admin@example.com" {
		t.Fatalf("admin = %+v", admin)
	}
	if refresh.SubjectType != types.PrincipalAdmin {
		t.Fatalf("subject type = %q, want admin", refresh.SubjectType)
	}

	if _, _, err := service.AdminLogin(ctx, "admin@example.com", "nope"); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("wrong password: expected unauthenticated, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	service, _, tokens := newAuthFixture(t)
	ctx := context.Background()

	_, refresh, err := service.Login(ctx, "dev@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	principal, next, err := service.Refresh(ctx, refresh.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if principal.ID != 1 || principal.Type != types.PrincipalUser || principal.Department != "engineering" {
		t.Fatalf("principal = %+v", principal)
	}
	if next.Token == refresh.Token {
		t.Fatal("refresh must rotate the token")
	}

	// The old token is single-use.
	if _, _, err := service.Refresh(ctx, refresh.Token); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("reused token: expected unauthenticated, got %v", err)
	}

	// The new token still works.
	if _, _, err := service.Refresh(ctx, next.Token); err != nil {
		t.Fatalf("rotated token: %v", err)
	}

	if len(tokens.tokens) < 2 {
		t.Fatalf("expected rotated tokens to persist, have %d", len(tokens.tokens))
	}
}

func TestRefreshExpired(t *testing.T) {
	service, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, refresh, err := service.Login(ctx, "dev@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	service.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, _, err := service.Refresh(ctx, refresh.Token); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("expired token: expected unauthenticated, got %v", err)
	}
}

func TestLogoutRevokes(t *testing.T) {
	service, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, refresh, err := service.Login(ctx, "dev@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := service.Logout(ctx, refresh.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := service.Refresh(ctx, refresh.Token); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Fatalf("revoked token: expected unauthenticated, got %v", err)
	}

	// Revoking an unknown token is not an error.
	if err := service.Logout(ctx, "no-such-token"); err != nil {
		t.Fatalf("unknown token logout: %v", err)
	}
}
