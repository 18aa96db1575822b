package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamtrack/apiserver/config"
	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// AuthService authenticates users and admins and manages refresh tokens.
// Access tokens are minted by the HTTP layer; this service decides who the
// principal is and hands out the opaque, revocable refresh credential.
type AuthService struct {
	users    UserRepository
	admins   AdminRepository
	tokens   RefreshTokenRepository
	adminCfg config.AdminConfig

	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users UserRepository, admins AdminRepository, tokens RefreshTokenRepository, adminCfg config.AdminConfig, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		admins:     admins,
		tokens:     tokens,
		adminCfg:   adminCfg,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// EnsureAdmin upserts the configured admin identity at startup so admin
// logins have a stable row to reference. A missing configuration simply
// disables admin login.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	if s.adminCfg.Email == "" || s.adminCfg.Password == "" {
		log.Println("auth: admin credentials not configured, admin login disabled")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminCfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.admins.Upsert(ctx, types.Admin{
		Name:         s.adminCfg.Name,
		Email:        s.adminCfg.Email,
		PasswordHash: string(hash),
	})
	return err
}

// Login authenticates a regular account. Unapproved and deactivated
// accounts are rejected even with correct credentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, types.RefreshToken, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, types.RefreshToken{}, apperr.Unauthenticated("Invalid email or password")
		}
		return types.User{}, types.RefreshToken{}, apperr.Internal(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return types.User{}, types.RefreshToken{}, apperr.Unauthenticated("Invalid email or password")
	}
	if !user.Approved {
		return types.User{}, types.RefreshToken{}, apperr.Forbidden("Account is pending admin approval")
	}
	if !user.IsActive {
		return types.User{}, types.RefreshToken{}, apperr.Forbidden("Account is deactivated")
	}

	refresh, err := s.issueRefresh(ctx, user.ID, types.PrincipalUser)
	if err != nil {
		return types.User{}, types.RefreshToken{}, err
	}
	return user, refresh, nil
}

// AdminLogin authenticates against the configured admin credentials.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (types.Admin, types.RefreshToken, error) {
	if s.adminCfg.Email == "" || s.adminCfg.Password == "" {
		return types.Admin{}, types.RefreshToken{}, apperr.Unauthenticated("Invalid email or password")
	}

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminCfg.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminCfg.Password)) == 1
	if !emailOK || !passOK {
		return types.Admin{}, types.RefreshToken{}, apperr.Unauthenticated("Invalid email or password")
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		return types.Admin{}, types.RefreshToken{}, apperr.Internal(err)
	}

	refresh, err := s.issueRefresh(ctx, admin.ID, types.PrincipalAdmin)
	if err != nil {
		return types.Admin{}, types.RefreshToken{}, err
	}
	return admin, refresh, nil
}

// Refresh redeems a refresh token for the principal it represents, rotating
// the token in the process. The old token is revoked before the new one is
// issued so a stolen token is single-use.
func (s *AuthService) Refresh(ctx context.Context, token string) (types.Principal, types.RefreshToken, error) {
	rt, err := s.tokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Principal{}, types.RefreshToken{}, apperr.Unauthenticated("Invalid refresh token")
		}
		return types.Principal{}, types.RefreshToken{}, apperr.Internal(err)
	}
	if !rt.Valid(s.now()) {
		return types.Principal{}, types.RefreshToken{}, apperr.Unauthenticated("Refresh token expired or revoked")
	}

	var principal types.Principal
	switch rt.SubjectType {
	case types.PrincipalAdmin:
		principal = types.Principal{ID: rt.SubjectID, Type: types.PrincipalAdmin, Role: "admin"}
	default:
		user, err := s.users.GetByID(ctx, rt.SubjectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.Principal{}, types.RefreshToken{}, apperr.Unauthenticated("Invalid refresh token")
			}
			return types.Principal{}, types.RefreshToken{}, apperr.Internal(err)
		}
		if !user.Approved || !user.IsActive {
			return types.Principal{}, types.RefreshToken{}, apperr.Forbidden("Account is no longer active")
		}
		principal = types.Principal{ID: user.ID, Type: types.PrincipalUser, Role: user.Role, Department: user.Department}
	}

	if err := s.tokens.Revoke(ctx, rt.Token); err != nil {
		return types.Principal{}, types.RefreshToken{}, apperr.Internal(err)
	}
	next, err := s.issueRefresh(ctx, rt.SubjectID, rt.SubjectType)
	if err != nil {
		return types.Principal{}, types.RefreshToken{}, err
	}
	return principal, next, nil
}

// Logout revokes a refresh token. Revoking an unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// PurgeExpired sweeps expired refresh tokens. Intended for a periodic
// background call.
func (s *AuthService) PurgeExpired(ctx context.Context) {
	n, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		log.Printf("auth: purging expired refresh tokens failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("auth: purged %d expired refresh tokens", n)
	}
}

func (s *AuthService) issueRefresh(ctx context.Context, subjectID int, subjectType string) (types.RefreshToken, error) {
	token := types.RefreshToken{
		Token:       uuid.NewString(),
		SubjectID:   subjectID,
		SubjectType: subjectType,
		ExpiresAt:   s.now().Add(s.refreshTTL),
	}
	created, err := s.tokens.Create(ctx, token)
	if err != nil {
		return types.RefreshToken{}, apperr.Internal(err)
	}
	return created, nil
}
