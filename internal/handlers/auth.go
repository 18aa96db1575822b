package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamtrack/apiserver/internal/services"
	"github.com/teamtrack/apiserver/types"
)

// AuthHandler provides registration, login and token lifecycle endpoints.
// Access tokens are short-lived JWTs; refresh tokens are opaque rows the
// auth service can revoke.
type AuthHandler struct {
	users     *services.UserService
	auth      *services.AuthService
	secret    []byte
	accessTTL time.Duration
}

func NewAuthHandler(users *services.UserService, auth *services.AuthService, jwtSecret string, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		users:     users,
		auth:      auth,
		secret:    []byte(jwtSecret),
		accessTTL: accessTTL,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, auth *services.AuthService, jwtSecret string, accessTTL time.Duration) {
	handler := NewAuthHandler(users, auth, jwtSecret, accessTTL)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/admin/login", handler.AdminLogin)
	r.Post("/refresh", handler.Refresh)
	r.Post("/logout", handler.Logout)
	r.With(RequireAuth(jwtSecret)).Get("/me", handler.Me)
}

// RequireAuth enforces JWT authentication and injects the principal into the
// request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			principal, err := parsePrincipal(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type RegisterRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"omitempty,oneof=user lead"`
	Department  string `json:"department" validate:"required"`
	DeviceToken string `json:"device_token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse carries the credential pair plus the authenticated identity.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         any    `json:"user"`
}

// Register submits a new account for admin approval. No credentials are
// issued; the account cannot log in until approved.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.users.Register(r.Context(), types.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         req.Role,
		Department:   strings.TrimSpace(req.Department),
		DeviceToken:  req.DeviceToken,
		PasswordHash: string(hashed),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Registration submitted for approval",
		Data:    user,
	})
}

// Login authenticates a user and returns an access and refresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, refresh, err := h.auth.Login(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	principal := types.Principal{ID: user.ID, Type: types.PrincipalUser, Role: user.Role, Department: user.Department}
	token, err := issueToken(principal, h.secret, h.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, AuthResponse{Token: token, RefreshToken: refresh.Token, User: user})
}

// AdminLogin authenticates against the configured admin credentials.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	admin, refresh, err := h.auth.AdminLogin(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	principal := types.Principal{ID: admin.ID, Type: types.PrincipalAdmin, Role: "admin"}
	token, err := issueToken(principal, h.secret, h.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, AuthResponse{Token: token, RefreshToken: refresh.Token, User: admin})
}

// Refresh rotates a refresh token and mints a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	principal, next, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := issueToken(principal, h.secret, h.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, AuthResponse{Token: token, RefreshToken: next.Token})
}

// Logout revokes a refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if principal.IsAdmin() {
		writeData(w, http.StatusOK, map[string]any{"id": principal.ID, "role": "admin"})
		return
	}

	user, err := h.users.Get(r.Context(), principal, principal.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

type tokenClaims struct {
	Type       string `json:"typ"`
	Role       string `json:"role"`
	Department string `json:"dept,omitempty"`
	jwt.RegisteredClaims
}

func issueToken(principal types.Principal, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Type:       principal.Type,
		Role:       principal.Role,
		Department: principal.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(principal.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parsePrincipal(tokenString string, secret []byte) (types.Principal, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return types.Principal{}, err
	}
	if !token.Valid {
		return types.Principal{}, errors.New("invalid token")
	}

	id, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || id < 1 {
		return types.Principal{}, errors.New("invalid subject")
	}
	if claims.Type != types.PrincipalUser && claims.Type != types.PrincipalAdmin {
		return types.Principal{}, errors.New("invalid principal type")
	}

	return types.Principal{
		ID:         id,
		Type:       claims.Type,
		Role:       claims.Role,
		Department: claims.Department,
	}, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
