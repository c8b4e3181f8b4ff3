package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/auth"
)

const refreshCookiePath = "/api/v1/auth/refresh"

// AuthHandlers issues operator tokens
type AuthHandlers struct {
	operator   auth.Operator
	jwtService *auth.JWTService
	logger     *zap.Logger
}

func NewAuthHandlers(operator auth.Operator, jwtService *auth.JWTService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		operator:   operator,
		jwtService: jwtService,
		logger:     logger.Named("auth"),
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and refresh. Browsers can ignore it and
// rely on the cookies.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
}

// Login handles operator login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.operator.Authenticate(req.Email, req.Password); err != nil {
		h.logger.Info("login rejected", zap.String("email", req.Email), zap.String("remote", r.RemoteAddr))
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	h.issue(w, r, h.operator.Email, auth.RoleOperator, "Login successful")
}

// Refresh exchanges the refresh cookie for a new token pair
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	// the operator may have been reconfigured since the token was issued
	if claims.Subject != h.operator.Email {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	h.issue(w, r, claims.Subject, claims.Role, "Token refreshed")
}

// Logout clears the auth cookies
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)
	respondData(w, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandlers) issue(w http.ResponseWriter, r *http.Request, email, role, message string) {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(email, role)
	if err != nil {
		h.logger.Error("sign access token", zap.Error(err))
		respondJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(email, role)
	if err != nil {
		h.logger.Error("sign refresh token", zap.Error(err))
		respondJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondData(w, http.StatusOK, message, TokenResponse{
		AccessToken: accessToken,
		ExpiresAt:   accessExpiry,
		Email:       email,
		Role:        role,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
