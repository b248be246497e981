package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/textly/backend/internal/auth"
	"github.com/textly/backend/internal/models"
	"github.com/textly/backend/internal/repository"
)

// UserStore is the user persistence surface the auth handlers need
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SubscriptionLister returns a user's subscription rows, newest first
type SubscriptionLister interface {
	History(ctx context.Context, userID string) ([]models.Subscription, error)
}

// AuthHandler handles registration, login, and the current-user endpoints
type AuthHandler struct {
	users        UserStore
	jwtService   *auth.JWTService
	entitlements Entitlements
	quota        QuotaReader
	subs         SubscriptionLister
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, jwtService *auth.JWTService, entitlements Entitlements, quota QuotaReader, subs SubscriptionLister) *AuthHandler {
	return &AuthHandler{
		users:        users,
		jwtService:   jwtService,
		entitlements: entitlements,
		quota:        quota,
		subs:         subs,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	User      *UserResponse `json:"user"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Register handles user registration
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !isValidEmail(email) {
		writeError(w, http.StatusBadRequest, "invalid_email", "Invalid email address")
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to process registration")
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		// Duplicate email is a user-facing condition, never a 5xx
		if errors.Is(err, repository.ErrUserExists) {
			writeError(w, http.StatusConflict, "user_exists", "An account with this email already exists")
			return
		}
		log.Printf("[auth] Register error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to create account")
		return
	}

	token, err := h.jwtService.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.GetExpiration().Seconds()),
		User: &UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			EmailVerified: user.EmailVerified,
			CreatedAt:     user.CreatedAt,
		},
	})
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		// Don't reveal whether the email exists; a store failure is not a
		// credential problem and must not masquerade as one
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		log.Printf("[auth] Login error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to sign in")
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	token, err := h.jwtService.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.GetExpiration().Seconds()),
		User: &UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			EmailVerified: user.EmailVerified,
			CreatedAt:     user.CreatedAt,
		},
	})
}

// MeResponse is the current-user payload with entitlement and quota state
type MeResponse struct {
	User  *UserResponse  `json:"user"`
	Pro   bool           `json:"pro"`
	Quota *QuotaResponse `json:"quota,omitempty"`
}

// QuotaResponse is the free-tier quota snapshot in API responses
type QuotaResponse struct {
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// Me returns the current authenticated user with pro status and, for free
// users, the quota snapshot
// GET /api/user/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionUser := auth.GetUser(r.Context())
	if sessionUser == nil {
		writeError(w, http.StatusUnauthorized, "auth_required", "Authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), sessionUser.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to fetch user data")
		return
	}

	pro, err := h.entitlements.IsPro(r.Context(), user.ID)
	if err != nil {
		log.Printf("[auth] Me entitlement error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to evaluate subscription")
		return
	}

	resp := MeResponse{
		User: &UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			EmailVerified: user.EmailVerified,
			CreatedAt:     user.CreatedAt,
		},
		Pro: pro,
	}

	if !pro {
		snapshot, err := h.quota.Snapshot(r.Context(), user.ID, time.Now().UTC())
		if err != nil {
			log.Printf("[auth] Me quota snapshot error: %v", err)
		} else {
			resp.Quota = &QuotaResponse{
				Used:    snapshot.Used,
				Limit:   snapshot.Limit,
				ResetAt: snapshot.ResetAt,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Subscriptions returns the authenticated user's subscription history,
// newest first. Rows are append-only, so this doubles as an audit trail of
// billing events.
// GET /api/user/subscriptions
func (h *AuthHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "auth_required", "Authentication required")
		return
	}

	history, err := h.subs.History(r.Context(), user.ID)
	if err != nil {
		log.Printf("[auth] Subscriptions error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to fetch subscriptions")
		return
	}
	if history == nil {
		history = []models.Subscription{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"subscriptions": history,
	})
}

// isValidEmail validates an email address format
func isValidEmail(email string) bool {
	// Simple email regex - not perfect but good enough for basic validation
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]interface{}{
		"ok":      false,
		"error":   code,
		"message": message,
	})
}
