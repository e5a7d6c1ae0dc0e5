package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db       *gorm.DB
	sessions *auth.Sessions
	gate     *policy.AuthGate
	log      zerolog.Logger
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions, gate *policy.AuthGate, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions, gate: gate, log: log}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HashPassword hashes a staff password for storage.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

// Login answers POST /api/login and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var user models.User
	if err := h.db.WithContext(r.Context()).Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		h.log.Info().Uint("user_id", user.ID).Msg("login refused")
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	h.sessions.Create(w, user.ID)
	h.log.Info().Uint("user_id", user.ID).Msg("login")
	httpx.JSON(w, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email, "name": user.Name})
}

// Logout answers POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me answers GET /api/me with the signed-in actor and the quote actions it
// may perform.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	who := currentActor(r)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":           who.ID,
		"name":         who.Name,
		"email":        who.Email,
		"role":         who.Role.String(),
		"capabilities": h.gate.Capabilities(r.Context(), who),
	})
}
