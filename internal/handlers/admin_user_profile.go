package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
	"gorm.io/gorm"
)

// AdminUserProfileHandler lists staff users and assigns them role profiles.
type AdminUserProfileHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate // cache is invalidated on changes
}

func NewAdminUserProfileHandler(db *gorm.DB, gate *policy.AuthGate) *AdminUserProfileHandler {
	return &AdminUserProfileHandler{DB: db, Gate: gate}
}

// List answers GET /api/admin/users.
func (h *AdminUserProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := h.DB.WithContext(r.Context()).Preload("Profile").Order("id").Find(&users).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	var profiles []models.Profile
	if err := h.DB.WithContext(r.Context()).Order("id").Find(&profiles).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users":    users,
		"profiles": profiles,
	})
}

type profileAssignment struct {
	ProfileID *uint `json:"profile_id"`
}

// AssignProfile answers POST /api/admin/users/{id}/profile. A null
// profile_id removes every quote permission from the user.
func (h *AdminUserProfileHandler) AssignProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || userID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_user_id", nil)
		return
	}
	var in profileAssignment
	if !decode(w, r, &in) {
		return
	}
	db := h.DB.WithContext(r.Context())

	if in.ProfileID != nil && *in.ProfileID != 0 {
		var profile models.Profile
		if err := db.First(&profile, *in.ProfileID).Error; err != nil {
			httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
			return
		}
	} else {
		in.ProfileID = nil
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "user_not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	if err := db.Model(&user).Update("profile_id", in.ProfileID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	// Cached profiles are keyed by actor, which embeds the role.
	if h.Gate != nil {
		h.Gate.InvalidateAll()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":    user.ID,
		"profile_id": in.ProfileID,
	})
}
