package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/validation"
	"gorm.io/gorm"
)

// RequireSuperAdmin lets through only actors holding *:*. It must run after
// Identity.
func RequireSuperAdmin(g *policy.AuthGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, ok := ActorFrom(r.Context())
			if !ok || !g.IsSuperAdmin(r.Context(), who) {
				httpx.JSONError(w, http.StatusForbidden, "FORBIDDEN", "super admin only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminProfileHandler manages role profiles and their permissions. The
// seeded system profiles are reset at startup, so only custom profiles can
// be edited or deleted.
type AdminProfileHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate // cache is invalidated on changes
}

func NewAdminProfileHandler(db *gorm.DB, gate *policy.AuthGate) *AdminProfileHandler {
	return &AdminProfileHandler{DB: db, Gate: gate}
}

func (h *AdminProfileHandler) invalidate() {
	if h.Gate != nil {
		h.Gate.InvalidateAll()
	}
}

func profileID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}

// load fetches the profile in the path; it answers 404 itself.
func (h *AdminProfileHandler) load(w http.ResponseWriter, r *http.Request, preload ...string) (*models.Profile, bool) {
	id, ok := profileID(w, r)
	if !ok {
		return nil, false
	}
	q := h.DB.WithContext(r.Context())
	for _, p := range preload {
		q = q.Preload(p)
	}
	var profile models.Profile
	if err := q.First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		} else {
			httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		}
		return nil, false
	}
	return &profile, true
}

// List answers GET /api/admin/profiles.
func (h *AdminProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	var profiles []models.Profile
	if err := h.DB.WithContext(r.Context()).Preload("Permissions").Order("id").Find(&profiles).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

type profileInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *profileInput) normalize() validation.Violations {
	in.Name = strings.ToUpper(strings.TrimSpace(in.Name))
	in.Description = strings.TrimSpace(in.Description)
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	return v
}

// Create answers POST /api/admin/profiles. New profiles start without
// permissions.
func (h *AdminProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in profileInput
	if !decode(w, r, &in) {
		return
	}
	if v := in.normalize(); len(v) > 0 {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", v)
		return
	}
	profile := models.Profile{Name: in.Name, Description: in.Description}
	if err := h.DB.WithContext(r.Context()).Create(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httpx.JSONError(w, http.StatusConflict, "name_already_exists", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

// Update answers PATCH /api/admin/profiles/{id}.
func (h *AdminProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, r)
	if !ok {
		return
	}
	if profile.IsSystem {
		httpx.JSONError(w, http.StatusForbidden, "cannot_modify_system_profile", nil)
		return
	}
	var in profileInput
	if !decode(w, r, &in) {
		return
	}
	if v := in.normalize(); len(v) > 0 {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", v)
		return
	}
	profile.Name, profile.Description = in.Name, in.Description
	if err := h.DB.WithContext(r.Context()).Save(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httpx.JSONError(w, http.StatusConflict, "name_already_exists", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	h.invalidate()
	httpx.JSON(w, http.StatusOK, profile)
}

// Delete answers DELETE /api/admin/profiles/{id}.
func (h *AdminProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, r, "Users")
	if !ok {
		return
	}
	if profile.IsSystem {
		httpx.JSONError(w, http.StatusForbidden, "cannot_delete_system_profile", nil)
		return
	}
	if len(profile.Users) > 0 {
		httpx.JSONError(w, http.StatusConflict, "profile_has_users", nil)
		return
	}
	if err := h.DB.WithContext(r.Context()).Select("Permissions").Delete(profile).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	h.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type permissionSelection struct {
	PermissionIDs []uint `json:"permission_ids"`
}

// SavePermissions answers PUT /api/admin/profiles/{id}/permissions and
// replaces the profile's permission set.
func (h *AdminProfileHandler) SavePermissions(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, r)
	if !ok {
		return
	}
	if profile.IsSystem {
		httpx.JSONError(w, http.StatusForbidden, "cannot_modify_system_profile", nil)
		return
	}
	var in permissionSelection
	if !decode(w, r, &in) {
		return
	}
	db := h.DB.WithContext(r.Context())

	var permissions []models.Permission
	if len(in.PermissionIDs) > 0 {
		if err := db.Where("id IN ?", in.PermissionIDs).Find(&permissions).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
			return
		}
		if len(permissions) != len(uniqueIDs(in.PermissionIDs)) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", validation.Violations{"permission_ids": "not_found"})
			return
		}
	}
	if err := db.Model(profile).Association("Permissions").Replace(permissions); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	h.invalidate()
	profile.Permissions = permissions
	httpx.JSON(w, http.StatusOK, profile)
}

// ListPermissions answers GET /api/admin/permissions.
func (h *AdminProfileHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	var permissions []models.Permission
	if err := h.DB.WithContext(r.Context()).Order("resource_type, action").Find(&permissions).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": permissions})
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
