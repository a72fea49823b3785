package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/auth"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/store"
	"github.com/smarthostel/smarthostel/internal/validate"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB *sql.DB
}

type createUserRequest struct {
	Name        string      `json:"name" validate:"required,min=2,max=50"`
	Email       string      `json:"email" validate:"required,email,max=254"`
	Password    string      `json:"password" validate:"required"`
	Role        model.Role  `json:"role" validate:"required,enum"`
	HostelBlock model.Block `json:"hostel_block" validate:"omitempty,enum"`
	RoomNumber  string      `json:"room_number" validate:"omitempty,room"`
	Phone       string      `json:"phone" validate:"omitempty,phone"`
}

type updateUserRequest struct {
	Role        *model.Role  `json:"role" validate:"omitempty,enum"`
	HostelBlock *model.Block `json:"hostel_block" validate:"omitempty,enum"`
	RoomNumber  *string      `json:"room_number" validate:"omitempty,room"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// wardenNeedsBlock enforces that wardens are always scoped to a block.
func wardenNeedsBlock(role model.Role, block model.Block) error {
	if role == model.RoleWarden && block == "" {
		return apperr.Invalid("hostel_block", "is required for wardens")
	}
	return nil
}

func (h *UsersHandler) load(r *http.Request) (*model.User, error) {
	user, err := store.GetUser(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		return nil, storeErr(err)
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	f := store.UserFilter{
		Role:  model.Role(r.URL.Query().Get("role")),
		Block: model.Block(r.URL.Query().Get("hostel_block")),
	}
	if f.Role != "" && !f.Role.Valid() {
		writeError(w, r, apperr.Invalid("role", "is not an allowed value"))
		return
	}
	if f.Block != "" && !f.Block.Valid() {
		writeError(w, r, apperr.Invalid("hostel_block", "is not an allowed value"))
		return
	}
	inactive, err := queryBool(r, "include_inactive")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.IncludeInactive = inactive != nil && *inactive

	users, err := store.ListUsers(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := wardenNeedsBlock(req.Role, req.HostelBlock); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		HostelBlock:  req.HostelBlock,
		RoomNumber:   req.RoomNumber,
		Phone:        req.Phone,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	slog.Info("user created", "user", actor(r).ID, "new_user", user.ID, "role", user.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !user.Active() {
		writeError(w, r, apperr.InvalidState("user is deactivated"))
		return
	}

	role, block, room := user.Role, user.HostelBlock, user.RoomNumber
	if req.Role != nil {
		role = *req.Role
	}
	if req.HostelBlock != nil {
		block = *req.HostelBlock
	}
	if req.RoomNumber != nil {
		room = *req.RoomNumber
	}
	if err := wardenNeedsBlock(role, block); err != nil {
		writeError(w, r, err)
		return
	}
	if user.ID == actor(r).ID && role != user.Role {
		writeError(w, r, apperr.Forbidden("cannot change your own role"))
		return
	}

	if err := store.UpdateUser(r.Context(), h.DB, user.ID, role, block, room); err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	updated, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user updated", "user", actor(r).ID, "target_user", user.ID, "role", role, "block", block)
	jsonResponse(w, http.StatusOK, updated)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, hash); err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	slog.Info("user password reset", "user", actor(r).ID, "target_user", user.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}. Accounts are deactivated, not
// removed, so their complaints and loans keep their history.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") == actor(r).ID {
		writeError(w, r, apperr.Forbidden("cannot deactivate yourself"))
		return
	}

	user, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.DeactivateUser(r.Context(), h.DB, user.ID, time.Now()); err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	slog.Info("user deactivated", "user", actor(r).ID, "target_user", user.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}
