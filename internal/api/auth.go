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

// AuthHandler handles authentication and self-service profile endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
}

type registerRequest struct {
	Name        string      `json:"name" validate:"required,min=2,max=50"`
	Email       string      `json:"email" validate:"required,email,max=254"`
	Password    string      `json:"password" validate:"required"`
	HostelBlock model.Block `json:"hostel_block" validate:"omitempty,enum"`
	RoomNumber  string      `json:"room_number" validate:"omitempty,room"`
	Phone       string      `json:"phone" validate:"omitempty,phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type profileRequest struct {
	Name        *string      `json:"name" validate:"omitempty,min=2,max=50"`
	Phone       *string      `json:"phone" validate:"omitempty,phone"`
	HostelBlock *model.Block `json:"hostel_block" validate:"omitempty,enum"`
	RoomNumber  *string      `json:"room_number" validate:"omitempty,room"`
}

// Register handles POST /api/auth/register. New accounts are always students.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
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
		Role:         model.RoleStudent,
		HostelBlock:  req.HostelBlock,
		RoomNumber:   req.RoomNumber,
		Phone:        req.Phone,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user registered", "user", user.ID, "email", user.Email)
	jsonResponse(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, r, apperr.Invalid("email", "email and password required"))
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	if user == nil || !user.Active() {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	now := time.Now().UTC()
	if err := store.RecordLogin(r.Context(), h.DB, user.ID, now); err != nil {
		slog.Warn("recording login", "user", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	slog.Info("user logged in", "user", user.ID, "role", user.Role)
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expires := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires, time.Now()); err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	slog.Info("user logged out", "user", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, r, apperr.Invalid("new_password", "current and new password required"))
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	if err := auth.ValidatePassword("new_password", req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, hash); err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	slog.Info("user changed own password", "user", user.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Me handles GET /api/auth/profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, currentUser(r.Context()))
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	name, phone, block, room := user.Name, user.Phone, user.HostelBlock, user.RoomNumber
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		phone = *req.Phone
	}
	if req.HostelBlock != nil {
		block = *req.HostelBlock
	}
	if req.RoomNumber != nil {
		room = *req.RoomNumber
	}
	if user.Role == model.RoleWarden && block != user.HostelBlock {
		writeError(w, r, apperr.Forbidden("wardens cannot change their own hostel block"))
		return
	}

	if err := store.UpdateProfile(r.Context(), h.DB, user.ID, name, phone, block, room); err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	updated, err := store.GetUser(r.Context(), h.DB, user.ID)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}

	slog.Info("profile updated", "user", user.ID)
	jsonResponse(w, http.StatusOK, updated)
}
