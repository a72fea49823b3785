package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/hostel"
	"github.com/smarthostel/smarthostel/internal/model"
)

// DefaultUploadMaxBytes caps photo uploads when no limit is configured.
const DefaultUploadMaxBytes = 5 << 20

// ResourcesHandler exposes the resource sharing lifecycle.
type ResourcesHandler struct {
	Svc            *hostel.Service
	UploadMaxBytes int64
}

// List handles GET /api/resources.
func (h *ResourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	list, total, err := h.Svc.ListResources(r.Context(), hostel.ResourceQuery{
		Category:     model.ResourceCategory(q.Get("category")),
		Condition:    model.Condition(q.Get("condition")),
		Availability: model.Availability(q.Get("availability")),
		Block:        model.Block(q.Get("hostel_block")),
		Room:         q.Get("room_number"),
		Search:       q.Get("search"),
		Sort:         q.Get("sort"),
		Page:         page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newList(list, total, page))
}

// Create handles POST /api/resources.
func (h *ResourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in hostel.ResourceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.CreateResource(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// Get handles GET /api/resources/{id}.
func (h *ResourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.GetResource(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Update handles PUT /api/resources/{id}.
func (h *ResourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in hostel.ResourceUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.UpdateResource(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Delete handles DELETE /api/resources/{id}.
func (h *ResourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteResource(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "resource deleted"})
}

// RequestBorrow handles POST /api/resources/{id}/requests.
func (h *ResourcesHandler) RequestBorrow(w http.ResponseWriter, r *http.Request) {
	var in hostel.BorrowInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.Svc.RequestBorrow(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, req)
}

// Approve handles POST /api/resources/{id}/requests/{requestId}/approve.
func (h *ResourcesHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var in hostel.ApproveInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.ApproveRequest(r.Context(), actor(r), r.PathValue("id"), r.PathValue("requestId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Reject handles POST /api/resources/{id}/requests/{requestId}/reject.
func (h *ResourcesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.RejectRequest(r.Context(), actor(r), r.PathValue("id"), r.PathValue("requestId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// MarkAvailable handles POST /api/resources/{id}/mark-available. The item is
// back with its owner, who may rate the loan.
func (h *ResourcesHandler) MarkAvailable(w http.ResponseWriter, r *http.Request) {
	var in hostel.ReturnInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.MarkAvailable(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// RequestReturn handles POST /api/resources/{id}/return-request.
func (h *ResourcesHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RequestReturn(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "return requested"})
}

// Block handles POST /api/resources/{id}/block.
func (h *ResourcesHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// Unblock handles POST /api/resources/{id}/unblock.
func (h *ResourcesHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *ResourcesHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	res, err := h.Svc.SetBlocked(r.Context(), actor(r), r.PathValue("id"), blocked)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// AddWishlist handles POST /api/resources/{id}/wishlist.
func (h *ResourcesHandler) AddWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.AddToWishlist(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "added to wishlist"})
}

// RemoveWishlist handles DELETE /api/resources/{id}/wishlist.
func (h *ResourcesHandler) RemoveWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RemoveFromWishlist(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "removed from wishlist"})
}

// Mine handles GET /api/resources/my.
func (h *ResourcesHandler) Mine(w http.ResponseWriter, r *http.Request) {
	my, err := h.Svc.MyResources(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, my)
}

// Stats handles GET /api/resources/stats.
func (h *ResourcesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	block := model.Block(r.URL.Query().Get("hostel_block"))
	if block != "" && !block.Valid() {
		writeError(w, r, apperr.Invalid("hostel_block", "is not an allowed value"))
		return
	}
	st, err := h.Svc.ResourceStats(r.Context(), actor(r), block)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, st)
}

// UploadPhoto handles POST /api/resources/{id}/photo.
func (h *ResourcesHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	limit := h.UploadMaxBytes
	if limit <= 0 {
		limit = DefaultUploadMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, apperr.Invalid("image", "file too large"))
			return
		}
		writeError(w, r, apperr.Invalid("image", "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.Invalid("image", "image file required"))
		return
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	if mime != "image/jpeg" && mime != "image/png" && mime != "image/webp" {
		writeError(w, r, apperr.Invalid("image", "image must be JPEG, PNG, or WebP"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperr.Invalid("image", "failed to read image"))
		return
	}

	url, err := h.Svc.UploadResourcePhoto(r.Context(), actor(r), r.PathValue("id"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"url": url})
}

// Photo handles GET /uploads/{name}.
func (h *ResourcesHandler) Photo(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("name"), ".jpg")
	data, mime, err := h.Svc.ResourcePhoto(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Warn("error writing photo", "image", id, "error", err)
	}
}
