package api

import (
	"net/http"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/hostel"
	"github.com/smarthostel/smarthostel/internal/model"
)

// ComplaintsHandler exposes the complaint lifecycle.
type ComplaintsHandler struct {
	Svc *hostel.Service
}

// List handles GET /api/complaints.
func (h *ComplaintsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mine, err := queryBool(r, "mine")
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := hostel.ComplaintQuery{
		Status:   model.ComplaintStatus(q.Get("status")),
		Category: model.ComplaintCategory(q.Get("category")),
		Block:    model.Block(q.Get("hostel_block")),
		Search:   q.Get("search"),
		Mine:     mine != nil && *mine,
	}

	list, err := h.Svc.ListComplaints(r.Context(), actor(r), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Complaint{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// Create handles POST /api/complaints.
func (h *ComplaintsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in hostel.ComplaintInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Svc.CreateComplaint(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Get handles GET /api/complaints/{id}.
func (h *ComplaintsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.GetComplaint(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Update handles PUT /api/complaints/{id}.
func (h *ComplaintsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in hostel.ComplaintUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Svc.UpdateComplaint(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// SetStatus handles PUT /api/complaints/{id}/status.
func (h *ComplaintsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var in hostel.StatusInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Svc.SetComplaintStatus(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Upvote handles POST /api/complaints/{id}/upvote.
func (h *ComplaintsHandler) Upvote(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.Upvote(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"upvote_count": n})
}

// RemoveUpvote handles DELETE /api/complaints/{id}/upvote.
func (h *ComplaintsHandler) RemoveUpvote(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.RemoveUpvote(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"upvote_count": n})
}

// Feedback handles POST /api/complaints/{id}/feedback.
func (h *ComplaintsHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var in hostel.FeedbackInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Svc.AddFeedback(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Confirm handles POST /api/complaints/{id}/confirm.
func (h *ComplaintsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var in hostel.ConfirmInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Svc.ConfirmResolution(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Stats handles GET /api/complaints/stats.
func (h *ComplaintsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	block := model.Block(r.URL.Query().Get("hostel_block"))
	if block != "" && !block.Valid() {
		writeError(w, r, apperr.Invalid("hostel_block", "is not an allowed value"))
		return
	}
	st, err := h.Svc.ComplaintStats(r.Context(), actor(r), hostel.StatsQuery{Block: block, Days: days})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, st)
}
