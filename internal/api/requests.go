package api

import (
	"net/http"

	"github.com/smarthostel/smarthostel/internal/hostel"
	"github.com/smarthostel/smarthostel/internal/model"
)

// RequestsHandler exposes resource requests ("does anyone have X").
type RequestsHandler struct {
	Svc *hostel.Service
}

// List handles GET /api/resource-requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mine, err := queryBool(r, "mine")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	list, total, err := h.Svc.ListResourceRequests(r.Context(), actor(r), hostel.RequestQuery{
		Status:   model.RequestStatus(q.Get("status")),
		Category: model.ResourceCategory(q.Get("category")),
		Search:   q.Get("search"),
		Mine:     mine != nil && *mine,
		Page:     page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newList(list, total, page))
}

// Create handles POST /api/resource-requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in hostel.RequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rr, err := h.Svc.CreateResourceRequest(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rr)
}

// Get handles GET /api/resource-requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rr, err := h.Svc.GetResourceRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rr)
}

// Cancel handles PUT /api/resource-requests/{id}/cancel.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	rr, err := h.Svc.CancelResourceRequest(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rr)
}

// Fulfill handles POST /api/resource-requests/{id}/fulfill. The response is the
// resource created for the requester.
func (h *RequestsHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	var in hostel.FulfillInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.FulfillResourceRequest(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}
