package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/store"
	"github.com/smarthostel/smarthostel/internal/validate"
)

// NotificationsHandler serves a user's inbox and the staff send endpoints.
type NotificationsHandler struct {
	DB     *sql.DB
	Notify *notify.Dispatcher
	Now    func() time.Time
}

func (h *NotificationsHandler) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now().UTC()
}

type sendRequest struct {
	Title      string                     `json:"title" validate:"required,min=3,max=100"`
	Message    string                     `json:"message" validate:"required,max=500"`
	Type       model.NotificationType     `json:"type" validate:"omitempty,enum"`
	Category   model.NotificationCategory `json:"category" validate:"omitempty,enum"`
	Priority   model.Priority             `json:"priority" validate:"omitempty,oneof=low medium high"`
	ActionURL  string                     `json:"action_url" validate:"max=200"`
	ActionText string                     `json:"action_text" validate:"max=50"`
	ExpiresAt  *time.Time                 `json:"expires_at"`

	// Recipient is used by Create, Recipients and HostelBlock by Broadcast.
	Recipient   string      `json:"recipient"`
	Recipients  []string    `json:"recipients" validate:"omitempty,max=500"`
	HostelBlock model.Block `json:"hostel_block" validate:"omitempty,enum"`
}

var errNotDelivered = errors.New("notification was not stored")

func (req sendRequest) notice(sender string, recipients []string) notify.Notice {
	typ := req.Type
	if typ == "" {
		typ = model.NotifySystem
	}
	return notify.Notice{
		Recipients: recipients,
		Sender:     sender,
		Title:      req.Title,
		Message:    req.Message,
		Type:       typ,
		Category:   req.Category,
		Priority:   req.Priority,
		ActionURL:  req.ActionURL,
		ActionText: req.ActionText,
		ExpiresAt:  req.ExpiresAt,
	}
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	isRead, err := queryBool(r, "is_read")
	if err != nil {
		writeError(w, r, err)
		return
	}
	typ := model.NotificationType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		writeError(w, r, apperr.Invalid("type", "is not an allowed value"))
		return
	}

	now := h.now()
	if n, err := store.DeleteExpiredNotifications(r.Context(), h.DB, now); err != nil {
		slog.Warn("error pruning expired notifications", "error", err)
	} else if n > 0 {
		slog.Info("expired notifications pruned", "count", n)
	}

	list, total, err := store.ListNotifications(r.Context(), h.DB, actor(r).ID, store.NotificationFilter{
		Type:   typ,
		IsRead: isRead,
		Page:   store.Page{Limit: page.Limit, Offset: page.Offset},
	}, now)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	jsonResponse(w, http.StatusOK, newList(list, total, page))
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := store.CountUnread(r.Context(), h.DB, actor(r).ID, h.now())
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"unread_count": n})
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, true)
}

// MarkUnread handles PUT /api/notifications/{id}/unread.
func (h *NotificationsHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, false)
}

func (h *NotificationsHandler) setRead(w http.ResponseWriter, r *http.Request, read bool) {
	me := actor(r).ID
	id := r.PathValue("id")
	ok, err := store.SetNotificationRead(r.Context(), h.DB, id, me, read, h.now())
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	if !ok {
		writeError(w, r, apperr.NotFound("notification"))
		return
	}
	n, err := store.GetNotification(r.Context(), h.DB, id, me)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	if n == nil {
		writeError(w, r, apperr.NotFound("notification"))
		return
	}
	jsonResponse(w, http.StatusOK, n)
}

// MarkAllRead handles PUT /api/notifications/mark-all-read.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := store.MarkAllRead(r.Context(), h.DB, actor(r).ID, h.now())
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := store.DeleteNotification(r.Context(), h.DB, r.PathValue("id"), actor(r).ID)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	if !ok {
		writeError(w, r, apperr.NotFound("notification"))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

// DeleteRead handles DELETE /api/notifications/read.
func (h *NotificationsHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	n, err := store.DeleteReadNotifications(r.Context(), h.DB, actor(r).ID)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Create handles POST /api/notifications (staff only).
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Recipient == "" {
		writeError(w, r, apperr.Invalid("recipient", "is required"))
		return
	}

	recipient, err := store.GetUser(r.Context(), h.DB, req.Recipient)
	if err != nil {
		writeError(w, r, storeErr(err))
		return
	}
	if recipient == nil || !recipient.Active() {
		writeError(w, r, apperr.NotFound("recipient"))
		return
	}

	a := actor(r)
	sent := h.Notify.Dispatch(r.Context(), req.notice(a.ID, []string{recipient.ID}))
	if len(sent) == 0 {
		writeError(w, r, apperr.Unavailable(errNotDelivered))
		return
	}
	slog.Info("notification sent", "user", a.ID, "recipient", recipient.ID)
	jsonResponse(w, http.StatusCreated, sent[0])
}

// Broadcast handles POST /api/notifications/broadcast (staff only). It
// targets an explicit recipient list or every active user of a block.
// Wardens may only broadcast to their own block.
func (h *NotificationsHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	a := actor(r)
	recipients := req.Recipients
	if len(recipients) == 0 {
		block := req.HostelBlock
		if a.Role == model.RoleWarden {
			if block != "" && block != a.Block {
				writeError(w, r, apperr.Forbidden("wardens can only broadcast to their own hostel block"))
				return
			}
			block = a.Block
		}
		if block == "" {
			writeError(w, r, apperr.Invalid("recipients", "recipients or hostel_block is required"))
			return
		}
		ids, err := store.ListActiveUserIDs(r.Context(), h.DB, block)
		if err != nil {
			writeError(w, r, storeErr(err))
			return
		}
		recipients = ids
	}

	sent := h.Notify.Dispatch(r.Context(), req.notice(a.ID, recipients))
	slog.Info("notification broadcast", "user", a.ID, "targeted", len(recipients), "delivered", len(sent))
	jsonResponse(w, http.StatusCreated, map[string]int{"sent": len(sent)})
}
