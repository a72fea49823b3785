package api

import (
	"database/sql"
	"net/http"

	"github.com/smarthostel/smarthostel/internal/hostel"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/ratelimit"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Hostel    *hostel.Service
	Notify    *notify.Dispatcher
	// Limiter caps complaint filing. Nil disables the limit.
	Limiter        *ratelimit.Limiter
	UploadMaxBytes int64
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{DB: d.DB}
	complaintsHandler := &ComplaintsHandler{Svc: d.Hostel}
	resourcesHandler := &ResourcesHandler{Svc: d.Hostel, UploadMaxBytes: d.UploadMaxBytes}
	requestsHandler := &RequestsHandler{Svc: d.Hostel}
	notificationsHandler := &NotificationsHandler{DB: d.DB, Notify: d.Notify, Now: d.Hostel.Now}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleWarden)
	limitComplaints := RateLimit(d.Limiter)

	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public: register, login, photos.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /uploads/{name}", resourcesHandler.Photo)

	// Authenticated account routes.
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/auth/change-password", authed(authHandler.ChangePassword))
	mux.Handle("GET /api/auth/profile", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/profile", authed(authHandler.UpdateProfile))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Complaints. Role and ownership rules are enforced by the lifecycle code.
	mux.Handle("GET /api/complaints", authed(complaintsHandler.List))
	mux.Handle("POST /api/complaints", authMW(limitComplaints(http.HandlerFunc(complaintsHandler.Create))))
	mux.Handle("GET /api/complaints/stats", authMW(requireStaff(http.HandlerFunc(complaintsHandler.Stats))))
	mux.Handle("GET /api/complaints/{id}", authed(complaintsHandler.Get))
	mux.Handle("PUT /api/complaints/{id}", authed(complaintsHandler.Update))
	mux.Handle("PUT /api/complaints/{id}/status", authMW(requireStaff(http.HandlerFunc(complaintsHandler.SetStatus))))
	mux.Handle("POST /api/complaints/{id}/upvote", authed(complaintsHandler.Upvote))
	mux.Handle("DELETE /api/complaints/{id}/upvote", authed(complaintsHandler.RemoveUpvote))
	mux.Handle("POST /api/complaints/{id}/feedback", authed(complaintsHandler.Feedback))
	mux.Handle("POST /api/complaints/{id}/confirm", authed(complaintsHandler.Confirm))

	// Resources.
	mux.Handle("GET /api/resources", authed(resourcesHandler.List))
	mux.Handle("POST /api/resources", authed(resourcesHandler.Create))
	mux.Handle("GET /api/resources/my", authed(resourcesHandler.Mine))
	mux.Handle("GET /api/resources/stats", authMW(requireStaff(http.HandlerFunc(resourcesHandler.Stats))))
	mux.Handle("GET /api/resources/{id}", authed(resourcesHandler.Get))
	mux.Handle("PUT /api/resources/{id}", authed(resourcesHandler.Update))
	mux.Handle("DELETE /api/resources/{id}", authed(resourcesHandler.Delete))
	mux.Handle("POST /api/resources/{id}/requests", authed(resourcesHandler.RequestBorrow))
	mux.Handle("POST /api/resources/{id}/requests/{requestId}/approve", authed(resourcesHandler.Approve))
	mux.Handle("POST /api/resources/{id}/requests/{requestId}/reject", authed(resourcesHandler.Reject))
	mux.Handle("POST /api/resources/{id}/mark-available", authed(resourcesHandler.MarkAvailable))
	mux.Handle("POST /api/resources/{id}/return-request", authed(resourcesHandler.RequestReturn))
	mux.Handle("POST /api/resources/{id}/block", authMW(requireStaff(http.HandlerFunc(resourcesHandler.Block))))
	mux.Handle("POST /api/resources/{id}/unblock", authMW(requireStaff(http.HandlerFunc(resourcesHandler.Unblock))))
	mux.Handle("POST /api/resources/{id}/wishlist", authed(resourcesHandler.AddWishlist))
	mux.Handle("DELETE /api/resources/{id}/wishlist", authed(resourcesHandler.RemoveWishlist))
	mux.Handle("POST /api/resources/{id}/photo", authed(resourcesHandler.UploadPhoto))

	// Resource requests.
	mux.Handle("GET /api/resource-requests", authed(requestsHandler.List))
	mux.Handle("POST /api/resource-requests", authed(requestsHandler.Create))
	mux.Handle("GET /api/resource-requests/{id}", authed(requestsHandler.Get))
	mux.Handle("PUT /api/resource-requests/{id}/cancel", authed(requestsHandler.Cancel))
	mux.Handle("POST /api/resource-requests/{id}/fulfill", authed(requestsHandler.Fulfill))

	// Notifications: own inbox for everyone, sending for staff.
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("GET /api/notifications/unread-count", authed(notificationsHandler.UnreadCount))
	mux.Handle("PUT /api/notifications/mark-all-read", authed(notificationsHandler.MarkAllRead))
	mux.Handle("DELETE /api/notifications/read", authed(notificationsHandler.DeleteRead))
	mux.Handle("PUT /api/notifications/{id}/read", authed(notificationsHandler.MarkRead))
	mux.Handle("PUT /api/notifications/{id}/unread", authed(notificationsHandler.MarkUnread))
	mux.Handle("DELETE /api/notifications/{id}", authed(notificationsHandler.Delete))
	mux.Handle("POST /api/notifications", authMW(requireStaff(http.HandlerFunc(notificationsHandler.Create))))
	mux.Handle("POST /api/notifications/broadcast", authMW(requireStaff(http.HandlerFunc(notificationsHandler.Broadcast))))

	return mux
}
