package hostel

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/imaging"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/store"
	"github.com/smarthostel/smarthostel/internal/validate"
)

// MaxResourceImages caps the image list of a resource.
const MaxResourceImages = 5

// ResourceInput is a new resource listing. Block and room default to the
// owner's profile.
type ResourceInput struct {
	Name              string                 `json:"name" validate:"required,min=3,max=100"`
	Description       string                 `json:"description" validate:"required,min=10,max=500"`
	Category          model.ResourceCategory `json:"category" validate:"required,enum"`
	Condition         model.Condition        `json:"condition" validate:"required,enum"`
	HostelBlock       model.Block            `json:"hostel_block" validate:"omitempty,enum"`
	RoomNumber        string                 `json:"room_number" validate:"omitempty,room"`
	MaxBorrowDuration int                    `json:"max_borrow_duration" validate:"omitempty,loandays"`
	DepositRequired   bool                   `json:"deposit_required"`
	DepositAmount     float64                `json:"deposit_amount" validate:"min=0"`
	BorrowingRules    string                 `json:"borrowing_rules" validate:"max=500"`
	Tags              []string               `json:"tags" validate:"max=10,dive,max=30"`
	Images            []string               `json:"images" validate:"max=5,dive,imageurl"`
	IsPublic          *bool                  `json:"is_public"`
}

// ResourceUpdate changes owner-editable fields. Nil fields are kept.
// Availability may only toggle between available and maintenance.
type ResourceUpdate struct {
	Name              *string                 `json:"name" validate:"omitempty,min=3,max=100"`
	Description       *string                 `json:"description" validate:"omitempty,min=10,max=500"`
	Category          *model.ResourceCategory `json:"category" validate:"omitempty,enum"`
	Condition         *model.Condition        `json:"condition" validate:"omitempty,enum"`
	MaxBorrowDuration *int                    `json:"max_borrow_duration" validate:"omitempty,loandays"`
	DepositRequired   *bool                   `json:"deposit_required"`
	DepositAmount     *float64                `json:"deposit_amount" validate:"omitempty,min=0"`
	BorrowingRules    *string                 `json:"borrowing_rules" validate:"omitempty,max=500"`
	Tags              []string                `json:"tags" validate:"omitempty,max=10,dive,max=30"`
	IsPublic          *bool                   `json:"is_public"`
	Availability      *model.Availability     `json:"availability" validate:"omitempty,oneof=available maintenance"`
}

// BorrowInput is a borrow request.
type BorrowInput struct {
	Message string `json:"message" validate:"max=200"`
}

// ApproveInput optionally overrides the loan length in days.
type ApproveInput struct {
	Duration int `json:"duration" validate:"omitempty,loandays"`
}

// ReturnInput rates a finished loan.
type ReturnInput struct {
	Rating   *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=200"`
}

func (s *Service) loadResource(ctx context.Context, id string) (*model.Resource, error) {
	r, err := store.GetResource(ctx, s.DB, id)
	if err != nil {
		return nil, fail(err)
	}
	if r == nil {
		return nil, apperr.NotFound("resource")
	}
	return r, nil
}

// newResource builds a listing for owner, resolving block and room from the
// owner's profile when the input leaves them empty.
func newResource(owner *model.User, in ResourceInput, now time.Time) (*model.Resource, error) {
	block, room := in.HostelBlock, in.RoomNumber
	if block == "" {
		block = owner.HostelBlock
	}
	if room == "" {
		room = owner.RoomNumber
	}
	if !block.Valid() {
		return nil, apperr.Invalid("hostel_block", "is required when your profile has no hostel block")
	}
	if !model.ValidRoom(room) {
		return nil, apperr.Invalid("room_number", "is required when your profile has no room number")
	}

	days := in.MaxBorrowDuration
	if days == 0 {
		days = model.DefaultMaxBorrowDays
	}
	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}
	return &model.Resource{
		ID:                store.NewID(),
		Name:              strings.TrimSpace(in.Name),
		Description:       strings.TrimSpace(in.Description),
		Category:          in.Category,
		Condition:         in.Condition,
		Availability:      model.Available,
		HostelBlock:       block,
		RoomNumber:        room,
		MaxBorrowDuration: days,
		DepositRequired:   in.DepositRequired,
		DepositAmount:     in.DepositAmount,
		BorrowingRules:    in.BorrowingRules,
		Tags:              in.Tags,
		Images:            in.Images,
		IsPublic:          public,
		OwnerID:           owner.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *Service) loadUser(ctx context.Context, id string) (*model.User, error) {
	u, err := store.GetUser(ctx, s.DB, id)
	if err != nil {
		return nil, fail(err)
	}
	if u == nil || !u.Active() {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

// CreateResource lists a new resource and counts it towards the owner's
// lent total.
func (s *Service) CreateResource(ctx context.Context, a Actor, in ResourceInput) (*model.Resource, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	owner, err := s.loadUser(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	r, err := newResource(owner, in, s.now())
	if err != nil {
		return nil, err
	}

	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := store.CreateResource(ctx, tx, r); err != nil {
			return err
		}
		return store.AddLent(ctx, tx, owner.ID, 1)
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("resource listed", "resource", r.ID, "user", a.ID, "name", r.Name)
	return s.loadResource(ctx, r.ID)
}

// RequestBorrow records a pending borrow request and tells the owner.
func (s *Service) RequestBorrow(ctx context.Context, a Actor, resourceID string, in BorrowInput) (*model.BorrowRequest, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if r.OwnerID == a.ID {
		return nil, apperr.ErrOwnResource
	}
	if r.Availability != model.Available && r.Availability != model.Requested {
		return nil, apperr.InvalidState("resource is %s and cannot be requested", r.Availability)
	}

	now := s.now()
	req := &model.BorrowRequest{
		ResourceID:  r.ID,
		RequesterID: a.ID,
		Message:     strings.TrimSpace(in.Message),
		RequestedAt: now,
	}
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := store.CreateBorrowRequest(ctx, tx, req); err != nil {
			return err
		}
		ok, err := store.SetAvailability(ctx, tx, r.ID, []model.Availability{model.Available, model.Requested}, model.Requested, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("borrow requested", "resource", r.ID, "user", a.ID, "request", req.ID)

	msg := fmt.Sprintf("Someone asked to borrow %q.", r.Name)
	if req.Message != "" {
		msg += " Message: " + req.Message
	}
	s.Notify.Dispatch(ctx, notify.Notice{
		Recipients: []string{r.OwnerID},
		Sender:     a.ID,
		Title:      "New borrow request",
		Message:    msg,
		Type:       model.NotifyResource,
		Category:   model.NoticeBorrowRequest,
		Entity:     &model.RelatedEntity{Type: model.EntityResource, ID: r.ID},
		ActionURL:  "/resources/" + r.ID,
		ActionText: "Review request",
		Metadata:   map[string]string{"request_id": req.ID},
	})

	got, err := store.GetBorrowRequest(ctx, s.DB, r.ID, req.ID)
	if err != nil {
		return nil, fail(err)
	}
	return got, nil
}

func (s *Service) loadRequest(ctx context.Context, resourceID, requestID string) (*model.BorrowRequest, error) {
	q, err := store.GetBorrowRequest(ctx, s.DB, resourceID, requestID)
	if err != nil {
		return nil, fail(err)
	}
	if q == nil {
		return nil, apperr.NotFound("borrow request")
	}
	return q, nil
}

// ApproveRequest lends the resource to one requester. Every other pending
// request is rejected in the same transaction, and only one approval per
// resource can succeed.
func (s *Service) ApproveRequest(ctx context.Context, a Actor, resourceID, requestID string, in ApproveInput) (*model.Resource, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != a.ID {
		return nil, apperr.Forbidden("only the owner can approve borrow requests")
	}
	if r.Availability == model.Borrowed {
		return nil, apperr.InvalidState("resource is already borrowed")
	}
	req, err := s.loadRequest(ctx, resourceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, apperr.InvalidState("borrow request is %s", req.Status)
	}

	days := in.Duration
	if days == 0 {
		days = r.MaxBorrowDuration
	}
	if days == 0 {
		days = model.DefaultMaxBorrowDays
	}
	now := s.now()
	due := now.AddDate(0, 0, days)

	var rejected []string
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		ok, err := store.DecideBorrowRequest(ctx, tx, r.ID, req.ID, model.RequestApproved, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("borrow request is no longer pending")
		}
		ok, err = store.MarkBorrowed(ctx, tx, r.ID, req.RequesterID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConcurrentUpdate
		}
		if err := store.CreateBorrowRecord(ctx, tx, &model.BorrowRecord{
			ResourceID: r.ID,
			BorrowerID: req.RequesterID,
			BorrowedAt: now,
			DueDate:    due,
		}); err != nil {
			return err
		}
		if rejected, err = store.RejectPendingRequests(ctx, tx, r.ID, req.ID, now); err != nil {
			return err
		}
		return store.AddBorrowed(ctx, tx, req.RequesterID, 1)
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("borrow request approved", "resource", r.ID, "user", a.ID, "borrower", req.RequesterID, "due", due)

	entity := &model.RelatedEntity{Type: model.EntityResource, ID: r.ID}
	notices := []notify.Notice{{
		Recipients: []string{req.RequesterID},
		Sender:     a.ID,
		Title:      "Borrow request approved",
		Message:    fmt.Sprintf("You can pick up %q from block %s, room %s. Return it by %s.", r.Name, r.HostelBlock, r.RoomNumber, due.Format("2 Jan 2006")),
		Type:       model.NotifySuccess,
		Category:   model.NoticeBorrowApproval,
		Entity:     entity,
		ActionURL:  "/resources/" + r.ID,
		Metadata: map[string]string{
			"hostel_block": string(r.HostelBlock),
			"room_number":  r.RoomNumber,
			"due_date":     due.Format(time.RFC3339),
		},
	}}
	if len(rejected) > 0 {
		notices = append(notices, rejectionNotice(a.ID, r, rejected, "it was lent to someone else"))
	}
	s.Notify.Dispatch(ctx, notices...)

	return s.loadResource(ctx, r.ID)
}

func rejectionNotice(sender string, r *model.Resource, recipients []string, reason string) notify.Notice {
	return notify.Notice{
		Recipients: recipients,
		Sender:     sender,
		Title:      "Borrow request declined",
		Message:    fmt.Sprintf("Your request for %q was declined: %s.", r.Name, reason),
		Type:       model.NotifyResource,
		Category:   model.NoticeBorrowRejection,
		Priority:   model.PriorityLow,
		Entity:     &model.RelatedEntity{Type: model.EntityResource, ID: r.ID},
		ActionURL:  "/resources/" + r.ID,
	}
}

// RejectRequest declines one pending request. The resource becomes available
// again when no request remains pending.
func (s *Service) RejectRequest(ctx context.Context, a Actor, resourceID, requestID string) (*model.Resource, error) {
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != a.ID {
		return nil, apperr.Forbidden("only the owner can reject borrow requests")
	}
	req, err := s.loadRequest(ctx, resourceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, apperr.InvalidState("borrow request is %s", req.Status)
	}

	now := s.now()
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		ok, err := store.DecideBorrowRequest(ctx, tx, r.ID, req.ID, model.RequestRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("borrow request is no longer pending")
		}
		n, err := store.CountPendingRequests(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			_, err = store.SetAvailability(ctx, tx, r.ID, []model.Availability{model.Requested}, model.Available, now)
		}
		return err
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("borrow request rejected", "resource", r.ID, "user", a.ID, "request", req.ID)

	s.Notify.Dispatch(ctx, rejectionNotice(a.ID, r, []string{req.RequesterID}, "the owner declined it"))
	return s.loadResource(ctx, r.ID)
}

// MarkAvailable ends the current loan: the active history entry is closed,
// the average rating recomputed and the resource made available. The owner,
// the borrower or an admin may call it.
func (s *Service) MarkAvailable(ctx context.Context, a Actor, resourceID string, in ReturnInput) (*model.Resource, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if a.ID != r.OwnerID && a.ID != r.CurrentBorrower && !a.IsAdmin() {
		return nil, apperr.Forbidden("only the owner, the borrower or an admin can mark a resource returned")
	}
	if r.Availability != model.Borrowed {
		return nil, apperr.InvalidState("resource is %s, not borrowed", r.Availability)
	}

	now := s.now()
	var borrower string
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		if borrower, err = store.CloseActiveBorrow(ctx, tx, r.ID, now, in.Rating, strings.TrimSpace(in.Feedback)); err != nil {
			return err
		}
		ok, err := store.MarkReturned(ctx, tx, r.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("resource returned", "resource", r.ID, "user", a.ID, "borrower", borrower)

	entity := &model.RelatedEntity{Type: model.EntityResource, ID: r.ID}
	var notices []notify.Notice
	if counterpart := without([]string{r.OwnerID, borrower}, a.ID); len(counterpart) > 0 {
		notices = append(notices, notify.Notice{
			Recipients: counterpart,
			Sender:     a.ID,
			Title:      "Resource returned",
			Message:    fmt.Sprintf("%q has been marked returned.", r.Name),
			Type:       model.NotifyResource,
			Category:   model.NoticeReturned,
			Entity:     entity,
			ActionURL:  "/resources/" + r.ID,
		})
	}
	if fans, err := store.ListWishlistUsers(ctx, s.DB, r.ID); err != nil {
		slog.Warn("listing wishlist users", "resource", r.ID, "error", err)
	} else if fans = without(fans, r.OwnerID, borrower); len(fans) > 0 {
		notices = append(notices, notify.Notice{
			Recipients: fans,
			Title:      "Wishlist item available",
			Message:    fmt.Sprintf("%q is available to borrow again.", r.Name),
			Type:       model.NotifyResource,
			Category:   model.NoticeOther,
			Priority:   model.PriorityLow,
			Entity:     entity,
			ActionURL:  "/resources/" + r.ID,
			ActionText: "Request to borrow",
		})
	}
	s.Notify.Dispatch(ctx, notices...)

	return s.loadResource(ctx, r.ID)
}

// RequestReturn lets the borrower tell the owner the item is ready to be
// handed back. It changes no state.
func (s *Service) RequestReturn(ctx context.Context, a Actor, resourceID string) error {
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if r.Availability != model.Borrowed || r.CurrentBorrower != a.ID {
		return apperr.Forbidden("only the current borrower can request a return")
	}
	slog.Info("return requested", "resource", r.ID, "user", a.ID)

	s.Notify.Dispatch(ctx, notify.Notice{
		Recipients: []string{r.OwnerID},
		Sender:     a.ID,
		Title:      "Return requested",
		Message:    fmt.Sprintf("The borrower wants to return %q. Mark it available once you have it back.", r.Name),
		Type:       model.NotifyReminder,
		Category:   model.NoticeReturned,
		Entity:     &model.RelatedEntity{Type: model.EntityResource, ID: r.ID},
		ActionURL:  "/resources/" + r.ID,
		ActionText: "Mark available",
	})
	return nil
}

// SetBlocked blocks or unblocks a resource. Only staff governing the
// resource's block may do it. A borrowed resource cannot be blocked;
// blocking rejects all pending requests.
func (s *Service) SetBlocked(ctx context.Context, a Actor, resourceID string, blocked bool) (*model.Resource, error) {
	if !a.IsStaff() {
		return nil, apperr.Forbidden("only wardens and admins can block resources")
	}
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !a.Governs(r.HostelBlock) {
		return nil, apperr.Forbidden("resource is outside your hostel block")
	}

	now := s.now()
	entity := &model.RelatedEntity{Type: model.EntityResource, ID: r.ID}

	if !blocked {
		ok, err := store.SetAvailability(ctx, s.DB, r.ID, []model.Availability{model.Unavailable}, model.Available, now)
		if err != nil {
			return nil, fail(err)
		}
		if !ok {
			return nil, apperr.InvalidState("resource is not blocked")
		}
		slog.Info("resource unblocked", "resource", r.ID, "user", a.ID)
		s.Notify.Dispatch(ctx, notify.Notice{
			Recipients: without([]string{r.OwnerID}, a.ID),
			Sender:     a.ID,
			Title:      "Resource unblocked",
			Message:    fmt.Sprintf("%q can be borrowed again.", r.Name),
			Type:       model.NotifyResource,
			Category:   model.NoticeUpdate,
			Entity:     entity,
		})
		return s.loadResource(ctx, r.ID)
	}

	switch r.Availability {
	case model.Borrowed:
		return nil, apperr.InvalidState("a borrowed resource cannot be blocked")
	case model.Unavailable:
		return nil, apperr.InvalidState("resource is already blocked")
	}

	var rejected []string
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		if rejected, err = store.RejectPendingRequests(ctx, tx, r.ID, "", now); err != nil {
			return err
		}
		ok, err := store.SetAvailability(ctx, tx, r.ID,
			[]model.Availability{model.Available, model.Requested, model.Maintenance}, model.Unavailable, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("resource blocked", "resource", r.ID, "user", a.ID, "rejected", len(rejected))

	notices := []notify.Notice{{
		Recipients: without([]string{r.OwnerID}, a.ID),
		Sender:     a.ID,
		Title:      "Resource blocked",
		Message:    fmt.Sprintf("%q was blocked by hostel staff.", r.Name),
		Type:       model.NotifyWarning,
		Category:   model.NoticeMaintenance,
		Priority:   model.PriorityHigh,
		Entity:     entity,
	}}
	if len(rejected) > 0 {
		notices = append(notices, rejectionNotice(a.ID, r, rejected, "it was blocked by hostel staff"))
	}
	s.Notify.Dispatch(ctx, notices...)

	return s.loadResource(ctx, r.ID)
}

// DeleteResource removes a resource that is not on loan. Pending requesters
// are told it was withdrawn.
func (s *Service) DeleteResource(ctx context.Context, a Actor, resourceID string) error {
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if r.OwnerID != a.ID && !a.IsAdmin() {
		return apperr.Forbidden("only the owner or an admin can delete a resource")
	}
	if r.Availability == model.Borrowed {
		return apperr.InvalidState("a borrowed resource cannot be deleted")
	}

	var pending []string
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		if pending, err = store.RejectPendingRequests(ctx, tx, r.ID, "", s.now()); err != nil {
			return err
		}
		ok, err := store.DeleteResource(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("a borrowed resource cannot be deleted")
		}
		return store.AddLent(ctx, tx, r.OwnerID, -1)
	})
	if err != nil {
		return fail(err)
	}
	slog.Info("resource deleted", "resource", r.ID, "user", a.ID)

	if len(pending) > 0 {
		n := rejectionNotice(a.ID, r, pending, "it was withdrawn")
		n.Entity = nil
		n.ActionURL = ""
		s.Notify.Dispatch(ctx, n)
	}
	return nil
}

// AddToWishlist adds a resource to the actor's wishlist. Adding twice is a no-op.
func (s *Service) AddToWishlist(ctx context.Context, a Actor, resourceID string) error {
	if _, err := s.loadResource(ctx, resourceID); err != nil {
		return err
	}
	return fail(store.AddToWishlist(ctx, s.DB, resourceID, a.ID, s.now()))
}

// RemoveFromWishlist removes a resource from the actor's wishlist.
func (s *Service) RemoveFromWishlist(ctx context.Context, a Actor, resourceID string) error {
	if _, err := s.loadResource(ctx, resourceID); err != nil {
		return err
	}
	return fail(store.RemoveFromWishlist(ctx, s.DB, resourceID, a.ID))
}

// ResourceQuery filters ListResources.
type ResourceQuery struct {
	Category     model.ResourceCategory
	Condition    model.Condition
	Availability model.Availability
	Block        model.Block
	Room         string
	Search       string
	Sort         string
	Page         Page
}

// ListResources returns public resources and the total before paging.
func (s *Service) ListResources(ctx context.Context, q ResourceQuery) ([]model.Resource, int, error) {
	p := q.Page.Normalize()
	list, total, err := store.ListResources(ctx, s.DB, store.ResourceFilter{
		Category:     q.Category,
		Condition:    q.Condition,
		Availability: q.Availability,
		Block:        q.Block,
		Room:         q.Room,
		Search:       q.Search,
		Sort:         q.Sort,
		PublicOnly:   true,
		Page:         store.Page{Limit: p.Limit, Offset: p.Offset},
	})
	if err != nil {
		return nil, 0, fail(err)
	}
	return list, total, nil
}

// GetResource returns a resource with its requests and history. Views by
// anyone but the owner are counted. Non-owners only see their own requests.
func (s *Service) GetResource(ctx context.Context, a Actor, resourceID string) (*model.Resource, error) {
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	privileged := r.OwnerID == a.ID || a.IsStaff()
	if !r.IsPublic && !privileged && r.CurrentBorrower != a.ID {
		return nil, apperr.NotFound("resource")
	}

	if r.OwnerID != a.ID {
		if err := store.IncrementViewCount(ctx, s.DB, r.ID); err != nil {
			slog.Warn("counting resource view", "resource", r.ID, "error", err)
		} else {
			r.ViewCount++
		}
	}

	reqs, err := store.ListBorrowRequests(ctx, s.DB, r.ID)
	if err != nil {
		return nil, fail(err)
	}
	for _, q := range reqs {
		if privileged || q.RequesterID == a.ID {
			r.BorrowRequests = append(r.BorrowRequests, q)
		}
	}

	if privileged || r.CurrentBorrower == a.ID {
		if r.BorrowHistory, err = store.ListBorrowHistory(ctx, s.DB, r.ID); err != nil {
			return nil, fail(err)
		}
		now := s.now()
		for i := range r.BorrowHistory {
			if r.BorrowHistory[i].Overdue(now) {
				r.BorrowHistory[i].Status = model.BorrowOverdue
			}
		}
	}

	if r.Wishlisted, err = store.IsWishlisted(ctx, s.DB, r.ID, a.ID); err != nil {
		return nil, fail(err)
	}
	return r, nil
}

// UpdateResource edits a resource's descriptive fields. Only the owner may.
func (s *Service) UpdateResource(ctx context.Context, a Actor, resourceID string, in ResourceUpdate) (*model.Resource, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != a.ID {
		return nil, apperr.Forbidden("only the owner can edit a resource")
	}

	if in.Name != nil {
		r.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		r.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		r.Category = *in.Category
	}
	if in.Condition != nil {
		r.Condition = *in.Condition
	}
	if in.MaxBorrowDuration != nil {
		r.MaxBorrowDuration = *in.MaxBorrowDuration
	}
	if in.DepositRequired != nil {
		r.DepositRequired = *in.DepositRequired
	}
	if in.DepositAmount != nil {
		r.DepositAmount = *in.DepositAmount
	}
	if in.BorrowingRules != nil {
		r.BorrowingRules = *in.BorrowingRules
	}
	if in.Tags != nil {
		r.Tags = in.Tags
	}
	if in.IsPublic != nil {
		r.IsPublic = *in.IsPublic
	}

	now := s.now()
	r.UpdatedAt = now
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := store.UpdateResourceDetails(ctx, tx, r); err != nil {
			return err
		}
		if in.Availability == nil || *in.Availability == r.Availability {
			return nil
		}
		from := model.Available
		if *in.Availability == model.Available {
			from = model.Maintenance
		}
		ok, err := store.SetAvailability(ctx, tx, r.ID, []model.Availability{from}, *in.Availability, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("availability can only be changed while no request or loan is open")
		}
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("resource updated", "resource", r.ID, "user", a.ID)
	return s.loadResource(ctx, r.ID)
}

// MyResources groups the resources related to one user.
type MyResources struct {
	Owned    []model.Resource `json:"owned"`
	Borrowed []model.Resource `json:"borrowed"`
	Wishlist []model.Resource `json:"wishlist"`
}

// MyResources returns what the actor owns, currently borrows and wishlisted.
func (s *Service) MyResources(ctx context.Context, a Actor) (*MyResources, error) {
	var out MyResources
	for _, q := range []struct {
		f    store.ResourceFilter
		dest *[]model.Resource
	}{
		{store.ResourceFilter{OwnerID: a.ID}, &out.Owned},
		{store.ResourceFilter{BorrowerID: a.ID}, &out.Borrowed},
		{store.ResourceFilter{WishlistedBy: a.ID}, &out.Wishlist},
	} {
		list, _, err := store.ListResources(ctx, s.DB, q.f)
		if err != nil {
			return nil, fail(err)
		}
		if list == nil {
			list = []model.Resource{}
		}
		*q.dest = list
	}
	return &out, nil
}

// ResourceStats aggregates the catalogue. Wardens only see their block.
func (s *Service) ResourceStats(ctx context.Context, a Actor, block model.Block) (*store.ResourceStats, error) {
	if !a.IsStaff() {
		return nil, apperr.Forbidden("only wardens and admins can view statistics")
	}
	if a.Role == model.RoleWarden {
		block = a.Block
	}
	st, err := store.GetResourceStats(ctx, s.DB, block)
	return st, fail(err)
}

// UploadResourcePhoto stores a processed photo and appends its URL to the
// resource's image list.
func (s *Service) UploadResourcePhoto(ctx context.Context, a Actor, resourceID string, data []byte) (string, error) {
	r, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return "", err
	}
	if r.OwnerID != a.ID {
		return "", apperr.Forbidden("only the owner can add photos")
	}
	if len(r.Images) >= MaxResourceImages {
		return "", apperr.Invalid("image", fmt.Sprintf("a resource can have at most %d images", MaxResourceImages))
	}

	photo, err := imaging.Process(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Invalid("image", err.Error())
	}

	now := s.now()
	var url string
	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		id, err := store.SaveResourceImage(ctx, tx, r.ID, photo.Data, photo.MIME, now)
		if err != nil {
			return err
		}
		url = "/uploads/" + id + ".jpg"
		return store.AppendResourceImage(ctx, tx, r.ID, url, now)
	})
	if err != nil {
		return "", fail(err)
	}
	slog.Info("resource photo uploaded", "resource", r.ID, "user", a.ID, "bytes", len(photo.Data))
	return url, nil
}

// ResourcePhoto returns a stored photo by the id in its upload URL.
func (s *Service) ResourcePhoto(ctx context.Context, id string) ([]byte, string, error) {
	data, mime, err := store.GetResourceImage(ctx, s.DB, id)
	if err != nil {
		return nil, "", fail(err)
	}
	if data == nil {
		return nil, "", apperr.NotFound("image")
	}
	return data, mime, nil
}
