package hostel

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/store"
	"github.com/smarthostel/smarthostel/internal/validate"
)

// RequestInput is a new "does anyone have X" post.
type RequestInput struct {
	Title       string                 `json:"title" validate:"required,min=5,max=100"`
	Description string                 `json:"description" validate:"required,min=10,max=500"`
	Category    model.ResourceCategory `json:"category" validate:"required,enum"`
}

// FulfillInput describes the resource created to fulfil a request. Name and
// description default to the request's own.
type FulfillInput struct {
	Condition   model.Condition `json:"condition" validate:"required,enum"`
	Title       string          `json:"title" validate:"omitempty,min=3,max=100"`
	Description string          `json:"description" validate:"omitempty,min=10,max=500"`
	ImageURL    string          `json:"image_url" validate:"omitempty,imageurl"`
}

func (s *Service) loadResourceRequest(ctx context.Context, id string) (*model.ResourceRequest, error) {
	rr, err := store.GetResourceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, fail(err)
	}
	if rr == nil {
		return nil, apperr.NotFound("resource request")
	}
	return rr, nil
}

// CreateResourceRequest posts an open request.
func (s *Service) CreateResourceRequest(ctx context.Context, a Actor, in RequestInput) (*model.ResourceRequest, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.now()
	rr := &model.ResourceRequest{
		ID:          store.NewID(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		RequestedBy: a.ID,
		Status:      model.RequestOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateResourceRequest(ctx, s.DB, rr); err != nil {
		return nil, fail(err)
	}
	slog.Info("resource requested", "request", rr.ID, "user", a.ID, "category", rr.Category)
	return s.loadResourceRequest(ctx, rr.ID)
}

// CancelResourceRequest withdraws an open request. Only the requester may.
func (s *Service) CancelResourceRequest(ctx context.Context, a Actor, id string) (*model.ResourceRequest, error) {
	rr, err := s.loadResourceRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if rr.RequestedBy != a.ID {
		return nil, apperr.Forbidden("only the requester can cancel a request")
	}
	if rr.Status != model.RequestOpen {
		return nil, apperr.InvalidState("request is %s", rr.Status)
	}
	ok, err := store.CancelResourceRequest(ctx, s.DB, id, s.now())
	if err != nil {
		return nil, fail(err)
	}
	if !ok {
		return nil, apperr.InvalidState("request is no longer open")
	}
	slog.Info("resource request cancelled", "request", id, "user", a.ID)
	return s.loadResourceRequest(ctx, id)
}

// FulfillResourceRequest lists a new resource owned by the actor and marks the
// request fulfilled by it. Both happen in one transaction: either the request
// points at a stored resource or nothing changes.
func (s *Service) FulfillResourceRequest(ctx context.Context, a Actor, id string, in FulfillInput) (*model.Resource, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	rr, err := s.loadResourceRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if rr.Status != model.RequestOpen {
		return nil, apperr.InvalidState("request is %s", rr.Status)
	}
	if rr.RequestedBy == a.ID {
		return nil, apperr.Forbidden("cannot fulfil your own request")
	}
	fulfiller, err := s.loadUser(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if !fulfiller.HasLocation() {
		return nil, apperr.Invalid("hostel_block", "set your hostel block and room in your profile first")
	}

	ri := ResourceInput{
		Name:        rr.Title,
		Description: rr.Description,
		Category:    rr.Category,
		Condition:   in.Condition,
	}
	if in.Title != "" {
		ri.Name = in.Title
	}
	if in.Description != "" {
		ri.Description = in.Description
	}
	if in.ImageURL != "" {
		ri.Images = []string{in.ImageURL}
	}
	if err := validate.Struct(ri); err != nil {
		return nil, err
	}

	now := s.now()
	r, err := newResource(fulfiller, ri, now)
	if err != nil {
		return nil, err
	}

	err = store.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := store.CreateResource(ctx, tx, r); err != nil {
			return err
		}
		if err := store.AddLent(ctx, tx, fulfiller.ID, 1); err != nil {
			return err
		}
		ok, err := store.FulfillResourceRequest(ctx, tx, rr.ID, fulfiller.ID, r.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("request is no longer open")
		}
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}
	slog.Info("resource request fulfilled", "request", rr.ID, "user", a.ID, "resource", r.ID)

	s.Notify.Dispatch(ctx, notify.Notice{
		Recipients: []string{rr.RequestedBy},
		Sender:     a.ID,
		Title:      "Your request was fulfilled",
		Message:    fmt.Sprintf("%s listed %q in block %s, room %s.", fulfiller.Name, r.Name, r.HostelBlock, r.RoomNumber),
		Type:       model.NotifySuccess,
		Category:   model.NoticeNew,
		Entity:     &model.RelatedEntity{Type: model.EntityResource, ID: r.ID},
		ActionURL:  "/resources/" + r.ID,
		ActionText: "Request to borrow",
		Metadata: map[string]string{
			"request_id":   rr.ID,
			"hostel_block": string(r.HostelBlock),
			"room_number":  r.RoomNumber,
		},
	})

	return s.loadResource(ctx, r.ID)
}

// RequestQuery filters ListResourceRequests. An empty status means open.
type RequestQuery struct {
	Status   model.RequestStatus
	Category model.ResourceCategory
	Search   string
	Mine     bool
	Page     Page
}

// ListResourceRequests returns matching requests and the total before paging.
func (s *Service) ListResourceRequests(ctx context.Context, a Actor, q RequestQuery) ([]model.ResourceRequest, int, error) {
	status := q.Status
	if status == "" {
		status = model.RequestOpen
	}
	p := q.Page.Normalize()
	f := store.ResourceRequestFilter{
		Status:   status,
		Category: q.Category,
		Search:   q.Search,
		Page:     store.Page{Limit: p.Limit, Offset: p.Offset},
	}
	if q.Mine {
		f.RequestedBy = a.ID
	}
	list, total, err := store.ListResourceRequests(ctx, s.DB, f)
	if err != nil {
		return nil, 0, fail(err)
	}
	return list, total, nil
}

// GetResourceRequest returns one request.
func (s *Service) GetResourceRequest(ctx context.Context, id string) (*model.ResourceRequest, error) {
	return s.loadResourceRequest(ctx, id)
}
