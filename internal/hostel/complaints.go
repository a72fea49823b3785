package hostel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/store"
	"github.com/smarthostel/smarthostel/internal/validate"
)

// ComplaintInput is a new complaint. Block and room default to the
// reporter's profile.
type ComplaintInput struct {
	Title       string                  `json:"title" validate:"required,min=5,max=100"`
	Description string                  `json:"description" validate:"required,min=10,max=1000"`
	Category    model.ComplaintCategory `json:"category" validate:"required,enum"`
	HostelBlock model.Block             `json:"hostel_block" validate:"omitempty,enum"`
	RoomNumber  string                  `json:"room_number" validate:"omitempty,room"`
	IsAnonymous bool                    `json:"is_anonymous"`
	Tags        []string                `json:"tags" validate:"max=10,dive,max=30"`
	Images      []string                `json:"images" validate:"max=5,dive,imageurl"`
}

// ComplaintUpdate changes the reporter-editable fields. Nil fields are kept.
type ComplaintUpdate struct {
	Title       *string                  `json:"title" validate:"omitempty,min=5,max=100"`
	Description *string                  `json:"description" validate:"omitempty,min=10,max=1000"`
	Category    *model.ComplaintCategory `json:"category" validate:"omitempty,enum"`
	RoomNumber  *string                  `json:"room_number" validate:"omitempty,room"`
	IsAnonymous *bool                    `json:"is_anonymous"`
	Tags        []string                 `json:"tags" validate:"omitempty,max=10,dive,max=30"`
	Images      []string                 `json:"images" validate:"omitempty,max=5,dive,imageurl"`
}

// StatusInput is a staff status change.
type StatusInput struct {
	Status                  model.ComplaintStatus `json:"status" validate:"required,enum"`
	AssignedTo              *string               `json:"assigned_to"`
	ResolutionNotes         *string               `json:"resolution_notes" validate:"omitempty,max=1000"`
	EstimatedResolutionTime *time.Time            `json:"estimated_resolution_time"`
}

// FeedbackInput rates a resolved complaint.
type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

// ConfirmInput is the reporter's verdict on a complaint awaiting approval.
type ConfirmInput struct {
	Resolved *bool  `json:"resolved" validate:"required"`
	Rating   int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment  string `json:"comment" validate:"max=500"`
}

// canView applies the complaint visibility rules: admins see everything,
// wardens their block, students their own plus every non-anonymous one.
func canView(a Actor, c *model.Complaint) bool {
	switch {
	case a.IsAdmin():
		return true
	case a.Role == model.RoleWarden:
		return a.Governs(c.HostelBlock)
	}
	return c.ReportedBy == a.ID || !c.IsAnonymous
}

// present refreshes the derived priority and masks the reporter for viewer.
func (s *Service) present(ctx context.Context, c *model.Complaint, viewer string, now time.Time) {
	p := model.ComputePriority(c.Category, c.CreatedAt, c.Status, now)
	if p != c.Priority {
		if err := store.RefreshComplaintPriority(ctx, s.DB, c.ID, p); err != nil {
			slog.Warn("refreshing complaint priority", "complaint", c.ID, "error", err)
		}
		c.Priority = p
	}
	c.Mask(viewer)
}

func (s *Service) loadComplaint(ctx context.Context, id string) (*model.Complaint, error) {
	c, err := store.GetComplaint(ctx, s.DB, id)
	if err != nil {
		return nil, fail(err)
	}
	if c == nil {
		return nil, apperr.NotFound("complaint")
	}
	return c, nil
}

// CreateComplaint files a complaint and notifies every active warden and admin.
func (s *Service) CreateComplaint(ctx context.Context, a Actor, in ComplaintInput) (*model.Complaint, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	block, room := in.HostelBlock, in.RoomNumber
	if block == "" {
		block = a.Block
	}
	if room == "" {
		room = a.Room
	}
	if !block.Valid() {
		return nil, apperr.Invalid("hostel_block", "is required")
	}
	if !model.ValidRoom(room) {
		return nil, apperr.Invalid("room_number", "is required")
	}

	now := s.now()
	recent, err := store.ListComplaints(ctx, s.DB, store.ComplaintFilter{
		ReportedBy: a.ID,
		Since:      now.Add(-model.DuplicateComplaintWindow),
	})
	if err != nil {
		return nil, fail(err)
	}
	title, desc := strings.TrimSpace(in.Title), strings.TrimSpace(in.Description)
	for _, r := range recent {
		if strings.EqualFold(r.Title, title) && strings.EqualFold(r.Description, desc) {
			return nil, apperr.ErrDuplicateComplaint
		}
	}

	c := &model.Complaint{
		ID:          store.NewID(),
		Title:       title,
		Description: desc,
		Category:    in.Category,
		Priority:    model.ComputePriority(in.Category, now, model.StatusPending, now),
		Status:      model.StatusPending,
		HostelBlock: block,
		RoomNumber:  room,
		IsAnonymous: in.IsAnonymous,
		Tags:        in.Tags,
		Images:      in.Images,
		ReportedBy:  a.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateComplaint(ctx, s.DB, c); err != nil {
		return nil, fail(err)
	}
	slog.Info("complaint filed", "complaint", c.ID, "user", a.ID, "category", c.Category, "priority", c.Priority)

	staff, err := store.ListStaffIDs(ctx, s.DB, "")
	if err != nil {
		slog.Warn("listing staff for complaint notice", "complaint", c.ID, "error", err)
	}
	s.Notify.Dispatch(ctx, notify.Notice{
		Recipients: without(staff, a.ID),
		Sender:     a.ID,
		Title:      "New complaint in block " + string(block),
		Message:    fmt.Sprintf("%s (room %s): %s", c.Category, room, c.Title),
		Type:       model.NotifyComplaint,
		Category:   model.NoticeNew,
		Priority:   noticePriority(c.Priority),
		Entity:     &model.RelatedEntity{Type: model.EntityComplaint, ID: c.ID},
		ActionURL:  "/complaints/" + c.ID,
		ActionText: "View complaint",
	})

	return s.getComplaint(ctx, a, c.ID)
}

// UpdateComplaint lets the reporter edit a complaint while it is pending.
func (s *Service) UpdateComplaint(ctx context.Context, a Actor, id string, in ComplaintUpdate) (*model.Complaint, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ReportedBy != a.ID {
		return nil, apperr.Forbidden("only the reporter can edit a complaint")
	}
	if c.Status != model.StatusPending {
		return nil, apperr.InvalidState("complaint can only be edited while pending, it is %s", c.Status)
	}

	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.RoomNumber != nil {
		c.RoomNumber = *in.RoomNumber
	}
	if in.IsAnonymous != nil {
		c.IsAnonymous = *in.IsAnonymous
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.Images != nil {
		c.Images = in.Images
	}

	now := s.now()
	c.Priority = model.ComputePriority(c.Category, c.CreatedAt, c.Status, now)
	c.UpdatedAt = now
	ok, err := store.UpdateComplaintDetails(ctx, s.DB, c)
	if err != nil {
		return nil, fail(err)
	}
	if !ok {
		return nil, apperr.InvalidState("complaint is no longer pending")
	}
	slog.Info("complaint edited", "complaint", id, "user", a.ID)
	return s.getComplaint(ctx, a, id)
}

// SetComplaintStatus moves a complaint to a new status and notifies the
// reporter and a newly assigned staff member.
func (s *Service) SetComplaintStatus(ctx context.Context, a Actor, id string, in StatusInput) (*model.Complaint, error) {
	if !a.IsStaff() {
		return nil, apperr.Forbidden("only wardens and admins can change complaint status")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Governs(c.HostelBlock) {
		return nil, apperr.Forbidden("complaint is outside your hostel block")
	}
	if !model.CanTransitionComplaint(c.Status, in.Status) {
		return nil, apperr.InvalidState("cannot move complaint from %s to %s", c.Status, in.Status)
	}

	if in.AssignedTo != nil && *in.AssignedTo != "" {
		assignee, err := store.GetUser(ctx, s.DB, *in.AssignedTo)
		if err != nil {
			return nil, fail(err)
		}
		if assignee == nil || !assignee.Active() || !assignee.Role.IsStaff() {
			return nil, apperr.Invalid("assigned_to", "must be an active warden or admin")
		}
	}

	now := s.now()
	ch := store.ComplaintChange{
		Status:                  in.Status,
		Priority:                model.ComputePriority(c.Category, c.CreatedAt, in.Status, now),
		AssignedTo:              in.AssignedTo,
		ResolutionNotes:         in.ResolutionNotes,
		EstimatedResolutionTime: in.EstimatedResolutionTime,
		UpdatedAt:               now,
	}
	switch in.Status {
	case model.StatusResolved:
		ch.ActualResolutionTime = &now
	case model.StatusAwaitingApproval:
		// A new confirmation round starts clean.
		if c.Status != model.StatusAwaitingApproval {
			ch.ClearFeedback = true
		}
	}

	ok, err := store.ChangeComplaint(ctx, s.DB, id, c.Status, ch)
	if err != nil {
		return nil, fail(err)
	}
	if !ok {
		return nil, apperr.InvalidState("complaint changed concurrently, reload and retry")
	}
	slog.Info("complaint status changed", "complaint", id, "user", a.ID, "from", c.Status, "to", in.Status)

	var notices []notify.Notice
	if c.ReportedBy != a.ID {
		n := notify.Notice{
			Recipients: []string{c.ReportedBy},
			Sender:     a.ID,
			Title:      "Complaint status updated",
			Message:    fmt.Sprintf("Your complaint %q is now %s.", c.Title, in.Status),
			Type:       model.NotifyComplaint,
			Category:   model.NoticeUpdate,
			Priority:   noticePriority(ch.Priority),
			Entity:     &model.RelatedEntity{Type: model.EntityComplaint, ID: id},
			ActionURL:  "/complaints/" + id,
			ActionText: "View complaint",
			Metadata:   map[string]string{"status": string(in.Status)},
		}
		switch in.Status {
		case model.StatusResolved:
			n.Category = model.NoticeResolved
			n.Type = model.NotifySuccess
		case model.StatusAwaitingApproval:
			n.Message = fmt.Sprintf("Your complaint %q was marked resolved. Please confirm.", c.Title)
			n.ActionText = "Confirm resolution"
		}
		notices = append(notices, n)
	}
	if in.AssignedTo != nil && *in.AssignedTo != "" && *in.AssignedTo != a.ID && *in.AssignedTo != c.AssignedTo {
		notices = append(notices, notify.Notice{
			Recipients: []string{*in.AssignedTo},
			Sender:     a.ID,
			Title:      "Complaint assigned to you",
			Message:    fmt.Sprintf("%q in block %s, room %s.", c.Title, c.HostelBlock, c.RoomNumber),
			Type:       model.NotifyComplaint,
			Category:   model.NoticeUpdate,
			Priority:   noticePriority(ch.Priority),
			Entity:     &model.RelatedEntity{Type: model.EntityComplaint, ID: id},
			ActionURL:  "/complaints/" + id,
			ActionText: "View complaint",
		})
	}
	s.Notify.Dispatch(ctx, notices...)

	return s.getComplaint(ctx, a, id)
}

// Upvote adds the actor's upvote and returns the new count.
func (s *Service) Upvote(ctx context.Context, a Actor, id string) (int, error) {
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return 0, err
	}
	if !canView(a, c) {
		return 0, apperr.NotFound("complaint")
	}
	if c.ReportedBy == a.ID {
		return 0, apperr.Forbidden("cannot upvote your own complaint")
	}
	if err := store.AddUpvote(ctx, s.DB, id, a.ID, s.now()); err != nil {
		return 0, fail(err)
	}
	return s.upvoteCount(ctx, id)
}

// RemoveUpvote withdraws the actor's upvote and returns the new count.
func (s *Service) RemoveUpvote(ctx context.Context, a Actor, id string) (int, error) {
	if _, err := s.loadComplaint(ctx, id); err != nil {
		return 0, err
	}
	if err := store.RemoveUpvote(ctx, s.DB, id, a.ID); err != nil {
		return 0, fail(err)
	}
	return s.upvoteCount(ctx, id)
}

func (s *Service) upvoteCount(ctx context.Context, id string) (int, error) {
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.UpvoteCount, nil
}

// AddFeedback records the reporter's rating of a resolved complaint. It can
// be given once.
func (s *Service) AddFeedback(ctx context.Context, a Actor, id string, in FeedbackInput) (*model.Complaint, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ReportedBy != a.ID {
		return nil, apperr.Forbidden("only the reporter can give feedback")
	}
	if c.Status != model.StatusResolved {
		return nil, apperr.InvalidState("feedback can only be given on a resolved complaint")
	}
	if c.Feedback != nil && c.Feedback.Rating > 0 {
		return nil, apperr.InvalidState("feedback was already given")
	}

	now := s.now()
	resolved := true
	ok, err := store.ChangeComplaint(ctx, s.DB, id, model.StatusResolved, store.ComplaintChange{
		Status:    model.StatusResolved,
		Priority:  model.ComputePriority(c.Category, c.CreatedAt, model.StatusResolved, now),
		Feedback:  &model.Feedback{Resolved: &resolved, Rating: in.Rating, Comment: in.Comment, SubmittedAt: &now},
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fail(err)
	}
	if !ok {
		return nil, apperr.InvalidState("complaint changed concurrently, reload and retry")
	}
	slog.Info("complaint feedback added", "complaint", id, "user", a.ID, "rating", in.Rating)

	s.Notify.Dispatch(ctx, notify.Notice{
		Recipients: s.handlers(ctx, c),
		Sender:     a.ID,
		Title:      "Feedback received",
		Message:    fmt.Sprintf("%q was rated %d/5.", c.Title, in.Rating),
		Type:       model.NotifyComplaint,
		Category:   model.NoticeUpdate,
		Priority:   model.PriorityLow,
		Entity:     &model.RelatedEntity{Type: model.EntityComplaint, ID: id},
	})
	return s.getComplaint(ctx, a, id)
}

// ConfirmResolution is the reporter's one-shot verdict on a complaint
// awaiting approval. Confirming resolves it; denying sends it back to
// in-progress. The assignee, or the block's staff, is told the outcome.
func (s *Service) ConfirmResolution(ctx context.Context, a Actor, id string, in ConfirmInput) (*model.Complaint, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ReportedBy != a.ID {
		return nil, apperr.Forbidden("only the reporter can confirm a resolution")
	}
	if c.Status != model.StatusAwaitingApproval {
		return nil, apperr.InvalidState("complaint is not awaiting approval")
	}
	if c.Feedback != nil && c.Feedback.Resolved != nil {
		return nil, apperr.InvalidState("resolution was already confirmed or denied")
	}

	now := s.now()
	confirmed := *in.Resolved
	ch := store.ComplaintChange{
		Status:    model.StatusInProgress,
		Feedback:  &model.Feedback{Resolved: &confirmed, Rating: in.Rating, Comment: in.Comment, SubmittedAt: &now},
		UpdatedAt: now,
	}
	if confirmed {
		ch.Status = model.StatusResolved
		ch.ActualResolutionTime = &now
	}
	ch.Priority = model.ComputePriority(c.Category, c.CreatedAt, ch.Status, now)

	ok, err := store.ChangeComplaint(ctx, s.DB, id, model.StatusAwaitingApproval, ch)
	if err != nil {
		return nil, fail(err)
	}
	if !ok {
		return nil, apperr.InvalidState("complaint changed concurrently, reload and retry")
	}
	slog.Info("complaint resolution reviewed", "complaint", id, "user", a.ID, "confirmed", confirmed)

	n := notify.Notice{
		Recipients: s.handlers(ctx, c),
		Sender:     a.ID,
		Title:      "Resolution confirmed",
		Message:    fmt.Sprintf("The reporter confirmed %q is resolved.", c.Title),
		Type:       model.NotifySuccess,
		Category:   model.NoticeResolved,
		Priority:   noticePriority(ch.Priority),
		Entity:     &model.RelatedEntity{Type: model.EntityComplaint, ID: id},
		ActionURL:  "/complaints/" + id,
		ActionText: "View complaint",
	}
	if !confirmed {
		n.Title = "Resolution denied"
		n.Message = fmt.Sprintf("The reporter says %q is not resolved. It is back in progress.", c.Title)
		n.Type = model.NotifyWarning
		n.Category = model.NoticeUpdate
	}
	s.Notify.Dispatch(ctx, n)

	return s.getComplaint(ctx, a, id)
}

// handlers returns who acts on c: its assignee, or the staff of its block.
func (s *Service) handlers(ctx context.Context, c *model.Complaint) []string {
	if c.AssignedTo != "" {
		return []string{c.AssignedTo}
	}
	ids, err := store.ListStaffIDs(ctx, s.DB, c.HostelBlock)
	if err != nil {
		slog.Warn("listing block staff", "complaint", c.ID, "error", err)
	}
	return ids
}

// ComplaintQuery filters ListComplaints.
type ComplaintQuery struct {
	Status   model.ComplaintStatus
	Category model.ComplaintCategory
	Block    model.Block
	Search   string
	Mine     bool
}

// ListComplaints returns the complaints the actor may see, newest first.
func (s *Service) ListComplaints(ctx context.Context, a Actor, q ComplaintQuery) ([]model.Complaint, error) {
	f := store.ComplaintFilter{
		Status:   q.Status,
		Category: q.Category,
		Block:    q.Block,
		Search:   q.Search,
	}
	switch {
	case a.IsAdmin():
	case a.Role == model.RoleWarden:
		f.Block = a.Block
	default:
		f.VisibleTo = a.ID
	}
	if q.Mine {
		f.ReportedBy = a.ID
	}

	list, err := store.ListComplaints(ctx, s.DB, f)
	if err != nil {
		return nil, fail(err)
	}
	now := s.now()
	for i := range list {
		s.present(ctx, &list[i], a.ID, now)
	}
	return list, nil
}

// GetComplaint returns one complaint under the same visibility rules as
// ListComplaints.
func (s *Service) GetComplaint(ctx context.Context, a Actor, id string) (*model.Complaint, error) {
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(a, c) {
		if a.Role == model.RoleWarden {
			return nil, apperr.Forbidden("complaint is outside your hostel block")
		}
		return nil, apperr.NotFound("complaint")
	}
	s.present(ctx, c, a.ID, s.now())
	if c.Upvoted, err = store.HasUpvoted(ctx, s.DB, c.ID, a.ID); err != nil {
		return nil, fail(err)
	}
	return c, nil
}

// getComplaint re-reads a complaint after a write by someone allowed to see it.
func (s *Service) getComplaint(ctx context.Context, a Actor, id string) (*model.Complaint, error) {
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	s.present(ctx, c, a.ID, s.now())
	return c, nil
}

// ComplaintStats summarizes complaints for staff dashboards.
type ComplaintStats struct {
	Total          int                             `json:"total"`
	Pending        int                             `json:"pending"`
	InProgress     int                             `json:"in_progress"`
	Awaiting       int                             `json:"awaiting_approval"`
	Resolved       int                             `json:"resolved"`
	Rejected       int                             `json:"rejected"`
	Urgent         int                             `json:"urgent"`
	ResolutionRate float64                         `json:"resolution_rate"`
	ByCategory     map[model.ComplaintCategory]int `json:"by_category"`
}

// StatsQuery scopes ComplaintStats. Days limits to complaints filed in the
// last n days.
type StatsQuery struct {
	Block model.Block
	Days  int
}

// ComplaintStats aggregates complaint counts. Wardens only see their block.
func (s *Service) ComplaintStats(ctx context.Context, a Actor, q StatsQuery) (*ComplaintStats, error) {
	if !a.IsStaff() {
		return nil, apperr.Forbidden("only wardens and admins can view statistics")
	}
	now := s.now()
	f := store.ComplaintFilter{Block: q.Block}
	if a.Role == model.RoleWarden {
		f.Block = a.Block
	}
	if q.Days > 0 {
		f.Since = now.AddDate(0, 0, -q.Days)
	}

	list, err := store.ListComplaints(ctx, s.DB, f)
	if err != nil {
		return nil, fail(err)
	}

	st := &ComplaintStats{Total: len(list), ByCategory: map[model.ComplaintCategory]int{}}
	for _, c := range list {
		switch c.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusInProgress:
			st.InProgress++
		case model.StatusAwaitingApproval:
			st.Awaiting++
		case model.StatusResolved:
			st.Resolved++
		case model.StatusRejected:
			st.Rejected++
		}
		if !c.Status.Terminal() && model.ComputePriority(c.Category, c.CreatedAt, c.Status, now) == model.PriorityUrgent {
			st.Urgent++
		}
		st.ByCategory[c.Category]++
	}
	if st.Total > 0 {
		st.ResolutionRate = math.Round(float64(st.Resolved)/float64(st.Total)*10000) / 100
	}
	return st, nil
}
