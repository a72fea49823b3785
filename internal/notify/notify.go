// Package notify delivers notifications after a state change has committed.
// Delivery failures are logged and never returned to the operation that
// triggered them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/store"
)

// Notice describes one notification sent to one or more recipients.
type Notice struct {
	Recipients []string
	Sender     string
	Title      string
	Message    string
	Type       model.NotificationType
	Category   model.NotificationCategory
	Priority   model.Priority
	Entity     *model.RelatedEntity
	ActionURL  string
	ActionText string
	Metadata   map[string]string
	ExpiresAt  *time.Time
}

// Sink receives each notification built by a Dispatcher.
type Sink interface {
	Deliver(ctx context.Context, n *model.Notification) error
}

// DefaultConcurrency bounds parallel deliveries per Dispatch call.
const DefaultConcurrency = 8

// Dispatcher fans notices out to its sinks. The first sink is the system of
// record: a notification counts as delivered once it accepted it.
type Dispatcher struct {
	sinks []Sink

	// Now is the clock used for creation and default expiry times.
	Now         func() time.Time
	Expiry      time.Duration
	Concurrency int
}

// NewDispatcher returns a dispatcher writing to sinks in order.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:       sinks,
		Now:         time.Now,
		Expiry:      model.NotificationExpiry,
		Concurrency: DefaultConcurrency,
	}
}

// Dispatch builds one notification per distinct recipient of each notice and
// delivers them concurrently. It returns the notifications the primary sink
// accepted, in notice and recipient order. A nil Dispatcher drops everything.
func (d *Dispatcher) Dispatch(ctx context.Context, notices ...Notice) []model.Notification {
	if d == nil || len(d.sinks) == 0 {
		return nil
	}
	// Side effects finish even if the triggering request is cancelled.
	ctx = context.WithoutCancel(ctx)

	pending := d.build(notices)
	if len(pending) == 0 {
		return nil
	}

	delivered := make([]bool, len(pending))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(d.Concurrency, 1))
	for i, n := range pending {
		g.Go(func() error {
			if d.deliver(ctx, n) {
				mu.Lock()
				delivered[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	out := make([]model.Notification, 0, len(pending))
	for i, n := range pending {
		if delivered[i] {
			out = append(out, *n)
		}
	}
	return out
}

func (d *Dispatcher) build(notices []Notice) []*model.Notification {
	now := d.Now().UTC()
	var out []*model.Notification
	for _, nt := range notices {
		priority := nt.Priority
		if priority == "" {
			priority = model.PriorityMedium
		}
		category := nt.Category
		if category == "" {
			category = model.NoticeOther
		}
		expires := nt.ExpiresAt
		if expires == nil && d.Expiry > 0 {
			e := now.Add(d.Expiry)
			expires = &e
		}

		seen := make(map[string]bool, len(nt.Recipients))
		for _, r := range nt.Recipients {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, &model.Notification{
				ID:            store.NewID(),
				Recipient:     r,
				Sender:        nt.Sender,
				Title:         nt.Title,
				Message:       nt.Message,
				Type:          nt.Type,
				Category:      category,
				Priority:      priority,
				RelatedEntity: nt.Entity,
				ActionURL:     nt.ActionURL,
				ActionText:    nt.ActionText,
				Metadata:      nt.Metadata,
				ExpiresAt:     expires,
				CreatedAt:     now,
			})
		}
	}
	return out
}

// deliver writes n to every sink and reports whether the primary accepted it.
// Secondary sinks are skipped when the primary fails.
func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification) bool {
	for i, s := range d.sinks {
		if err := s.Deliver(ctx, n); err != nil {
			slog.Warn("notification delivery failed",
				"recipient", n.Recipient, "category", n.Category, "sink", i, "error", err)
			if i == 0 {
				return false
			}
		}
	}
	return true
}
