package hostel

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/db"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/store"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *sql.DB
	svc *Service
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), db: db.NewTestDB(t), now: t0}
	clock := func() time.Time { return f.now }

	d := notify.NewDispatcher(notify.StoreSink{DB: f.db})
	d.Now = clock
	f.svc = New(f.db, d)
	f.svc.Now = clock
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// user creates an account and returns it as an actor. Students and wardens
// get a room in their block.
func (f *fixture) user(name string, role model.Role, block model.Block) Actor {
	f.t.Helper()
	u := &model.User{
		Name:         name,
		Email:        name + "@hostel.test",
		PasswordHash: "hash",
		Role:         role,
		HostelBlock:  block,
		CreatedAt:    t0,
	}
	if block != "" {
		u.RoomNumber = string(block) + "101"
	}
	u, err := store.CreateUser(f.ctx, f.db, u)
	require.NoError(f.t, err)
	return Actor{ID: u.ID, Role: u.Role, Block: u.HostelBlock, Room: u.RoomNumber}
}

func (f *fixture) notifications(a Actor) []model.Notification {
	f.t.Helper()
	list, _, err := store.ListNotifications(f.ctx, f.db, a.ID, store.NotificationFilter{}, f.now)
	require.NoError(f.t, err)
	return list
}

func (f *fixture) fetchUser(a Actor) *model.User {
	f.t.Helper()
	u, err := store.GetUser(f.ctx, f.db, a.ID)
	require.NoError(f.t, err)
	return u
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}
