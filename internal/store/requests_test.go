package store

import (
	"context"
	"testing"
	"time"

	"github.com/smarthostel/smarthostel/internal/db"
	"github.com/smarthostel/smarthostel/internal/model"
)

func mustResourceRequest(t *testing.T, database DBTX, by *model.User, title string) *model.ResourceRequest {
	t.Helper()
	rr := &model.ResourceRequest{
		ID:          NewID(),
		Title:       title,
		Description: "Looking for " + title,
		Category:    model.ResourceBooks,
		RequestedBy: by.ID,
		Status:      model.RequestOpen,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	if err := CreateResourceRequest(context.Background(), database, rr); err != nil {
		t.Fatalf("creating resource request: %v", err)
	}
	return rr
}

func TestResourceRequestLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	asker := mustUser(t, database, "Asker", model.RoleStudent, model.BlockA)
	helper := mustUser(t, database, "Helper", model.RoleStudent, model.BlockA)
	res := mustResource(t, database, helper, "Physics textbook")

	rr := mustResourceRequest(t, database, asker, "Physics textbook")
	cancelled := mustResourceRequest(t, database, asker, "Chess set")

	ok, err := FulfillResourceRequest(ctx, database, rr.ID, helper.ID, res.ID, t0.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("FulfillResourceRequest: ok=%v err=%v", ok, err)
	}
	ok, _ = FulfillResourceRequest(ctx, database, rr.ID, helper.ID, res.ID, t0.Add(time.Hour))
	if ok {
		t.Error("expected second fulfil to be ignored")
	}
	if ok, _ := CancelResourceRequest(ctx, database, rr.ID, t0); ok {
		t.Error("expected cancel of fulfilled request to be ignored")
	}

	got, _ := GetResourceRequest(ctx, database, rr.ID)
	if got.Status != model.RequestFulfilled || got.FulfilledBy != helper.ID || got.FulfilledResource != res.ID {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.RequesterName != "Asker" || got.FulfilledAt == nil {
		t.Errorf("unexpected request: %+v", got)
	}

	if ok, _ := CancelResourceRequest(ctx, database, cancelled.ID, t0); !ok {
		t.Error("expected cancel of open request to apply")
	}

	open, total, _ := ListResourceRequests(ctx, database, ResourceRequestFilter{Status: model.RequestOpen})
	if total != 0 || len(open) != 0 {
		t.Errorf("expected no open requests, got %d", total)
	}
	all, total, _ := ListResourceRequests(ctx, database, ResourceRequestFilter{RequestedBy: asker.ID, Search: "chess"})
	if total != 1 || all[0].ID != cancelled.ID {
		t.Errorf("expected search to find the chess request, got %+v", all)
	}

	if got, _ := GetResourceRequest(ctx, database, "missing"); got != nil {
		t.Error("expected nil for missing request")
	}
}
