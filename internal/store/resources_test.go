package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/db"
	"github.com/smarthostel/smarthostel/internal/model"
)

func TestCreateResourceDuplicateName(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	other := mustUser(t, database, "Other", model.RoleStudent, model.BlockA)

	mustResource(t, database, owner, "Kettle")

	dup := &model.Resource{
		ID: NewID(), Name: "KETTLE", Description: "Another kettle", Category: model.ResourceKitchen,
		Condition: model.ConditionFair, Availability: model.Available, HostelBlock: model.BlockA,
		RoomNumber: "A101", MaxBorrowDuration: 7, OwnerID: owner.ID, CreatedAt: t0, UpdatedAt: t0,
	}
	err := CreateResource(ctx, database, dup)
	if !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// Another owner may reuse the name.
	mustResource(t, database, other, "Kettle")
}

func TestMarkBorrowedSingleWinner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	b1 := mustUser(t, database, "B1", model.RoleStudent, model.BlockA)
	b2 := mustUser(t, database, "B2", model.RoleStudent, model.BlockA)
	r := mustResource(t, database, owner, "Cricket bat")

	ok, err := MarkBorrowed(ctx, database, r.ID, b1.ID, t0)
	if err != nil || !ok {
		t.Fatalf("first MarkBorrowed: ok=%v err=%v", ok, err)
	}
	ok, err = MarkBorrowed(ctx, database, r.ID, b2.ID, t0)
	if err != nil || ok {
		t.Fatalf("second MarkBorrowed must lose: ok=%v err=%v", ok, err)
	}

	got, _ := GetResource(ctx, database, r.ID)
	if got.TotalBorrows != 1 || got.CurrentBorrower != b1.ID || got.Availability != model.Borrowed {
		t.Errorf("unexpected resource: %+v", got)
	}
}

func TestMarkReturnedRecomputesAverage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	borrower := mustUser(t, database, "Borrower", model.RoleStudent, model.BlockA)
	r := mustResource(t, database, owner, "Calculator")

	for i, rating := range []int{4, 5, 3} {
		at := t0.Add(time.Duration(i) * 24 * time.Hour)
		if ok, err := MarkBorrowed(ctx, database, r.ID, borrower.ID, at); err != nil || !ok {
			t.Fatalf("borrow %d: ok=%v err=%v", i, ok, err)
		}
		if err := CreateBorrowRecord(ctx, database, &model.BorrowRecord{
			ResourceID: r.ID, BorrowerID: borrower.ID, BorrowedAt: at, DueDate: at.Add(7 * 24 * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
		rt := rating
		who, err := CloseActiveBorrow(ctx, database, r.ID, at.Add(time.Hour), &rt, "")
		if err != nil || who != borrower.ID {
			t.Fatalf("close %d: who=%q err=%v", i, who, err)
		}
		if ok, err := MarkReturned(ctx, database, r.ID, at.Add(time.Hour)); err != nil || !ok {
			t.Fatalf("return %d: ok=%v err=%v", i, ok, err)
		}
	}

	got, _ := GetResource(ctx, database, r.ID)
	if got.AverageRating != 4.0 {
		t.Errorf("expected average 4.0, got %v", got.AverageRating)
	}
	if got.Availability != model.Available || got.CurrentBorrower != "" {
		t.Errorf("expected available without borrower, got %+v", got)
	}
	if got.TotalBorrows != 3 {
		t.Errorf("expected 3 borrows, got %d", got.TotalBorrows)
	}
}

func TestSetAvailabilityGuards(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	r := mustResource(t, database, owner, "Drill")

	if _, err := SetAvailability(ctx, database, r.ID, []model.Availability{model.Borrowed}, model.Available, t0); err == nil {
		t.Error("expected borrowed -> available via SetAvailability to be refused")
	}

	ok, err := SetAvailability(ctx, database, r.ID, []model.Availability{model.Unavailable}, model.Available, t0)
	if err != nil || ok {
		t.Errorf("expected no-op from wrong state, ok=%v err=%v", ok, err)
	}

	ok, err = SetAvailability(ctx, database, r.ID, []model.Availability{model.Available, model.Requested}, model.Unavailable, t0)
	if err != nil || !ok {
		t.Errorf("expected block to apply, ok=%v err=%v", ok, err)
	}
}

func TestDeleteBorrowedResourceRefused(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	borrower := mustUser(t, database, "Borrower", model.RoleStudent, model.BlockA)
	r := mustResource(t, database, owner, "Tent")

	MarkBorrowed(ctx, database, r.ID, borrower.ID, t0)
	ok, err := DeleteResource(ctx, database, r.ID)
	if err != nil || ok {
		t.Fatalf("expected delete of borrowed resource to be refused, ok=%v err=%v", ok, err)
	}
}

func TestWishlistAndImages(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	fan := mustUser(t, database, "Fan", model.RoleStudent, model.BlockA)
	r := mustResource(t, database, owner, "Guitar")

	AddToWishlist(ctx, database, r.ID, fan.ID, t0)
	AddToWishlist(ctx, database, r.ID, fan.ID, t0)
	got, _ := GetResource(ctx, database, r.ID)
	if got.WishlistCount != 1 {
		t.Errorf("expected wishlist count 1, got %d", got.WishlistCount)
	}

	list, _, _ := ListResources(ctx, database, ResourceFilter{WishlistedBy: fan.ID})
	if len(list) != 1 {
		t.Errorf("expected 1 wishlisted resource, got %d", len(list))
	}

	RemoveFromWishlist(ctx, database, r.ID, fan.ID)
	if ok, _ := IsWishlisted(ctx, database, r.ID, fan.ID); ok {
		t.Error("expected resource to be removed from wishlist")
	}

	if err := AppendResourceImage(ctx, database, r.ID, "/uploads/a.jpg", t0); err != nil {
		t.Fatal(err)
	}
	if err := AppendResourceImage(ctx, database, r.ID, "/uploads/b.jpg", t0); err != nil {
		t.Fatal(err)
	}
	got, _ = GetResource(ctx, database, r.ID)
	if len(got.Images) != 2 || got.Images[1] != "/uploads/b.jpg" {
		t.Errorf("unexpected images %v", got.Images)
	}
}

func TestListResourcesFiltersAndPaging(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		mustResource(t, database, owner, name)
	}

	page, total, err := ListResources(ctx, database, ResourceFilter{Sort: SortName, Page: Page{Limit: 2, Offset: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 2 || page[0].Name != "Bravo" {
		t.Errorf("unexpected page: total=%d names=%v", total, page)
	}

	found, _, _ := ListResources(ctx, database, ResourceFilter{Search: "char"})
	if len(found) != 1 {
		t.Errorf("expected search to match 1, got %d", len(found))
	}
}

func TestResourceStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "Owner", model.RoleStudent, model.BlockA)
	borrower := mustUser(t, database, "Borrower", model.RoleStudent, model.BlockA)
	mustResource(t, database, owner, "One")
	two := mustResource(t, database, owner, "Two")
	MarkBorrowed(ctx, database, two.ID, borrower.ID, t0)

	stats, err := GetResourceStats(ctx, database, "")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.ByState[model.Available] != 1 || stats.ByState[model.Borrowed] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(stats.MostBorrowed) == 0 || stats.MostBorrowed[0].ID != two.ID {
		t.Errorf("expected %s to be most borrowed", two.Name)
	}
}
