package store

import (
	"context"
	"testing"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/db"
	"github.com/smarthostel/smarthostel/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, &model.User{
		Name:         "Asha",
		Email:        "  Asha@Example.COM ",
		PasswordHash: "hash123",
		HostelBlock:  model.BlockB,
		RoomNumber:   "B204",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "asha@example.com" {
		t.Errorf("expected lower-cased email, got %q", user.Email)
	}
	if user.Role != model.RoleStudent {
		t.Errorf("expected default role student, got %s", user.Role)
	}
	if user.Reputation != model.DefaultReputation {
		t.Errorf("expected reputation %d, got %d", model.DefaultReputation, user.Reputation)
	}

	got, err := GetUserByEmail(ctx, database, "ASHA@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected to find user by email, got %+v", got)
	}

	missing, err := GetUser(ctx, database, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing user, got (%v, %v)", missing, err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustUser(t, database, "Ravi", model.RoleStudent, model.BlockA)
	_, err := CreateUser(ctx, database, &model.User{Name: "Other", Email: "RAVI@hostel.test", PasswordHash: "x"})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListStaffIDs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := mustUser(t, database, "Admin", model.RoleAdmin, "")
	wardenA := mustUser(t, database, "WardenA", model.RoleWarden, model.BlockA)
	wardenB := mustUser(t, database, "WardenB", model.RoleWarden, model.BlockB)
	mustUser(t, database, "Student", model.RoleStudent, model.BlockA)
	retired := mustUser(t, database, "Retired", model.RoleWarden, model.BlockA)
	if err := DeactivateUser(ctx, database, retired.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	all, err := ListStaffIDs(ctx, database, "")
	if err != nil {
		t.Fatalf("ListStaffIDs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 active staff, got %v", all)
	}

	blockA, err := ListStaffIDs(ctx, database, model.BlockA)
	if err != nil {
		t.Fatalf("ListStaffIDs(A): %v", err)
	}
	want := map[string]bool{admin.ID: true, wardenA.ID: true}
	if len(blockA) != 2 || !want[blockA[0]] || !want[blockA[1]] {
		t.Errorf("expected admin and block A warden, got %v", blockA)
	}
	for _, id := range blockA {
		if id == wardenB.ID {
			t.Error("block B warden must not be included")
		}
	}
}

func TestCountersNeverNegative(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	u := mustUser(t, database, "Lender", model.RoleStudent, model.BlockC)

	if err := AddLent(ctx, database, u.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := AddLent(ctx, database, u.ID, -1); err != nil {
		t.Fatal(err)
	}
	if err := AddLent(ctx, database, u.ID, -1); err != nil {
		t.Fatal(err)
	}
	if err := AddBorrowed(ctx, database, u.ID, 2); err != nil {
		t.Fatal(err)
	}

	got, _ := GetUser(ctx, database, u.ID)
	if got.TotalLent != 0 {
		t.Errorf("expected lent count 0, got %d", got.TotalLent)
	}
	if got.TotalBorrowed != 2 {
		t.Errorf("expected borrowed count 2, got %d", got.TotalBorrowed)
	}
}

func TestDeactivateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	u := mustUser(t, database, "Leaver", model.RoleStudent, model.BlockD)

	if err := DeactivateUser(ctx, database, u.ID, t0); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}

	got, _ := GetUser(ctx, database, u.ID)
	if got.Active() {
		t.Error("expected user to be inactive")
	}

	users, _ := ListUsers(ctx, database, UserFilter{})
	if len(users) != 0 {
		t.Errorf("expected no active users, got %d", len(users))
	}
	users, _ = ListUsers(ctx, database, UserFilter{IncludeInactive: true})
	if len(users) != 1 {
		t.Errorf("expected 1 user including inactive, got %d", len(users))
	}
}
