package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/smarthostel/smarthostel/internal/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func mustUser(t *testing.T, database DBTX, name string, role model.Role, block model.Block) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, &model.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@hostel.test",
		PasswordHash: "hash",
		Role:         role,
		HostelBlock:  block,
		RoomNumber:   string(block) + "101",
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return u
}

func mustResource(t *testing.T, database DBTX, owner *model.User, name string) *model.Resource {
	t.Helper()
	r := &model.Resource{
		ID:                NewID(),
		Name:              name,
		Description:       "A perfectly fine " + name,
		Category:          model.ResourceOther,
		Condition:         model.ConditionGood,
		Availability:      model.Available,
		HostelBlock:       owner.HostelBlock,
		RoomNumber:        owner.RoomNumber,
		MaxBorrowDuration: model.DefaultMaxBorrowDays,
		IsPublic:          true,
		OwnerID:           owner.ID,
		CreatedAt:         t0,
		UpdatedAt:         t0,
	}
	if err := CreateResource(context.Background(), database, r); err != nil {
		t.Fatalf("creating resource %s: %v", name, err)
	}
	return r
}

func mustComplaint(t *testing.T, database *sql.DB, reporter *model.User, title string, anonymous bool) *model.Complaint {
	t.Helper()
	c := &model.Complaint{
		ID:          NewID(),
		Title:       title,
		Description: "Description of " + title,
		Category:    model.CategoryNoise,
		Priority:    model.PriorityMedium,
		Status:      model.StatusPending,
		HostelBlock: reporter.HostelBlock,
		RoomNumber:  reporter.RoomNumber,
		IsAnonymous: anonymous,
		Tags:        []string{"night"},
		ReportedBy:  reporter.ID,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	if err := CreateComplaint(context.Background(), database, c); err != nil {
		t.Fatalf("creating complaint: %v", err)
	}
	return c
}
