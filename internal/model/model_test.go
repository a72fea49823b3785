package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role, minimum Role
		want          bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleWarden, true},
		{RoleAdmin, RoleStudent, true},
		{RoleWarden, RoleAdmin, false},
		{RoleWarden, RoleWarden, true},
		{RoleStudent, RoleWarden, false},
		{RoleStudent, RoleStudent, true},
	}
	for _, tt := range tests {
		if got := RoleAtLeast(tt.role, tt.minimum); got != tt.want {
			t.Errorf("RoleAtLeast(%s, %s) = %v, want %v", tt.role, tt.minimum, got, tt.want)
		}
	}
}

func TestValidRoomAndPhone(t *testing.T) {
	for _, room := range []string{"A101", "D999"} {
		if !ValidRoom(room) {
			t.Errorf("expected %q to be valid", room)
		}
	}
	for _, room := range []string{"a101", "A10", "AB101", "A1011", ""} {
		if ValidRoom(room) {
			t.Errorf("expected %q to be invalid", room)
		}
	}
	if !ValidPhone("9876543210") || ValidPhone("5876543210") || ValidPhone("98765") {
		t.Error("phone validation mismatch")
	}
}

func TestValidImageURL(t *testing.T) {
	valid := []string{"https://cdn.example.com/a.jpg", "http://x.org/p/q.PNG", "/uploads/abc.webp"}
	for _, u := range valid {
		if !ValidImageURL(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	invalid := []string{"ftp://x.org/a.jpg", "https://x.org/a.pdf", "uploads/a.jpg", "/uploads/.jpg"}
	for _, u := range invalid {
		if ValidImageURL(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestComplaintTransitions(t *testing.T) {
	allowed := [][2]ComplaintStatus{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusResolved},
		{StatusInProgress, StatusAwaitingApproval},
		{StatusAwaitingApproval, StatusInProgress},
		{StatusAwaitingApproval, StatusResolved},
		{StatusInProgress, StatusInProgress},
	}
	for _, p := range allowed {
		if !CanTransitionComplaint(p[0], p[1]) {
			t.Errorf("expected %s -> %s to be allowed", p[0], p[1])
		}
	}
	denied := [][2]ComplaintStatus{
		{StatusResolved, StatusInProgress},
		{StatusResolved, StatusResolved},
		{StatusRejected, StatusPending},
		{StatusInProgress, StatusPending},
	}
	for _, p := range denied {
		if CanTransitionComplaint(p[0], p[1]) {
			t.Errorf("expected %s -> %s to be denied", p[0], p[1])
		}
	}
}

func TestAvailabilityTransitions(t *testing.T) {
	if !CanTransitionAvailability(Requested, Borrowed) {
		t.Error("requested -> borrowed must be allowed")
	}
	if CanTransitionAvailability(Borrowed, Unavailable) {
		t.Error("borrowed -> unavailable must be denied")
	}
	if CanTransitionAvailability(Borrowed, Borrowed) {
		t.Error("borrowed -> borrowed must be denied")
	}
}

func TestComplaintMask(t *testing.T) {
	c := Complaint{ReportedBy: "u1", ReporterName: "Asha", IsAnonymous: true}

	own := c
	own.Mask("u1")
	if own.ReporterName != "Asha" || own.ReportedBy != "u1" {
		t.Error("reporter must see their own identity")
	}

	other := c
	other.Mask("u2")
	if other.ReporterName != AnonymousReporter || other.ReportedBy != "" {
		t.Errorf("expected masked reporter, got %+v", other)
	}

	public := Complaint{ReportedBy: "u1", ReporterName: "Asha"}
	public.Mask("u2")
	if public.ReporterName != "Asha" {
		t.Error("non-anonymous complaints are not masked")
	}
}
