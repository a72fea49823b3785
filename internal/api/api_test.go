package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/auth"
	"github.com/smarthostel/smarthostel/internal/db"
	"github.com/smarthostel/smarthostel/internal/hostel"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
	"github.com/smarthostel/smarthostel/internal/ratelimit"
	"github.com/smarthostel/smarthostel/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"
)

type testServer struct {
	*httptest.Server
	adminToken string
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	dispatcher := notify.NewDispatcher(notify.StoreSink{DB: database})
	router := NewRouter(Deps{
		DB:        database,
		JWTSecret: testJWTSecret,
		Hostel:    hostel.New(database, dispatcher),
		Notify:    dispatcher,
		Limiter:   limiter,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	_, err = store.CreateUser(context.Background(), database, &model.User{
		Name:         "Admin",
		Email:        "admin@hostel.test",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	ts := &testServer{Server: server}
	ts.adminToken = ts.login(t, "admin@hostel.test", testPassword)
	return ts
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	var resp tokenResponse
	status := ts.call(t, "POST", "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login failed: %d", status)
	}
	if resp.Token == "" {
		t.Fatal("empty token from login")
	}
	return resp.Token
}

// register signs up a student in block A and returns their token and id.
func (ts *testServer) register(t *testing.T, name, room string) (string, string) {
	t.Helper()
	var resp tokenResponse
	status := ts.call(t, "POST", "/api/auth/register", "", map[string]string{
		"name":         name,
		"email":        name + "@hostel.test",
		"password":     testPassword,
		"hostel_block": "A",
		"room_number":  room,
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", name, status)
	}
	return resp.Token, resp.User.ID
}

func (ts *testServer) warden(t *testing.T, name string, block model.Block) string {
	t.Helper()
	status := ts.call(t, "POST", "/api/users", ts.adminToken, map[string]string{
		"name":         name,
		"email":        name + "@hostel.test",
		"password":     testPassword,
		"role":         string(model.RoleWarden),
		"hostel_block": string(block),
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("creating warden: expected 201, got %d", status)
	}
	return ts.login(t, name+"@hostel.test", testPassword)
}

// call sends a JSON request and decodes the response into out, if given.
func (ts *testServer) call(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	resp := ts.do(t, method, path, token, body)
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func complaintBody(title string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Water keeps dripping from the ceiling",
		"category":    "plumbing",
	}
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	var body errorBody
	status := ts.call(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "admin@hostel.test", "password": "wrong-password",
	}, &body)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	status = ts.call(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "nobody@hostel.test", "password": testPassword,
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown email, got %d", status)
	}
}

func TestRegisterAndProfile(t *testing.T) {
	ts := newTestServer(t, nil)
	token, id := ts.register(t, "asha", "A101")

	var me model.User
	if status := ts.call(t, "GET", "/api/auth/profile", token, nil, &me); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if me.ID != id || me.Role != model.RoleStudent || me.RoomNumber != "A101" {
		t.Errorf("unexpected profile: %+v", me)
	}

	// Same email again.
	var body errorBody
	status := ts.call(t, "POST", "/api/auth/register", "", map[string]string{
		"name": "Asha", "email": "ASHA@hostel.test", "password": testPassword,
	}, &body)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", status)
	}

	// Short password and bad room are reported per field.
	status = ts.call(t, "POST", "/api/auth/register", "", map[string]string{
		"name": "Bo", "email": "bo@hostel.test", "password": "short", "room_number": "101",
	}, &body)
	if status != http.StatusBadRequest || body.Kind != apperr.KindValidation {
		t.Fatalf("expected 400 validation, got %d %q", status, body.Kind)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "room_number" {
		t.Errorf("expected room_number field error, got %+v", body.Fields)
	}

	phone := "9876543210"
	if status := ts.call(t, "PUT", "/api/auth/profile", token, map[string]any{"phone": phone}, &me); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if me.Phone != phone {
		t.Errorf("expected phone %s, got %s", phone, me.Phone)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.register(t, "asha", "A101")

	if status := ts.call(t, "POST", "/api/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if status := ts.call(t, "GET", "/api/auth/profile", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestDeactivatedUserIsLockedOut(t *testing.T) {
	ts := newTestServer(t, nil)
	token, id := ts.register(t, "asha", "A101")

	if status := ts.call(t, "DELETE", "/api/users/"+id, ts.adminToken, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if status := ts.call(t, "GET", "/api/auth/profile", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for deactivated user, got %d", status)
	}
	status := ts.call(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "asha@hostel.test", "password": testPassword,
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 login for deactivated user, got %d", status)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/complaints", "/api/resources", "/api/notifications", "/api/users"} {
		if status := ts.call(t, "GET", path, "", nil, nil); status != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, status)
		}
	}
	if status := ts.call(t, "GET", "/api/complaints", "not-a-token", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", status)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.register(t, "asha", "A101")

	var body errorBody
	if status := ts.call(t, "GET", "/api/users", token, nil, &body); status != http.StatusForbidden {
		t.Errorf("expected 403 for student listing users, got %d", status)
	}
	if body.Kind != apperr.KindForbidden {
		t.Errorf("expected kind forbidden, got %q", body.Kind)
	}
	if status := ts.call(t, "GET", "/api/complaints/stats", token, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for student stats, got %d", status)
	}

	warden := ts.warden(t, "wanda", model.BlockA)
	if status := ts.call(t, "GET", "/api/complaints/stats", warden, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 for warden stats, got %d", status)
	}
	if status := ts.call(t, "GET", "/api/users", warden, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for warden listing users, got %d", status)
	}

	// Wardens must be tied to a block.
	status := ts.call(t, "POST", "/api/users", ts.adminToken, map[string]string{
		"name": "Nomad", "email": "nomad@hostel.test", "password": testPassword, "role": "warden",
	}, &body)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for warden without block, got %d", status)
	}
}

func TestComplaintAPIFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	asha, _ := ts.register(t, "asha", "A101")
	ravi, _ := ts.register(t, "ravi", "A102")
	warden := ts.warden(t, "wanda", model.BlockA)

	var c model.Complaint
	if status := ts.call(t, "POST", "/api/complaints", asha, complaintBody("Leaking pipe"), &c); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if c.Status != model.StatusPending || c.HostelBlock != model.BlockA || c.Priority != model.PriorityHigh {
		t.Errorf("unexpected complaint: %+v", c)
	}

	// Same complaint again within the window.
	var body errorBody
	if status := ts.call(t, "POST", "/api/complaints", asha, complaintBody("Leaking pipe"), &body); status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", status)
	}
	if body.Code != "duplicate_complaint" {
		t.Errorf("expected duplicate_complaint, got %q", body.Code)
	}

	// Validation errors carry field names.
	status := ts.call(t, "POST", "/api/complaints", asha, map[string]any{
		"title": "Hi", "description": "Water keeps dripping", "category": "weather",
	}, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	fields := map[string]bool{}
	for _, f := range body.Fields {
		fields[f.Field] = true
	}
	if !fields["title"] || !fields["category"] {
		t.Errorf("expected title and category errors, got %+v", body.Fields)
	}

	// Upvotes: once per user, never your own.
	var votes map[string]int
	if status := ts.call(t, "POST", "/api/complaints/"+c.ID+"/upvote", ravi, nil, &votes); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if votes["upvote_count"] != 1 {
		t.Errorf("expected 1 upvote, got %d", votes["upvote_count"])
	}
	if status := ts.call(t, "POST", "/api/complaints/"+c.ID+"/upvote", ravi, nil, &body); status != http.StatusConflict || body.Code != "already_upvoted" {
		t.Errorf("expected 409 already_upvoted, got %d %q", status, body.Code)
	}
	if status := ts.call(t, "POST", "/api/complaints/"+c.ID+"/upvote", asha, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for own upvote, got %d", status)
	}

	// Only staff change status.
	if status := ts.call(t, "PUT", "/api/complaints/"+c.ID+"/status", asha, map[string]string{"status": "resolved"}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for student status change, got %d", status)
	}
	if status := ts.call(t, "PUT", "/api/complaints/"+c.ID+"/status", warden, map[string]string{"status": "in-progress"}, &c); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if c.Status != model.StatusInProgress {
		t.Errorf("expected in-progress, got %s", c.Status)
	}

	// The reporter can no longer edit it.
	if status := ts.call(t, "PUT", "/api/complaints/"+c.ID, asha, map[string]string{"title": "Leaking pipe again"}, &body); status != http.StatusConflict {
		t.Errorf("expected 409 editing in-progress complaint, got %d", status)
	}

	// Awaiting approval, then the reporter confirms.
	if status := ts.call(t, "PUT", "/api/complaints/"+c.ID+"/status", warden, map[string]string{"status": "awaiting-approval"}, &c); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if status := ts.call(t, "POST", "/api/complaints/"+c.ID+"/confirm", asha, map[string]any{"resolved": true, "rating": 5}, &c); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if c.Status != model.StatusResolved || c.ActualResolutionTime == nil {
		t.Errorf("expected resolved with resolution time, got %+v", c)
	}

	// Resolved is terminal.
	if status := ts.call(t, "PUT", "/api/complaints/"+c.ID+"/status", warden, map[string]string{"status": "in-progress"}, &body); status != http.StatusConflict {
		t.Errorf("expected 409 reopening resolved complaint, got %d", status)
	}

	var list []model.Complaint
	if status := ts.call(t, "GET", "/api/complaints?status=resolved", ravi, nil, &list); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 resolved complaint, got %d", len(list))
	}

	if status := ts.call(t, "GET", "/api/complaints/missing", asha, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestComplaintRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ts := newTestServer(t, ratelimit.New(client, "complaints", 2, 24*time.Hour))
	asha, _ := ts.register(t, "asha", "A101")

	// A rejected filing does not use up the allowance.
	if status := ts.call(t, "POST", "/api/complaints", asha, map[string]any{"title": "x"}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	for i, title := range []string{"Leaking pipe", "Broken tap"} {
		if status := ts.call(t, "POST", "/api/complaints", asha, complaintBody(title), nil); status != http.StatusCreated {
			t.Fatalf("complaint %d: expected 201, got %d", i+1, status)
		}
	}

	resp := ts.do(t, "POST", "/api/complaints", asha, complaintBody("Clogged drain"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	var body errorBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != "rate_limited" || body.RetryAfter <= 0 {
		t.Errorf("unexpected body: %+v", body)
	}
	if secs, _ := strconv.Atoi(resp.Header.Get("Retry-After")); secs != body.RetryAfter {
		t.Errorf("Retry-After header %q does not match body %d", resp.Header.Get("Retry-After"), body.RetryAfter)
	}

	// Reading is not limited.
	if status := ts.call(t, "GET", "/api/complaints", asha, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200, got %d", status)
	}

	// Redis going away lets filings through.
	mr.Close()
	if status := ts.call(t, "POST", "/api/complaints", asha, complaintBody("Clogged drain"), nil); status != http.StatusCreated {
		t.Errorf("expected 201 with limiter down, got %d", status)
	}
}

func TestResourceBorrowFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	owner, _ := ts.register(t, "asha", "A101")
	borrower, borrowerID := ts.register(t, "ravi", "A102")

	var res model.Resource
	status := ts.call(t, "POST", "/api/resources", owner, map[string]any{
		"name":        "Electric kettle",
		"description": "1.5 litre kettle, works fine",
		"category":    "kitchen",
		"condition":   "good",
	}, &res)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if res.Availability != model.Available {
		t.Errorf("expected available, got %s", res.Availability)
	}

	var body errorBody
	if status := ts.call(t, "POST", "/api/resources/"+res.ID+"/requests", owner, nil, &body); status != http.StatusForbidden {
		t.Errorf("expected 403 borrowing own resource, got %d", status)
	}

	var req model.BorrowRequest
	if status := ts.call(t, "POST", "/api/resources/"+res.ID+"/requests", borrower, map[string]string{"message": "for tea"}, &req); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if status := ts.call(t, "POST", "/api/resources/"+res.ID+"/requests", borrower, nil, &body); status != http.StatusConflict {
		t.Errorf("expected 409 for second pending request, got %d", status)
	}

	// Only the owner decides.
	approve := "/api/resources/" + res.ID + "/requests/" + req.ID + "/approve"
	if status := ts.call(t, "POST", approve, borrower, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner approval, got %d", status)
	}
	if status := ts.call(t, "POST", approve, owner, map[string]int{"duration": 3}, &res); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if res.Availability != model.Borrowed || res.CurrentBorrower != borrowerID {
		t.Errorf("expected borrowed by %s, got %s by %s", borrowerID, res.Availability, res.CurrentBorrower)
	}
	if status := ts.call(t, "POST", approve, owner, nil, &body); status != http.StatusConflict {
		t.Errorf("expected 409 approving twice, got %d", status)
	}

	var my hostel.MyResources
	if status := ts.call(t, "GET", "/api/resources/my", borrower, nil, &my); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(my.Borrowed) != 1 {
		t.Errorf("expected 1 borrowed resource, got %d", len(my.Borrowed))
	}

	if status := ts.call(t, "POST", "/api/resources/"+res.ID+"/mark-available", owner, map[string]any{"rating": 4}, &res); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if res.Availability != model.Available || res.TotalBorrows != 1 || res.AverageRating != 4 {
		t.Errorf("unexpected resource after return: %+v", res)
	}

	var page listResponse[model.Resource]
	if status := ts.call(t, "GET", "/api/resources?category=kitchen&limit=5", borrower, nil, &page); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Limit != 5 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestResourceRequestFulfillment(t *testing.T) {
	ts := newTestServer(t, nil)
	asker, askerID := ts.register(t, "asha", "A101")
	helper, helperID := ts.register(t, "ravi", "A102")

	var rr model.ResourceRequest
	status := ts.call(t, "POST", "/api/resource-requests", asker, map[string]string{
		"title":       "Need an umbrella",
		"description": "Forecast says rain all week",
		"category":    "other",
	}, &rr)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}

	var res model.Resource
	if status := ts.call(t, "POST", "/api/resource-requests/"+rr.ID+"/fulfill", helper, map[string]string{"condition": "good"}, &res); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if res.OwnerID != helperID {
		t.Errorf("expected resource owned by %s, got %s", helperID, res.OwnerID)
	}

	if status := ts.call(t, "GET", "/api/resource-requests/"+rr.ID, asker, nil, &rr); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if rr.Status != model.RequestFulfilled || rr.FulfilledResource != res.ID || rr.RequestedBy != askerID {
		t.Errorf("unexpected request: %+v", rr)
	}

	var body errorBody
	if status := ts.call(t, "PUT", "/api/resource-requests/"+rr.ID+"/cancel", asker, nil, &body); status != http.StatusConflict {
		t.Errorf("expected 409 cancelling fulfilled request, got %d", status)
	}

	var page listResponse[model.ResourceRequest]
	if status := ts.call(t, "GET", "/api/resource-requests", asker, nil, &page); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if page.Total != 0 {
		t.Errorf("expected no open requests, got %d", page.Total)
	}
}

func TestNotificationsAPI(t *testing.T) {
	ts := newTestServer(t, nil)
	asha, _ := ts.register(t, "asha", "A101")
	ravi, _ := ts.register(t, "ravi", "A102")
	warden := ts.warden(t, "wanda", model.BlockA)

	var sent map[string]int
	status := ts.call(t, "POST", "/api/notifications/broadcast", warden, map[string]string{
		"title": "Water outage", "message": "No water from 10 to 12 tomorrow",
	}, &sent)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if sent["sent"] != 3 {
		t.Errorf("expected 3 recipients in block A, got %d", sent["sent"])
	}

	var body errorBody
	status = ts.call(t, "POST", "/api/notifications/broadcast", warden, map[string]string{
		"title": "Water outage", "message": "Elsewhere", "hostel_block": "B",
	}, &body)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 broadcasting to another block, got %d", status)
	}
	if status := ts.call(t, "POST", "/api/notifications/broadcast", asha, map[string]string{
		"title": "Party", "message": "Room A101",
	}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for student broadcast, got %d", status)
	}

	var page listResponse[model.Notification]
	if status := ts.call(t, "GET", "/api/notifications?is_read=false", asha, nil, &page); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if page.Total != 1 || page.Items[0].Title != "Water outage" {
		t.Fatalf("unexpected inbox: %+v", page)
	}
	id := page.Items[0].ID

	// Other users cannot touch it.
	if status := ts.call(t, "PUT", "/api/notifications/"+id+"/read", ravi, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for someone else's notification, got %d", status)
	}

	var n model.Notification
	if status := ts.call(t, "PUT", "/api/notifications/"+id+"/read", asha, nil, &n); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !n.IsRead || n.ReadAt == nil {
		t.Errorf("expected read notification, got %+v", n)
	}

	var count map[string]int
	ts.call(t, "GET", "/api/notifications/unread-count", asha, nil, &count)
	if count["unread_count"] != 0 {
		t.Errorf("expected 0 unread, got %d", count["unread_count"])
	}

	var deleted map[string]int64
	if status := ts.call(t, "DELETE", "/api/notifications/read", asha, nil, &deleted); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if deleted["deleted"] != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted["deleted"])
	}

	ts.call(t, "GET", "/api/notifications/unread-count", ravi, nil, &count)
	if count["unread_count"] != 1 {
		t.Errorf("expected 1 unread for ravi, got %d", count["unread_count"])
	}
}

func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := range 40 {
		for y := range 30 {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="kettle.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestResourcePhotoUpload(t *testing.T) {
	ts := newTestServer(t, nil)
	owner, _ := ts.register(t, "asha", "A101")

	var res model.Resource
	ts.call(t, "POST", "/api/resources", owner, map[string]any{
		"name":        "Electric kettle",
		"description": "1.5 litre kettle, works fine",
		"category":    "kitchen",
		"condition":   "good",
	}, &res)

	body, contentType := pngUpload(t)
	req, _ := http.NewRequest("POST", ts.URL+"/api/resources/"+res.ID+"/photo", body)
	req.Header.Set("Authorization", "Bearer "+owner)
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var uploaded map[string]string
	json.NewDecoder(resp.Body).Decode(&uploaded)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Photos are public.
	photo, err := http.Get(ts.URL + uploaded["url"])
	if err != nil {
		t.Fatalf("fetching photo: %v", err)
	}
	defer photo.Body.Close()
	if photo.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", photo.StatusCode)
	}
	if ct := photo.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}

	ts.call(t, "GET", "/api/resources/"+res.ID, owner, nil, &res)
	if len(res.Images) != 1 || res.Images[0] != uploaded["url"] {
		t.Errorf("expected image list [%s], got %v", uploaded["url"], res.Images)
	}

	missing, _ := http.Get(ts.URL + "/uploads/missing.jpg")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing photo, got %d", missing.StatusCode)
	}
}
