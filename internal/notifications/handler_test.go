package notifications_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/daymark-app/daymark/internal/api"
	"github.com/daymark-app/daymark/internal/appctx"
	"github.com/daymark-app/daymark/internal/notifications"
)

// newTestRouter mounts the notifications handler behind a fixed identity.
func newTestRouter(t *testing.T, f *fixture, userID string) http.Handler {
	t.Helper()

	h := notifications.NewHandler(f.svc, f.events, nil)
	r := chi.NewRouter()
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", h.HandleListPending)
		r.Post("/", h.HandleCreate)
		r.Get("/count", h.HandleCount)
		r.Post("/{notificationID}/accept", h.HandleAccept)
		r.Post("/{notificationID}/decline", h.HandleDecline)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if userID != "" {
			req = req.WithContext(appctx.WithUserID(req.Context(), userID))
		}
		r.ServeHTTP(w, req)
	})
}

func TestHandleCreateInvitation(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	router := newTestRouter(t, f, "alice")

	body := `{"receiverId":"bob","eventId":"` + event.EventID + `","message":"join us"}`
	req := httptest.NewRequest(http.MethodPost, "/api/notifications", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var view notifications.NotificationView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.NotificationID == "" || view.Status != "pending" {
		t.Errorf("view = %+v", view)
	}
}

func TestHandleCreateInvitationUnauthenticated(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f, "")

	req := httptest.NewRequest(http.MethodPost, "/api/notifications", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandleListPendingIncludesEventDetails(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	f.invite(t, "alice", "bob", event.EventID)
	router := newTestRouter(t, f, "bob")

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp notifications.PendingListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 1 {
		t.Fatalf("got %d notifications", len(resp.Notifications))
	}
	if resp.Notifications[0].EventTitle != "planning" {
		t.Errorf("eventTitle = %q", resp.Notifications[0].EventTitle)
	}
	if resp.Notifications[0].EventStart == nil {
		t.Error("eventStart missing")
	}
}

func TestHandleCount(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	f.invite(t, "alice", "bob", event.EventID)
	router := newTestRouter(t, f, "bob")

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["count"] != 1 {
		t.Errorf("count = %d, want 1", resp["count"])
	}
}

func TestHandleAccept(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	router := newTestRouter(t, f, "bob")

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.NotificationID+"/accept", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		EventID string `json:"eventId"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "accepted" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.EventID == "" || resp.EventID == event.EventID {
		t.Errorf("eventId = %q must name the receiver's copy", resp.EventID)
	}

	// Second accept surfaces as a conflict with a stable reason code.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.NotificationID+"/accept", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("second accept status = %d, want 409", w.Code)
	}
	var env api.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Error.ReasonCode != api.ReasonAlreadyProcessed {
		t.Errorf("reason_code = %q", env.Error.ReasonCode)
	}
}

func TestHandleDecline(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	router := newTestRouter(t, f, "bob")

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.NotificationID+"/decline", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Accept after decline conflicts.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.NotificationID+"/accept", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("accept after decline status = %d, want 409", w.Code)
	}
}

func TestHandleAcceptMissing(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f, "bob")

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/no-such-id/accept", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// An invitation addressed to someone else is indistinguishable from a
// missing one.
func TestHandleAcceptForeign(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	router := newTestRouter(t, f, "mallory")

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.NotificationID+"/accept", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
