package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"artledger/internal/attendance"
	"artledger/internal/config"
	"artledger/internal/fees"
	"artledger/internal/notify"
	"artledger/internal/queue"
	"artledger/internal/roster"
	"artledger/internal/store"
)

func testConfig() config.App {
	return config.App{
		Env:           "test",
		JWTIssuer:     "artledger-test",
		JWTSigningKey: "test-signing-secret",
		AdminAPIKey:   "test-admin-key",
		AccessTTL:     10 * time.Minute,
		RefreshTTL:    time.Hour,
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *store.Memory, queue.Queue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemory()
	_ = m.Set(context.Background(), store.KeyStudents, json.RawMessage(`[
		{"id":"1","name":"Asha Verma","rollNumber":"R-01","enrolledClass":"Painting"},
		{"id":"2","name":"Bilal Khan","rollNumber":"R-02","enrolledClass":"Sketching"},
		{"id":"3","name":"Chitra Rao","rollNumber":"R-03","enrolledClass":"Painting"}
	]`))

	cfg := testConfig()
	students := roster.NewCollection(m)
	q := queue.NewInMemory(16)
	h := New(cfg, students, attendance.NewLedger(m), fees.NewLedger(m, students), notify.NewLog(m, students), q)

	r := gin.New()
	h.Register(r)
	return r, m, q
}

func adminToken(t *testing.T, r *gin.Engine) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(`{"admin_key":"test-admin-key"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("token issue = %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("token body: %v", err)
	}
	return body.AccessToken
}

func doJSON(r *gin.Engine, method, path, token string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _, _ := newTestServer(t)

	rec := doJSON(r, http.MethodGet, "/v1/students", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/students", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueTokenRejectsBadKey(t *testing.T) {
	r, _, _ := newTestServer(t)
	rec := doJSON(r, http.MethodPost, "/v1/auth/token", "", `{"admin_key":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListStudentsFiltered(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := adminToken(t, r)

	rec := doJSON(r, http.MethodGet, "/v1/students?class=Painting&search=rao", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Students []roster.Student `json:"students"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	if assert.Len(t, body.Students, 1) {
		assert.Equal(t, roster.ID("3"), body.Students[0].ID)
	}
}

func TestAttendanceSaveAndReload(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := adminToken(t, r)

	rec := doJSON(r, http.MethodPut, "/v1/attendance/days/2026-01-10", token,
		`{"marks":{"1":"present","2":"absent"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var saved struct {
		Summary attendance.Summary `json:"summary"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, 1, saved.Summary.Present)
	assert.Equal(t, 1, saved.Summary.Absent)
	assert.Equal(t, 1, saved.Summary.NotMarked)
	assert.Equal(t, 33.3, saved.Summary.Percentage)

	rec = doJSON(r, http.MethodGet, "/v1/attendance/days/2026-01-10", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Marks map[string]string `json:"marks"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{"1": "present", "2": "absent"}, got.Marks)

	rec = doJSON(r, http.MethodGet, "/v1/attendance/history", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		History []attendance.HistoryRecord `json:"history"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	if assert.Len(t, hist.History, 1) {
		assert.Equal(t, "2026-01-10", hist.History[0].Date)
		assert.Equal(t, 3, hist.History[0].TotalStudents)
	}
}

func TestAttendanceSaveRejectsBadStatus(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := adminToken(t, r)

	rec := doJSON(r, http.MethodPut, "/v1/attendance/days/2026-01-10", token,
		`{"marks":{"1":"late"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceExportCSV(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := adminToken(t, r)

	_ = doJSON(r, http.MethodPut, "/v1/attendance/days/2026-01-10", token,
		`{"marks":{"1":"present"}}`)

	rec := doJSON(r, http.MethodGet, "/v1/attendance/days/2026-01-10/export?class=Painting", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance_2026-01-10.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if assert.Len(t, lines, 3) { // header + two Painting students
		assert.Equal(t, "Roll No,Student Name,Class,Status", lines[0])
		assert.Contains(t, lines[1], "present")
		assert.Contains(t, lines[2], "Not Marked")
	}
}

func TestRecordPaymentFlow(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := adminToken(t, r)

	rec := doJSON(r, http.MethodPost, "/v1/fees/1/payments", token,
		`{"amount":400,"method":"cash"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(r, http.MethodPost, "/v1/fees/1/payments", token,
		`{"amount":-50,"method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/fees", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Accounts []struct {
			Student    roster.Student `json:"student"`
			PaidAmount float64        `json:"paidAmount"`
			Status     string         `json:"status"`
		} `json:"accounts"`
		Stats fees.Stats `json:"stats"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	if assert.Len(t, body.Accounts, 3) {
		assert.Equal(t, float64(400), body.Accounts[0].PaidAmount)
		assert.Equal(t, "partial", body.Accounts[0].Status)
	}
	assert.Equal(t, float64(400), body.Stats.TotalCollection)
}

func TestNotificationFlow(t *testing.T) {
	r, _, q := newTestServer(t)
	token := adminToken(t, r)

	rec := doJSON(r, http.MethodPost, "/v1/notifications", token,
		`{"type":"bulk","recipientType":"all","title":"Annual Exhibition","message":"Submissions open Friday."}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Notification notify.Notification `json:"notification"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 3, created.Notification.RecipientCount)

	// the send was handed to the delivery queue
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	deliveries, err := q.Consume(ctx)
	assert.NoError(t, err)
	select {
	case d := <-deliveries:
		assert.Equal(t, created.Notification.ID, d.NotificationID)
	case <-ctx.Done():
		t.Fatal("no delivery published")
	}

	// empty audience is rejected, not persisted
	rec = doJSON(r, http.MethodPost, "/v1/notifications", token,
		`{"type":"bulk","recipientType":"class","className":"Pottery","title":"T","message":"M"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/notifications?filter=bulk", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	if assert.Len(t, listed.Notifications, 1) {
		assert.Equal(t, created.Notification.ID, listed.Notifications[0].ID)
	}

	// delete twice; second is a no-op
	path := "/v1/notifications/" + strconv.FormatInt(created.Notification.ID, 10)
	rec = doJSON(r, http.MethodDelete, path, token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(r, http.MethodDelete, path, token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/notifications", token, "")
	var after struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Empty(t, after.Notifications)
}

func TestPreviewRecipients(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := adminToken(t, r)

	rec := doJSON(r, http.MethodGet, "/v1/notifications/recipients?type=class&class=Painting", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = doJSON(r, http.MethodGet, "/v1/notifications/recipients?type=class&class=Pottery", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodGet, "/v1/notifications/recipients?type=somebody", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
