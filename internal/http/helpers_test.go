package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sally802528/grade-query-education-system/internal/auth"
	"github.com/sally802528/grade-query-education-system/internal/config"
	"github.com/sally802528/grade-query-education-system/internal/crypto"
	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/storage"
	"github.com/sally802528/grade-query-education-system/internal/throttle"
)

const (
	teacherID = "T999"
	studentID = "S1001"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:       ":0",
		JWTSecret:      "test-secret",
		JWTIssuer:      "test-issuer",
		AccessTokenTTL: 15 * time.Minute,
		MaxUploadBytes: 1 << 20,
	}
}

type testApp struct {
	cfg    config.Config
	store  *fakeStore
	server *Server
	app    *httptest.Server
}

func newTestApp(t *testing.T, cfg config.Config, limiter *throttle.LoginThrottle) *testApp {
	t.Helper()
	files, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("storage error: %v", err)
	}
	store := newFakeStore()
	seedUser(t, store, teacherID, "系統管理員", model.RoleTeacher, "teacher-pass")
	seedUser(t, store, studentID, "王小明", model.RoleStudent, "student-pass")

	server := NewServer(cfg, testGuard(cfg), store, files, limiter)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return &testApp{cfg: cfg, store: store, server: server, app: app}
}

func testGuard(cfg config.Config) *auth.Guard {
	return auth.NewGuard(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer))
}

func seedUser(t *testing.T, store *fakeStore, id, name string, role model.Role, password string) {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	class := "資工一甲"
	now := time.Now().UTC()
	store.users[id] = model.User{
		UserID:       id,
		PasswordHash: hash,
		Role:         role,
		Name:         name,
		Class:        &class,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func mustToken(t *testing.T, cfg config.Config, userID string, role model.Role) string {
	t.Helper()
	token, _, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, 10*time.Minute).Issue(userID, role)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func messageOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	return body.Message
}
