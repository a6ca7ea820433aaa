package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shiftflow/internal/config"
	"shiftflow/internal/db"
	"shiftflow/internal/domain"
	"shiftflow/internal/engine"
	"shiftflow/internal/migrate"
)

type testServer struct {
	URL      string
	Engine   engine.Engine
	Template domain.WorkflowTemplate
	client   *http.Client
	close    func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default("testhouse")
	cfg.Business.Timezone = "UTC"
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, emp := range []struct{ id, name, role string }{
		{"mgr", "Morgan", domain.RoleManager},
		{"alice", "Alice", domain.RoleEmployee},
	} {
		if _, err := e.CreateEmployee(ctx, emp.id, emp.name, emp.role); err != nil {
			t.Fatalf("seed employee: %v", err)
		}
	}
	tpl, err := e.CreateTemplate(ctx, "Opening Checklist", "", "mgr", []engine.TemplateTaskSpec{
		{Title: "Unlock doors", Required: true},
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-jwt-secret",
			JobSecret:              "test-job-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:      "http://" + ln.Addr().String(),
		Engine:   e,
		Template: tpl,
		client:   &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func TestHealthRequiresNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/employees", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "unauthorized" {
		t.Fatalf("unexpected envelope: %v %s", err, string(data))
	}
}

func TestAssignmentFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"template_id": srv.Template.ID,
		"assigned_to": "alice",
	}, asActor("mgr"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create assignment status %d: %s", res.StatusCode, string(data))
	}
	var a domain.Assignment
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatalf("unmarshal assignment: %v", err)
	}
	if a.Status != "pending" || len(a.Tasks) != 1 {
		t.Fatalf("unexpected assignment: %+v", a)
	}

	// employees cannot cancel
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/"+a.ID+"/cancel", nil, asActor("alice"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 cancel, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/"+a.ID+"/start", nil, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status %d: %s", res.StatusCode, string(data))
	}

	// completion gated on the required task
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/"+a.ID+"/complete", nil, asActor("alice"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 complete, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+a.Tasks[0].ID, map[string]any{
		"status":          "completed",
		"completion_note": "done",
	}, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("task update status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/"+a.ID+"/complete", nil, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &a); err != nil || a.Status != "completed" {
		t.Fatalf("unexpected completed assignment: %v %s", err, string(data))
	}
}

func TestJWTAndAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "mgr"})
	signed, err := token.SignedString([]byte("test-jwt-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/employees", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt auth status %d: %s", res.StatusCode, string(data))
	}

	bad, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "mgr"}).SignedString([]byte("wrong"))
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/employees", nil, map[string]string{
		"Authorization": "Bearer " + bad,
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}

	_, plaintext, err := srv.Engine.CreateAPIKey(context.Background(), "alice", "till", "mgr")
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/assignments", nil, map[string]string{
		"X-Api-Key": plaintext,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth status %d: %s", res.StatusCode, string(data))
	}
}

func TestJobEndpointsAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/scheduler/run", nil, map[string]string{
		"Authorization": "Bearer test-job-secret",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("job secret status %d: %s", res.StatusCode, string(data))
	}

	// a plain employee cannot trigger jobs
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/archive/run", nil, asActor("alice"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", res.StatusCode)
	}

	// a manager can
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/archive/run", nil, asActor("mgr"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("manager archive status %d: %s", res.StatusCode, string(data))
	}
	var archive engine.ArchiveResult
	if err := json.Unmarshal(data, &archive); err != nil || archive.WeekEnding != "2024-01-07" {
		t.Fatalf("unexpected archive result: %v %s", err, string(data))
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/assignments/nope", nil, asActor("mgr"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "not_found" {
		t.Fatalf("unexpected envelope: %v %s", err, string(data))
	}
}
