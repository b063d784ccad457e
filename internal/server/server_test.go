package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"checkline/internal/config"
	"checkline/internal/db"
	"checkline/internal/engine"
	"checkline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{AllowLegacyEmailHeader: true},
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
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

var (
	supervisorHeaders = map[string]string{
		"X-User-Email": "boss@example.com",
		"X-User-Name":  "Boss",
		"X-User-Role":  "supervisor",
	}
	collaboratorHeaders = map[string]string{
		"X-User-Email": "worker@example.com",
		"X-User-Name":  "Sam",
		"X-User-Role":  "collaborator",
	}
)

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

func createChecklist(t *testing.T, srv *testServer) ChecklistResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/checklists", map[string]any{
		"title": "Daily safety round",
		"items": []map[string]any{
			{"id": "extinguisher", "text": "Fire extinguisher charged", "type": "checkbox"},
			{"id": "remarks", "text": "Remarks", "type": "text"},
		},
		"category": "safety",
	}, supervisorHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create checklist: %d %s", res.StatusCode, string(data))
	}
	var c ChecklistResponse
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal checklist: %v", err)
	}
	return c
}

func createAssignment(t *testing.T, srv *testServer, checklistID string) AssignmentResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"checklist_id":       checklistID,
		"collaborator_email": "worker@example.com",
		"title":              "Morning round, hall B",
	}, supervisorHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create assignment: %d %s", res.StatusCode, string(data))
	}
	var a AssignmentResponse
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatalf("unmarshal assignment: %v", err)
	}
	return a
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/checklists", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
}

func TestCollaboratorCannotManageChecklists(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/checklists", map[string]any{
		"title": "Sneaky",
		"items": []map[string]any{{"id": "a", "text": "x", "type": "checkbox"}},
	}, collaboratorHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
}

func TestExecutionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	c := createChecklist(t, srv)
	a := createAssignment(t, srv, c.ID)
	if a.Status != "pending" || a.ChecklistTitle != c.Title {
		t.Fatalf("assignment wrong: %+v", a)
	}

	startRes, startBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/executions", map[string]any{
		"assignment_id": a.ID,
	}, collaboratorHeaders)
	if startRes.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %s", startRes.StatusCode, string(startBody))
	}
	var ex ExecutionResponse
	if err := json.Unmarshal(startBody, &ex); err != nil {
		t.Fatalf("unmarshal execution: %v", err)
	}
	if ex.Status != "in_progress" {
		t.Fatalf("execution status = %q", ex.Status)
	}

	// The assignment follows.
	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/assignments/"+a.ID, nil, collaboratorHeaders)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get assignment: %d %s", getRes.StatusCode, string(getBody))
	}
	var fetched AssignmentResponse
	_ = json.Unmarshal(getBody, &fetched)
	if fetched.Status != "in_progress" {
		t.Fatalf("assignment status = %q, want in_progress", fetched.Status)
	}

	// A second concurrent start is refused.
	dupRes, dupBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/executions", map[string]any{
		"assignment_id": a.ID,
	}, collaboratorHeaders)
	if dupRes.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", dupRes.StatusCode, string(dupBody))
	}

	completeRes, completeBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/executions/"+ex.ID+"/complete", map[string]any{
		"responses": []map[string]any{
			{"item_id": "extinguisher", "value": false},
			{"item_id": "remarks", "value": "needs recharge"},
		},
		"notes":    "flagged for maintenance",
		"location": map[string]any{"latitude": 48.8566, "longitude": 2.3522},
	}, collaboratorHeaders)
	if completeRes.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", completeRes.StatusCode, string(completeBody))
	}
	var done ExecutionResponse
	if err := json.Unmarshal(completeBody, &done); err != nil {
		t.Fatalf("unmarshal completed: %v", err)
	}
	if done.Status != "completed" || done.CompletedAt == nil {
		t.Fatalf("completion state wrong: %+v", done)
	}
	if string(done.Responses[0].Value) != "false" {
		t.Fatalf("false answer mangled: %s", string(done.Responses[0].Value))
	}

	getRes, getBody = doJSON(t, client, http.MethodGet, srv.URL+"/v0/assignments/"+a.ID, nil, supervisorHeaders)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get assignment: %d %s", getRes.StatusCode, string(getBody))
	}
	_ = json.Unmarshal(getBody, &fetched)
	if fetched.Status != "completed" {
		t.Fatalf("assignment status = %q, want completed", fetched.Status)
	}
}

func TestStartExecutionOwnership(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	c := createChecklist(t, srv)
	a := createAssignment(t, srv, c.ID)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/executions", map[string]any{
		"assignment_id": a.ID,
	}, map[string]string{"X-User-Email": "other@example.com"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/assignments/nope", nil, supervisorHeaders)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q, want not_found", envelope.Error.Code)
	}
}

func TestCollaboratorListScopedToSelf(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	c := createChecklist(t, srv)
	createAssignment(t, srv, c.ID)
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"checklist_id":       c.ID,
		"collaborator_email": "second@example.com",
		"title":              "Evening round",
	}, supervisorHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create second assignment: %d %s", res.StatusCode, string(data))
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/assignments", nil, collaboratorHeaders)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", listRes.StatusCode, string(listBody))
	}
	var items []AssignmentResponse
	if err := json.Unmarshal(listBody, &items); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(items) != 1 || items[0].CollaboratorEmail != "worker@example.com" {
		t.Fatalf("collaborator sees %d assignments: %+v", len(items), items)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/keys", map[string]any{
		"email": "worker@example.com",
		"name":  "Sam",
		"role":  "collaborator",
	}, supervisorHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var created CreatedAPIKeyResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	if created.Key == "" {
		t.Fatal("plaintext key missing from create response")
	}

	meRes, meBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"X-Api-Key": created.Key,
	})
	if meRes.StatusCode != http.StatusOK {
		t.Fatalf("me with api key: %d %s", meRes.StatusCode, string(meBody))
	}
	var me MeResponse
	_ = json.Unmarshal(meBody, &me)
	if me.Email != "worker@example.com" || me.Source != "api_key" {
		t.Fatalf("principal wrong: %+v", me)
	}
}
