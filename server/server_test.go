package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbukum/graphflow/component"
	"github.com/kbukum/graphflow/dag"
	"github.com/kbukum/graphflow/graph"
	"github.com/kbukum/graphflow/llm"
	"github.com/kbukum/graphflow/logger"
	"github.com/kbukum/graphflow/logic"
	"github.com/kbukum/graphflow/registry"
	"github.com/kbukum/graphflow/service"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Retryable bool           `json:"retryable"`
		Details   map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, checker func(context.Context) []component.Health) *Server {
	t.Helper()
	router := llm.NewRouter(llm.Config{Provider: llm.ProviderEcho}, llm.WithLogger(logger.Nop()))
	engine := dag.NewEngine(dag.Config{}, dag.Binder{
		Logic:  logic.NewResolver(logic.NewBuiltins(), logic.DefaultPolicy()),
		Models: router,
	}, dag.WithEngineLogger(logger.Nop()))
	svc := service.New(registry.NewMemory(registry.WithLogger(logger.Nop())), engine, service.WithLogger(logger.Nop()))

	cfg := Config{}
	cfg.ApplyDefaults()
	s := New(cfg, logger.Nop())
	s.ApplyMiddleware(nil)
	s.RegisterDefaultEndpoints("graphflow", checker, nil)
	NewHandlers(svc).Register(s.GinEngine())
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr, env
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func createGraph(t *testing.T, s *Server) string {
	t.Helper()
	rr, env := do(t, s, "POST", "/graph", nil)
	expectStatus(t, rr, http.StatusCreated)
	var created service.CreateGraphResponse
	if err := json.Unmarshal(env.Data, &created); err != nil || created.GraphID == "" {
		t.Fatalf("expected graph id, got %s (%v)", env.Data, err)
	}
	return created.GraphID
}

func TestServer_Root(t *testing.T) {
	s := newTestServer(t, nil)
	rr, env := do(t, s, "GET", "/", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(string(env.Data), "running") {
		t.Errorf("unexpected banner %s", env.Data)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

func TestServer_BuildAndRunScenario(t *testing.T) {
	s := newTestServer(t, nil)
	id := createGraph(t, s)
	base := "/graph/" + id

	steps := []struct {
		path string
		body any
	}{
		{base + "/node", map[string]any{"config": map[string]any{"name": "A", "output": "a"}}},
		{base + "/node", map[string]any{"config": map[string]any{"name": "B", "prompt": "answer"}, "before_node": "A"}},
		{base + "/node", map[string]any{"config": map[string]any{"name": "C", "output": "c"}, "before_node": "A", "after_node": "B"}},
	}
	for _, step := range steps {
		rr, _ := do(t, s, "POST", step.path, step.body)
		expectStatus(t, rr, http.StatusOK)
	}

	rr, env := do(t, s, "GET", base, nil)
	expectStatus(t, rr, http.StatusOK)
	var view service.GraphView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Stages) != 3 || view.Stages[1][0] != "C" {
		t.Fatalf("expected stages A, C, B, got %v", view.Stages)
	}
	if !strings.Contains(view.Graph, "C ──▶ B") {
		t.Errorf("expected rendering to contain C ──▶ B:\n%s", view.Graph)
	}

	rr, env = do(t, s, "POST", base+"/run", map[string]any{"text": "hello"})
	expectStatus(t, rr, http.StatusOK)
	var run service.RunResponse
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Status != "completed" {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	want := map[string]any{"A": "a", "B": "c", "C": "c"}
	for k, v := range want {
		if run.Result.Output[k] != v {
			t.Errorf("output[%s]: expected %v, got %v", k, v, run.Result.Output[k])
		}
	}
	if len(run.Result.Input) != 1 || run.Result.Input[0] != "hello" {
		t.Errorf("expected input [hello], got %v", run.Result.Input)
	}
}

func TestServer_ErrorEnvelopes(t *testing.T) {
	s := newTestServer(t, nil)
	id := createGraph(t, s)
	base := "/graph/" + id
	rr, _ := do(t, s, "POST", base+"/node", map[string]any{"config": map[string]any{"name": "A"}})
	expectStatus(t, rr, http.StatusOK)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown graph", "GET", "/graph/missing", nil, http.StatusNotFound, "NOT_FOUND"},
		{"duplicate node", "POST", base + "/node", map[string]any{"config": map[string]any{"name": "A"}}, http.StatusConflict, "DUPLICATE_NODE"},
		{"reserved name", "POST", base + "/node", map[string]any{"config": map[string]any{"name": "end"}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"malformed body", "POST", base + "/node", "{", http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown reference", "POST", base + "/edge", map[string]any{"source": "A", "target": "Z"}, http.StatusBadRequest, "UNKNOWN_REFERENCE"},
		{"self loop", "POST", base + "/edge", map[string]any{"source": "A", "target": "A"}, http.StatusConflict, "CYCLE_DETECTED"},
		{"unknown node update", "PUT", base + "/node/Z", map[string]any{"output": "z"}, http.StatusNotFound, "UNKNOWN_NODE"},
		{"missing run input", "POST", base + "/run", map[string]any{}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown route", "GET", "/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", "PATCH", base, nil, http.StatusMethodNotAllowed, "INVALID_INPUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr, env := do(t, s, tc.method, tc.path, tc.body)
			expectStatus(t, rr, tc.status)
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected error code %s, got %s", tc.code, rr.Body.String())
			}
		})
	}
}

func TestServer_RunFailureCarriesPartialState(t *testing.T) {
	s := newTestServer(t, nil)
	id := createGraph(t, s)
	base := "/graph/" + id
	do(t, s, "POST", base+"/node", map[string]any{"config": map[string]any{"name": "A", "output": "a"}})
	do(t, s, "POST", base+"/node", map[string]any{
		"config": map[string]any{"name": "B", "logic": "go:missing"}, "before_node": "A",
	})

	rr, env := do(t, s, "POST", base+"/run", map[string]any{"text": "x"})
	expectStatus(t, rr, http.StatusInternalServerError)
	if env.Error == nil || env.Error.Code != "NODE_EXECUTION_ERROR" {
		t.Fatalf("expected NODE_EXECUTION_ERROR, got %s", rr.Body.String())
	}
	partial, ok := env.Error.Details["partial_state"].(map[string]any)
	if !ok {
		t.Fatalf("expected partial_state detail, got %v", env.Error.Details)
	}
	output, _ := partial["output"].(map[string]any)
	if output["A"] != "a" {
		t.Errorf("expected stage 0 output in partial state, got %v", partial)
	}
	if env.Error.Details["run_id"] == "" {
		t.Error("expected run_id detail")
	}
}

func TestServer_EdgeLifecycleAndDeletes(t *testing.T) {
	s := newTestServer(t, nil)
	id := createGraph(t, s)
	base := "/graph/" + id
	for _, name := range []string{"A", "B", "C"} {
		rr, _ := do(t, s, "POST", base+"/node", map[string]any{"config": map[string]any{"name": name}})
		expectStatus(t, rr, http.StatusOK)
	}

	rr, _ := do(t, s, "POST", base+"/edge", map[string]any{"source": "A", "target": "B"})
	expectStatus(t, rr, http.StatusOK)
	rr, _ = do(t, s, "PUT", base+"/edge", map[string]any{"source": "A", "target": "B", "new_target": "C"})
	expectStatus(t, rr, http.StatusOK)
	rr, _ = do(t, s, "DELETE", base+"/edge", map[string]any{"source": "A", "target": "C"})
	expectStatus(t, rr, http.StatusOK)
	rr, _ = do(t, s, "DELETE", base+"/node/B", nil)
	expectStatus(t, rr, http.StatusOK)

	rr, env := do(t, s, "GET", base+"/export", nil)
	expectStatus(t, rr, http.StatusOK)
	var doc struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Nodes) != 2 || len(doc.Edges) != 0 {
		t.Fatalf("expected 2 nodes and no edges, got %+v", doc)
	}

	rr, _ = do(t, s, "DELETE", base, nil)
	expectStatus(t, rr, http.StatusNoContent)
	rr, _ = do(t, s, "GET", base, nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestServer_ExportImportYAML(t *testing.T) {
	s := newTestServer(t, nil)
	id := createGraph(t, s)
	base := "/graph/" + id
	do(t, s, "POST", base+"/node", map[string]any{"config": map[string]any{"name": "A", "output": "a"}})
	do(t, s, "POST", base+"/node", map[string]any{"config": map[string]any{"name": "B", "output": "b"}, "before_node": "A"})

	rr, _ := do(t, s, "GET", base+"/export?format=yaml", nil)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); ct != contentTypeYAML {
		t.Fatalf("expected YAML content type, got %s", ct)
	}
	doc, err := graph.ParseDocument(rr.Body.Bytes(), false)
	if err != nil {
		t.Fatalf("parse exported YAML: %v", err)
	}
	doc.ID = "copy"
	data, err := graph.MarshalYAML(doc)
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}

	req := httptest.NewRequest("POST", "/graph/import", bytes.NewReader(data))
	req.Header.Set("Content-Type", contentTypeYAML)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusCreated)

	rr, env := do(t, s, "GET", "/graph", nil)
	expectStatus(t, rr, http.StatusOK)
	var list []service.GraphSummary
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 graphs, got %d", len(list))
	}
	rr, env = do(t, s, "GET", "/graph/copy", nil)
	expectStatus(t, rr, http.StatusOK)
	var view service.GraphView
	_ = json.Unmarshal(env.Data, &view)
	if view.Nodes != 2 || view.Edges != 1 {
		t.Errorf("expected imported copy with 2 nodes and 1 edge, got %+v", view.GraphSummary)
	}

	rr, _ = do(t, s, "POST", "/graph/import", "not: [valid")
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestServer_SystemEndpoints(t *testing.T) {
	unhealthy := func(context.Context) []component.Health {
		return []component.Health{
			{Name: "graph-registry", Status: component.StatusHealthy},
			{Name: "llm", Status: component.StatusUnhealthy, Message: "no key"},
		}
	}
	s := newTestServer(t, unhealthy)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusServiceUnavailable},
		{"/ready", http.StatusServiceUnavailable},
		{"/alive", http.StatusOK},
		{"/info", http.StatusOK},
		{"/version", http.StatusOK},
		{"/metrics", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", tc.path, http.NoBody))
			expectStatus(t, rr, tc.status)
		})
	}

	routes := s.Routes()
	if routes[0].Path != "/" || routes[len(routes)-1].Handler == "" {
		t.Errorf("unexpected route ordering %+v", routes[:2])
	}
	if !strings.HasSuffix(routes[len(routes)-1].Handler, "(system)") {
		t.Errorf("expected system routes last, got %+v", routes[len(routes)-1])
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"github.com/kbukum/graphflow/server.(*Handlers).AddNode-fm", "Handlers.AddNode"},
		{"github.com/kbukum/graphflow/server/endpoint.Health.func1", "health"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := formatHandlerName(tc.in); got != tc.want {
				t.Errorf("formatHandlerName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestConfig_DefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.MaxBodySize != "10MB" || cfg.Addr() != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid port to fail")
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0
	s := New(cfg, logger.Nop())
	s.RegisterDefaultEndpoints("graphflow", nil, nil)
	comp := NewComponent(s)

	if comp.Health(context.Background()).Status != component.StatusUnhealthy {
		t.Error("expected unhealthy before start")
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/alive")
	if err != nil {
		t.Fatalf("GET /alive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if comp.Health(context.Background()).Status != component.StatusHealthy {
		t.Error("expected healthy while serving")
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
