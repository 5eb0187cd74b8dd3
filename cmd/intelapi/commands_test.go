package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/intelapi/internal/api"
	"github.com/kalambet/intelapi/internal/config"
	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/ollama"
	"github.com/kalambet/intelapi/internal/session"
	"github.com/kalambet/intelapi/internal/storage"
)

// fakeEngine replays scripted snapshots and records the last request.
type fakeEngine struct {
	snapshots []engine.Generation
	last      engine.Request
}

func (f *fakeEngine) Respond(_ context.Context, req engine.Request) (engine.Generation, error) {
	f.last = req
	if len(f.snapshots) == 0 {
		return engine.Generation{}, nil
	}
	return f.snapshots[len(f.snapshots)-1], nil
}

func (f *fakeEngine) Stream(_ context.Context, req engine.Request, onSnapshot func(engine.Generation) error) error {
	f.last = req
	for _, s := range f.snapshots {
		if err := onSnapshot(s); err != nil {
			return err
		}
	}
	return nil
}

func snapshots(texts ...string) []engine.Generation {
	out := make([]engine.Generation, len(texts))
	for i, t := range texts {
		out[i] = engine.Generation{Text: t}
	}
	return out
}

type testServer struct {
	server *httptest.Server
	store  *storage.Store
}

// newTestServer runs the real API handler over a fake engine.
func newTestServer(t *testing.T, eng engine.Engine) *testServer {
	t.Helper()
	catalog, err := session.NewCatalog(
		session.Model{Name: session.ModelBase, Engine: eng},
		session.Model{Name: session.ModelPermissive, Engine: eng},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ts := &testServer{store: store}
	ts.server = httptest.NewServer(api.NewOpenAIHandler(api.Deps{Catalog: catalog, Log: store}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

func withNoColor(t *testing.T) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })
}

var ctx = context.Background()

func TestListModels(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	var out bytes.Buffer
	if err := listModels(ctx, ts.client(), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "base\npermissive\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestChatTurn_NonStreaming(t *testing.T) {
	withNoColor(t)
	eng := &fakeEngine{snapshots: snapshots("Hi there.")}
	ts := newTestServer(t, eng)

	opts := chatOptions{model: "base", system: "be brief", temperature: 0.2, seed: 7}
	var out bytes.Buffer
	history, err := chatTurn(ctx, ts.client().openAI(), opts, initialHistory(opts), "hello", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.String() != "Hi there.\n" {
		t.Errorf("output = %q", out.String())
	}
	if len(history) != 3 {
		t.Errorf("history has %d messages, want 3", len(history))
	}
	if eng.last.Prompt != "hello" {
		t.Errorf("engine prompt = %q", eng.last.Prompt)
	}
	if eng.last.Options.Temperature == nil || *eng.last.Options.Temperature != 0.2 {
		t.Errorf("temperature = %v", eng.last.Options.Temperature)
	}
	if eng.last.Transcript.Len() != 1 {
		t.Errorf("transcript has %d entries, want 1 (instructions)", eng.last.Transcript.Len())
	}
}

func TestChatTurn_Streaming(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, &fakeEngine{snapshots: snapshots("Hel", "Hello")})

	var out bytes.Buffer
	_, err := chatTurn(ctx, ts.client().openAI(), chatOptions{model: "permissive", stream: true, temperature: -1, seed: -1}, nil, "hi", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "Hello\n" {
		t.Errorf("output = %q", out.String())
	}

	gens, err := ts.store.RecentGenerations(1)
	if err != nil || len(gens) != 1 || !gens[0].Stream || gens[0].Model != "permissive" {
		t.Errorf("logged generations = %+v, %v", gens, err)
	}
}

func TestChatTurn_Schema(t *testing.T) {
	withNoColor(t)
	eng := &fakeEngine{snapshots: snapshots(`{"ok":true}`)}
	ts := newTestServer(t, eng)

	opts := chatOptions{
		model:       "base",
		temperature: -1,
		seed:        -1,
		schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"ok": map[string]any{"type": "boolean"}},
			"required":   []any{"ok"},
		},
	}
	var out bytes.Buffer
	if _, err := chatTurn(ctx, ts.client().openAI(), opts, nil, "ok?", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.last.Schema == nil {
		t.Fatal("engine did not receive a schema")
	}
	if strings.TrimSpace(out.String()) != `{"ok":true}` {
		t.Errorf("output = %q", out.String())
	}
}

func TestChatTurn_RequestError(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	_, err := chatTurn(ctx, ts.client().openAI(), chatOptions{model: "nope", temperature: -1, seed: -1}, nil, "hi", &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want a 400", err)
	}
}

func TestChatREPL(t *testing.T) {
	withNoColor(t)
	eng := &fakeEngine{snapshots: snapshots("pong")}
	ts := newTestServer(t, eng)

	in := strings.NewReader("ping\n\nping again\n/exit\nignored\n")
	var out bytes.Buffer
	if err := chatREPL(ctx, ts.client().openAI(), chatOptions{model: "base", temperature: -1, seed: -1}, in, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Count(out.String(), "pong"); got != 2 {
		t.Errorf("got %d replies, want 2: %q", got, out.String())
	}
	if eng.last.Prompt != "ping again" {
		t.Errorf("last prompt = %q", eng.last.Prompt)
	}
	// The second turn carries the first exchange.
	if eng.last.Transcript.Len() != 2 {
		t.Errorf("transcript has %d entries, want 2", eng.last.Transcript.Len())
	}
}

func TestListGenerations(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	err := ts.store.SaveGeneration(storage.Generation{
		ID: "gen-xyz", CreatedAt: created, Model: "base", Mode: "chat", FinishReason: "stop", DurationMs: 1500,
	})
	if err != nil {
		t.Fatalf("SaveGeneration: %v", err)
	}

	var out bytes.Buffer
	if err := listGenerations(ctx, ts.client(), 5, false, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "gen-xyz") || !strings.Contains(lines[1], "1.5s") {
		t.Errorf("table = %q", out.String())
	}

	out.Reset()
	if err := listGenerations(ctx, ts.client(), 5, true, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var gens []storage.Generation
	if err := json.Unmarshal(out.Bytes(), &gens); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if len(gens) != 1 || gens[0].ID != "gen-xyz" {
		t.Errorf("gens = %+v", gens)
	}
}

func TestListGenerations_Empty(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	var out bytes.Buffer
	if err := listGenerations(ctx, ts.client(), 5, false, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No generations") {
		t.Errorf("output = %q", out.String())
	}
}

func TestShowGeneration(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})
	err := ts.store.SaveGeneration(storage.Generation{
		ID: "gen-one", CreatedAt: time.Now(), Model: "base", Mode: "chat", FinishReason: "length",
	})
	if err != nil {
		t.Fatalf("SaveGeneration: %v", err)
	}

	var out bytes.Buffer
	if err := showGeneration(ctx, ts.client(), "gen-one", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var g storage.Generation
	if err := json.Unmarshal(out.Bytes(), &g); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if g.ID != "gen-one" || g.FinishReason != "length" {
		t.Errorf("generation = %+v", g)
	}

	err = showGeneration(ctx, ts.client(), "gen-none", &out)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("missing generation err = %v, want 404", err)
	}
}

func TestShowGenerationSummary(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})
	for i, reason := range []string{"stop", "stop", "error"} {
		err := ts.store.SaveGeneration(storage.Generation{
			ID: fmt.Sprintf("gen-%d", i), CreatedAt: time.Now(), Model: "base", Mode: "chat", FinishReason: reason,
		})
		if err != nil {
			t.Fatalf("SaveGeneration: %v", err)
		}
	}

	var out bytes.Buffer
	if err := showGenerationSummary(ctx, ts.client(), false, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 2 reasons + total: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "error") || !strings.HasPrefix(lines[2], "stop") || !strings.Contains(lines[3], "3") {
		t.Errorf("table = %q", out.String())
	}

	out.Reset()
	if err := showGenerationSummary(ctx, ts.client(), true, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"total": 3`) {
		t.Errorf("json = %q", out.String())
	}
}

func TestDecodeJSON_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad things","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	resp, err := c.get(ctx, "/anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v any
	err = decodeJSON(resp, &v)
	if err == nil || err.Error() != "server returned 400: bad things" {
		t.Errorf("err = %v", err)
	}
}

func TestServerNotReachable(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", httpClient: &http.Client{Timeout: time.Second}}
	_, err := c.get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "is intelapi running") {
		t.Errorf("err = %v", err)
	}
}

func TestBuildCatalog(t *testing.T) {
	cfg := config.Config{}
	cfg.Ollama.Model = "llama3.2"
	cfg.Guardrails.Threshold = 0.85

	catalog, backends, err := buildCatalog(cfg, ollama.New("http://localhost:11434"))
	if err != nil {
		t.Fatalf("buildCatalog: %v", err)
	}
	names := catalog.Names()
	if len(names) != 2 || names[0] != "base" || names[1] != "permissive" {
		t.Errorf("names = %v", names)
	}
	if backends[0].Model() != "llama3.2" || backends[1].Model() != "llama3.2" {
		t.Errorf("permissive model should fall back to base: %s, %s", backends[0].Model(), backends[1].Model())
	}

	cfg.Ollama.PermissiveModel = "dolphin"
	_, backends, err = buildCatalog(cfg, ollama.New("http://localhost:11434"))
	if err != nil {
		t.Fatalf("buildCatalog: %v", err)
	}
	if backends[1].Model() != "dolphin" {
		t.Errorf("permissive model = %s, want dolphin", backends[1].Model())
	}
}

func TestServerURL(t *testing.T) {
	cfg := config.Config{Server: config.ServerConfig{Host: "0.0.0.0", Port: 9000}}
	if got := serverURL(cfg); got != "http://127.0.0.1:9000" {
		t.Errorf("serverURL = %q", got)
	}
	cfg.Server.Host = "10.0.0.5"
	if got := serverURL(cfg); got != "http://10.0.0.5:9000" {
		t.Errorf("serverURL = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "info": "INFO", "bogus": "INFO"}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "intelapi.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil || pid != os.Getpid() {
		t.Errorf("readPIDFile = %d, %v", pid, err)
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after remove")
	}
}

func TestChatOptionsFromFlags_Schema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	os.WriteFile(path, []byte(`{"type":"object","properties":{"a":{"type":"string"}}}`), 0o644)

	chatCmd.Flags().Set("schema", path)
	defer chatCmd.Flags().Set("schema", "")

	opts, err := chatOptionsFromFlags(chatCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.schema["type"] != "object" || opts.model != "base" || opts.temperature != -1 {
		t.Errorf("opts = %+v", opts)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"start", "stop", "status", "models", "chat", "generations", "config"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "hello"); strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "hello"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
