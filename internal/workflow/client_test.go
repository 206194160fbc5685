package workflow

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInvokeHitsWebhookPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(slog.Default())
	if err := client.Invoke(context.Background(), server.URL, "wh-1", InvokePayload{Content: "ping"}, false); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if gotPath != "/webhook/wh-1/webhook" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestInvokeUsesTestPathInTestMode(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(slog.Default())
	if err := client.Invoke(context.Background(), server.URL, "wh-1", InvokePayload{}, true); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if gotPath != "/webhook-test/wh-1/webhook" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestInvokeNon2xxIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(slog.Default())
	if err := client.Invoke(context.Background(), server.URL, "wh-1", InvokePayload{}, false); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestExecutionStatusCarriesAPIKey(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-N8N-API-KEY")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"finished":false,"stoppedAt":"2026-08-30T00:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(slog.Default())
	status, err := client.ExecutionStatusFor(context.Background(), server.URL, "secret", "e1")
	if err != nil {
		t.Fatalf("status fetch failed: %v", err)
	}
	if gotPath != "/executions/e1" || gotKey != "secret" {
		t.Fatalf("unexpected request: path=%s key=%s", gotPath, gotKey)
	}
	if !status.Done() {
		t.Fatal("a stopped execution counts as done")
	}
}

func TestExecutionStatusNotDoneWhileRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"finished":false,"stoppedAt":null}`))
	}))
	defer server.Close()

	client := NewClient(slog.Default())
	status, err := client.ExecutionStatusFor(context.Background(), server.URL, "", "e1")
	if err != nil {
		t.Fatalf("status fetch failed: %v", err)
	}
	if status.Done() {
		t.Fatal("running execution must not be done")
	}
}
