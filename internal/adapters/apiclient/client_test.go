package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatrex/internal/domain"
)

func TestVerifyChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verify-chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "s3cret" {
			t.Errorf("expected shared secret header, got %q", got)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["hash"] != "deadbeef" {
			t.Errorf("unexpected hash %q", payload["hash"])
		}
		json.NewEncoder(w).Encode(domain.VerifyResult{OK: true, ProgressTimestamp: "02/12/23, 7:27:49 AM"})
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithSecret("s3cret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := client.VerifyChat(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK || result.ProgressTimestamp != "02/12/23, 7:27:49 AM" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExtractBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/extract-recs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Batch []domain.Message `json:"batch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Batch) != 2 {
			t.Errorf("expected 2 messages, got %d", len(payload.Batch))
		}
		json.NewEncoder(w).Encode(domain.BatchResult{
			OK:                true,
			ProgressTimestamp: payload.Batch[len(payload.Batch)-1].Timestamp,
			Usage:             domain.TokenUsage{PromptTokens: 10, CompletionTokens: 2},
		})
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := client.ExtractBatch(context.Background(), []domain.Message{
		{Timestamp: "02/12/23, 7:27:49 AM", Sender: "A", Text: "раз"},
		{Timestamp: "02/12/23, 7:28:00 AM", Sender: "D", Text: "два"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK || result.ProgressTimestamp != "02/12/23, 7:28:00 AM" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Usage.PromptTokens != 10 {
		t.Fatalf("usage lost: %+v", result.Usage)
	}
}

func TestServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.VerifyChat(context.Background(), "deadbeef"); err == nil {
		t.Fatal("expected an error for 5xx response")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected an error for empty base URL")
	}
}
