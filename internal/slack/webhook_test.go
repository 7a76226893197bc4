package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backlogalert/internal/backlog"
)

func TestWebhookSendPostsJSON(t *testing.T) {
	var (
		gotMethod string
		gotCT     string
		gotBody   Payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	wh, err := NewWebhook(WebhookConfig{URL: srv.URL, RatePerSec: 100}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	p, _ := BuildPayload([]backlog.Issue{issue("A", "2024-01-01T00:00:00+09:00")}, "今日が期限", "#0084FD")
	if err := wh.Send(context.Background(), p); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotCT != "application/json" {
		t.Fatalf("content-type = %s", gotCT)
	}
	if gotBody.Title() != "今日が期限" || gotBody.Body() != "- 2024-01-01 A\n" {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestWebhookSendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	wh, err := NewWebhook(WebhookConfig{URL: srv.URL, RatePerSec: 100}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	err = wh.Send(context.Background(), Payload{Text: "*x*"})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest || se.Body != "invalid_payload" {
		t.Fatalf("err = %v", err)
	}
}

func TestWebhookSendHonorsContext(t *testing.T) {
	t.Parallel()
	wh, err := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := wh.Send(ctx, Payload{}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestNewWebhookRequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := NewWebhook(WebhookConfig{URL: "  "}, nil); err == nil {
		t.Fatal("expected error")
	}
}
