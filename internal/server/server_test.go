package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"backlogalert/internal/alert"
	"backlogalert/internal/storage"
	logx "backlogalert/pkg/logx"
)

type fakeRunner struct {
	err      error
	triggers []string
}

func (f *fakeRunner) Run(_ context.Context, trigger string) (alert.Report, error) {
	f.triggers = append(f.triggers, trigger)
	return alert.Report{Trigger: trigger}, f.err
}

type fakeStore struct {
	recs      []storage.DeliveryRecord
	err       error
	lastLimit int
}

func (f *fakeStore) RecentDeliveries(_ context.Context, limit int) ([]storage.DeliveryRecord, error) {
	f.lastLimit = limit
	return f.recs, f.err
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestTriggerAlert(t *testing.T) {
	r := &fakeRunner{}
	s := New(Config{Mode: gin.TestMode}, r, nil, logx.Nop())

	w := do(t, s.Handler(), "/task/alert")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if len(r.triggers) != 1 || r.triggers[0] != "http" {
		t.Fatalf("triggers = %v", r.triggers)
	}

	r.err = errors.New("parse failed")
	w = do(t, s.Handler(), "/task/alert")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := New(Config{Mode: gin.TestMode}, &fakeRunner{}, nil, logx.Nop())
	w := do(t, s.Handler(), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeliveriesDisabled(t *testing.T) {
	s := New(Config{Mode: gin.TestMode}, &fakeRunner{}, nil, logx.Nop())
	if w := do(t, s.Handler(), "/deliveries"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeliveries(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	st := &fakeStore{recs: []storage.DeliveryRecord{{RunID: 1, At: at, Trigger: "cron", Kind: "due_soon", Title: "もうすぐ期限切れ", Issues: 1, Sent: []string{"slack"}}}}
	s := New(Config{Mode: gin.TestMode}, &fakeRunner{}, st, logx.Nop())

	w := do(t, s.Handler(), "/deliveries?limit=500")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if st.lastLimit != maxDeliveryLimit {
		t.Fatalf("limit = %d, want clamp to %d", st.lastLimit, maxDeliveryLimit)
	}
	var body struct {
		Deliveries []storage.DeliveryRecord `json:"deliveries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Deliveries) != 1 || body.Deliveries[0].Title != "もうすぐ期限切れ" {
		t.Fatalf("body = %s", w.Body.String())
	}

	if w := do(t, s.Handler(), "/deliveries?limit=abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	do(t, s.Handler(), "/deliveries")
	if st.lastLimit != defaultDeliveryLimit {
		t.Fatalf("default limit = %d", st.lastLimit)
	}

	st.err = errors.New("disk gone")
	if w := do(t, s.Handler(), "/deliveries"); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	st.err = storage.ErrDisabled
	if w := do(t, s.Handler(), "/deliveries"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Mode: gin.TestMode}, &fakeRunner{}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPprofRequiresToken(t *testing.T) {
	s := New(Config{Addr: ":8080", Mode: gin.TestMode, Pprof: PprofConfig{Enabled: true, Token: "s3cret"}}, &fakeRunner{}, nil, logx.Nop())
	if w := do(t, s.Handler(), "/debug/pprof/cmdline"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w := do(t, s.Handler(), "/debug/pprof/cmdline?token=s3cret"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("index status = %d", w.Code)
	}
}

func TestPprofNotMountedOnPublicAddrWithoutToken(t *testing.T) {
	s := New(Config{Addr: ":8080", Mode: gin.TestMode, Pprof: PprofConfig{Enabled: true}}, &fakeRunner{}, nil, logx.Nop())
	if w := do(t, s.Handler(), "/debug/pprof/"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	s = New(Config{Addr: "127.0.0.1:6060", Mode: gin.TestMode, Pprof: PprofConfig{Enabled: true}}, &fakeRunner{}, nil, logx.Nop())
	if w := do(t, s.Handler(), "/debug/pprof/cmdline"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:80":   true,
		"[::1]:80":       true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"bad":            false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v", addr, got)
		}
	}
}
