package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"backlogalert/internal/slack"
	logx "backlogalert/pkg/logx"
)

type recordingSink struct {
	name string
	err  error
	got  []slack.Payload
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(_ context.Context, p slack.Payload) error {
	r.got = append(r.got, p)
	return r.err
}

func payload(title string) slack.Payload {
	p, _ := slack.BuildPayload(nil, title, "#000000")
	return p
}

func TestDeliverSkippedByGuard(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{name: "slack"}
	svc := New(func() bool { return true }, logx.Nop(), sink)

	res := svc.Deliver(context.Background(), payload("期限切れ"))
	if !res.Skipped || res.OK() {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if len(sink.got) != 0 {
		t.Fatalf("sink received %d payloads", len(sink.got))
	}
}

func TestDeliverSwallowsSinkErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	bad := &recordingSink{name: "slack", err: boom}
	good := &recordingSink{name: "telegram"}
	svc := New(nil, logx.Nop(), bad, good)

	res := svc.Deliver(context.Background(), payload("今日が期限"))
	if res.OK() || res.Skipped {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("Err = %v, want wrapping %v", res.Err, boom)
	}
	if diff := cmp.Diff([]string{"telegram"}, res.Sent); diff != "" {
		t.Fatalf("sent mismatch (-want +got):\n%s", diff)
	}
	if len(good.got) != 1 {
		t.Fatal("later sinks must still receive the payload")
	}
}

func TestEnvGuard(t *testing.T) {
	t.Setenv("GAE_ENV", "localdev-1")
	if !EnvGuard("GAE_ENV", "localdev")() {
		t.Fatal("guard should be active")
	}
	t.Setenv("GAE_ENV", "standard")
	if EnvGuard("GAE_ENV", "localdev")() {
		t.Fatal("guard should be inactive")
	}
	if EnvGuard("", "localdev")() {
		t.Fatal("empty variable name disables the guard")
	}
}

func TestSinks(t *testing.T) {
	t.Parallel()
	svc := New(nil, logx.Nop(), &recordingSink{name: "slack"}, &recordingSink{name: "telegram"})
	if diff := cmp.Diff([]string{"slack", "telegram"}, svc.Sinks()); diff != "" {
		t.Fatal(diff)
	}
}
