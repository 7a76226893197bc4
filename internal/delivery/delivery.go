// Package delivery sends rendered alerts to the configured sinks.
//
// Delivery is best-effort: failures are captured in a Result and logged,
// never returned as errors. There are no retries.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"backlogalert/internal/slack"
	logx "backlogalert/pkg/logx"
)

// Sink is one outbound channel (Slack webhook, Telegram chat, ...).
type Sink interface {
	Name() string
	Send(ctx context.Context, p slack.Payload) error
}

// Result is the outcome of one Deliver call.
type Result struct {
	Skipped bool // local development: nothing was sent
	Sent    []string
	Err     error // joined per-sink errors; nil when every sink accepted
	Took    time.Duration
}

// OK reports whether the notification reached every sink.
func (r Result) OK() bool { return !r.Skipped && r.Err == nil }

// Guard reports whether delivery must be suppressed.
type Guard func() bool

// EnvGuard returns a Guard that is active while the environment variable
// name holds a value starting with prefix.
func EnvGuard(name, prefix string) Guard {
	return func() bool {
		if name == "" || prefix == "" {
			return false
		}
		return strings.HasPrefix(os.Getenv(name), prefix)
	}
}

type Service struct {
	sinks []Sink
	guard Guard
	log   logx.Logger
}

func New(guard Guard, log logx.Logger, sinks ...Sink) *Service {
	if guard == nil {
		guard = func() bool { return false }
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{sinks: sinks, guard: guard, log: log}
}

// Sinks returns the configured sink names in send order.
func (s *Service) Sinks() []string {
	out := make([]string, 0, len(s.sinks))
	for _, sk := range s.sinks {
		out = append(out, sk.Name())
	}
	return out
}

// Deliver sends p to every sink in order.
func (s *Service) Deliver(ctx context.Context, p slack.Payload) Result {
	title := p.Title()
	if s.guard() {
		s.log.Info("delivery skipped (local development)", logx.String("title", title))
		return Result{Skipped: true}
	}

	start := time.Now()
	var (
		res  Result
		errs []error
	)
	for _, sk := range s.sinks {
		if err := sk.Send(ctx, p); err != nil {
			s.log.Warn("delivery failed", logx.String("sink", sk.Name()), logx.String("title", title), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", sk.Name(), err))
			continue
		}
		res.Sent = append(res.Sent, sk.Name())
		s.log.Info("delivered", logx.String("sink", sk.Name()), logx.String("title", title))
	}
	res.Err = errors.Join(errs...)
	res.Took = time.Since(start)
	return res
}
