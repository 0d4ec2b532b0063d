package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// funcComponent lets each test script exactly the behavior it needs.
type funcComponent struct {
	start func(context.Context) error
	stop  func(context.Context) error
}

func (c *funcComponent) Start(ctx context.Context) error {
	if c.start == nil {
		return nil
	}
	return c.start(ctx)
}

func (c *funcComponent) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	return c.stop(ctx)
}

func journaling(trail *[]string, label string) *funcComponent {
	return &funcComponent{
		start: func(context.Context) error {
			*trail = append(*trail, label+".start")
			return nil
		},
		stop: func(context.Context) error {
			*trail = append(*trail, label+".stop")
			return nil
		},
	}
}

func TestRuntimeStartsInOrderStopsInReverse(t *testing.T) {
	t.Parallel()

	var trail []string
	runtime := NewRuntime(
		journaling(&trail, "server"),
		journaling(&trail, "journal"),
		journaling(&trail, "janitor"),
	)

	ctx := context.Background()
	if err := runtime.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := runtime.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := "server.start,journal.start,janitor.start,janitor.stop,journal.stop,server.stop"
	if got := strings.Join(trail, ","); got != want {
		t.Fatalf("unexpected trail:\ngot  %s\nwant %s", got, want)
	}
}

func TestRuntimeStartFailureUnwindsStartedComponents(t *testing.T) {
	t.Parallel()

	var trail []string
	cause := errors.New("port already bound")
	failing := &funcComponent{
		start: func(context.Context) error { return cause },
		stop: func(context.Context) error {
			trail = append(trail, "failing.stop")
			return nil
		},
	}
	runtime := NewRuntime(journaling(&trail, "first"), journaling(&trail, "second"), failing)

	err := runtime.Start(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("start must wrap the component error, got %v", err)
	}
	if !strings.Contains(err.Error(), "start *lifecycle.funcComponent") {
		t.Fatalf("start error must name the failing component, got %q", err.Error())
	}

	want := "first.start,second.start,second.stop,first.stop"
	if got := strings.Join(trail, ","); got != want {
		t.Fatalf("only the started components unwind, in reverse:\ngot  %s\nwant %s", got, want)
	}
}

func TestRuntimeStopJoinsComponentErrors(t *testing.T) {
	t.Parallel()

	journalErr := errors.New("journal queue stuck")
	serverErr := errors.New("listener refused to close")
	runtime := NewRuntime(
		&funcComponent{stop: func(context.Context) error { return serverErr }},
		&funcComponent{},
		&funcComponent{stop: func(context.Context) error { return journalErr }},
	)

	err := runtime.Stop(context.Background())
	if !errors.Is(err, journalErr) || !errors.Is(err, serverErr) {
		t.Fatalf("stop must join every component error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stop *lifecycle.funcComponent") {
		t.Fatalf("stop error must name the failing component, got %q", err.Error())
	}
}

func TestRuntimeStopWithoutStart(t *testing.T) {
	t.Parallel()

	var trail []string
	runtime := NewRuntime()
	runtime.Register(journaling(&trail, "late"))
	runtime.Register(nil)

	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := strings.Join(trail, ","); got != "late.stop" {
		t.Fatalf("registered components stop even without a start, got %q", got)
	}
}

func TestRuntimeSkipsNilComponents(t *testing.T) {
	t.Parallel()

	var trail []string
	runtime := NewRuntime(nil, journaling(&trail, "only"), nil)

	ctx := context.Background()
	if err := runtime.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := runtime.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := strings.Join(trail, ","); got != "only.start,only.stop" {
		t.Fatalf("nil components must be skipped, got %q", got)
	}
}
