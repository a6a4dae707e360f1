package platform

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// callLog records lifecycle steps in the order they run.
type callLog []string

func (c *callLog) step(name string) func(context.Context) error {
	return func(context.Context) error {
		*c = append(*c, name)
		return nil
	}
}

func (c *callLog) failing(name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*c = append(*c, name)
		return err
	}
}

type recordingCloser struct {
	name  string
	calls *callLog
	err   error
}

func (r *recordingCloser) Close() error {
	*r.calls = append(*r.calls, "close "+r.name)
	return r.err
}

func TestLifecycle_Order(t *testing.T) {
	var calls callLog
	lc := NewLifecycle()
	lc.OnStart("database", calls.step("ping"))
	lc.RegisterWorker("session cleanup", func() { calls = append(calls, "cleanup loop") },
		&recordingCloser{name: "sessions", calls: &calls})
	lc.RegisterCloser("toolkit", &recordingCloser{name: "toolkit", calls: &calls})
	lc.OnStop("drain", calls.step("drain"))

	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !lc.IsStarted() {
		t.Fatal("IsStarted() = false after Start()")
	}
	if err := lc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if lc.IsStarted() {
		t.Error("IsStarted() = true after Stop()")
	}

	want := callLog{"ping", "cleanup loop", "drain", "close toolkit", "close sessions"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestLifecycle_StartTwice(t *testing.T) {
	lc := NewLifecycle()
	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := lc.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}
}

func TestLifecycle_StopBeforeStart(t *testing.T) {
	var calls callLog
	lc := NewLifecycle()
	lc.OnStop("drain", calls.step("drain"))

	if err := lc.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("shutdown steps ran without Start(): %v", calls)
	}
}

func TestLifecycle_RollbackNamesFailedStep(t *testing.T) {
	var calls callLog
	lc := NewLifecycle()
	lc.RegisterWorker("notifier", func() { calls = append(calls, "notifier loop") },
		&recordingCloser{name: "notifier", calls: &calls})
	lc.OnStart("migrations", calls.failing("migrate", errors.New("dirty schema")))
	lc.RegisterWorker("audit cleanup", func() { calls = append(calls, "audit loop") },
		&recordingCloser{name: "audit", calls: &calls})

	err := lc.Start(context.Background())
	if err == nil {
		t.Fatal("Start() succeeded")
	}
	if got := err.Error(); got != "starting migrations: dirty schema" {
		t.Errorf("Start() error = %q", got)
	}

	want := callLog{"notifier loop", "migrate", "close notifier"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if lc.IsStarted() {
		t.Error("IsStarted() = true after failed Start()")
	}
}

func TestLifecycle_StopJoinsErrors(t *testing.T) {
	var calls callLog
	lc := NewLifecycle()
	lc.RegisterCloser("sessions", &recordingCloser{name: "sessions", calls: &calls, err: errors.New("busy")})
	lc.OnStop("toolkit", calls.failing("toolkit", errors.New("timeout")))
	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := lc.Stop(context.Background())
	if err == nil {
		t.Fatal("Stop() error = nil")
	}
	for _, part := range []string{"stopping toolkit: timeout", "stopping sessions: busy"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("Stop() error %q missing %q", err, part)
		}
	}
	if want := (callLog{"toolkit", "close sessions"}); !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if lc.IsStarted() {
		t.Error("IsStarted() = true after failed Stop()")
	}
}
