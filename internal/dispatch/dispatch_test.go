package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rkorstad/taintgate/internal/audit"
	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

type captureSink struct {
	events []audit.Event
}

func (c *captureSink) Record(ev audit.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type harness struct {
	dispatcher *Dispatcher
	tags       *taint.Registry
	sink       *captureSink
	calls      *int
}

func newHarness(t *testing.T, mode policy.Mode) *harness {
	t.Helper()

	tags := taint.NewRegistry()
	shellReq, err := tags.SetOf(taint.TagShellMeta)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	reg := NewRegistry()
	err = reg.Register(Decl{
		Kind: "shell.exec",
		Roles: taint.RoleSpec{
			"cmd": taint.ControlRequiring(shellReq),
			"cwd": taint.ControlRole(),
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			calls++
			return "ran", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(Decl{
		Kind:    "note.append",
		Handler: func(ctx context.Context, params map[string]any) (any, error) { calls++; return nil, nil },
	}); err != nil {
		t.Fatal(err)
	}

	cfg := policy.DefaultConfig()
	cfg.Mode = mode
	sink := &captureSink{}
	em := audit.NewEmitter(sink, tags, "test-agent", mode)

	return &harness{
		dispatcher: New(reg, tags, cfg, em),
		tags:       tags,
		sink:       sink,
		calls:      &calls,
	}
}

func TestDispatchBlockedNeverRunsHandler(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	ctx := taint.Bare(taint.LevelUntrusted)
	_, err := h.dispatcher.Dispatch(context.Background(), Invocation{
		Action:  "shell.exec",
		Params:  map[string]any{"cmd": "ls", "cwd": "/tmp"},
		Context: &ctx,
	})

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want *BlockedError", err)
	}
	if blocked.Level != taint.LevelUntrusted {
		t.Errorf("blocked level = %s", blocked.Level)
	}
	if *h.calls != 0 {
		t.Error("handler ran for a blocked invocation")
	}
	if len(h.sink.events) != 1 || h.sink.events[0].Kind != audit.KindBlocked {
		t.Errorf("events = %+v, want one taint_blocked", h.sink.events)
	}
}

func TestDispatchMissingSanitization(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	// Trusted but bare: the evidence requirement on cmd must refuse.
	ctx := taint.Bare(taint.LevelTrusted)
	_, err := h.dispatcher.Dispatch(context.Background(), Invocation{
		Action:  "shell.exec",
		Params:  map[string]any{"cmd": "ls"},
		Context: &ctx,
	})

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want *BlockedError", err)
	}
	if blocked.Status != policy.StatusMissingSanitization {
		t.Errorf("status = %s", blocked.Status)
	}
	if len(blocked.Missing) != 1 || blocked.Missing[0] != "shell_meta" {
		t.Errorf("missing = %v", blocked.Missing)
	}
	if msg := blocked.Error(); !strings.Contains(msg, "shell_meta") {
		t.Errorf("error message does not name the missing tag: %q", msg)
	}
}

func TestDispatchSuccessPropagates(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	shellReq, _ := h.tags.SetOf(taint.TagShellMeta)
	ctx := taint.Structured(taint.LevelTrusted, shellReq)
	res, err := h.dispatcher.Dispatch(context.Background(), Invocation{
		Action:  "shell.exec",
		Params:  map[string]any{"cmd": "ls", "cwd": "/tmp"},
		Context: &ctx,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Output != "ran" || *h.calls != 1 {
		t.Errorf("output = %v, calls = %d", res.Output, *h.calls)
	}
	if res.Context == nil || res.Context.Level() != taint.LevelDerived {
		t.Errorf("output context = %+v, want bare derived", res.Context)
	}

	if len(h.sink.events) != 1 || h.sink.events[0].Kind != audit.KindPropagated {
		t.Fatalf("events = %+v, want one taint_propagated", h.sink.events)
	}
	if h.sink.events[0].FromLevel != "trusted" || h.sink.events[0].ToLevel != "derived" {
		t.Errorf("propagation = %+v", h.sink.events[0])
	}
}

func TestDispatchNoContextNoEnforcementNoPropagation(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	res, err := h.dispatcher.Dispatch(context.Background(), Invocation{
		Action: "shell.exec",
		Params: map[string]any{"cmd": "anything; at; all"},
	})
	if err != nil {
		t.Fatalf("no-context dispatch refused: %v", err)
	}
	if res.Context != nil {
		t.Error("no-context dispatch produced an output context")
	}
	if len(h.sink.events) != 0 {
		t.Errorf("no-context dispatch emitted events: %+v", h.sink.events)
	}
}

func TestDispatchPermissiveAudits(t *testing.T) {
	h := newHarness(t, policy.ModePermissive)

	// Untrusted control value: permissive mode permits and records.
	ctx := taint.Bare(taint.LevelUntrusted)
	_, err := h.dispatcher.Dispatch(context.Background(), Invocation{
		Action:  "shell.exec",
		Params:  map[string]any{"cwd": "/tmp"},
		Context: &ctx,
	})
	if err != nil {
		t.Fatalf("permissive dispatch refused: %v", err)
	}

	var kinds []audit.EventKind
	for _, ev := range h.sink.events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != audit.KindAudited || kinds[1] != audit.KindPropagated {
		t.Errorf("event kinds = %v, want [taint_audited taint_propagated]", kinds)
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	_, err := h.dispatcher.Dispatch(context.Background(), Invocation{Action: "never.registered"})
	if err == nil {
		t.Fatal("unknown action dispatched")
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		t.Error("unknown action should be a plain error, not a policy block")
	}
}

func TestDispatchUndeclaredRolesPermissive(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	// note.append declares no roles: hostile context passes untouched.
	ctx := taint.Bare(taint.LevelHostile)
	_, err := h.dispatcher.Dispatch(context.Background(), Invocation{
		Action:  "note.append",
		Params:  map[string]any{"text": "whatever"},
		Context: &ctx,
	})
	if err != nil {
		t.Errorf("undeclared roles should be permissive, got %v", err)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	tags := taint.NewRegistry()
	reg := NewRegistry()
	reg.Register(Decl{
		Kind: "fail.always",
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	})
	d := New(reg, tags, nil, nil)

	_, err := d.Dispatch(context.Background(), Invocation{Action: "fail.always"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("handler error lost: %v", err)
	}
}

func TestConfigHotSwap(t *testing.T) {
	h := newHarness(t, policy.ModeEnforce)

	ctx := taint.Bare(taint.LevelUntrusted)
	inv := Invocation{
		Action:  "shell.exec",
		Params:  map[string]any{"cwd": "/tmp"},
		Context: &ctx,
	}

	if _, err := h.dispatcher.Dispatch(context.Background(), inv); err == nil {
		t.Fatal("enforce mode should block untrusted control")
	}

	relaxed := policy.DefaultConfig()
	relaxed.Mode = policy.ModeAdvisory
	h.dispatcher.SetConfig(relaxed)

	if _, err := h.dispatcher.Dispatch(context.Background(), inv); err != nil {
		t.Errorf("advisory mode still blocking: %v", err)
	}
}

func TestRegistryConflicts(t *testing.T) {
	reg := NewRegistry()
	h := func(ctx context.Context, p map[string]any) (any, error) { return nil, nil }

	if err := reg.Register(Decl{Kind: "a", Handler: h}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(Decl{Kind: "a", Handler: h}); err == nil {
		t.Error("duplicate kind accepted")
	}
	if err := reg.Register(Decl{Handler: h}); err == nil {
		t.Error("empty kind accepted")
	}
	if err := reg.Register(Decl{Kind: "b"}); err == nil {
		t.Error("nil handler accepted")
	}
}
