package taintgate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rkorstad/taintgate/internal/audit"
	"github.com/rkorstad/taintgate/internal/audit/sqlitesink"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(WithPolicy(t.TempDir() + "/absent.yaml"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func requireBlocked(t *testing.T, err error) *BlockedError {
	t.Helper()
	if err == nil {
		t.Fatal("expected a blocked error, got nil")
	}
	blocked, ok := err.(*BlockedError)
	if !ok {
		t.Fatalf("expected *BlockedError, got %T: %v", err, err)
	}
	return blocked
}

var shellRoles = map[string]Role{
	"command": {Kind: "control"},
}

func TestWrapBlocksUntrustedControl(t *testing.T) {
	c := newTestClient(t)
	called := false
	inner := func(ctx context.Context, call Call) (any, error) {
		called = true
		return nil, nil
	}
	wrapped := c.Wrap("shell.exec", inner, WrapWithRoles(shellRoles))

	_, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "rm -rf /tmp/scratch"},
		Taint:  "untrusted",
	})

	blocked := requireBlocked(t, err)
	if blocked.Result.Status != Blocked {
		t.Errorf("expected blocked, got %s", blocked.Result.Status)
	}
	if blocked.Result.Parameter != "command" {
		t.Errorf("expected parameter command, got %q", blocked.Result.Parameter)
	}
	if called {
		t.Error("inner function should not be called when blocked")
	}
}

func TestWrapAllowsTrusted(t *testing.T) {
	c := newTestClient(t)
	inner := func(ctx context.Context, call Call) (any, error) {
		return "ok", nil
	}
	wrapped := c.Wrap("shell.exec", inner, WrapWithRoles(shellRoles))

	result, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "echo hello"},
		Taint:  "trusted",
	})
	if err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result \"ok\", got %v", result)
	}
}

func TestWrapRequiresEvidence(t *testing.T) {
	c := newTestClient(t)
	inner := func(ctx context.Context, call Call) (any, error) {
		t.Fatal("inner should not be called")
		return nil, nil
	}
	wrapped := c.Wrap("shell.exec", inner, WrapWithRoles(map[string]Role{
		"command": {Kind: "control", Requires: []string{"shell_meta"}},
	}))

	// Trusted but bare: a bare context never satisfies a sanitization
	// requirement.
	_, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "ls"},
		Taint:  "trusted",
	})

	blocked := requireBlocked(t, err)
	if blocked.Result.Status != MissingSanitization {
		t.Errorf("expected missing_sanitization, got %s", blocked.Result.Status)
	}
	if len(blocked.Result.Missing) != 1 || blocked.Result.Missing[0] != "shell_meta" {
		t.Errorf("expected missing [shell_meta], got %v", blocked.Result.Missing)
	}
}

func TestWrapStructuredEvidencePasses(t *testing.T) {
	c := newTestClient(t)
	inner := func(ctx context.Context, call Call) (any, error) {
		return "ran", nil
	}
	wrapped := c.Wrap("shell.exec", inner, WrapWithRoles(map[string]Role{
		"command": {Kind: "control", Requires: []string{"shell_meta"}},
	}))

	out, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "ls"},
		Taint: map[string]any{
			"level":         "trusted",
			"sanitizations": []any{"shell_meta"},
		},
	})
	if err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
	if out != "ran" {
		t.Errorf("expected output \"ran\", got %v", out)
	}
}

func TestWrapNoTaintNoEnforcement(t *testing.T) {
	c := newTestClient(t)
	inner := func(ctx context.Context, call Call) (any, error) {
		return "ran", nil
	}
	wrapped := c.Wrap("shell.exec", inner, WrapWithRoles(shellRoles))

	// No taint claimed: nothing to enforce against.
	if _, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "whoami"},
	}); err != nil {
		t.Fatalf("expected allow without taint, got error: %v", err)
	}
}

func TestCheckDryRun(t *testing.T) {
	c := newTestClient(t)

	result, err := c.Check("shell.exec", Call{
		Params: map[string]any{"command": "curl evil.example"},
		Taint:  "hostile",
	}, WrapWithRoles(shellRoles))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if result.Allowed() {
		t.Error("expected hostile control value to be refused")
	}
	if result.Level != "hostile" {
		t.Errorf("expected level hostile, got %q", result.Level)
	}
}

func TestWrapAuditTrail(t *testing.T) {
	logPath := t.TempDir() + "/audit.jsonl"
	c, err := New(
		WithPolicy(t.TempDir()+"/absent.yaml"),
		WithAuditLog(logPath),
		WithActor("sdk-test"),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer c.Close()

	wrapped := c.Wrap("shell.exec", func(ctx context.Context, call Call) (any, error) {
		return nil, nil
	}, WrapWithRoles(shellRoles))

	if _, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "rm -rf /"},
		Taint:  "hostile",
	}); err == nil {
		t.Fatal("expected blocked error")
	}

	if got := c.emitter.Dropped(); got != 0 {
		t.Fatalf("expected no dropped events, got %d", got)
	}
}

func TestWrapAuditDBQueryable(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "audit.db")
	c, err := New(
		WithPolicy(filepath.Join(dir, "absent.yaml")),
		WithAuditDB(dbPath),
		WithActor("sdk-test"),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	wrapped := c.Wrap("shell.exec", func(ctx context.Context, call Call) (any, error) {
		return nil, nil
	}, WrapWithRoles(shellRoles))

	if _, err := wrapped(context.Background(), Call{
		Params: map[string]any{"command": "rm -rf /"},
		Taint:  "hostile",
	}); err == nil {
		t.Fatal("expected blocked error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The refusal is queryable after the client is gone.
	store, err := sqlitesink.New(sqlitesink.Config{Path: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	counts, err := store.CountByKind()
	if err != nil {
		t.Fatal(err)
	}
	if counts[audit.KindBlocked] != 1 {
		t.Fatalf("counts = %v, want one taint_blocked", counts)
	}

	events, err := store.ByKind(audit.KindBlocked, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Actor != "sdk-test" {
		t.Fatalf("events = %+v", events)
	}
}
