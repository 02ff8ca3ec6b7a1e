// Package taintgate provides in-process flow gating for Go agent
// frameworks. It wraps tool functions, evaluates the taint policy
// against the provenance of their inputs, and refuses execution before
// the tool body ever sees an untrusted control value.
//
// Usage:
//
//	tg, err := taintgate.New(taintgate.WithPolicy("policy.yaml"))
//	wrapped := tg.Wrap("shell.exec", runShell,
//	    taintgate.WrapWithRoles(map[string]taintgate.Role{
//	        "command": {Kind: "control", Requires: []string{"shell_meta"}},
//	    }))
//	out, err := wrapped(ctx, taintgate.Call{
//	    Params: map[string]any{"command": "ls /tmp"},
//	    Taint:  "untrusted",
//	})
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/rkorstad/taintgate/sdk/go/taintgate.
package taintgate
