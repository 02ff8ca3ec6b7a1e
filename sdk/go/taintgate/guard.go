package taintgate

import (
	"context"
)

// ToolFunc is the function signature that Wrap guards. The caller
// supplies the parameter values and their taint in the Call.
type ToolFunc func(ctx context.Context, call Call) (any, error)

// Wrap returns a new ToolFunc that evaluates the flow gate before
// calling fn. If the gate refuses, fn is never called and the caller
// gets a *BlockedError. Decisions are recorded in the audit log when
// one is configured.
func (c *Client) Wrap(action string, fn ToolFunc, opts ...WrapOption) ToolFunc {
	wcfg := wrapConfig{}
	for _, o := range opts {
		o(&wcfg)
	}

	return func(ctx context.Context, call Call) (any, error) {
		outcome, err := c.evaluate(action, call, wcfg)
		if err != nil {
			return nil, err
		}

		if !outcome.OK() {
			c.emitter.Blocked(action, outcome)
			return nil, &BlockedError{
				Action: action,
				Result: toResult(c.tags, outcome),
			}
		}

		c.emitter.Audited(action, outcome.Audited)
		return fn(ctx, call)
	}
}
