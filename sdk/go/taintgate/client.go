package taintgate

import (
	"fmt"

	"github.com/rkorstad/taintgate/internal/audit"
	"github.com/rkorstad/taintgate/internal/audit/sqlitesink"
	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

// Client is an in-process flow gate built from a policy file.
type Client struct {
	cfg     *clientConfig
	tags    *taint.Registry
	pol     *policy.Config
	emitter *audit.Emitter
	log     *audit.Log
	db      *sqlitesink.Store
}

// New creates a client. Without WithPolicy the built-in defaults apply.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{actor: "sdk"}
	for _, o := range opts {
		o(cfg)
	}

	pol, err := policy.LoadConfig(cfg.policyPath)
	if err != nil {
		return nil, fmt.Errorf("taintgate: %w", err)
	}

	tags := taint.NewRegistry()
	if err := pol.RegisterTags(tags); err != nil {
		return nil, fmt.Errorf("taintgate: %w", err)
	}

	c := &Client{cfg: cfg, tags: tags, pol: pol}

	var sinks []audit.Sink
	if cfg.auditLogPath != "" {
		log, err := audit.Open(cfg.auditLogPath)
		if err != nil {
			return nil, fmt.Errorf("taintgate: %w", err)
		}
		c.log = log
		sinks = append(sinks, log)
	}
	if cfg.auditDBPath != "" {
		db, err := sqlitesink.New(sqlitesink.Config{Path: cfg.auditDBPath})
		if err != nil {
			if c.log != nil {
				c.log.Close()
			}
			return nil, fmt.Errorf("taintgate: %w", err)
		}
		c.db = db
		sinks = append(sinks, db)
	}
	c.emitter = audit.NewEmitter(audit.Fanout(sinks...), tags, cfg.actor, pol.Mode)

	return c, nil
}

// Close releases the audit sinks, if any.
func (c *Client) Close() error {
	var first error
	if c.log != nil {
		first = c.log.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Check evaluates a call against the gate without running anything.
func (c *Client) Check(action string, call Call, opts ...WrapOption) (Result, error) {
	wcfg := wrapConfig{}
	for _, o := range opts {
		o(&wcfg)
	}
	outcome, err := c.evaluate(action, call, wcfg)
	if err != nil {
		return Result{}, err
	}
	return toResult(c.tags, outcome), nil
}

// roleSpec merges policy-file roles for the action with inline roles.
// Inline wins per parameter.
func (c *Client) roleSpec(action string, inline map[string]Role) (taint.RoleSpec, error) {
	cfgSpec, err := c.pol.RoleSpecFor(c.tags, action)
	if err != nil {
		return nil, err
	}
	inlineSpec, err := toRoleSpec(c.tags, inline)
	if err != nil {
		return nil, err
	}
	if len(cfgSpec) == 0 {
		return inlineSpec, nil
	}

	merged := make(taint.RoleSpec, len(cfgSpec)+len(inlineSpec))
	for name, role := range cfgSpec {
		merged[name] = role
	}
	for name, role := range inlineSpec {
		merged[name] = role
	}
	return merged, nil
}

func (c *Client) evaluate(action string, call Call, wcfg wrapConfig) (policy.Outcome, error) {
	spec, err := c.roleSpec(action, wcfg.roles)
	if err != nil {
		return policy.Outcome{}, err
	}
	ctx := taint.FromValue(c.tags, call.Taint)
	return policy.Evaluate(spec, call.Params, ctx, c.pol.Predicate()), nil
}
