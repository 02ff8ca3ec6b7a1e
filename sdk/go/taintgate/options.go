package taintgate

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	policyPath   string
	auditLogPath string
	auditDBPath  string
	actor        string
}

// WithPolicy sets the path to a policy YAML file.
func WithPolicy(path string) Option {
	return func(c *clientConfig) { c.policyPath = path }
}

// WithAuditLog sets the path to a JSONL audit log. Without an audit
// destination the client records no events.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) { c.auditLogPath = path }
}

// WithAuditDB sets the path to a SQLite audit database for queryable
// event history. Can be combined with WithAuditLog.
func WithAuditDB(path string) Option {
	return func(c *clientConfig) { c.auditDBPath = path }
}

// WithActor sets the actor identifier recorded in audit events.
func WithActor(actor string) Option {
	return func(c *clientConfig) { c.actor = actor }
}

// WrapOption configures a single Wrap call.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	roles map[string]Role
}

// WrapWithRoles declares parameter roles inline for this wrap. Inline
// declarations win over policy-file declarations per parameter.
func WrapWithRoles(roles map[string]Role) WrapOption {
	return func(w *wrapConfig) { w.roles = roles }
}
