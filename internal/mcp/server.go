// Package mcp exposes the taint gate over the Model Context Protocol,
// so agent frameworks can check, sanitize, and annotate values without
// linking the gate in-process.
package mcp

import (
	"context"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rkorstad/taintgate/internal/audit"
	"github.com/rkorstad/taintgate/internal/audit/sqlitesink"
	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
	"github.com/rkorstad/taintgate/internal/version"
)

// Config holds MCP server configuration.
type Config struct {
	PolicyPath   string
	AuditLogPath string
	// AuditDBPath enables the queryable SQLite sink alongside (or
	// instead of) the JSONL chain log.
	AuditDBPath string
	Actor       string
}

// Server wraps the MCP SDK server around the policy evaluator.
type Server struct {
	mcpServer  *mcpsdk.Server
	tags       *taint.Registry
	emitter    *audit.Emitter
	auditLog   *audit.Log
	auditDB    *sqlitesink.Store
	policyPath string
	policyHash string
	actor      string

	mu  sync.RWMutex
	cfg *policy.Config
}

// New creates an MCP server with loaded policy and tools.
func New(cfg Config) (*Server, error) {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy config: %w", err)
	}

	tags := taint.NewRegistry()
	if err := policyCfg.RegisterTags(tags); err != nil {
		return nil, fmt.Errorf("register policy tags: %w", err)
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	var auditDB *sqlitesink.Store
	if cfg.AuditDBPath != "" {
		auditDB, err = sqlitesink.New(sqlitesink.Config{Path: cfg.AuditDBPath})
		if err != nil {
			if auditLog != nil {
				auditLog.Close()
			}
			return nil, fmt.Errorf("open audit db: %w", err)
		}
	}

	actor := cfg.Actor
	if actor == "" {
		actor = "mcp"
	}

	s := &Server{
		tags:       tags,
		auditLog:   auditLog,
		auditDB:    auditDB,
		policyPath: cfg.PolicyPath,
		policyHash: policyHash,
		actor:      actor,
		cfg:        policyCfg,
	}
	s.emitter = audit.NewEmitter(s.sink(), tags, actor, policyCfg.Mode)

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "taintgate",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the audit sinks if configured.
func (s *Server) Close() error {
	var first error
	if s.auditLog != nil {
		first = s.auditLog.Close()
	}
	if s.auditDB != nil {
		if err := s.auditDB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PolicyHash returns the hash of the loaded policy file, for clients
// that pin a reviewed policy version.
func (s *Server) PolicyHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyHash
}

func (s *Server) config() *policy.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// audit returns the current emitter. Handlers must read it through
// here: reloadPolicy swaps the field while requests are in flight.
func (s *Server) audit() *audit.Emitter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emitter
}

// reloadPolicy re-reads the policy file and swaps config and hash.
func (s *Server) reloadPolicy() error {
	cfg, hash, err := policy.LoadConfigWithHash(s.policyPath)
	if err != nil {
		return err
	}
	if err := cfg.RegisterTags(s.tags); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.policyHash = hash
	// Mode can change across reloads; rebuild the emitter around it.
	s.emitter = audit.NewEmitter(s.sink(), s.tags, s.actor, cfg.Mode)
	s.mu.Unlock()
	return nil
}

// sink combines the configured audit sinks, or returns nil when there
// are none. A plain field pass would hand the emitter a typed-nil
// interface.
func (s *Server) sink() audit.Sink {
	var sinks []audit.Sink
	if s.auditLog != nil {
		sinks = append(sinks, s.auditLog)
	}
	if s.auditDB != nil {
		sinks = append(sinks, s.auditDB)
	}
	return audit.Fanout(sinks...)
}

// registerTools adds all taintgate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "taintgate_check",
		Description: "Check whether a set of parameter values with the given taint context would be permitted for an action. Dry-run: nothing executes.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "taintgate_sanitize",
		Description: "Run builtin sanitization checks over a value and return the structured taint context with the evidence tags it earned.",
	}, s.handleSanitize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "taintgate_reduce",
		Description: "Record an explicit trust elevation for a value (e.g. after manual review). Emits a taint_reduced audit event.",
	}, s.handleReduce)
}
