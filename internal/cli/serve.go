package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	gatemcp "github.com/rkorstad/taintgate/internal/mcp"
)

var (
	servePolicy  string
	serveAudit   string
	serveAuditDB string
	serveActor   string
	serveWatch   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML")
	serveCmd.Flags().StringVar(&serveAudit, "audit-log", "", "Path to JSONL audit log (optional)")
	serveCmd.Flags().StringVar(&serveAuditDB, "audit-db", "", "Path to SQLite audit database (optional)")
	serveCmd.Flags().StringVar(&serveActor, "actor", "mcp", "Actor identifier recorded in audit events")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload policy when the file changes")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs taintgate as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the flow gate as tools: taintgate_check, taintgate_sanitize,\n" +
		"taintgate_reduce.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := gatemcp.New(gatemcp.Config{
		PolicyPath:   servePolicy,
		AuditLogPath: serveAudit,
		AuditDBPath:  serveAuditDB,
		Actor:        serveActor,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	if serveWatch && servePolicy != "" {
		reloader, err := gatemcp.NewReloader(srv)
		if err != nil {
			return fmt.Errorf("failed to watch policy: %w", err)
		}
		go reloader.Run(ctx)
	}

	fmt.Fprintln(os.Stderr, "taintgate MCP server running on stdio")
	if hash := srv.PolicyHash(); hash != "" {
		fmt.Fprintf(os.Stderr, "Policy: %s\n", hash)
	}

	return srv.Run(ctx)
}
