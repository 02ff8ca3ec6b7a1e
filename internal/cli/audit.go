package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkorstad/taintgate/internal/audit"
)

var (
	auditLog    string
	auditAction string
	auditKind   string
	auditFrom   string
	auditTo     string
	auditFormat string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditReplayCmd)

	auditCmd.PersistentFlags().StringVarP(&auditLog, "log", "l", "", "Path to audit log (required)")
	auditCmd.MarkPersistentFlagRequired("log")

	auditReplayCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action kind")
	auditReplayCmd.Flags().StringVar(&auditKind, "kind", "", "Filter by event kind (taint_blocked etc.)")
	auditReplayCmd.Flags().StringVar(&auditFrom, "from", "", "Start time filter (RFC3339)")
	auditReplayCmd.Flags().StringVar(&auditTo, "to", "", "End time filter (RFC3339)")
	auditReplayCmd.Flags().StringVarP(&auditFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log hash chain",
	Long: "Reads the JSONL audit log and validates every entry's prev_hash\n" +
		"link. Exit code 0 if the chain is intact, 1 if broken.",
	RunE: runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(auditLog)
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay decisions from the audit log",
	Long: "Reads the audit log, filters by action, event kind and optional\n" +
		"time range, and renders a human-readable decision timeline.",
	RunE: runAuditReplay,
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	filter := audit.ReplayFilter{
		Action: auditAction,
		Kind:   audit.EventKind(auditKind),
	}

	if auditFrom != "" {
		from, err := time.Parse(time.RFC3339, auditFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", auditFrom, err)
		}
		filter.From = from
	}

	if auditTo != "" {
		to, err := time.Parse(time.RFC3339, auditTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", auditTo, err)
		}
		filter.To = to
	}

	result, err := audit.Replay(auditLog, filter)
	if err != nil {
		return err
	}

	switch auditFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(audit.FormatTimeline(result))
	}

	return nil
}
