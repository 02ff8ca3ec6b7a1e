package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

var (
	evalPolicy  string
	evalParams  string
	evalContext string
	evalFormat  string
)

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalPolicy, "policy", "", "Path to policy YAML (optional)")
	evalCmd.Flags().StringVarP(&evalParams, "params", "p", "{}", "Action parameters as JSON object")
	evalCmd.Flags().StringVarP(&evalContext, "context", "c", "", "Taint context as JSON (string level or structured object)")
	evalCmd.Flags().StringVarP(&evalFormat, "format", "f", "text", "Output format (text|json)")
}

var evalCmd = &cobra.Command{
	Use:   "eval <action>",
	Short: "Evaluate a single action against the flow policy",
	Long: "One-shot evaluation: loads the policy, resolves the action's role\n" +
		"spec, and reports whether the given parameters and taint context\n" +
		"would be permitted.\n\n" +
		"Exit code 0 if permitted, 1 if blocked.",
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	action := args[0]

	cfg, err := policy.LoadConfig(evalPolicy)
	if err != nil {
		return err
	}

	tags := taint.NewRegistry()
	if err := cfg.RegisterTags(tags); err != nil {
		return err
	}

	spec, err := cfg.RoleSpecFor(tags, action)
	if err != nil {
		return err
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(evalParams), &params); err != nil {
		return fmt.Errorf("invalid --params JSON: %w", err)
	}

	var ctx *taint.Context
	if evalContext != "" {
		var raw any
		if err := json.Unmarshal([]byte(evalContext), &raw); err != nil {
			return fmt.Errorf("invalid --context JSON: %w", err)
		}
		ctx = taint.FromValue(tags, raw)
	}

	outcome := policy.Evaluate(spec, params, ctx, cfg.Predicate())

	switch evalFormat {
	case "json":
		out, _ := json.MarshalIndent(map[string]any{
			"action":    action,
			"status":    outcome.Status,
			"parameter": outcome.Parameter,
			"level":     outcome.Level,
			"missing":   tags.Names(outcome.Missing),
			"reason":    outcome.Reason(tags),
		}, "", "  ")
		fmt.Println(string(out))
	default:
		if outcome.OK() {
			fmt.Printf("PERMITTED %s\n", action)
		} else {
			fmt.Printf("DENIED %s: %s\n", action, outcome.Reason(tags))
		}
	}

	if !outcome.OK() {
		os.Exit(1)
	}
	return nil
}
