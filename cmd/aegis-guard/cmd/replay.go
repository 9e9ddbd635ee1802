package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/inbound/runtime"
	"github.com/Aegis-Guard/Aegisguard/internal/config"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/event"
	"github.com/Aegis-Guard/Aegisguard/pkg/agentguard"
)

var (
	replayPolicy        string
	replayMessagePolicy string
	replayMetricsAddr   string
	replayTrace         bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <transcript>",
	Short: "Drive a recorded transcript through the guard pipeline",
	Long: `Replay a recorded workflow transcript (a JSON array of intercepted
events) through the full guard pipeline and print every decision.

Each transcript event names the hook ("publish" or "send"), the sender and
recipient, and the envelope fields (kind, source, content, calls). Replay
stops at the first terminating denial, like a live workflow would.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPolicy, "policy", "", "action policy list file (cache JSON/YAML)")
	replayCmd.Flags().StringVar(&replayMessagePolicy, "message-policy", "", "message policy list file (cache JSON/YAML)")
	replayCmd.Flags().StringVar(&replayMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while replaying")
	replayCmd.Flags().BoolVar(&replayTrace, "trace", false, "write the JSONL decision trace")
	rootCmd.AddCommand(replayCmd)
}

// transcriptEvent is one recorded hook invocation.
type transcriptEvent struct {
	Hook       string  `json:"hook"`
	Sender     string  `json:"sender"`
	Recipient  string  `json:"recipient"`
	Kind       string  `json:"kind"`
	Source     string  `json:"source"`
	Content    *string `json:"content"`
	Structured bool    `json:"structured"`
	Calls      []struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"calls"`
}

// envelope converts the transcript form into the adapter's event shape.
func (t transcriptEvent) envelope() event.Envelope {
	e := event.Envelope{
		Kind:       event.Kind(t.Kind),
		Source:     t.Source,
		Structured: t.Structured,
	}
	if t.Content != nil {
		e.Content = *t.Content
		e.HasContent = true
	}
	for _, c := range t.Calls {
		e.Calls = append(e.Calls, event.FunctionCall{Name: c.Name, Arguments: c.Arguments})
	}
	return e
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	var events []transcriptEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if replayMetricsAddr != "" {
		cfg.Telemetry.MetricsAddr = replayMetricsAddr
	}
	if replayTrace {
		cfg.Trace.Enabled = true
	}

	sys, err := agentguard.New(ctx, cfg, agentguard.Options{Version: Version})
	if err != nil {
		return err
	}
	defer sys.Close(ctx)

	if replayPolicy != "" {
		if err := sys.Guard.AddPolicyFromList(ctx, replayPolicy); err != nil {
			return fmt.Errorf("load action policy: %w", err)
		}
	}
	if replayMessagePolicy != "" {
		if err := sys.Guard.AddMessagePolicyFromList(ctx, replayMessagePolicy); err != nil {
			return fmt.Errorf("load message policy: %w", err)
		}
	}

	replayed := 0
	for _, t := range events {
		if sys.Termination.IsSet() {
			break
		}
		hctx := runtime.HookContext{Sender: t.Sender, Topic: t.Recipient}
		switch t.Hook {
		case "send":
			sys.Adapter.OnSend(ctx, t.envelope(), hctx, t.Recipient)
		default:
			sys.Adapter.OnPublish(ctx, t.envelope(), hctx)
		}
		replayed++
	}

	decisions, err := sys.Guard.Decisions(ctx, 0)
	if err != nil {
		return err
	}
	// Newest first from the store; print in replay order.
	for i := len(decisions) - 1; i >= 0; i-- {
		d := decisions[i]
		outcome := "allow"
		if !d.Allowed {
			outcome = "deny"
		}
		fmt.Printf("%s  %-7s %-5s stage=%s sender=%s", d.Timestamp.Format("15:04:05.000"), outcome, d.Kind, d.Stage, d.Sender)
		if d.Tool != "" {
			fmt.Printf(" tool=%s", d.Tool)
		}
		if d.Reason != "" {
			fmt.Printf(" reason=%q", d.Reason)
		}
		fmt.Println()
	}

	fmt.Printf("replayed %d of %d events, %d decisions\n", replayed, len(events), len(decisions))
	if sys.Termination.IsSet() {
		return fmt.Errorf("workflow terminated by the guard")
	}
	return nil
}
