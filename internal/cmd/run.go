package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/hooklog"
	"github.com/klauern/hookloop/internal/inject"
	"github.com/klauern/hookloop/internal/loop"
	"github.com/klauern/hookloop/internal/policy"
	"github.com/klauern/hookloop/internal/protocol"
	"github.com/klauern/hookloop/internal/session"
	"github.com/klauern/hookloop/internal/tracker"
)

// NewRunCmd creates the hook entry point the host invokes. It reads one
// event from stdin, writes at most one JSON object to stdout, and exits
// with the protocol code.
func NewRunCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Handle one lifecycle event from stdin",
		ArgsUsage: "[event-name]",
		Description: `Reads a single JSON event from stdin and responds on stdout. The optional
argument cross-checks the expected event name against the payload's
discriminator. Intended to be wired into the host's hook configuration as:

  hookloop run PreToolUse`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Rule-set document path (overrides discovery)",
			},
			&cli.BoolFlag{
				Name:    "log",
				Aliases: []string{"l"},
				Usage:   "Enable event logging to .hookloop/logs/<event>.log",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format: jsonl or pretty",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runHook(cmd, os.Stdin)
		},
	}
}

func runHook(cmd *cli.Command, stdin *os.File) error {
	ev, err := protocol.Decode(stdin)
	if err != nil {
		var inputErr *protocol.InputError
		if errors.As(err, &inputErr) && inputErr.Kind == protocol.PreToolUseEvent {
			// A tool is about to run on input this binary could not read.
			// Hand the question to the operator instead of staying silent
			// with an error exit the host may misread.
			fmt.Fprintf(os.Stderr, "invalid hook input: %v\n", err)
			res := protocol.Permission("ask", "hook could not parse the tool request", nil)
			if _, err := protocol.Emit(os.Stdout, os.Stderr, res); err != nil {
				return cli.Exit(err.Error(), protocol.ExitOperator)
			}
			return nil
		}
		return cli.Exit(fmt.Sprintf("invalid hook input: %v", err), protocol.ExitOperator)
	}
	args := cmd.Args().Slice()
	if len(args) > 1 {
		return cli.Exit("at most one argument allowed: [event-name]", protocol.ExitOperator)
	}
	if len(args) == 1 && args[0] != string(ev.Kind) {
		return cli.Exit(fmt.Sprintf("expected %s event, got %s", args[0], ev.Kind), protocol.ExitOperator)
	}
	pc, err := loadProject(ev.CWD, cmd.String("config"))
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			return cli.Exit(fmt.Sprintf("configuration error: %v", err), protocol.ExitOperator)
		}
		return cli.Exit(err.Error(), protocol.ExitOperator)
	}
	if cmd.Bool("log") {
		pc.Config.Log.Enabled = true
	}
	if f := cmd.String("log-format"); f != "" {
		if f != config.LogFormatJSONL && f != config.LogFormatPretty {
			return cli.Exit(fmt.Sprintf("invalid --log-format %q. Valid: jsonl, pretty", f), protocol.ExitOperator)
		}
		pc.Config.Log.Format = f
	}

	logger := hooklog.New(pc.StateDir, pc.Config.Log, string(ev.Kind))
	defer func() { _ = logger.Close() }()
	logger.Log(string(ev.Kind), ev.SessionID, ev.ToolName, logDetails(ev))

	res := dispatch(pc, ev)
	code, err := protocol.Emit(os.Stdout, os.Stderr, res)
	if err != nil {
		return cli.Exit(err.Error(), protocol.ExitOperator)
	}
	if code != protocol.ExitOK {
		return cli.Exit("", code)
	}
	return nil
}

// dispatch routes one event to its handler. Every known kind is handled;
// kinds with no behavior still succeed so the host proceeds.
func dispatch(pc *projectContext, ev *protocol.Event) *protocol.Result {
	switch ev.Kind {
	case protocol.PreToolUseEvent:
		return policy.Evaluate(pc.Config.Policy, ev).Result()
	case protocol.PostToolUseEvent:
		warnings := observeToolFiles(pc, ev)
		res := injectContext(pc, ev)
		res.Warnings = append(warnings, res.Warnings...)
		return res
	case protocol.UserPromptSubmitEvent, protocol.SessionStartEvent:
		return injectContext(pc, ev)
	case protocol.PreCompactEvent:
		return compactResult(pc, ev)
	case protocol.StopEvent:
		return loop.HandleStop(loop.NewStore(pc.StateDir), ev)
	case protocol.SessionEndEvent:
		res := protocol.OK()
		res.Warnings = session.StoreArtifacts(pc.Config.Session, pc.StateDir, ev)
		return res
	case protocol.SubagentStopEvent, protocol.NotificationEvent:
		return protocol.OK()
	default:
		return protocol.OK()
	}
}

func injectContext(pc *projectContext, ev *protocol.Event) *protocol.Result {
	content, warnings := inject.Render(pc.Config.Inject, pc.Root, ev)
	if content == "" {
		res := protocol.OK()
		res.Warnings = warnings
		return res
	}
	res := protocol.AdditionalContext(ev.Kind, content)
	res.Warnings = warnings
	return res
}

// compactResult resolves compact instructions and folds in any PreCompact
// injection rules. A halt from block_auto short-circuits injection.
func compactResult(pc *projectContext, ev *protocol.Event) *protocol.Result {
	res := inject.CompactContext(pc.Config.Compact, pc.Root, ev)
	if res.Output != nil && res.Output.Continue != nil && !*res.Output.Continue {
		return res
	}
	content, warnings := inject.Render(pc.Config.Inject, pc.Root, ev)
	if content == "" {
		res.Warnings = append(res.Warnings, warnings...)
		return res
	}
	var blocks []string
	if res.Output != nil && res.Output.HookSpecificOutput != nil {
		if prior := res.Output.HookSpecificOutput.AdditionalContext; prior != "" {
			blocks = append(blocks, prior)
		}
	}
	blocks = append(blocks, content)
	merged := protocol.AdditionalContext(protocol.PreCompactEvent, strings.Join(blocks, "\n\n"))
	merged.Warnings = append(res.Warnings, warnings...)
	return merged
}

// observeToolFiles records file paths touched by the completed tool with
// tool provenance. Tracking failures never affect the hook response.
func observeToolFiles(pc *projectContext, ev *protocol.Event) []string {
	paths := tracker.ObservedPaths(ev.ToolInput)
	if len(paths) == 0 {
		return nil
	}
	log := tracker.NewLog(pc.StateDir)
	var warnings []string
	for _, p := range paths {
		err := log.Append(tracker.Record{
			Path:       p,
			Provenance: tracker.ProvenanceTool,
			Confidence: tracker.ConfidenceObserved,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("file tracking: %v", err))
		}
	}
	return warnings
}

func logDetails(ev *protocol.Event) map[string]any {
	details := map[string]any{}
	if sub := ev.Subtype(); sub != "" {
		details["subtype"] = sub
	}
	if ev.Kind == protocol.StopEvent || ev.Kind == protocol.SubagentStopEvent {
		details["stop_hook_active"] = ev.StopHookActive
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
