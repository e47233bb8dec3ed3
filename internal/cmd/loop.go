package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/hookloop/internal/loop"
)

// NewLoopCmd creates the loop command group.
func NewLoopCmd() *cli.Command {
	return &cli.Command{
		Name:  "loop",
		Usage: "Manage continuation loops",
		Description: `A loop re-delivers its directive every time the agent tries to stop, until
the agent outputs the loop's completion marker or the iteration budget runs
out. At most one loop is in the foreground at a time.`,
		Commands: []*cli.Command{
			newLoopStartCmd(),
			newLoopPauseCmd(),
			newLoopResumeCmd(),
			newLoopCancelCmd(),
			newLoopStatusCmd(),
			newLoopListCmd(),
		},
	}
}

func newLoopStartCmd() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a loop and make it the foreground loop",
		ArgsUsage: "[directive...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "promise",
				Aliases:  []string{"p"},
				Usage:    "Completion phrase the agent must output inside the done marker",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "max",
				Aliases: []string{"m"},
				Value:   0,
				Usage:   "Maximum continuations before giving up (0 = unbounded)",
			},
			&cli.BoolFlag{
				Name:  "fuzzy",
				Value: false,
				Usage: "Accept the bare promise phrase anywhere in the final message",
			},
			&cli.StringFlag{
				Name:  "packet",
				Usage: "Context packet id this loop executes",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			directive := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if directive == "" {
				return fmt.Errorf("a directive is required")
			}
			store, err := loopStore()
			if err != nil {
				return err
			}
			l, err := store.Start(directive, cmd.String("promise"), cmd.Int("max"), cmd.Bool("fuzzy"), cmd.String("packet"))
			if err != nil {
				return err
			}
			fmt.Printf("Started loop %s\n", l.ID)
			fmt.Printf("Completion marker: %s\n", l.Marker())
			if l.MaxIterations > 0 {
				fmt.Printf("Budget: %d continuation(s)\n", l.MaxIterations)
			}
			return nil
		},
	}
}

func newLoopPauseCmd() *cli.Command {
	return transitionCmd("pause", "Pause a loop (stops intercepting Stop events)", func(l *loop.Loop) error {
		return l.Pause()
	})
}

func newLoopResumeCmd() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume a paused loop and make it the foreground loop",
		ArgsUsage: "[loop-id]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			store, err := loopStore()
			if err != nil {
				return err
			}
			l, err := targetLoop(store, cmd.Args().Slice())
			if err != nil {
				return err
			}
			if err := l.Resume(); err != nil {
				return err
			}
			if err := store.Save(l); err != nil {
				return err
			}
			if err := store.SetActive(l.ID); err != nil {
				return err
			}
			fmt.Printf("Resumed loop %s\n", l.ID)
			return nil
		},
	}
}

func newLoopCancelCmd() *cli.Command {
	return transitionCmd("cancel", "Cancel a loop permanently", func(l *loop.Loop) error {
		return l.Cancel()
	})
}

// transitionCmd builds a pause/cancel style command: load target, apply
// the transition, persist, and drop the foreground pointer if it pointed
// at the target.
func transitionCmd(name, usage string, apply func(*loop.Loop) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "[loop-id]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			store, err := loopStore()
			if err != nil {
				return err
			}
			l, err := targetLoop(store, cmd.Args().Slice())
			if err != nil {
				return err
			}
			if err := apply(l); err != nil {
				return err
			}
			if err := store.Save(l); err != nil {
				return err
			}
			if active, _ := store.Active(); active != nil && active.ID == l.ID {
				if err := store.ClearActive(); err != nil {
					return err
				}
			}
			fmt.Printf("Loop %s is now %s\n", l.ID, l.Status)
			return nil
		},
	}
}

func newLoopStatusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the foreground loop, or a specific loop by id",
		ArgsUsage: "[loop-id]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			store, err := loopStore()
			if err != nil {
				return err
			}
			args := cmd.Args().Slice()
			var l *loop.Loop
			if len(args) > 0 {
				l, err = store.Find(args[0])
				if err != nil {
					return err
				}
			} else {
				var warnings []string
				l, warnings = store.Active()
				for _, w := range warnings {
					fmt.Fprintln(os.Stderr, w)
				}
				if l == nil {
					fmt.Println("No foreground loop.")
					return nil
				}
			}
			printLoop(l)
			return nil
		},
	}
}

func newLoopListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all loops, newest first",
		Action: func(_ context.Context, _ *cli.Command) error {
			store, err := loopStore()
			if err != nil {
				return err
			}
			loops, warnings, err := store.List()
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(os.Stderr, w)
			}
			if len(loops) == 0 {
				fmt.Println("No loops.")
				return nil
			}
			active, _ := store.Active()
			for _, l := range loops {
				mark := " "
				if active != nil && active.ID == l.ID {
					mark = "*"
				}
				fmt.Printf("%s %s  %-9s  iter %d", mark, l.ID, l.Status, l.Iteration)
				if l.MaxIterations > 0 {
					fmt.Printf("/%d", l.MaxIterations)
				}
				fmt.Printf("  %s\n", summarize(l.Directive, 60))
			}
			return nil
		},
	}
}

func loopStore() (*loop.Store, error) {
	pc, err := loadProject("", "")
	if err != nil {
		return nil, err
	}
	return loop.NewStore(pc.StateDir), nil
}

// targetLoop resolves the command target: an explicit id argument, or the
// foreground loop when none is given.
func targetLoop(store *loop.Store, args []string) (*loop.Loop, error) {
	if len(args) > 0 {
		return store.Find(args[0])
	}
	l, warnings := store.Active()
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}
	if l == nil {
		return nil, fmt.Errorf("no foreground loop; pass a loop id")
	}
	return l, nil
}

func printLoop(l *loop.Loop) {
	fmt.Printf("id:         %s\n", l.ID)
	fmt.Printf("status:     %s\n", l.Status)
	fmt.Printf("iteration:  %d", l.Iteration)
	if l.MaxIterations > 0 {
		fmt.Printf(" of %d", l.MaxIterations)
	}
	fmt.Println()
	fmt.Printf("marker:     %s\n", l.Marker())
	if l.Fuzzy {
		fmt.Println("matching:   fuzzy (bare promise accepted)")
	}
	if l.SourcePacketID != "" {
		fmt.Printf("packet:     %s\n", l.SourcePacketID)
	}
	fmt.Printf("directive:  %s\n", l.Directive)
}

func summarize(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
