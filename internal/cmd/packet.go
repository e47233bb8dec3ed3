package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/hookloop/internal/tracker"
)

// NewPacketCmd creates the packet command group.
func NewPacketCmd() *cli.Command {
	return &cli.Command{
		Name:  "packet",
		Usage: "Manage context packets",
		Description: `A context packet is a markdown handoff document with YAML front matter:
purpose, status, and the relevant-file snapshot taken at creation time.
Packets seed fresh sessions and loops with curated context.`,
		Commands: []*cli.Command{
			newPacketNewCmd(),
			newPacketShowCmd(),
			newPacketListCmd(),
			newPacketSetStatusCmd(),
		},
	}
}

func newPacketNewCmd() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a draft packet seeded from the relevant-file log",
		ArgsUsage: "[purpose...]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			purpose := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if purpose == "" {
				return fmt.Errorf("a purpose is required")
			}
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			confirmed, suggested, err := tracker.NewLog(pc.StateDir).Snapshot()
			if err != nil {
				return err
			}
			p := tracker.NewPacket(purpose, confirmed, suggested)
			if err := tracker.NewPacketStore(pc.StateDir).Save(p); err != nil {
				return err
			}
			fmt.Printf("Created packet %s (%d confirmed, %d suggested files)\n",
				p.Meta.ID, len(confirmed), len(suggested))
			return nil
		},
	}
}

func newPacketShowCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a packet document",
		ArgsUsage: "<packet-id>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("exactly one argument required: <packet-id>")
			}
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			p, err := tracker.NewPacketStore(pc.StateDir).Find(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:      %s\n", p.Meta.ID)
			fmt.Printf("status:  %s\n", p.Meta.Status)
			fmt.Printf("purpose: %s\n", p.Meta.Purpose)
			if len(p.Meta.Confirmed) > 0 {
				fmt.Printf("confirmed files:\n")
				for _, f := range p.Meta.Confirmed {
					fmt.Printf("  %s\n", f)
				}
			}
			if len(p.Meta.Suggested) > 0 {
				fmt.Printf("suggested files:\n")
				for _, f := range p.Meta.Suggested {
					fmt.Printf("  %s\n", f)
				}
			}
			fmt.Println()
			fmt.Println(p.Body)
			return nil
		},
	}
}

func newPacketListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List packets, newest first",
		Action: func(_ context.Context, _ *cli.Command) error {
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			packets, warnings, err := tracker.NewPacketStore(pc.StateDir).List()
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(os.Stderr, w)
			}
			if len(packets) == 0 {
				fmt.Println("No packets.")
				return nil
			}
			for _, p := range packets {
				fmt.Printf("%s  %-8s  %s\n", p.Meta.ID, p.Meta.Status, summarize(p.Meta.Purpose, 60))
			}
			return nil
		},
	}
}

func newPacketSetStatusCmd() *cli.Command {
	return &cli.Command{
		Name:      "set-status",
		Usage:     "Transition a packet (draft, active, done, blocked)",
		ArgsUsage: "<packet-id> <status>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 2 {
				return fmt.Errorf("exactly two arguments required: <packet-id> <status>")
			}
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			p, err := tracker.NewPacketStore(pc.StateDir).SetStatus(args[0], tracker.PacketStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("Packet %s is now %s\n", p.Meta.ID, p.Meta.Status)
			return nil
		},
	}
}
