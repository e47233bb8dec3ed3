package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/klauern/hookloop/internal/tracker"
)

// NewFilesCmd creates the files command group for the relevant-file log.
func NewFilesCmd() *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "Manage the relevant-file log",
		Commands: []*cli.Command{
			newFilesAddCmd(),
			newFilesListCmd(),
		},
	}
}

func newFilesAddCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Confirm one or more paths as relevant",
		ArgsUsage: "<path>...",
		Action: func(_ context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return fmt.Errorf("at least one path required")
			}
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			log := tracker.NewLog(pc.StateDir)
			for _, p := range paths {
				err := log.Append(tracker.Record{
					Path:       p,
					Provenance: tracker.ProvenanceUser,
					Confidence: tracker.ConfidenceConfirmed,
				})
				if err != nil {
					return err
				}
			}
			fmt.Printf("Confirmed %d path(s)\n", len(paths))
			return nil
		},
	}
}

func newFilesListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Show the current relevant-file snapshot",
		Action: func(_ context.Context, _ *cli.Command) error {
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			confirmed, suggested, err := tracker.NewLog(pc.StateDir).Snapshot()
			if err != nil {
				return err
			}
			if len(confirmed) == 0 && len(suggested) == 0 {
				fmt.Println("No tracked files.")
				return nil
			}
			for _, f := range confirmed {
				fmt.Printf("confirmed  %s\n", f)
			}
			for _, f := range suggested {
				fmt.Printf("suggested  %s\n", f)
			}
			return nil
		},
	}
}
