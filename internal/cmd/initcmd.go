package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/hookloop/internal/project"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Mark the current directory as a project root",
		Description: `Creates .hookloop/project.toml in the current directory. Hook invocations
anywhere under this directory will resolve their state here instead of
walking further up.`,
		Action: func(_ context.Context, _ *cli.Command) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			marker, err := project.Init(cwd)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized project %s at %s\n", marker.ID, cwd)
			return nil
		},
	}
}
