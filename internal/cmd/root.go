// Package cmd assembles the hookloop command tree.
package cmd

import (
	"github.com/urfave/cli/v3"
)

// NewRootCmd creates the top-level hookloop command.
func NewRootCmd(versionInfo VersionInfo) *cli.Command {
	return &cli.Command{
		Name:  "hookloop",
		Usage: "Agent lifecycle hook runner with policy, injection, and loop control",
		Description: `hookloop is invoked by the agent host on lifecycle events (stdin JSON in,
stdout JSON out) and doubles as the operator CLI for loops, context packets,
and the relevant-file log.`,
		Commands: []*cli.Command{
			NewRunCmd(),
			NewInitCmd(),
			NewLoopCmd(),
			NewPacketCmd(),
			NewFilesCmd(),
			NewConfigCmd(),
			NewVersionCmd(versionInfo),
		},
	}
}
