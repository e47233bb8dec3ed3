package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/klauern/hookloop/internal/cmd"
)

// Populated by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := cmd.NewRootCmd(cmd.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		GoVer:   runtime.Version(),
	})
	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
