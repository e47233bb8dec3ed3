package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/hookloop/internal/config"
	"github.com/klauern/hookloop/internal/project"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect and validate the rule-set document",
		Commands: []*cli.Command{
			newConfigValidateCmd(),
			newConfigShowCmd(),
		},
	}
}

func newConfigValidateCmd() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check the rule-set document against the schema",
		Action: func(_ context.Context, _ *cli.Command) error {
			path, err := discoverRuleSet()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Println("No rule-set document found; built-in defaults apply.")
				return nil
			}
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Printf("%s: OK\n", path)
			return nil
		},
	}
}

func newConfigShowCmd() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the effective configuration after defaults and env overrides",
		Action: func(_ context.Context, _ *cli.Command) error {
			pc, err := loadProject("", "")
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(pc.Config)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func discoverRuleSet() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := project.Resolve(cwd)
	if err != nil {
		return "", err
	}
	return config.Discover(project.StateDir(root)), nil
}
