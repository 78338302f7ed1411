package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/quill/internal/config"
)

// Version is the Quill release version.
const Version = "0.1.0"

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "quill",
		Usage:   "Conversational task assistant",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewMCPServeCommand(),
			NewStatusCommand(),
			NewConversationsCommand(),
			NewTasksCommand(),
			NewTokenCommand(),
		},
	}
}
