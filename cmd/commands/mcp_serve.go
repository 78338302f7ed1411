package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	quillmcp "github.com/dohr-michael/quill/internal/mcp"
	"github.com/dohr-michael/quill/internal/store"
	"github.com/dohr-michael/quill/internal/tools"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose the task tools as an MCP server (stdio)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Owner all tool calls run as",
				Required: true,
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// Setup logging to stderr (stdout is used for MCP stdio transport)
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	}

	cfg := loadConfig(cmd)

	owner := cmd.String("owner")
	if owner == "" {
		return fmt.Errorf("owner is required")
	}

	db, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	registry := tools.NewRegistry(db.Tasks())
	slog.Debug("starting MCP server", "owner", owner, "tools", len(registry.Tools()))

	server := quillmcp.NewServer(registry, owner, Version)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
