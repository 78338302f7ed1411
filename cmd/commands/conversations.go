package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/quill/internal/store"
)

// NewConversationsCommand returns the conversations subcommand.
func NewConversationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "conversations",
		Usage: "List an owner's conversations from the local store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Owner whose conversations to list",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of conversations",
				Value: 20,
			},
		},
		Action: runConversations,
	}
}

func runConversations(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	db, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	convs, err := db.Conversations().List(ctx, cmd.String("owner"), cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s  %s\n", c.ID, c.UpdatedAt.Local().Format(time.DateTime), title)
	}
	return nil
}
