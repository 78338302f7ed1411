package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/quill/internal/auth"
)

// NewTokenCommand returns the token subcommand. It mints tokens with the
// local signing secret, for development and testing against a local
// gateway.
func NewTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Owner the token authenticates as",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: runToken,
	}
}

func runToken(_ context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured (set auth.secret or QUILL_AUTH_SECRET)")
	}
	verifier, err := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	token, err := verifier.Mint(cmd.String("owner"), cmd.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	fmt.Println(token)
	return nil
}
