package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/chat"
	"github.com/dohr-michael/quill/internal/config"
	"github.com/dohr-michael/quill/internal/gateway"
	"github.com/dohr-michael/quill/internal/models"
	"github.com/dohr-michael/quill/internal/reasoner"
	"github.com/dohr-michael/quill/internal/store"
	"github.com/dohr-michael/quill/internal/tools"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Quill gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := loadConfig(cmd)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured (set auth.secret or QUILL_AUTH_SECRET)")
	}
	verifier, err := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	db, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// Model registry
	registry := models.NewRegistry(cfg.Models)
	chatModel, err := registry.Default(ctx)
	if err != nil {
		return fmt.Errorf("init default model: %w", err)
	}

	toolRegistry := tools.NewRegistry(db.Tasks())
	slog.Info("tools loaded", "count", len(toolRegistry.Tools()))

	llm, err := reasoner.NewLLM(ctx, chatModel, toolRegistry,
		reasoner.WithSystemPrompt(cfg.Chat.SystemPrompt),
		reasoner.WithMaxToolRounds(cfg.Chat.MaxToolRounds),
	)
	if err != nil {
		return fmt.Errorf("init reasoner: %w", err)
	}

	orch := chat.NewOrchestrator(db.Conversations(), llm,
		chat.WithReplyTimeout(cfg.Chat.ReplyTimeout.Duration()),
		chat.WithListLimit(cfg.Chat.ListLimit),
	)

	server := gateway.NewServer(orch, db.Tasks(), verifier, cfg.Gateway.Host, cfg.Gateway.Port, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// loadConfig loads the config file named by the --config flag, falling
// back to defaults when it is missing.
func loadConfig(cmd *cli.Command) *config.Config {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return cfg
}
