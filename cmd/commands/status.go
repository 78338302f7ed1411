package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show Quill gateway status",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd)
			url := fmt.Sprintf("http://%s:%d/api/health", cfg.Gateway.Host, cfg.Gateway.Port)

			client := &http.Client{Timeout: 2 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				fmt.Println("Gateway: NOT RUNNING")
				return nil
			}
			defer resp.Body.Close()

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["status"] != "ok" {
				fmt.Printf("Gateway: UNHEALTHY (%s)\n", resp.Status)
				return nil
			}

			fmt.Printf("Gateway: ALIVE (%s)\n", url)
			return nil
		},
	}
}
