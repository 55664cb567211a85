// cmd/dc-shim/main.go
// Command dc-shim exposes the decision tools over MCP stdio and forwards every
// call to a central dc-api.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/MereWhiplash/decision-cogitator/internal/client"
	"github.com/MereWhiplash/decision-cogitator/internal/config"
	"github.com/MereWhiplash/decision-cogitator/internal/gitinfo"
	"github.com/MereWhiplash/decision-cogitator/internal/logging"
	"github.com/MereWhiplash/decision-cogitator/internal/tools"
)

// version is set via ldflags
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "dc-shim",
	Short:         "MCP stdio proxy to a central dc-api",
	Long:          "dc-shim proxies MCP tool calls to dc-api. The API URL comes from --api-url or DC_API_URL.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configFile, "config", "", "Optional YAML config file")
	f.String("api-url", "", "Central API URL (required)")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd, map[string]string{
		"api.url":   "api-url",
		"log.level": "log-level",
	}); err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if cfg.API.URL == "" {
		return fmt.Errorf("API URL required: use --api-url or DC_API_URL")
	}

	log := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format), os.Stderr)

	info := gitinfo.Get()
	log.Info().
		Str("author", info.Author()).
		Str("repo", info.Repo).
		Str("api_url", cfg.API.URL).
		Msg("git context")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(cfg.API.URL, info)
	if err := c.Health(ctx); err != nil {
		log.Warn().Err(err).Msg("API not healthy yet, tool calls may fail")
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "decision-cogitator",
		Version: version,
	}, nil)
	tools.Register(server, c)

	log.Info().Msg("starting MCP shim")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
