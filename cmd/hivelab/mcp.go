package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campushive/hivelab"
	hivehttp "github.com/campushive/hivelab/pkg/adapters/http"
	"github.com/campushive/hivelab/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the design tools (validate, sanitize, parse, list kinds) to model
clients. With --dir the stored tool definitions can be read, and with
--gateway actions can be executed against a running hivelab server.

Transports:
- stdio (default): standard input and output, for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		gateway, _ := cmd.Flags().GetString("gateway")
		user, _ := cmd.Flags().GetString("user")

		d, err := newDesigner()
		if err != nil {
			return err
		}
		opts := []mcp.Option{
			mcp.WithValidator(d.Validator()),
			mcp.WithParser(d.Parser()),
			mcp.WithLogger(logger),
		}
		if cmd.Flags().Changed("dir") {
			catalog, err := openCatalog()
			if err != nil {
				return err
			}
			opts = append(opts, mcp.WithCatalog(catalog))
		}
		if gateway != "" {
			opts = append(opts, mcp.WithGateway(hivehttp.NewClient(gateway,
				hivehttp.WithUser(user),
				hivehttp.WithClientLogger(logger),
			)))
		}
		srv := mcp.NewServer(hivelab.Version, opts...)

		switch cfg.MCP.Transport {
		case "sse":
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Info("starting MCP server (SSE)", "addr", cfg.MCP.Addr)
			if err := srv.ServeSSE(ctx, cfg.MCP.Addr, cfg.MCP.BaseURL); err != nil {
				return err
			}
			logger.Info("MCP server stopped")
			return nil
		default:
			// JSON-RPC owns stdout.
			log.SetOutput(os.Stderr)
			logger.Info("starting MCP server (stdio)")
			return srv.ServeStdio()
		}
	},
}

func init() {
	mcpCmd.Flags().String("transport", "", "Transport: stdio or sse")
	mcpCmd.Flags().String("mcp-addr", "", "Listen address for SSE (default :8081)")
	mcpCmd.Flags().String("dir", "", "Directory of tool definitions to expose")
	mcpCmd.Flags().String("gateway", "", "Base URL of a hivelab server for execute_action")
	mcpCmd.Flags().String("user", "", "User id sent to the gateway")
	rootCmd.AddCommand(mcpCmd)
}
