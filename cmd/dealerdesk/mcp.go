package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/mcpserver"
)

var mcpFlags struct {
	http bool
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve vehicle lookup tools over MCP",
	Long: `Serve read-only tools (get-vehicle, list-payment-slots,
journal-for-vehicle) over the Model Context Protocol on stdin/stdout, or
with --http on a local streamable HTTP endpoint.
Requests use the cached session; run 'dealerdesk login' first.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpFlags.http, "http", false, "serve on a random local HTTP port instead of stdio")
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var j mcpserver.JournalReader
	if e.journal != nil {
		j = e.journal
	}
	srv := mcpserver.New(e.client, j, version)
	if !mcpFlags.http {
		return srv.ServeStdio()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving MCP tools at %s (ctrl+c to stop)\n", srv.URL())
	<-ctx.Done()
	return srv.Stop()
}
