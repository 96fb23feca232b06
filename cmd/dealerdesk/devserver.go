package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/devserver"
)

var devserverFlags struct {
	addr  string
	token string
	debug bool
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory dealership backend for local development",
	Long: `Run an in-memory implementation of the vehicle and payment slot
endpoints. Nothing is persisted. With --token every request must carry that
bearer token, which exercises the login and session expiry flows.`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVar(&devserverFlags.addr, "addr", "127.0.0.1:8000", "Listen address")
	devserverCmd.Flags().StringVar(&devserverFlags.token, "token", "", "Require this bearer token")
	devserverCmd.Flags().BoolVar(&devserverFlags.debug, "debug", false, "Run gin in debug mode")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	if devserverFlags.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var opts []devserver.Option
	if devserverFlags.token != "" {
		opts = append(opts, devserver.WithToken(devserverFlags.token))
	}
	return devserver.New(opts...).Run(devserverFlags.addr)
}
