package main

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/logger"
	"github.com/mark3labs/dealerdesk/internal/tui/theme"
)

const (
	logoText1 = "█▀▄ █▀▀ ▄▀█ █   █▀▀ █▀█ █▀▄ █▀▀ █▀ █▄▀"
	logoText2 = "█▄▀ ██▄ █▀█ █▄▄ ██▄ █▀▄ █▄▀ ██▄ ▄█ █ █"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dealerdesk",
	Short: "Terminal intake desk for dealership vehicle purchases",
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	t := theme.Current()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

dealerdesk records a purchased vehicle in three steps (vehicle details,
seller and purchase with payment slots, condition and photos) and submits
it to the dealership backend. Every submission stage is journaled locally
on an embedded NATS JetStream stream so partial failures stay visible.`

	addConfigFlags(rootCmd)

	rootCmd.AddCommand(intakeCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(devserverCmd)
}
