package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/session"
)

var loginFlags struct {
	token string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Cache a backend access token",
	Long: `Cache the bearer token used for every backend request.

The token is read from --token or, when omitted, from DEALERDESK_TOKEN.
JWT tokens are inspected for the user and expiry claims; the signature is
checked by the backend.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the cached access token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginFlags.token, "token", "t", "", "Access token (default: $DEALERDESK_TOKEN)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(loginFlags.token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("DEALERDESK_TOKEN"))
	}
	if token == "" {
		return fmt.Errorf("no token given; use --token or set DEALERDESK_TOKEN")
	}

	sess, err := session.FromToken(token)
	if err != nil {
		return err
	}
	if sess.Expired(time.Now()) {
		return session.ErrExpired
	}

	store := session.NewStore(cfg.DataDir)
	if err := store.Save(sess); err != nil {
		return err
	}

	who := sess.Username
	if who == "" {
		who = sess.UserID
	}
	if who != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", who)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Token saved.")
	}
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Expires %s.\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := session.NewStore(cfg.DataDir).Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
