package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/api"
	"github.com/mark3labs/dealerdesk/internal/config"
	"github.com/mark3labs/dealerdesk/internal/intake"
	"github.com/mark3labs/dealerdesk/internal/journal"
	"github.com/mark3labs/dealerdesk/internal/logger"
	"github.com/mark3labs/dealerdesk/internal/session"
)

// configFlags override the loaded configuration when set.
var configFlags struct {
	apiURL    string
	dataDir   string
	logLevel  string
	logFile   string
	noJournal bool
}

func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFlags.apiURL, "api-url", "", "Backend base URL (default: from config)")
	flags.StringVar(&configFlags.dataDir, "data-dir", "", "Directory for the session and journal (default: .dealerdesk)")
	flags.StringVar(&configFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&configFlags.logFile, "log-file", "", "Write logs to this file")
	flags.BoolVar(&configFlags.noJournal, "no-journal", false, "Do not record submission stages")
}

// loadConfig reads the config and applies flags changed on cmd, which take
// precedence over every other source.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = configFlags.apiURL
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = configFlags.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = configFlags.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = configFlags.logFile
	}
	if flags.Changed("no-journal") && configFlags.noJournal {
		cfg.Journal = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) error {
	if cfg.LogFile != "" {
		if err := logger.Default.SetFile(cfg.LogFile); err != nil {
			return err
		}
	}
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		logger.Default.SetLevel(level)
	}
	return nil
}

// env is everything a backend-facing command needs.
type env struct {
	cfg       *config.Config
	session   *session.Store
	client    *api.Client
	journal   *journal.Journal // nil when disabled or unavailable
	submitter *intake.Submitter
}

// openEnv wires the session, API client, journal and submitter. An expired
// session is an error; a missing one is allowed so an unauthenticated dev
// backend can be used.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(cfg.DataDir)
	if _, err := store.Load(); err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			return nil, err
		}
		logger.Warn("No cached session, requests are sent unauthenticated")
	}

	e := &env{
		cfg:     cfg,
		session: store,
		client:  api.New(cfg.APIURL, cfg.Timeout(), store),
	}

	opts := []intake.Option{
		intake.WithSession(store),
		intake.WithPaymentType(cfg.PaymentType),
	}
	if cfg.Journal {
		j, err := journal.Open(ctx, cfg.DataDir)
		if err != nil {
			// The journal is best-effort; a submission must not depend on it.
			logger.Warn("Submission journal unavailable: %v", err)
		} else {
			e.journal = j
			opts = append(opts, intake.WithRecorder(j))
		}
	}
	e.submitter = intake.NewSubmitter(e.client, opts...)
	return e, nil
}

func (e *env) Close() {
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			logger.Warn("Closing journal: %v", err)
		}
	}
}
