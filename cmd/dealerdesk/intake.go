package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/hooks"
	"github.com/mark3labs/dealerdesk/internal/intake"
	"github.com/mark3labs/dealerdesk/internal/tui/wizard"
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Record a newly purchased vehicle",
	Long: `Run the three-step intake wizard and submit the vehicle.

The vehicle is created first, then its photos are uploaded, then the
payment slots are posted as one batch. A failure in a later stage keeps the
created vehicle; the wizard shows what failed and lets you retry.`,
	Args: cobra.NoArgs,
	RunE: runIntake,
}

var editCmd = &cobra.Command{
	Use:   "edit <vehicle-id>",
	Short: "Edit a stored vehicle",
	Long: `Load a stored vehicle into the wizard, edit it and submit the changes.

The whole payment slot list is posted; stored slots are updated in place.
Existing photos are kept and new ones are appended.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func runIntake(cmd *cobra.Command, args []string) error {
	return runWizard(cmd, func(ctx context.Context, deps wizard.Deps) (*wizard.Result, error) {
		return wizard.Run(ctx, deps)
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if id == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	return runWizard(cmd, func(ctx context.Context, deps wizard.Deps) (*wizard.Result, error) {
		return wizard.RunEdit(ctx, deps, id)
	})
}

func runWizard(cmd *cobra.Command, start func(context.Context, wizard.Deps) (*wizard.Result, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := start(ctx, wizard.Deps{
		Submitter: e.submitter,
		Loader:    e.client,
		Session:   e.session,
	})
	switch {
	case errors.Is(err, wizard.ErrCancelled):
		fmt.Println("Cancelled, nothing was submitted.")
		return nil
	case errors.Is(err, intake.ErrAuthExpired):
		return fmt.Errorf("%w; run 'dealerdesk login' and try again", err)
	case err != nil:
		return err
	}

	if sub := res.Submission; sub != nil {
		verb := "created"
		if sub.Mode == intake.ModeUpdate {
			verb = "updated"
		}
		fmt.Printf("Vehicle %s %s with %d payment slot(s).\n", sub.VehicleID, verb, len(sub.Slots))
		return runPostSubmitHooks(ctx, sub)
	}
	return nil
}

// runPostSubmitHooks runs the post_submit hooks from the working directory.
// Hook failures are printed, not returned; the vehicle is already saved.
func runPostSubmitHooks(ctx context.Context, sub *intake.Result) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := hooks.LoadConfig(workDir)
	if err != nil || cfg == nil {
		return err
	}

	out, err := hooks.ExecuteAll(ctx, cfg.Hooks.PostSubmit, workDir, hooks.Variables{
		VehicleID:  sub.VehicleID,
		Mode:       string(sub.Mode),
		Submission: sub.ID,
	})
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Print(out)
	}
	return nil
}
