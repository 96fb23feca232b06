// Package hooks runs user-configured shell commands after a submission, for
// example to print a stock label or notify the accounts desk.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/dealerdesk/internal/logger"
)

// ConfigFileName is the name of the hooks configuration file.
const ConfigFileName = ".dealerdesk.hooks.yml"

// LoadConfig reads ConfigFileName from workDir. A missing file yields a nil
// config and no error.
func LoadConfig(workDir string) (*Config, error) {
	configPath := filepath.Join(workDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}

	logger.Debug("Loaded %d post-submit hook(s) from %s", len(cfg.Hooks.PostSubmit), configPath)
	return &cfg, nil
}

// Variables describe the submission a hook runs for. They are expanded in
// the command ({{vehicle_id}}, {{mode}}, {{submission}}) and exported as
// DEALERDESK_VEHICLE_ID, DEALERDESK_MODE and DEALERDESK_SUBMISSION.
type Variables struct {
	VehicleID  string
	Mode       string
	Submission string
}

func (v Variables) env() []string {
	return []string{
		"DEALERDESK_VEHICLE_ID=" + v.VehicleID,
		"DEALERDESK_MODE=" + v.Mode,
		"DEALERDESK_SUBMISSION=" + v.Submission,
	}
}

func (h *HookConfig) timeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}
	return time.Duration(h.Timeout) * time.Second
}

// Execute runs one hook through sh and returns what it printed. A failing or
// timed-out hook is described in the returned text with a nil error, because
// the submission it follows has already succeeded. Only cancellation of ctx
// is an error.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || strings.TrimSpace(hook.Command) == "" {
		return "", nil
	}
	command := expandVariables(hook.Command, vars)
	timeout := hook.timeout()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), vars.env()...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	// Children of sh can hold the output pipes open after a timeout kill.
	cmd.WaitDelay = time.Second

	logger.Debug("Running post-submit hook for vehicle %s: %s", vars.VehicleID, command)
	runErr := cmd.Run()

	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.Warn("Hook timed out after %s: %s", timeout, command)
		return fmt.Sprintf("[Hook timed out after %s]\n%s", timeout, stdout.String()), nil
	case runErr != nil:
		logger.Warn("Hook %q failed: %v", command, runErr)
		return fmt.Sprintf("[Hook command failed: %v]\n%s", runErr, combined(stdout.String(), stderr.String())), nil
	}

	logger.Debug("Hook finished, %d bytes of output", stdout.Len()+stderr.Len())
	return combined(stdout.String(), stderr.String()), nil
}

// combined appends stderr, when present, under a marker.
func combined(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	return stdout + "\n[stderr]\n" + stderr
}

// ExecuteAll runs hooks in order and joins their non-empty outputs with a
// blank line. It stops at the first context cancellation.
func ExecuteAll(ctx context.Context, hooks []*HookConfig, workDir string, vars Variables) (string, error) {
	var outputs []string
	for _, hook := range hooks {
		out, err := Execute(ctx, hook, workDir, vars)
		if err != nil {
			return "", err
		}
		if out != "" {
			outputs = append(outputs, out)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

// expandVariables replaces {{variable}} placeholders in the command string.
func expandVariables(command string, vars Variables) string {
	return strings.NewReplacer(
		"{{vehicle_id}}", vars.VehicleID,
		"{{mode}}", vars.Mode,
		"{{submission}}", vars.Submission,
	).Replace(command)
}
