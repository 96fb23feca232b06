package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/colorprofile"
	"github.com/spf13/cobra"

	"github.com/mark3labs/dealerdesk/internal/journal"
	"github.com/mark3labs/dealerdesk/internal/tui/theme"
)

var journalFlags struct {
	json bool
}

var journalCmd = &cobra.Command{
	Use:   "journal [vehicle-id]",
	Short: "Show recorded submission stages",
	Long: `Print every recorded submission stage, oldest first, optionally for one
vehicle. Failed stages carry the backend's message, so a vehicle that was
created while its photos or payment slots failed can be found here.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().BoolVar(&journalFlags.json, "json", false, "Print events as JSON")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	vehicleID := ""
	if len(args) == 1 {
		vehicleID = args[0]
	}

	j, err := journal.Open(cmd.Context(), cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	events, err := j.List(cmd.Context(), vehicleID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if journalFlags.json {
		return writeEventsJSON(out, events, colorprofile.Detect(out, os.Environ()))
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No submission events recorded.")
		return nil
	}

	fmt.Fprintln(out, renderEvents(events))
	return nil
}

// writeEventsJSON prints events as an indented JSON array, highlighted when
// the terminal supports it.
func writeEventsJSON(w io.Writer, events []journal.Event, profile colorprofile.Profile) error {
	if events == nil {
		events = []journal.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}
	_, err = fmt.Fprintln(w, theme.Highlight(string(data), "json", profile))
	return err
}

// renderEvents lays events out as a table with the status coloured.
func renderEvents(events []journal.Event) string {
	t := theme.Current()
	header := lipgloss.NewStyle().Foreground(theme.C(t.Primary)).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Foreground(theme.C(t.FgBase)).Padding(0, 1)
	statusColor := map[string]string{
		journal.StatusOK:      t.Success,
		journal.StatusFailed:  t.Error,
		journal.StatusSkipped: t.FgMuted,
	}

	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
			ev.Submission,
			ev.Mode,
			ev.VehicleID,
			ev.Stage,
			ev.Status,
			ev.Message,
		})
	}

	const statusCol = 5
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.C(t.FgSurface2))).
		Headers("TIME", "SUBMISSION", "MODE", "VEHICLE", "STAGE", "STATUS", "MESSAGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				if c, ok := statusColor[rows[row][statusCol]]; ok {
					return cell.Foreground(theme.C(c))
				}
			}
			return cell
		})
	return tbl.Render()
}
