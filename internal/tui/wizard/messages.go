package wizard

import (
	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/intake"
)

// TabExitForwardMsg is sent when tab is pressed on a step's last field.
type TabExitForwardMsg struct{}

// TabExitBackwardMsg is sent when shift+tab is pressed on a step's first
// field.
type TabExitBackwardMsg struct{}

// AdvanceMsg asks the wizard to validate the current step and move on.
type AdvanceMsg struct{}

// VehicleLoadedMsg carries the vehicle fetched for the edit flow.
type VehicleLoadedMsg struct {
	Entity draft.Entity
}

// LoadErrorMsg reports that the edit flow could not fetch the vehicle.
type LoadErrorMsg struct {
	Err error
}

// SubmittedMsg reports a successful submission.
type SubmittedMsg struct {
	Result *intake.Result
}

// SubmitErrorMsg reports a failed submission.
type SubmitErrorMsg struct {
	Err      error
	Snapshot draft.Snapshot // what was sent
}

// RetrySubmitMsg asks the wizard to submit again after a failure.
type RetrySubmitMsg struct{}

// TextEditedMsg is sent when the external editor returns for a long text
// field.
type TextEditedMsg struct {
	Key     string
	Content string
}
