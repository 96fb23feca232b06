package wizard

import (
	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/dealerdesk/internal/draft"
)

// Step is one page of the intake wizard. A step is built from the draft
// section it owns, edits local state only, and writes back through Commit
// once Validate passes.
type Step interface {
	Title() string
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
	Focus() tea.Cmd
	Blur()
	Validate() error
	Commit(store *draft.Store)
}

// ValidationError blocks advancing past a step. It is shown inline and never
// leaves the wizard.
type ValidationError struct {
	Step    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newStep builds the step at index i from the current draft.
func newStep(i int, snap draft.Snapshot) Step {
	switch i {
	case 0:
		return NewVehicleStep(snap[draft.VehicleInfo])
	case 1:
		return NewSellerStep(snap[draft.SellerInfo], snap[draft.PurchaseInfo])
	default:
		return NewConditionStep(snap[draft.ConditionInfo])
	}
}

// stepCount is the number of form steps.
const stepCount = 3
