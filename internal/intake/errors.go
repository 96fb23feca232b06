package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/dealerdesk/internal/api"
	"github.com/mark3labs/dealerdesk/internal/draft"
)

// ErrAuthExpired ends the flow after the backend answered 401. The session
// has already been cleared when this is returned.
var ErrAuthExpired = errors.New("session expired, log in again")

// ErrSubmissionInFlight is returned when Submit is called while another
// submission is still running.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// PartialSubmissionError reports a stage failure after the vehicle was
// already saved. Earlier stages are not rolled back.
type PartialSubmissionError struct {
	VehicleID string
	Stage     string
	Completed []string
	Err       error
}

func (e *PartialSubmissionError) Error() string {
	return fmt.Sprintf("vehicle %s was saved, but %s failed: %v", e.VehicleID, e.Stage, e.Err)
}

func (e *PartialSubmissionError) Unwrap() error {
	return e.Err
}

// SlotErrors aggregates per-record failures reported by the payment slot
// batch endpoint.
type SlotErrors struct {
	Records []api.RecordError
	Labels  []string

	// Saved maps the list position of every record the batch did accept to
	// the id the backend gave it.
	Saved map[int]string
}

// newSlotErrors names each failing record by the label it was posted with
// and pairs the accepted records, in order, with the slots in created.
func newSlotErrors(errs []api.RecordError, posted []draft.PaymentRecord, created []draft.PaymentSlot) *SlotErrors {
	labels := make([]string, len(errs))
	failed := make(map[int]bool, len(errs))
	for i, re := range errs {
		failed[re.Index] = true
		if re.Index >= 0 && re.Index < len(posted) {
			labels[i] = posted[re.Index].SlotNumber
		} else {
			labels[i] = fmt.Sprintf("Record %d", re.Index+1)
		}
	}

	saved := make(map[int]string)
	next := 0
	for i := range posted {
		if failed[i] {
			continue
		}
		if next >= len(created) {
			break
		}
		if id := created[next].ID; id != "" {
			saved[i] = id
		}
		next++
	}
	return &SlotErrors{Records: errs, Labels: labels, Saved: saved}
}

func (e *SlotErrors) Error() string {
	parts := make([]string, len(e.Records))
	for i, re := range e.Records {
		parts[i] = e.Labels[i] + ": " + re.Message
	}
	return strings.Join(parts, "; ")
}
