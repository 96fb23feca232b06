package intake

import (
	"context"
	"fmt"

	"github.com/mark3labs/dealerdesk/internal/logger"
)

// Stage is one dependent request in a submission.
type Stage struct {
	Name string

	// NeedsVehicle stages run only once an earlier stage produced the
	// vehicle id.
	NeedsVehicle bool

	// Skip reports that the stage has nothing to send for this draft.
	Skip func(*Run) bool

	Execute func(context.Context, *Run) error

	// Compensate undoes a completed stage after a later one failed. Every
	// stage leaves it nil today, so failures are never rolled back.
	Compensate func(context.Context, *Run) error
}

// StageObserver is told the outcome of each stage as it finishes.
type StageObserver func(stage, status string, err error)

// Pipeline runs stages strictly in order; a stage never starts before the
// previous one returned.
type Pipeline struct {
	Stages []Stage
}

// Run executes the pipeline. The first failure stops it: a failure in the
// first stage is returned as is, a later one is wrapped in
// *PartialSubmissionError. Completed stages with a Compensate hook are
// compensated in reverse order before returning.
func (p Pipeline) Run(ctx context.Context, run *Run, observe StageObserver) error {
	var completed []string
	var done []Stage
	for i, st := range p.Stages {
		if st.NeedsVehicle && run.VehicleID == "" {
			err := fmt.Errorf("%s needs a vehicle id but none was produced", st.Name)
			notify(observe, st.Name, statusFailed, err)
			return err
		}
		if st.Skip != nil && st.Skip(run) {
			notify(observe, st.Name, statusSkipped, nil)
			continue
		}

		if err := st.Execute(ctx, run); err != nil {
			notify(observe, st.Name, statusFailed, err)
			compensate(ctx, run, done)
			if i == 0 {
				return err
			}
			return &PartialSubmissionError{
				VehicleID: run.VehicleID,
				Stage:     st.Name,
				Completed: completed,
				Err:       err,
			}
		}

		notify(observe, st.Name, statusOK, nil)
		completed = append(completed, st.Name)
		done = append(done, st)
	}
	return nil
}

func compensate(ctx context.Context, run *Run, done []Stage) {
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].Compensate == nil {
			continue
		}
		if err := done[i].Compensate(ctx, run); err != nil {
			logger.Warn("Compensating %s failed: %v", done[i].Name, err)
		}
	}
}

func notify(observe StageObserver, stage, status string, err error) {
	if observe != nil {
		observe(stage, status, err)
	}
}
