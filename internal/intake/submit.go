// Package intake submits a finished vehicle draft to the backend as an
// ordered pipeline of dependent requests.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mark3labs/dealerdesk/internal/api"
	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/journal"
	"github.com/mark3labs/dealerdesk/internal/logger"
)

// Stage names, in execution order.
const (
	StageSaveVehicle        = "save-vehicle"
	StageUploadImages       = "upload-images"
	StageCreatePaymentSlots = "create-payment-slots"
)

const (
	statusOK      = journal.StatusOK
	statusFailed  = journal.StatusFailed
	statusSkipped = journal.StatusSkipped
)

// DefaultPaymentType is stamped onto every posted payment record.
const DefaultPaymentType = "purchase"

// Mode selects create or update for the first stage.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Backend is the part of the API client a submission needs.
type Backend interface {
	CreateVehicle(ctx context.Context, p draft.Payload) (draft.Entity, error)
	UpdateVehicle(ctx context.Context, id string, p draft.Payload) (draft.Entity, error)
	UploadImages(ctx context.Context, id string, images []draft.Attachment) error
	CreatePaymentSlots(ctx context.Context, vehicleID string, records []draft.PaymentRecord) (api.BatchResult, error)
	ListPaymentSlots(ctx context.Context, vehicleID string) ([]draft.PaymentSlot, error)
}

// SessionClearer forgets the signed-in session.
type SessionClearer interface {
	Clear() error
}

// Recorder stores stage outcomes.
type Recorder interface {
	Record(ctx context.Context, ev journal.Event) error
}

// Run is the state threaded through the stages of one submission.
type Run struct {
	ID        string
	Mode      Mode
	VehicleID string
	Snapshot  draft.Snapshot
	Entity    draft.Entity
	Posted    []draft.PaymentRecord
}

// Result is a successful submission.
type Result struct {
	ID        string
	Mode      Mode
	VehicleID string
	Entity    draft.Entity
	// Slots is the persisted payment slot list read back after the batch.
	Slots []draft.PaymentSlot
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithSession clears s when the backend answers 401.
func WithSession(s SessionClearer) Option {
	return func(sub *Submitter) { sub.session = s }
}

// WithRecorder records every stage outcome to r.
func WithRecorder(r Recorder) Option {
	return func(sub *Submitter) { sub.recorder = r }
}

// WithPaymentType overrides the payment type stamped on posted slots.
func WithPaymentType(t string) Option {
	return func(sub *Submitter) {
		if t != "" {
			sub.paymentType = t
		}
	}
}

// Submitter runs submissions one at a time.
type Submitter struct {
	backend     Backend
	session     SessionClearer
	recorder    Recorder
	paymentType string
	inFlight    atomic.Bool
}

// NewSubmitter creates a submitter over backend.
func NewSubmitter(backend Backend, opts ...Option) *Submitter {
	s := &Submitter{backend: backend, paymentType: DefaultPaymentType}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InFlight reports whether a submission is running.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

// Submit sends snap to the backend. In ModeUpdate vehicleID names the
// vehicle to patch; in ModeCreate it is ignored. A second call while one is
// running returns ErrSubmissionInFlight without issuing any request.
func (s *Submitter) Submit(ctx context.Context, mode Mode, vehicleID string, snap draft.Snapshot) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	run := &Run{ID: uuid.NewString(), Mode: mode, Snapshot: snap}
	if mode == ModeUpdate {
		if vehicleID == "" {
			return nil, fmt.Errorf("update needs a vehicle id")
		}
		run.VehicleID = vehicleID
	}

	logger.Info("Submission %s started (%s, vehicle=%q)", run.ID, mode, run.VehicleID)

	err := s.pipeline().Run(ctx, run, func(stage, status string, err error) {
		s.record(ctx, run, stage, status, err)
	})
	if err != nil {
		logger.Error("Submission %s failed: %v", run.ID, err)
		return nil, s.classify(err)
	}

	res := &Result{ID: run.ID, Mode: mode, VehicleID: run.VehicleID, Entity: run.Entity}
	slots, err := s.backend.ListPaymentSlots(ctx, run.VehicleID)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, s.classify(err)
		}
		// Everything is saved; only the reconciliation read failed.
		logger.Warn("Submission %s: reading back payment slots failed: %v", run.ID, err)
		slots = snap.PaymentSlots()
	}
	res.Slots = slots

	logger.Info("Submission %s finished: vehicle %s, %d payment slots", run.ID, run.VehicleID, len(slots))
	return res, nil
}

func (s *Submitter) pipeline() Pipeline {
	return Pipeline{Stages: []Stage{
		{
			Name:    StageSaveVehicle,
			Execute: s.saveVehicle,
		},
		{
			Name:         StageUploadImages,
			NeedsVehicle: true,
			Skip:         func(r *Run) bool { return len(r.Snapshot.Images()) == 0 },
			Execute: func(ctx context.Context, r *Run) error {
				return s.backend.UploadImages(ctx, r.VehicleID, r.Snapshot.Images())
			},
		},
		{
			Name:         StageCreatePaymentSlots,
			NeedsVehicle: true,
			Skip:         func(r *Run) bool { return len(r.Snapshot.PaymentSlots()) == 0 },
			Execute:      s.createPaymentSlots,
		},
	}}
}

func (s *Submitter) saveVehicle(ctx context.Context, r *Run) error {
	payload := draft.Serialize(r.Snapshot)

	var (
		entity draft.Entity
		err    error
	)
	if r.Mode == ModeUpdate {
		entity, err = s.backend.UpdateVehicle(ctx, r.VehicleID, payload)
	} else {
		entity, err = s.backend.CreateVehicle(ctx, payload)
	}
	if err != nil {
		return err
	}

	r.Entity = entity
	if id := entity.ID(); id != "" {
		r.VehicleID = id
	}
	if r.VehicleID == "" {
		return fmt.Errorf("backend response carried no vehicle id")
	}
	return nil
}

func (s *Submitter) createPaymentSlots(ctx context.Context, r *Run) error {
	// The whole list goes out as one batch. Slots already stored carry
	// their id, so the backend updates them in place.
	records := draft.NormalizePaymentSlots(r.Snapshot.PaymentSlots(), s.paymentType)
	r.Posted = records

	res, err := s.backend.CreatePaymentSlots(ctx, r.VehicleID, records)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return newSlotErrors(res.Errors, records, res.Created)
	}
	return nil
}

// classify maps a 401 anywhere in err to ErrAuthExpired after clearing the
// session.
func (s *Submitter) classify(err error) error {
	if !errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	if s.session != nil {
		if cerr := s.session.Clear(); cerr != nil {
			logger.Warn("Clearing session after 401 failed: %v", cerr)
		}
	}
	return fmt.Errorf("%w: %w", ErrAuthExpired, err)
}

func (s *Submitter) record(ctx context.Context, r *Run, stage, status string, err error) {
	if s.recorder == nil {
		return
	}
	ev := journal.Event{
		Submission: r.ID,
		Mode:       string(r.Mode),
		VehicleID:  r.VehicleID,
		Stage:      stage,
		Status:     status,
	}
	if err != nil {
		ev.Message = err.Error()
	}
	if rerr := s.recorder.Record(ctx, ev); rerr != nil {
		logger.Warn("Journal record for %s/%s failed: %v", r.ID, stage, rerr)
	}
}
