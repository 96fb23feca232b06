// Package journal records the outcome of every submission stage on an
// embedded NATS JetStream stream. A vehicle that was created but whose
// images or payment slots failed stays discoverable after the wizard exits.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/dealerdesk/internal/logger"
)

const (
	streamName    = "dealerdesk_journal"
	subjectPrefix = "dealerdesk.journal"

	// NoVehicle stands in for the vehicle id when the first stage failed.
	NoVehicle = "none"
)

// Stage outcomes.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Event is one recorded stage outcome.
type Event struct {
	ID         string    `json:"id"`
	Submission string    `json:"submission"`
	Mode       string    `json:"mode"`
	VehicleID  string    `json:"vehicle_id"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Journal is an open handle on the stream.
type Journal struct {
	ns     *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// Open starts the embedded server under <dataDir>/journal and ensures the
// stream exists.
func Open(ctx context.Context, dataDir string) (*Journal, error) {
	ns, err := startEmbedded(filepath.Join(dataDir, "journal"))
	if err != nil {
		return nil, fmt.Errorf("starting journal: %w", err)
	}

	nc, err := connectInProcess(ns)
	if err != nil {
		_ = shutdown(nil, ns)
		return nil, fmt.Errorf("connecting to journal: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		_ = shutdown(nc, ns)
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"dealerdesk.>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   90 * 24 * time.Hour,
	})
	if err != nil {
		_ = shutdown(nc, ns)
		return nil, fmt.Errorf("creating journal stream: %w", err)
	}

	return &Journal{ns: ns, nc: nc, js: js, stream: stream}, nil
}

// Close shuts the journal down.
func (j *Journal) Close() error {
	return shutdown(j.nc, j.ns)
}

// subjectToken makes s safe to use as one subject token.
func subjectToken(s string) string {
	if s == "" {
		return NoVehicle
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}

// Subject returns the subject an event for vehicleID and stage goes to.
func Subject(vehicleID, stage string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, subjectToken(vehicleID), subjectToken(stage))
}

// Record appends an event. A zero timestamp is set to now.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling journal event: %w", err)
	}

	subject := Subject(ev.VehicleID, ev.Stage)
	ack, err := j.js.Publish(ctx, subject, data)
	if err != nil {
		logger.Error("Failed to publish journal event to %s: %v", subject, err)
		return fmt.Errorf("publishing journal event: %w", err)
	}
	logger.Debug("Journal event recorded: subject=%s seq=%d", subject, ack.Sequence)
	return nil
}

// List returns recorded events in publish order, for one vehicle or, with an
// empty vehicleID, for all of them.
func (j *Journal) List(ctx context.Context, vehicleID string) ([]Event, error) {
	filter := subjectPrefix + ".>"
	if vehicleID != "" {
		filter = fmt.Sprintf("%s.%s.>", subjectPrefix, subjectToken(vehicleID))
	}

	consumer, err := j.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: filter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating journal consumer: %w", err)
	}

	return readAll(consumer)
}

// fetcher is the part of a jetstream consumer List reads with.
type fetcher interface {
	FetchNoWait(batch int) (jetstream.MessageBatch, error)
}

const fetchBatch = 500

// readAll reads every pending message from c. Running out of messages ends the
// read; any other fetch error is returned.
func readAll(c fetcher) ([]Event, error) {
	var events []Event
	for {
		msgs, err := c.FetchNoWait(fetchBatch)
		if errors.Is(err, jetstream.ErrNoMessages) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetching journal events: %w", err)
		}

		count := 0
		for msg := range msgs.Messages() {
			count++
			var ev Event
			if err := json.Unmarshal(msg.Data(), &ev); err != nil {
				if meta, _ := msg.Metadata(); meta != nil {
					logger.Warn("Skipping malformed journal event (seq=%d): %v", meta.Sequence.Stream, err)
				}
				_ = msg.Ack()
				continue
			}
			if ev.ID == "" {
				if meta, _ := msg.Metadata(); meta != nil {
					ev.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
				}
			}
			events = append(events, ev)
			_ = msg.Ack()
		}
		if err := msgs.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) {
			return nil, fmt.Errorf("reading journal events: %w", err)
		}
		if count < fetchBatch {
			return events, nil
		}
	}
}
