package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// EventStream captures every subject under event.>.
	EventStream = "EVENT"
	// RequestEventSubject carries one RequestEvent per finished request.
	RequestEventSubject = "event.http.request"
)

// RequestEvent is the JSON document published for each request.
type RequestEvent struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Route      string    `json:"route"`
	Path       string    `json:"path"`
	Code       string    `json:"code"`
	DurationMS float64   `json:"duration_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Time       time.Time `json:"time"`
}

// EventPublisher publishes request events on NATS. It implements RequestObserver.
type EventPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewEventPublisher makes sure the EVENT stream exists and returns a publisher
// bound to nc.
func NewEventPublisher(ctx context.Context, nc *nats.Conn) (*EventPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     EventStream,
		Subjects: []string{"event.>"},
		Storage:  jetstream.MemoryStorage,
		MaxMsgs:  100_000,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s stream: %w", EventStream, err)
	}
	slog.Info("Stream ready for request events", "stream", EventStream, "subject", RequestEventSubject)
	return &EventPublisher{nc: nc, subject: RequestEventSubject}, nil
}

// ObserveRequest publishes rec without waiting for an acknowledgement.
func (p *EventPublisher) ObserveRequest(rec RequestRecord) {
	ev := RequestEvent{
		ID:         uuid.NewString(),
		Method:     rec.Labels.Method,
		Route:      rec.Labels.Route,
		Path:       rec.Path,
		Code:       rec.Labels.Code,
		DurationMS: rec.DurationMS,
		RequestID:  rec.RequestID,
		RemoteAddr: rec.RemoteAddr,
		Time:       rec.Start.UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to encode request event", "err", err)
		return
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		slog.Warn("Failed to publish request event", "subject", p.subject, "err", err)
	}
}
