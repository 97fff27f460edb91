// internal/events/publisher.go
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/nats-io/nats.go"
)

// Publisher streams run state transitions to NATS so external
// consumers can watch a batch without polling the dashboard. It is
// optional; a nil Publisher drops events.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("helios-status"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		nc:      nc,
		subject: cfg.Subject,
	}, nil
}

// PublishTransition emits one status message for a run transition.
func (p *Publisher) PublishTransition(state models.RunState) error {
	if p == nil {
		return nil
	}

	msg := models.StatusMessage{
		Type:      "run",
		ID:        strconv.Itoa(state.Port),
		Status:    string(state.Status),
		Timestamp: time.Now(),
		Metadata:  state,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	return p.nc.Publish(p.subject, data)
}

// PublishController emits a controller lifecycle event.
func (p *Publisher) PublishController(status models.ControllerStatus) error {
	if p == nil {
		return nil
	}

	msg := models.StatusMessage{
		Type:      "controller",
		ID:        status.ID,
		Status:    string(status.Event),
		Timestamp: status.Timestamp,
		Metadata:  status,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	return p.nc.Publish(p.subject, data)
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.nc.Drain()
}
