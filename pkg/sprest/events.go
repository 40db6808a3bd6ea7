package sprest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultEventSubjectPrefix is the subject root used when none is configured.
const DefaultEventSubjectPrefix = "sprest.items"

// ChangeEvent describes a successful create, update or delete.
type ChangeEvent struct {
	ID        string    `json:"id"                yaml:"id"`
	List      string    `json:"list"              yaml:"list"`
	ClassName string    `json:"class_name"        yaml:"class_name"`
	Action    Action    `json:"action"            yaml:"action"`
	ItemID    any       `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	ETag      string    `json:"etag,omitempty"    yaml:"etag,omitempty"`
	Time      time.Time `json:"time"              yaml:"time"`
}

// NewChangeEvent builds the event for action applied to item.
func NewChangeEvent(list *List, action Action, item *Item, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		ID:        uuid.NewString(),
		List:      list.Title(),
		ClassName: list.ClassName(),
		Action:    action,
		ItemID:    item.ID(),
		ETag:      item.ETag(),
		Time:      at.UTC(),
	}
}

// EventPublisher receives change events.
type EventPublisher interface {
	Publish(ctx context.Context, event *ChangeEvent) error
}

// NATSConfig configures a NATS connection for change events.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string
	Timeout       time.Duration
}

// NATSPublisher publishes change events as JSON to
// "<prefix>.<ClassName>.<action>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
}

// NewNATSPublisher connects to the configured server.
func NewNATSPublisher(config *NATSConfig) (*NATSPublisher, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	options := []nats.Option{}
	if config.Name != "" {
		options = append(options, nats.Name(config.Name))
	}

	if config.Timeout > 0 {
		options = append(options, nats.Timeout(config.Timeout))
	}

	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	publisher := NewNATSPublisherWithConn(conn, config.SubjectPrefix)
	publisher.owned = true

	return publisher, nil
}

// NewNATSPublisherWithConn publishes over an existing connection, which the
// caller keeps ownership of.
func NewNATSPublisherWithConn(conn *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultEventSubjectPrefix
	}

	return &NATSPublisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject an event is published to.
func (p *NATSPublisher) Subject(event *ChangeEvent) string {
	return EventSubject(p.prefix, event)
}

// Publish implements EventPublisher.
func (p *NATSPublisher) Publish(ctx context.Context, event *ChangeEvent) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling change event: %w", err)
	}

	err = p.conn.Publish(p.Subject(event), data)
	if err != nil {
		return fmt.Errorf("publishing change event: %w", err)
	}

	return nil
}

// Close drains the connection when the publisher opened it.
func (p *NATSPublisher) Close() error {
	if !p.owned || p.conn == nil {
		return nil
	}

	err := p.conn.Drain()
	if err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}

	return nil
}

// EventSubject builds "<prefix>.<ClassName>.<action>".
func EventSubject(prefix string, event *ChangeEvent) string {
	className := event.ClassName
	if className == "" {
		className = "_"
	}

	return fmt.Sprintf("%s.%s.%s", prefix, className, event.Action)
}
