// Package realtime merges change notifications from push transports and a
// polling fallback into one deduplicated, ordered stream and fans it out to
// the in-memory collections, new-order callbacks and generic subscribers.
package realtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityType names the collection a Change belongs to.
type EntityType string

const (
	EntityOrder        EntityType = "order"
	EntityTable        EntityType = "table"
	EntityTableSession EntityType = "table_session"
	EntityRegister     EntityType = "cash_register"
)

// EventKind: insert | update
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// Change is one normalised row-change notification. Version is the row's
// updated_at; Payload is the full JSON row.
type Change struct {
	Entity  EntityType      `json:"entity"`
	ID      uuid.UUID       `json:"id"`
	Kind    EventKind       `json:"kind"`
	Version time.Time       `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// NewChange marshals v as the payload of a change.
func NewChange(entity EntityType, kind EventKind, id uuid.UUID, version time.Time, v interface{}) (Change, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Change{}, fmt.Errorf("realtime: marshal %s %s: %w", entity, id, err)
	}
	return Change{Entity: entity, ID: id, Kind: kind, Version: version, Payload: payload}, nil
}

// Key identifies the entity a change is about.
func (c Change) Key() string { return string(c.Entity) + ":" + c.ID.String() }

// Decode unmarshals the payload into v.
func (c Change) Decode(v interface{}) error {
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("realtime: decode %s: %w", c.Key(), err)
	}
	return nil
}

func (c Change) fingerprint() string {
	sum := sha256.Sum256(c.Payload)
	return hex.EncodeToString(sum[:])
}

// Publisher emits a change after a successful write.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Source feeds changes into sink until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// Sink accepts one change; Bus.Submit is the usual sink.
type Sink func(ctx context.Context, c Change) error

// NopPublisher drops every change. Used with CHANGE_TRANSPORT=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Change) error { return nil }
