// Package id defines prefixed, time-ordered identifiers for flowsync
// entities.
//
// IDs render as "prefix_uuid" where the UUID is version 7, so IDs of the
// same kind sort by creation time.
package id

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

// Prefix constants for all flowsync entity types.
const (
	PrefixDelivery Prefix = "dlv"
	PrefixDLQ      Prefix = "dlq"
	PrefixWorker   Prefix = "wkr"
	PrefixPass     Prefix = "pass"
)

// ID is the identifier type for all flowsync entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	prefix Prefix
	uid    uuid.UUID
	valid  bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if a v7 UUID cannot be generated (entropy source failure).
func New(prefix Prefix) ID {
	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return ID{prefix: prefix, uid: u, valid: true}
}

// Parse parses a "prefix_uuid" string into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	p, rest, ok := strings.Cut(s, "_")
	if !ok || p == "" {
		return Nil, fmt.Errorf("id: parse %q: missing prefix", s)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{prefix: Prefix(p), uid: u, valid: true}, nil
}

// ParseWithPrefix parses an ID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.prefix != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.prefix)
	}
	return parsed, nil
}

// DeliveryID identifies one queued job delivery (prefix: "dlv").
type DeliveryID = ID

// DLQID identifies a dead-letter entry (prefix: "dlq").
type DLQID = ID

// WorkerID identifies a worker pool instance (prefix: "wkr").
type WorkerID = ID

// PassID identifies one orchestrator pass (prefix: "pass").
type PassID = ID

// NewDeliveryID returns a new delivery ID.
func NewDeliveryID() ID { return New(PrefixDelivery) }

// NewDLQID returns a new dead-letter entry ID.
func NewDLQID() ID { return New(PrefixDLQ) }

// NewWorkerID returns a new worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// NewPassID returns a new pass ID.
func NewPassID() ID { return New(PrefixPass) }

// ParseDeliveryID parses a delivery ID.
func ParseDeliveryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDelivery) }

// ParseDLQID parses a dead-letter entry ID.
func ParseDLQID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDLQ) }

// ParseWorkerID parses a worker ID.
func ParseWorkerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorker) }

// String returns "prefix_uuid", or "" for the nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return string(i.prefix) + "_" + i.uid.String()
}

// Prefix returns the entity prefix.
func (i ID) Prefix() Prefix { return i.prefix }

// IsNil reports whether the ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil
	}
	return i.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
