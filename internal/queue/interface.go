package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nytron88/streamix-sub000/internal/domain"
)

var (
	// ErrEventNotFound is returned when a pending id has no backing event
	// record, typically because the record's TTL expired.
	ErrEventNotFound = errors.New("event record not found")

	// ErrBadPendingMember is returned for a pending set member that does
	// not parse as kind:id.
	ErrBadPendingMember = errors.New("malformed pending set member")
)

// PendingID identifies one queued event: the pending set stores ids
// independent of kind, but the member carries the kind so the record key
// can be reconstructed without a scan.
type PendingID struct {
	Kind domain.EventKind
	ID   string
}

// Member returns the pending set member encoding for this id.
func (p PendingID) Member() string {
	return string(p.Kind) + ":" + p.ID
}

// ParsePendingMember parses a pending set member back into a PendingID.
func ParsePendingMember(member string) (PendingID, error) {
	kind, id, ok := strings.Cut(member, ":")
	if !ok || kind == "" || id == "" {
		return PendingID{}, fmt.Errorf("%w: %q", ErrBadPendingMember, member)
	}
	return PendingID{Kind: domain.EventKind(kind), ID: id}, nil
}

// EventQueue is the write-behind queue shared by the producer and the
// batch worker: raw event records plus the pending set of ids awaiting
// processing.
type EventQueue interface {
	// Enqueue writes the event record and adds its id to the pending set
	// atomically from the caller's perspective.
	Enqueue(ctx context.Context, event *domain.EventRecord) error

	// PendingIDs returns the full pending set. Order is unspecified.
	PendingIDs(ctx context.Context) ([]PendingID, error)

	// Resolve fetches the event record for a pending id. Returns
	// ErrEventNotFound if the record is missing or expired.
	Resolve(ctx context.Context, id PendingID) (*domain.EventRecord, error)

	// MarkProcessed retires the given ids: removes them from the pending
	// set and deletes their event records.
	MarkProcessed(ctx context.Context, ids []PendingID) error

	Close() error
}
