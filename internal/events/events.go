// Package events defines the canonical change events consumed by the fan-out
// processors and the subscriber and alert records extracted from them.
package events

import "fmt"

// SourceEntity names the upstream collection a change came from.
type SourceEntity string

const (
	SourceSubscriber SourceEntity = "Subscriber"
	SourceAlert      SourceEntity = "Alert"
)

// Operation is the kind of mutation applied to the upstream record.
type Operation string

const (
	OpCreated Operation = "Created"
	OpUpdated Operation = "Updated"
	OpRemoved Operation = "Removed"
)

// ChangeEvent is one normalized upstream mutation.
// Snapshot holds the record state after the operation and is nil for OpRemoved.
type ChangeEvent struct {
	Source        SourceEntity
	Operation     Operation
	Snapshot      Snapshot
	SequenceToken string
	// RecordKey identifies the upstream record for logging only.
	RecordKey string
}

// Is reports whether the event has the given source and operation.
func (e ChangeEvent) Is(source SourceEntity, op Operation) bool {
	return e.Source == source && e.Operation == op
}

func (e ChangeEvent) String() string {
	key := e.RecordKey
	if key == "" {
		key = "-"
	}
	return fmt.Sprintf("%s/%s key=%s seq=%s", e.Source, e.Operation, key, e.SequenceToken)
}
