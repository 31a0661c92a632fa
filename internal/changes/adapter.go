// Package changes normalizes raw change-stream deliveries into canonical
// events.ChangeEvent values. It holds no state and applies no business rules:
// records it cannot classify are skipped and reported as warnings, and only a
// payload that cannot be enumerated at all is an error.
package changes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

// ContentTypeProtobuf selects the protobuf codec for a delivery.
const ContentTypeProtobuf = "application/x-protobuf"

// DefaultTables maps the upstream table names to entities.
var DefaultTables = map[string]events.SourceEntity{
	"users":  events.SourceSubscriber,
	"alerts": events.SourceAlert,
}

// Delivery is one raw inbound payload, possibly holding many records.
type Delivery struct {
	Payload     []byte
	ContentType string
}

// Warning describes a record that was skipped.
type Warning struct {
	Index  int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("record %d: %s", w.Index, w.Reason)
}

// Batch is the result of normalizing one delivery.
type Batch struct {
	Events   []events.ChangeEvent
	Warnings []Warning
	// Records is the number of raw records seen, including skipped ones.
	Records int
}

func (b *Batch) skip(index int, format string, args ...any) {
	b.Warnings = append(b.Warnings, Warning{Index: index, Reason: fmt.Sprintf(format, args...)})
}

// Adapter converts deliveries to change events.
type Adapter struct {
	tables        map[string]events.SourceEntity
	defaultSource events.SourceEntity
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDefaultSource sets the entity used for records that carry no table name,
// typically because the stream is bound to a single table.
func WithDefaultSource(source events.SourceEntity) Option {
	return func(a *Adapter) {
		a.defaultSource = source
	}
}

// New creates an adapter. A nil tables map uses DefaultTables.
func New(tables map[string]events.SourceEntity, opts ...Option) *Adapter {
	if tables == nil {
		tables = DefaultTables
	}
	copied := make(map[string]events.SourceEntity, len(tables))
	for name, source := range tables {
		copied[name] = source
	}
	a := &Adapter{tables: copied}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Normalize decodes a delivery. The returned error is non-nil only when the
// payload cannot be decoded into a list of records.
func (a *Adapter) Normalize(d Delivery) (*Batch, error) {
	if strings.EqualFold(strings.TrimSpace(d.ContentType), ContentTypeProtobuf) {
		return a.normalizeProto(d.Payload)
	}

	trimmed := bytes.TrimSpace(d.Payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	switch trimmed[0] {
	case '[':
		var envs []json.RawMessage
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			return nil, fmt.Errorf("failed to decode change envelope list: %w", err)
		}
		batch := &Batch{Records: len(envs)}
		for i, raw := range envs {
			a.addCDC(batch, i, raw)
		}
		return batch, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode change envelope: %w", err)
		}
		if _, ok := envelope["Records"]; ok {
			return a.normalizeStream(trimmed)
		}
		batch := &Batch{Records: 1}
		a.addCDC(batch, 0, trimmed)
		return batch, nil
	default:
		return nil, fmt.Errorf("unrecognized payload format")
	}
}

// resolveSource maps a table name to an entity, falling back to the default
// source when the record has no table name.
func (a *Adapter) resolveSource(table string) (events.SourceEntity, bool) {
	if table == "" {
		return a.defaultSource, a.defaultSource != ""
	}
	source, ok := a.tables[table]
	return source, ok
}

func (a *Adapter) add(batch *Batch, ev events.ChangeEvent) {
	batch.Events = append(batch.Events, ev)
	slog.Debug("Normalized change record",
		"source", ev.Source,
		"operation", ev.Operation,
		"record_key", ev.RecordKey,
		"sequence", ev.SequenceToken,
	)
}
