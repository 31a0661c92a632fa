package changes

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

// streamEnvelope is the table-stream delivery shape: a list of records whose
// images are typed attribute maps ({"S": ...}, {"N": ...}, {"BOOL": ...}).
type streamEnvelope struct {
	Records []json.RawMessage `json:"Records"`
}

type streamRecord struct {
	EventID        string `json:"eventID"`
	EventName      string `json:"eventName"`
	EventSourceARN string `json:"eventSourceARN"`
	DynamoDB       struct {
		Keys           map[string]attributeValue `json:"Keys"`
		NewImage       map[string]attributeValue `json:"NewImage"`
		OldImage       map[string]attributeValue `json:"OldImage"`
		SequenceNumber string                    `json:"SequenceNumber"`
	} `json:"dynamodb"`
}

// attributeValue is a typed attribute. Only scalar types are carried into
// snapshots; sets, lists, maps, and binary values are dropped.
type attributeValue struct {
	S    *string `json:"S"`
	N    *string `json:"N"`
	BOOL *bool   `json:"BOOL"`
}

func (v attributeValue) toValue() (events.Value, bool) {
	switch {
	case v.S != nil:
		return events.StringValue(*v.S), true
	case v.N != nil:
		return events.NumberValue(*v.N), true
	case v.BOOL != nil:
		return events.BoolValue(*v.BOOL), true
	default:
		return events.Value{}, false
	}
}

var streamOperations = map[string]events.Operation{
	"INSERT": events.OpCreated,
	"MODIFY": events.OpUpdated,
	"REMOVE": events.OpRemoved,
}

func (a *Adapter) normalizeStream(payload []byte) (*Batch, error) {
	var env streamEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode stream records: %w", err)
	}

	batch := &Batch{Records: len(env.Records)}
	for i, raw := range env.Records {
		var rec streamRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			batch.skip(i, "undecodable record: %v", err)
			continue
		}

		op, ok := streamOperations[rec.EventName]
		if !ok {
			batch.skip(i, "unknown event name %q", rec.EventName)
			continue
		}
		table := tableFromARN(rec.EventSourceARN)
		source, ok := a.resolveSource(table)
		if !ok {
			batch.skip(i, "unknown source table %q", table)
			continue
		}

		ev := events.ChangeEvent{
			Source:        source,
			Operation:     op,
			SequenceToken: rec.DynamoDB.SequenceNumber,
			RecordKey:     recordKey(rec.DynamoDB.Keys),
		}
		if op != events.OpRemoved {
			if rec.DynamoDB.NewImage == nil {
				batch.skip(i, "%s record has no new image", rec.EventName)
				continue
			}
			ev.Snapshot = imageToSnapshot(rec.DynamoDB.NewImage)
		}
		if ev.RecordKey == "" {
			ev.RecordKey = rec.EventID
		}
		a.add(batch, ev)
	}
	return batch, nil
}

// tableFromARN extracts "users" from
// arn:aws:dynamodb:us-east-1:123456789012:table/users/stream/2024-01-01T00:00:00.000.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}

func imageToSnapshot(image map[string]attributeValue) events.Snapshot {
	snap := make(events.Snapshot, len(image))
	for name, av := range image {
		if v, ok := av.toValue(); ok {
			snap[name] = v
		}
	}
	return snap
}

// recordKey renders key attributes as name=value pairs in name order.
func recordKey(keys map[string]attributeValue) string {
	if len(keys) == 0 {
		return ""
	}
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		v, ok := keys[name].toValue()
		if !ok {
			continue
		}
		switch v.Kind {
		case events.KindString:
			parts = append(parts, name+"="+v.Str)
		case events.KindNumber:
			parts = append(parts, name+"="+v.Num)
		}
	}
	return strings.Join(parts, ",")
}
