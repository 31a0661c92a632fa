package changes

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

// cdcEnvelope is the log-based change-capture shape: one row change with
// before and after images of plain JSON scalars.
type cdcEnvelope struct {
	Op     string         `json:"op"`
	Source cdcSource      `json:"source"`
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	TsUS   *int64         `json:"ts_us"`
}

type cdcSource struct {
	Table string      `json:"table"`
	LSN   json.Number `json:"lsn"`
}

var cdcOperations = map[string]events.Operation{
	"c": events.OpCreated,
	"u": events.OpUpdated,
	"d": events.OpRemoved,
}

func (a *Adapter) addCDC(batch *Batch, index int, raw []byte) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env cdcEnvelope
	if err := dec.Decode(&env); err != nil {
		batch.skip(index, "undecodable change envelope: %v", err)
		return
	}
	a.addEnvelope(batch, index, env)
}

// addEnvelope is shared by the JSON and protobuf codecs.
func (a *Adapter) addEnvelope(batch *Batch, index int, env cdcEnvelope) {
	op, ok := cdcOperations[env.Op]
	if !ok {
		// "r" (initial snapshot read) lands here too: existing rows are not new.
		batch.skip(index, "unsupported op %q", env.Op)
		return
	}
	source, ok := a.resolveSource(env.Source.Table)
	if !ok {
		batch.skip(index, "unknown source table %q", env.Source.Table)
		return
	}

	ev := events.ChangeEvent{
		Source:        source,
		Operation:     op,
		SequenceToken: env.Source.LSN.String(),
	}
	if ev.SequenceToken == "" && env.TsUS != nil {
		ev.SequenceToken = strconv.FormatInt(*env.TsUS, 10)
	}

	if op != events.OpRemoved {
		if env.After == nil {
			batch.skip(index, "op %q has no after image", env.Op)
			return
		}
		ev.Snapshot = scalarsToSnapshot(env.After)
		ev.RecordKey, _ = ev.Snapshot.String("id", "userId")
	} else if env.Before != nil {
		ev.RecordKey, _ = scalarsToSnapshot(env.Before).String("id", "userId")
	}

	a.add(batch, ev)
}

// scalarsToSnapshot keeps string, number, and boolean fields. Nulls, objects,
// and arrays are dropped.
func scalarsToSnapshot(fields map[string]any) events.Snapshot {
	snap := make(events.Snapshot, len(fields))
	for name, raw := range fields {
		switch v := raw.(type) {
		case string:
			snap[name] = events.StringValue(v)
		case json.Number:
			snap[name] = events.NumberValue(v.String())
		case float64:
			snap[name] = events.NumberValue(strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			snap[name] = events.BoolValue(v)
		}
	}
	return snap
}
