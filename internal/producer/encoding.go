package producer

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/afikmenashe/alert-fanout/internal/changes"
	"github.com/afikmenashe/alert-fanout/internal/generator"
)

// Payload formats.
const (
	FormatJSON     = "json"
	FormatProtobuf = "protobuf"
)

const contentTypeJSON = "application/json"

// envelope renders a change in the log-based change-capture shape the
// fan-out service consumes.
func envelope(c generator.Change) map[string]any {
	return map[string]any{
		"op": c.Op,
		"source": map[string]any{
			"table": c.Table,
			"lsn":   c.Sequence,
		},
		"after": c.After,
		"ts_us": c.Time.UnixMicro(),
	}
}

// Encode serializes a change and returns the content type to send with it.
func Encode(c generator.Change, format string) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(envelope(c))
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal change envelope: %w", err)
		}
		return payload, contentTypeJSON, nil
	case FormatProtobuf:
		st, err := structpb.NewStruct(envelope(c))
		if err != nil {
			return nil, "", fmt.Errorf("failed to build change envelope struct: %w", err)
		}
		payload, err := proto.Marshal(st)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal change envelope protobuf: %w", err)
		}
		return payload, changes.ContentTypeProtobuf, nil
	default:
		return nil, "", fmt.Errorf("unknown format %q", format)
	}
}
