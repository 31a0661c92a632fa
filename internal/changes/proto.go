package changes

import (
	"encoding/json"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// normalizeProto decodes a google.protobuf.Struct carrying one change envelope
// ({op, source{table, lsn}, before, after, ts_us}) or a list of them under
// "changes".
func (a *Adapter) normalizeProto(payload []byte) (*Batch, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change envelope protobuf: %w", err)
	}

	if list := st.GetFields()["changes"].GetListValue(); list != nil {
		batch := &Batch{Records: len(list.GetValues())}
		for i, v := range list.GetValues() {
			s := v.GetStructValue()
			if s == nil {
				batch.skip(i, "change entry is not a struct")
				continue
			}
			a.addEnvelope(batch, i, envelopeFromStruct(s))
		}
		return batch, nil
	}

	batch := &Batch{Records: 1}
	a.addEnvelope(batch, 0, envelopeFromStruct(&st))
	return batch, nil
}

func envelopeFromStruct(s *structpb.Struct) cdcEnvelope {
	fields := s.GetFields()
	env := cdcEnvelope{Op: fields["op"].GetStringValue()}

	if src := fields["source"].GetStructValue(); src != nil {
		env.Source.Table = src.GetFields()["table"].GetStringValue()
		if lsn, ok := src.GetFields()["lsn"]; ok {
			env.Source.LSN = numberText(lsn)
		}
	}
	if before := fields["before"].GetStructValue(); before != nil {
		env.Before = before.AsMap()
	}
	if after := fields["after"].GetStructValue(); after != nil {
		env.After = after.AsMap()
	}
	if ts, ok := fields["ts_us"]; ok {
		if _, isNum := ts.GetKind().(*structpb.Value_NumberValue); isNum {
			us := int64(ts.GetNumberValue())
			env.TsUS = &us
		}
	}
	return env
}

func numberText(v *structpb.Value) json.Number {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return json.Number(strconv.FormatFloat(k.NumberValue, 'f', -1, 64))
	case *structpb.Value_StringValue:
		return json.Number(k.StringValue)
	default:
		return ""
	}
}
