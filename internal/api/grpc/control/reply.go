package control

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/home-security/internal/service/status"
)

// Reply is the outcome of one executed command.
type Reply struct {
	// Command is the recognized command name, or "unknown".
	Command string
	// Accepted is false for unknown and malformed commands.
	Accepted bool
	// Error describes a parse failure or a failed operation.
	Error string
	// Count is the number of records archived or deleted, when the command touches the log.
	Count *int64
	// Status is set for get_status.
	Status *status.Message
}

// Reply field names.
const (
	fieldCommand  = "command"
	fieldAccepted = "accepted"
	fieldError    = "error"
	fieldCount    = "count"
	fieldStatus   = "status"
)

// Struct encodes the reply.
func (r Reply) Struct() (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		fieldCommand:  structpb.NewStringValue(r.Command),
		fieldAccepted: structpb.NewBoolValue(r.Accepted),
	}

	if r.Error != "" {
		fields[fieldError] = structpb.NewStringValue(r.Error)
	}

	if r.Count != nil {
		fields[fieldCount] = structpb.NewNumberValue(float64(*r.Count))
	}

	if r.Status != nil {
		s, err := r.Status.Struct()
		if err != nil {
			return nil, err
		}

		fields[fieldStatus] = structpb.NewStructValue(s)
	}

	return &structpb.Struct{Fields: fields}, nil
}

// DecodeReply reads a reply produced by Reply.Struct.
func DecodeReply(in *structpb.Struct) (Reply, error) {
	fields := in.GetFields()

	r := Reply{
		Command:  fields[fieldCommand].GetStringValue(),
		Accepted: fields[fieldAccepted].GetBoolValue(),
		Error:    fields[fieldError].GetStringValue(),
	}

	if v, ok := fields[fieldCount]; ok {
		count := int64(v.GetNumberValue())
		r.Count = &count
	}

	if v, ok := fields[fieldStatus]; ok {
		m, err := status.FromStruct(v.GetStructValue())
		if err != nil {
			return Reply{}, fmt.Errorf("decode reply status: %w", err)
		}

		r.Status = &m
	}

	return r, nil
}
