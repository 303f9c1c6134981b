package control

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype this package's codec registers under.
// No .proto-generated package accompanied this core when it was carved
// out (the control surface is a hand-rolled gRPC service, not a
// protoc build), so requests and responses are plain Go structs encoded
// as JSON rather than wire-format protobuf.
const codecName = "json"

// jsonCodec implements encoding.Codec by marshaling request/response
// structs as JSON. It is registered globally in init() so both Server
// and Client can select it via grpc.CallContentSubtype/ForceServerCodec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("control: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("control: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
