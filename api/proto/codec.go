package proto

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package and selected via
// grpc.CallContentSubtype/grpc.ForceCodec on every client and server call.
const codecName = "json"

// jsonCodec implements encoding.Codec, letting this package's plain
// JSON-tagged structs (Envelope and the Request/Response types) travel over
// a standard gRPC transport without a .proto-generated marshaler.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Codec returns the registered name, for use with grpc.CallContentSubtype
// on individual client calls.
func Codec() string { return codecName }
