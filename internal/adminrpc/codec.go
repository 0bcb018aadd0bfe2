package adminrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is both the encoding.Codec registration name and the gRPC
// call content-subtype clients set, so both ends negotiate the same
// codec without a generated .proto's default proto codec.
const codecName = "json"

// jsonCodec implements encoding.Codec over plain encoding/json,
// standing in for the protoc-generated proto codec this environment
// cannot produce (SPEC_FULL.md §6).
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("adminrpc: failed to marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("adminrpc: failed to unmarshal into %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
