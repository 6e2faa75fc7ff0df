package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype of JSON-encoded calls
// (content-type application/grpc+json).
const codecName = "json"

// jsonCodec lets the service exchange the daemon's JSON message types
// without generated protobuf code. Protobuf calls such as the health service
// keep using the default codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
