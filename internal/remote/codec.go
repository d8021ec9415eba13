// Package remote runs template matching on another host over gRPC.
//
// Messages are plain Go structs carried by a JSON codec registered under
// the "json" content subtype, so no generated stubs are needed.
package remote

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype for the JSON codec.
const CodecName = "json"

// MaxMessageSize bounds a Match request or reply on both ends. It has to
// hold two base64 encoded full-HD PNGs.
const MaxMessageSize = 64 << 20

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
