package statusrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered with grpc's codec registry and selected via
// grpc.CallContentSubtype on the client and negotiated automatically by the
// server from the request's content-subtype. This sidesteps needing protoc
// and proto.Message-implementing generated types for a status surface this
// small, at the cost of losing wire compatibility with a real protobuf
// client.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
