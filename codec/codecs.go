package codec

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// JSONCodec writes canonical protobuf JSON, readable by any consul client.
type JSONCodec struct{}

func (c *JSONCodec) Encode(m proto.Message, b []byte) ([]byte, error) {
	return protojson.MarshalOptions{}.MarshalAppend(b, m)
}

func (c *JSONCodec) Decode(b []byte, m proto.Message) error {
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(b, m)
}

func (c *JSONCodec) Name() string { return "json" }

// BinaryCodec writes the protobuf wire format.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(m proto.Message, b []byte) ([]byte, error) {
	return proto.MarshalOptions{}.MarshalAppend(b, m)
}

func (c *BinaryCodec) Decode(b []byte, m proto.Message) error {
	return proto.Unmarshal(b, m)
}

func (c *BinaryCodec) Name() string { return "proto" }
