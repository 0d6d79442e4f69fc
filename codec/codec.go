// Package codec encodes protobuf messages for transport. Announcements of
// plugin state use it to turn a structpb.Struct into KV values.
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

var (
	errCodecNotInit = errors.New("codec not init")

	_codec Codec = &JSONCodec{}
)

// Codec converts messages to and from bytes.
type Codec interface {
	Encode(m proto.Message, b []byte) ([]byte, error)
	Decode(b []byte, m proto.Message) error
	// Name identifies the codec in configuration.
	Name() string
}

// Encode appends m to b with the default codec.
func Encode(m proto.Message, b []byte) ([]byte, error) {
	if _codec == nil {
		return nil, errCodecNotInit
	}
	return _codec.Encode(m, b)
}

// Decode fills m from b with the default codec.
func Decode(b []byte, m proto.Message) error {
	if _codec == nil {
		return errCodecNotInit
	}
	return _codec.Decode(b, m)
}

// SetCodec replaces the default codec.
func SetCodec(c Codec) {
	_codec = c
}

// ByName returns the codec called name: "json" or "proto". An empty name
// selects json.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return &JSONCodec{}, nil
	case "proto":
		return &BinaryCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
