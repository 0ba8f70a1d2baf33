// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package serialization

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/message"
)

// envelope field numbers
const (
	fieldType protowire.Number = iota + 1
	fieldID
	fieldInterfaceID
	fieldObjectID
	fieldMethodID
	fieldHeader
	fieldParam
	fieldResult
	fieldError
)

// nested field numbers of headers and error details
const (
	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2

	fieldKind    protowire.Number = 1
	fieldMessage protowire.Number = 2
	fieldStack   protowire.Number = 3
)

// ProtoSerializer is a MessageSerializer using the protobuf wire format.
//
// Parameters and results must be proto messages; they are carried as
// google.protobuf.Any and resolved through the global proto registry on the
// receiving side, so their Go packages must be linked into both binaries.
// A nil parameter is written as an empty field.
//
// ProtoSerializer is stateless and safe for concurrent use.
type ProtoSerializer struct{}

var _ MessageSerializer = (*ProtoSerializer)(nil)

// NewProtoSerializer creates a ProtoSerializer
func NewProtoSerializer() *ProtoSerializer {
	return &ProtoSerializer{}
}

// Serialize implements MessageSerializer
func (s *ProtoSerializer) Serialize(msg *message.Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("serialization: message is nil")
	}

	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Type))
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.ID))
	b = protowire.AppendTag(b, fieldInterfaceID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(msg.InterfaceID)))
	b = protowire.AppendTag(b, fieldObjectID, protowire.BytesType)
	b = protowire.AppendString(b, msg.ObjectID)
	b = protowire.AppendTag(b, fieldMethodID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(msg.MethodID)))

	for key, value := range msg.Headers {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldKey, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, fieldValue, protowire.BytesType)
		entry = protowire.AppendString(entry, value)
		b = protowire.AppendTag(b, fieldHeader, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	switch msg.Type {
	case message.TypeRequest, message.TypeOneWay:
		for _, param := range msg.Params() {
			data, err := marshalAny(param)
			if err != nil {
				return nil, err
			}
			b = protowire.AppendTag(b, fieldParam, protowire.BytesType)
			b = protowire.AppendBytes(b, data)
		}
	case message.TypeResponseOK:
		if msg.Payload != nil {
			data, err := marshalAny(msg.Payload)
			if err != nil {
				return nil, err
			}
			b = protowire.AppendTag(b, fieldResult, protowire.BytesType)
			b = protowire.AppendBytes(b, data)
		}
	case message.TypeResponseError, message.TypeResponseProtocolError:
		if detail := msg.ErrorDetail(); detail != nil {
			var entry []byte
			entry = protowire.AppendTag(entry, fieldKind, protowire.BytesType)
			entry = protowire.AppendString(entry, detail.Kind)
			entry = protowire.AppendTag(entry, fieldMessage, protowire.BytesType)
			entry = protowire.AppendString(entry, detail.Message)
			entry = protowire.AppendTag(entry, fieldStack, protowire.BytesType)
			entry = protowire.AppendString(entry, detail.Stack)
			b = protowire.AppendTag(b, fieldError, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
		}
	default:
		return nil, fmt.Errorf("%w: %d", gerrors.ErrUnknownMessageType, msg.Type)
	}

	return frame(b), nil
}

// Deserialize implements MessageSerializer
func (s *ProtoSerializer) Deserialize(data []byte) (*message.Message, error) {
	b, err := unframe(data)
	if err != nil {
		return nil, err
	}

	msg := new(message.Message)
	var params []any

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldType:
				msg.Type = message.Type(int32(v))
			case fieldID:
				msg.ID = int64(v)
			case fieldInterfaceID:
				msg.InterfaceID = int32(int64(v))
			case fieldMethodID:
				msg.MethodID = int32(int64(v))
			}
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldObjectID:
				msg.ObjectID = string(v)
			case fieldHeader:
				key, value, err := consumePair(v)
				if err != nil {
					return nil, err
				}
				if msg.Headers == nil {
					msg.Headers = make(message.Headers)
				}
				msg.Headers[key] = value
			case fieldParam:
				param, err := unmarshalAny(v)
				if err != nil {
					return nil, err
				}
				params = append(params, param)
			case fieldResult:
				result, err := unmarshalAny(v)
				if err != nil {
					return nil, err
				}
				msg.Payload = result
			case fieldError:
				detail, err := consumeErrorDetail(v)
				if err != nil {
					return nil, err
				}
				msg.Payload = detail
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	switch msg.Type {
	case message.TypeRequest, message.TypeOneWay:
		if params == nil {
			params = []any{}
		}
		msg.Payload = params
	case message.TypeResponseOK, message.TypeResponseError, message.TypeResponseProtocolError:
	default:
		return nil, fmt.Errorf("%w: %d", gerrors.ErrUnknownMessageType, msg.Type)
	}
	return msg, nil
}

func marshalAny(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	protoMsg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto message", gerrors.ErrTypeNotRegistered, v)
	}

	packed, err := anypb.New(protoMsg)
	if err != nil {
		return nil, fmt.Errorf("serialization: packing %T: %w", v, err)
	}
	return proto.Marshal(packed)
}

func unmarshalAny(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	packed := new(anypb.Any)
	if err := proto.Unmarshal(data, packed); err != nil {
		return nil, errors.Join(gerrors.ErrInvalidFrame, err)
	}

	protoMsg, err := packed.UnmarshalNew()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", gerrors.ErrTypeNotRegistered, packed.GetTypeUrl(), err)
	}
	return protoMsg, nil
}

// consumeStrings reads the string fields of a nested message, indexed by field number
func consumeStrings(b []byte, into map[protowire.Number]string) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return errors.Join(gerrors.ErrInvalidFrame, protowire.ParseError(n))
		}
		b = b[n:]
		into[num] = v
	}
	return nil
}

func consumePair(b []byte) (string, string, error) {
	fields := make(map[protowire.Number]string, 2)
	if err := consumeStrings(b, fields); err != nil {
		return "", "", err
	}
	return fields[fieldKey], fields[fieldValue], nil
}

func consumeErrorDetail(b []byte) (*message.ErrorDetail, error) {
	fields := make(map[protowire.Number]string, 3)
	if err := consumeStrings(b, fields); err != nil {
		return nil, err
	}
	return &message.ErrorDetail{Kind: fields[fieldKind], Message: fields[fieldMessage], Stack: fields[fieldStack]}, nil
}
