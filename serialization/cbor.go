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
	"reflect"

	"github.com/fxamacker/cbor/v2"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/message"
)

var (
	cborEncOpts = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	cborDecOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
		UTF8:            cbor.UTF8DecodeInvalid,
	}
)

// typedValue is a value along with the wire name of its type
type typedValue struct {
	_    struct{} `cbor:",toarray"`
	Type string
	Data cbor.RawMessage
}

type cborErrorDetail struct {
	_       struct{} `cbor:",toarray"`
	Kind    string
	Message string
	Stack   string
}

type cborEnvelope struct {
	_           struct{} `cbor:",toarray"`
	Type        int32
	ID          int64
	InterfaceID int32
	ObjectID    string
	MethodID    int32
	Headers     map[string]string
	Params      []typedValue
	Result      *typedValue
	Error       *cborErrorDetail
}

// CBORSerializer is a MessageSerializer encoding messages as CBOR.
//
// Parameters and results are written along with the name of their type so
// that the receiver can decode them into the same Go type. Every type sent or
// received must be registered; primitive types are registered by default.
//
// CBORSerializer is safe for concurrent use.
type CBORSerializer struct {
	registry *Registry
	encMode  cbor.EncMode
	decMode  cbor.DecMode
}

var _ MessageSerializer = (*CBORSerializer)(nil)

// NewCBORSerializer creates a CBORSerializer
func NewCBORSerializer() *CBORSerializer {
	encMode, _ := cborEncOpts.EncMode()
	decMode, _ := cborDecOpts.DecMode()
	return &CBORSerializer{
		registry: NewRegistry(),
		encMode:  encMode,
		decMode:  decMode,
	}
}

// Register makes the types of the given values serializable
func (s *CBORSerializer) Register(values ...any) *CBORSerializer {
	s.registry.Register(values...)
	return s
}

// Registry returns the type registry
func (s *CBORSerializer) Registry() *Registry {
	return s.registry
}

// Serialize implements MessageSerializer
func (s *CBORSerializer) Serialize(msg *message.Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("serialization: message is nil")
	}

	env := cborEnvelope{
		Type:        int32(msg.Type),
		ID:          msg.ID,
		InterfaceID: msg.InterfaceID,
		ObjectID:    msg.ObjectID,
		MethodID:    msg.MethodID,
		Headers:     msg.Headers,
	}

	switch msg.Type {
	case message.TypeRequest, message.TypeOneWay:
		params := msg.Params()
		env.Params = make([]typedValue, 0, len(params))
		for _, param := range params {
			value, err := s.encode(param)
			if err != nil {
				return nil, err
			}
			env.Params = append(env.Params, value)
		}
	case message.TypeResponseOK:
		value, err := s.encode(msg.Payload)
		if err != nil {
			return nil, err
		}
		env.Result = &value
	case message.TypeResponseError, message.TypeResponseProtocolError:
		if detail := msg.ErrorDetail(); detail != nil {
			env.Error = &cborErrorDetail{Kind: detail.Kind, Message: detail.Message, Stack: detail.Stack}
		}
	default:
		return nil, fmt.Errorf("%w: %d", gerrors.ErrUnknownMessageType, msg.Type)
	}

	body, err := s.encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serialization: encoding message: %w", err)
	}
	return frame(body), nil
}

// Deserialize implements MessageSerializer
func (s *CBORSerializer) Deserialize(data []byte) (*message.Message, error) {
	body, err := unframe(data)
	if err != nil {
		return nil, err
	}

	var env cborEnvelope
	if err := s.decMode.Unmarshal(body, &env); err != nil {
		return nil, errors.Join(gerrors.ErrInvalidFrame, err)
	}

	msg := &message.Message{
		Type:        message.Type(env.Type),
		ID:          env.ID,
		InterfaceID: env.InterfaceID,
		ObjectID:    env.ObjectID,
		MethodID:    env.MethodID,
		Headers:     env.Headers,
	}

	switch msg.Type {
	case message.TypeRequest, message.TypeOneWay:
		params := make([]any, 0, len(env.Params))
		for _, value := range env.Params {
			param, err := s.decode(value)
			if err != nil {
				return nil, err
			}
			params = append(params, param)
		}
		msg.Payload = params
	case message.TypeResponseOK:
		if env.Result != nil {
			result, err := s.decode(*env.Result)
			if err != nil {
				return nil, err
			}
			msg.Payload = result
		}
	case message.TypeResponseError, message.TypeResponseProtocolError:
		if env.Error != nil {
			msg.Payload = &message.ErrorDetail{Kind: env.Error.Kind, Message: env.Error.Message, Stack: env.Error.Stack}
		}
	default:
		return nil, fmt.Errorf("%w: %d", gerrors.ErrUnknownMessageType, env.Type)
	}
	return msg, nil
}

func (s *CBORSerializer) encode(v any) (typedValue, error) {
	if v == nil {
		return typedValue{}, nil
	}

	name, err := s.registry.Name(v)
	if err != nil {
		return typedValue{}, err
	}

	data, err := s.encMode.Marshal(v)
	if err != nil {
		return typedValue{}, fmt.Errorf("serialization: encoding %s: %w", name, err)
	}
	return typedValue{Type: name, Data: data}, nil
}

func (s *CBORSerializer) decode(value typedValue) (any, error) {
	if value.Type == "" {
		return nil, nil
	}

	rtype, ok := s.registry.TypeOf(value.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrTypeNotRegistered, value.Type)
	}

	ptr := reflect.New(rtype)
	if err := s.decMode.Unmarshal(value.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("serialization: decoding %s: %w", value.Type, err)
	}
	return ptr.Elem().Interface(), nil
}
