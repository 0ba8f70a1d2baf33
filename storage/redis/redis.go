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

// Package redis provides a storage.Provider backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tochemey/orbit/address"
	"github.com/tochemey/orbit/storage"
)

// Option configures the Provider
type Option func(*Provider)

// WithKeyPrefix namespaces every key, defaults to "orbit:state:"
func WithKeyPrefix(prefix string) Option {
	return func(p *Provider) {
		p.prefix = prefix
	}
}

// WithTTL expires written state after ttl. Zero keeps state forever.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

// Provider stores each actor state under its own key.
type Provider struct {
	client redis.UniversalClient
	codec  *storage.Codec
	prefix string
	ttl    time.Duration
}

var _ storage.Provider = (*Provider)(nil)

// New creates a Provider from an existing client. The caller owns the client.
func New(client redis.UniversalClient, opts ...Option) *Provider {
	provider := &Provider{
		client: client,
		codec:  storage.NewCodec(),
		prefix: "orbit:state:",
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Connect dials addr and checks the server answers
func Connect(ctx context.Context, addr string, opts ...Option) (*Provider, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connecting to %s: %w", addr, err)
	}
	return New(client, opts...), nil
}

// ReadState implements storage.Provider
func (p *Provider) ReadState(ctx context.Context, ref address.Reference, state any) (bool, error) {
	data, err := p.client.Get(ctx, p.key(ref)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, p.codec.Decode(data, state)
}

// WriteState implements storage.Provider
func (p *Provider) WriteState(ctx context.Context, ref address.Reference, state any) error {
	data, err := p.codec.Encode(state)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.key(ref), data, p.ttl).Err()
}

// ClearState implements storage.Provider
func (p *Provider) ClearState(ctx context.Context, ref address.Reference) error {
	return p.client.Del(ctx, p.key(ref)).Err()
}

// Close closes the underlying client
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) key(ref address.Reference) string {
	return p.prefix + storage.Key(ref)
}
