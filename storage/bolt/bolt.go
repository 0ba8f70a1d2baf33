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

// Package bolt provides a storage.Provider backed by a local bbolt database.
package bolt

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/atomic"

	"github.com/tochemey/orbit/address"
	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/storage"
)

const (
	fileMode   os.FileMode = 0o600
	bucketName             = "actor_states"
)

// Provider stores actor state in a single bbolt bucket.
// bbolt gives single-writer/multi-reader semantics; only the closed state is guarded here.
type Provider struct {
	db     *bbolt.DB
	bucket []byte
	codec  *storage.Codec
	closed *atomic.Bool
}

var _ storage.Provider = (*Provider)(nil)

// Open opens, or creates, the database at path
func Open(path string) (*Provider, error) {
	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: 5 * time.Second, NoGrowSync: true})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening %s: %w", path, err)
	}

	bucket := []byte(bucketName)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: creating bucket: %w", err)
	}

	return &Provider{
		db:     db,
		bucket: bucket,
		codec:  storage.NewCodec(),
		closed: atomic.NewBool(false),
	}, nil
}

// ReadState implements storage.Provider
func (p *Provider) ReadState(ctx context.Context, ref address.Reference, state any) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}

	var data []byte
	if err := p.db.View(func(tx *bbolt.Tx) error {
		// bbolt values are only valid for the lifetime of the transaction
		if value := tx.Bucket(p.bucket).Get([]byte(storage.Key(ref))); value != nil {
			data = append([]byte(nil), value...)
		}
		return nil
	}); err != nil {
		return false, err
	}

	if data == nil {
		return false, nil
	}
	return true, p.codec.Decode(data, state)
}

// WriteState implements storage.Provider
func (p *Provider) WriteState(ctx context.Context, ref address.Reference, state any) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	data, err := p.codec.Encode(state)
	if err != nil {
		return err
	}

	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(p.bucket).Put([]byte(storage.Key(ref)), data)
	})
}

// ClearState implements storage.Provider
func (p *Provider) ClearState(ctx context.Context, ref address.Reference) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(p.bucket).Delete([]byte(storage.Key(ref)))
	})
}

// Close closes the database
func (p *Provider) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}

func (p *Provider) check(ctx context.Context) error {
	if p.closed.Load() {
		return gerrors.ErrStorageClosed
	}
	return ctx.Err()
}
