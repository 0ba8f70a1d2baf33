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

// Package compression compresses packets on their way to the network.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	gerrors "github.com/tochemey/orbit/errors"
	"github.com/tochemey/orbit/internal/bufferpool"
)

// Codec identifies the algorithm a packet body was compressed with.
// It is written as the first byte of every packet.
type Codec byte

const (
	// None leaves the body as is
	None Codec = iota
	// Zstd is Zstandard
	Zstd
	// Brotli is Brotli
	Brotli
)

// String returns the codec name
func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Brotli:
		return "brotli"
	default:
		return fmt.Sprintf("codec(%d)", byte(c))
	}
}

// Valid reports whether c is a known codec
func (c Codec) Valid() bool {
	return c <= Brotli
}

func newEncoder() *zstd.Encoder {
	// pooled encoders are used by one goroutine at a time
	enc, _ := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(false),
	)
	return enc
}

func newDecoder() *zstd.Decoder {
	dec, _ := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(64<<20),
	)
	return dec
}

var zstdEncoders = sync.Pool{
	New: func() any {
		return newEncoder()
	},
}

var zstdDecoders = sync.Pool{
	New: func() any {
		return newDecoder()
	},
}

// brotli writers are pooled per compression level
var (
	brotliWriters   = make(map[int]*sync.Pool)
	brotliWritersMu sync.RWMutex
)

func brotliWriterPool(level int) *sync.Pool {
	brotliWritersMu.RLock()
	pool, ok := brotliWriters[level]
	brotliWritersMu.RUnlock()
	if ok {
		return pool
	}

	brotliWritersMu.Lock()
	defer brotliWritersMu.Unlock()
	if pool, ok := brotliWriters[level]; ok {
		return pool
	}

	pool = &sync.Pool{
		New: func() any {
			return brotli.NewWriterLevel(nil, level)
		},
	}
	brotliWriters[level] = pool
	return pool
}

var brotliReaders = sync.Pool{
	New: func() any {
		return brotli.NewReader(nil)
	},
}

// compress appends the compressed form of src to dst
func compress(codec Codec, level int, dst, src []byte) ([]byte, error) {
	switch codec {
	case None:
		return append(dst, src...), nil
	case Zstd:
		enc := zstdEncoders.Get().(*zstd.Encoder)
		defer zstdEncoders.Put(enc)
		return enc.EncodeAll(src, dst), nil
	case Brotli:
		buf := bufferpool.Pool.Get()
		defer bufferpool.Pool.Put(buf)
		buf.Write(dst)

		pool := brotliWriterPool(level)
		writer := pool.Get().(*brotli.Writer)
		writer.Reset(buf)
		defer func() {
			writer.Reset(nil)
			pool.Put(writer)
		}()

		if _, err := writer.Write(src); err != nil {
			return nil, fmt.Errorf("compression: brotli: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("compression: brotli: %w", err)
		}
		return append([]byte(nil), buf.Bytes()...), nil
	default:
		return nil, fmt.Errorf("%w: %s", gerrors.ErrUnknownCodec, codec)
	}
}

// decompress returns the original form of src
func decompress(codec Codec, src []byte) ([]byte, error) {
	switch codec {
	case None:
		return src, nil
	case Zstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(src, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", gerrors.ErrInvalidFrame, err)
		}
		return out, nil
	case Brotli:
		reader := brotliReaders.Get().(*brotli.Reader)
		defer brotliReaders.Put(reader)
		if err := reader.Reset(bytes.NewReader(src)); err != nil {
			return nil, fmt.Errorf("%w: brotli: %w", gerrors.ErrInvalidFrame, err)
		}

		buf := bufferpool.Pool.Get()
		defer bufferpool.Pool.Put(buf)
		if _, err := io.Copy(buf, reader); err != nil {
			return nil, fmt.Errorf("%w: brotli: %w", gerrors.ErrInvalidFrame, err)
		}
		return append([]byte(nil), buf.Bytes()...), nil
	default:
		return nil, fmt.Errorf("%w: %s", gerrors.ErrUnknownCodec, codec)
	}
}
