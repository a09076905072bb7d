package store

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/nnvec/hnswdb/shard"
)

// Compressed wraps a shard.Store, zstd-compressing each value on Write and
// transparently decompressing on Read. Since a shard image is written and
// read whole (never streamed or appended to, unlike a WAL), this uses the
// one-shot EncodeAll/DecodeAll helpers rather than a persistent
// Writer/Reader pair. Grounded on the teacher's streaming use of zstd in
// wal/wal.go, collapsed to whole-buffer encode/decode for this package's
// write-once shard images.
type Compressed struct {
	inner   shard.Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressed wraps inner with zstd compression at level.
func NewCompressed(inner shard.Store, level zstd.EncoderLevel) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("store: create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("store: create zstd decoder: %w", err)
	}
	return &Compressed{inner: inner, encoder: enc, decoder: dec}, nil
}

func (c *Compressed) Write(ctx context.Context, key string, data []byte) error {
	return c.inner.Write(ctx, key, c.encoder.EncodeAll(data, nil))
}

func (c *Compressed) Read(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.inner.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	out, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("store: decompress %s: %w", key, err)
	}
	return out, nil
}

func (c *Compressed) Delete(ctx context.Context, key string) (bool, error) {
	return c.inner.Delete(ctx, key)
}

func (c *Compressed) List(ctx context.Context) ([]string, error) {
	return c.inner.List(ctx)
}

func (c *Compressed) Exists(ctx context.Context, key string) (bool, error) {
	return c.inner.Exists(ctx, key)
}

// Close releases the encoder's and decoder's background goroutines.
func (c *Compressed) Close() error {
	err := c.encoder.Close()
	c.decoder.Close()
	return err
}
