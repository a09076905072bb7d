package store

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/nnvec/hnswdb/shard"
)

// RateLimited wraps a shard.Store, throttling Write and Read throughput to a
// configured bytes-per-second budget. Grounded on the teacher's
// resource.Controller.ioLimiter.
type RateLimited struct {
	inner   shard.Store
	limiter *rate.Limiter
}

// NewRateLimited wraps inner, bounding combined read/write throughput to
// bytesPerSec. A burst of one second's worth of bytes is permitted.
func NewRateLimited(inner shard.Store, bytesPerSec int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec),
	}
}

func (r *RateLimited) Write(ctx context.Context, key string, data []byte) error {
	if err := r.wait(ctx, len(data)); err != nil {
		return err
	}
	return r.inner.Write(ctx, key, data)
}

func (r *RateLimited) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.inner.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := r.wait(ctx, len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RateLimited) Delete(ctx context.Context, key string) (bool, error) {
	return r.inner.Delete(ctx, key)
}

func (r *RateLimited) List(ctx context.Context) ([]string, error) {
	return r.inner.List(ctx)
}

func (r *RateLimited) Exists(ctx context.Context, key string) (bool, error) {
	return r.inner.Exists(ctx, key)
}

// wait blocks until n bytes are available in the token bucket, splitting the
// request into burst-sized chunks if n exceeds the limiter's burst size.
func (r *RateLimited) wait(ctx context.Context, n int) error {
	burst := r.limiter.Burst()
	if burst <= 0 {
		return nil
	}
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := r.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
