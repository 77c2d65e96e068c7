// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package filereader

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"math/rand/v2"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/cardinalhq/shardstream/internal/logctx"
	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
)

// ErrReaderClosed is returned by Next after Close.
var ErrReaderClosed = errors.New("reader is closed")

// StreamingReader yields batches of aligned samples from a list of shards.
//
// Shards are visited in the given order. Within a shard, samples come in
// stored order, or in a fresh random permutation per activation when
// shuffling is on. A batch never mixes two shards, so the last batch of a
// shard may be short. A StreamingReader is not safe for concurrent use.
type StreamingReader struct {
	store  container.Store
	shards []ShardInfo
	fields []string
	opts   options
	total  int
	rng    *rand.Rand
	id     string
	logger *slog.Logger

	shardIdx    int
	handle      container.Handle
	perm        []int
	cursor      int
	yielded     int
	passYielded int
	loops       int
	done        bool
	closed      bool
	err         error
}

var _ Reader = (*StreamingReader)(nil)

// NewStreamingReader checks the configuration, counts the samples of every
// shard and returns a reader positioned before the first sample.
func NewStreamingReader(ctx context.Context, store container.Store, shards []string, fields []string, opts ...Option) (*StreamingReader, error) {
	o := buildOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, configError("no container store")
	}
	if len(shards) == 0 {
		return nil, configError("no shards")
	}
	if len(fields) == 0 {
		return nil, configError("no fields")
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, f := range fields {
		key := container.CleanPath(f)
		if key == "" {
			return nil, configError("empty field name %q", f)
		}
		if !seen.Add(key) {
			return nil, configError("duplicate field %q", f)
		}
	}

	id := uuid.NewString()
	ctx = logctx.With(ctx, slog.String("reader_id", id))

	infos, err := inspect(ctx, store, shards, fields, o.cache)
	if err != nil {
		return nil, err
	}

	seed := o.seed
	if !o.hasSeed {
		seed = rand.Uint64()
	}

	total := 0
	for _, info := range infos {
		total += info.Samples
	}

	r := &StreamingReader{
		store:  store,
		shards: infos,
		fields: append([]string(nil), fields...),
		opts:   o,
		total:  total,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		id:     id,
		logger: logctx.FromContext(ctx),
	}
	r.logger.Debug("Created streaming reader",
		slog.Int("shards", len(infos)),
		slog.Int("samples", total),
		slog.Int("batchSize", o.batchSize),
		slog.Bool("shuffle", o.shuffle),
		slog.Bool("loop", o.loop))
	return r, nil
}

// Shards returns the sample count of every shard.
func (r *StreamingReader) Shards() []ShardInfo {
	return append([]ShardInfo(nil), r.shards...)
}

// Fields returns the field paths every batch holds.
func (r *StreamingReader) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Yielded returns the number of samples returned so far.
func (r *StreamingReader) Yielded() int {
	return r.yielded
}

// Loops returns the number of completed passes that restarted at the first
// shard.
func (r *StreamingReader) Loops() int {
	return r.loops
}

// Next returns the next batch, or io.EOF once the reader is exhausted. After
// a shard fails to open or read, Next keeps returning that error.
func (r *StreamingReader) Next(ctx context.Context) (*pipeline.Batch, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		if r.opts.hasCap && r.yielded >= r.opts.cap {
			r.finish("cap reached")
			return nil, io.EOF
		}

		passOver := r.shardIdx >= len(r.shards) ||
			(r.opts.epochSize > 0 && r.passYielded >= r.opts.epochSize)
		if passOver {
			if !r.opts.loop {
				r.finish("shards exhausted")
				return nil, io.EOF
			}
			if r.total == 0 {
				r.finish("every shard is empty")
				return nil, io.EOF
			}
			r.restart(ctx)
			continue
		}

		info := r.shards[r.shardIdx]
		if r.cursor >= info.Samples {
			r.advance()
			continue
		}

		if r.handle == nil {
			if err := r.activate(ctx, info); err != nil {
				if cerr := contextError(err); cerr != nil {
					return nil, cerr
				}
				return nil, r.fail(err)
			}
		}

		n := min(r.opts.batchSize, info.Samples-r.cursor)
		if r.opts.hasCap {
			n = min(n, r.opts.cap-r.yielded)
		}
		if r.opts.epochSize > 0 {
			n = min(n, r.opts.epochSize-r.passYielded)
		}

		batch, err := r.read(ctx, info, r.selectRows(n))
		if err != nil {
			if cerr := contextError(err); cerr != nil {
				return nil, cerr
			}
			return nil, r.fail(err)
		}

		r.cursor += n
		r.yielded += n
		r.passYielded += n
		recordBatch(ctx, n)

		if r.cursor >= info.Samples {
			r.advance()
		}
		if r.opts.hasCap && r.yielded >= r.opts.cap {
			r.finish("cap reached")
		}
		return batch, nil
	}
}

// Batches returns an iterator over the remaining batches. Iteration stops at
// io.EOF; any other error is yielded once and ends iteration.
func (r *StreamingReader) Batches(ctx context.Context) iter.Seq2[*pipeline.Batch, error] {
	return func(yield func(*pipeline.Batch, error) bool) {
		for {
			batch, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// Close releases the open shard handle. It is safe to call more than once.
func (r *StreamingReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.release()
}

// selection is the index list applied to every field of the active shard.
// Sequential reads use the contiguous range [start, stop); shuffled reads
// carry explicit indices.
type selection struct {
	start, stop int
	indices     []int
}

func (s selection) read(ctx context.Context, h container.Handle, field string) (pipeline.Column, error) {
	if s.indices != nil {
		return h.ReadIndices(ctx, field, s.indices)
	}
	return h.ReadSlice(ctx, field, s.start, s.stop)
}

func (r *StreamingReader) selectRows(n int) selection {
	if r.perm != nil {
		return selection{indices: r.perm[r.cursor : r.cursor+n]}
	}
	return selection{start: r.cursor, stop: r.cursor + n}
}

func (r *StreamingReader) read(ctx context.Context, info ShardInfo, sel selection) (*pipeline.Batch, error) {
	batch := pipeline.NewBatch()
	for _, field := range r.fields {
		col, err := sel.read(ctx, r.handle, field)
		if err != nil {
			return nil, &ShardError{Kind: ErrIO, Shard: info.Path, Field: field, Cause: err}
		}
		if err := batch.Set(field, col); err != nil {
			return nil, &ShardError{Kind: ErrShapeMismatch, Shard: info.Path, Field: field, Cause: err}
		}
	}
	return batch, nil
}

func (r *StreamingReader) activate(ctx context.Context, info ShardInfo) error {
	h, err := r.store.Open(ctx, info.Path)
	if err != nil {
		return &ShardError{Kind: ErrIO, Shard: info.Path, Cause: err}
	}
	r.handle = h
	if r.opts.shuffle {
		r.perm = r.rng.Perm(info.Samples)
	}
	recordShardOpened(ctx)
	r.logger.Debug("Opened shard",
		slog.String("shard", info.Path),
		slog.Int("samples", info.Samples),
		slog.Int("pass", r.loops))
	return nil
}

func (r *StreamingReader) advance() {
	if err := r.release(); err != nil {
		r.logger.Warn("Failed to close shard", slog.Any("error", err))
	}
	r.shardIdx++
	r.cursor = 0
}

func (r *StreamingReader) restart(ctx context.Context) {
	if err := r.release(); err != nil {
		r.logger.Warn("Failed to close shard", slog.Any("error", err))
	}
	r.loops++
	r.shardIdx = 0
	r.cursor = 0
	r.passYielded = 0
	recordLoop(ctx)
	r.logger.Debug("Restarting at first shard",
		slog.Int("pass", r.loops),
		slog.Int("yielded", r.yielded))
}

func (r *StreamingReader) release() error {
	r.perm = nil
	if r.handle == nil {
		return nil
	}
	h := r.handle
	r.handle = nil
	return h.Close()
}

func (r *StreamingReader) finish(reason string) {
	if err := r.release(); err != nil {
		r.logger.Warn("Failed to close shard", slog.Any("error", err))
	}
	if !r.done {
		r.done = true
		r.logger.Debug("Streaming reader exhausted",
			slog.String("reason", reason),
			slog.Int("yielded", r.yielded),
			slog.Int("passes", r.loops+1))
	}
}

// contextError returns the bare context error behind err, if any. Those
// leave the reader usable with a fresh context.
func contextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}

func (r *StreamingReader) fail(err error) error {
	_ = r.release()
	r.err = err
	r.logger.Debug("Streaming reader failed", slog.Any("error", err))
	return err
}
