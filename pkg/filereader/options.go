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

const (
	// DefaultBatchSize is the streaming batch size.
	DefaultBatchSize = 128

	// DefaultMaterializeBatchSize is the internal batch size used by Read.
	DefaultMaterializeBatchSize = 1024
)

// Option configures a StreamingReader or Read.
type Option func(*options)

type options struct {
	batchSize int
	loop      bool
	shuffle   bool
	cap       int
	hasCap    bool
	seed      uint64
	hasSeed   bool
	epochSize int
	cache     *CatalogCache
}

func defaultOptions() options {
	return options{batchSize: DefaultBatchSize}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBatchSize sets the maximum number of samples per batch.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithLoop restarts at the first shard after the last one is exhausted.
func WithLoop(loop bool) Option {
	return func(o *options) { o.loop = loop }
}

// WithShuffle draws samples of each shard in a fresh random order.
func WithShuffle(shuffle bool) Option {
	return func(o *options) { o.shuffle = shuffle }
}

// WithCap stops the reader after n samples in total, across loop passes.
func WithCap(n int) Option {
	return func(o *options) {
		o.cap = n
		o.hasCap = true
	}
}

// WithSeed makes shuffling reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.hasSeed = true
	}
}

// WithEpochSize ends each loop pass after n samples. The next pass starts
// over at the first shard. It is independent of WithCap.
func WithEpochSize(n int) Option {
	return func(o *options) { o.epochSize = n }
}

// WithCatalogCache reuses shard sample counts across readers.
func WithCatalogCache(c *CatalogCache) Option {
	return func(o *options) { o.cache = c }
}

func (o options) validate() error {
	if o.batchSize <= 0 {
		return configError("batch size must be positive, got %d", o.batchSize)
	}
	if o.hasCap && o.cap < 0 {
		return configError("cap must not be negative, got %d", o.cap)
	}
	if o.epochSize < 0 {
		return configError("epoch size must not be negative, got %d", o.epochSize)
	}
	return nil
}
