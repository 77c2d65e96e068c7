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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
)

func TestCollectFrom(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store, paths, _ := buildShards(t, b, twoShards[:1])
			fields := []string{"pos", "/" + targetField}

			all, err := Read(t.Context(), store, paths, fields)
			require.NoError(t, err)
			require.Equal(t, 37, all.Len())

			for _, target := range []int{1, 10, 36, 37, 99, 100000} {
				r, err := NewStreamingReader(t.Context(), store, paths, fields, WithBatchSize(8))
				require.NoError(t, err)

				got, err := CollectFrom(t.Context(), r, target)
				require.NoError(t, err)
				require.NoError(t, r.Close())

				want := min(target, 37)
				assert.Equal(t, want, got.Len(), "target %d", target)
				assert.True(t, all.Truncate(want).Equal(got), "target %d", target)
			}
		})
	}
}

func TestCollectFromZeroDoesNotPull(t *testing.T) {
	src := &scriptedSource{err: errors.New("must not be called")}

	got, err := CollectFrom(t.Context(), src, 0)
	require.NoError(t, err)
	assert.Zero(t, got.Len())
	assert.Zero(t, src.calls)
}

func TestCollectFromNegativeTarget(t *testing.T) {
	_, err := CollectFrom(t.Context(), &scriptedSource{}, -1)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCollectFromPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	src := &scriptedSource{
		batches: []*pipeline.Batch{batchOf(t, 1, 2, 3)},
		err:     boom,
	}

	_, err := CollectFrom(t.Context(), src, 10)
	require.ErrorIs(t, err, boom)
}

func TestCollectFromStopsPulling(t *testing.T) {
	src := &scriptedSource{batches: []*pipeline.Batch{
		batchOf(t, 1, 2, 3),
		batchOf(t, 4, 5, 6),
		batchOf(t, 7, 8, 9),
	}}

	got, err := CollectFrom(t.Context(), src, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, got.Column("pos").Values())
	assert.Equal(t, 2, src.calls)
}

func TestReadAll(t *testing.T) {
	src := &scriptedSource{batches: []*pipeline.Batch{
		batchOf(t, 1, 2),
		batchOf(t),
		batchOf(t, 3),
	}}

	got, err := ReadAll(t.Context(), src)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got.Column("pos").Values())
}

func TestInspect(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store, paths, _ := buildShards(t, b, fourShards)

			infos, err := Inspect(t.Context(), store, paths, testFields)
			require.NoError(t, err)
			require.Len(t, infos, 4)
			for i, want := range []int{37, 29, 41, 23} {
				assert.Equal(t, paths[i], infos[i].Path)
				assert.Equal(t, want, infos[i].Samples)
			}

			_, err = Inspect(t.Context(), store, paths, nil)
			require.ErrorIs(t, err, ErrConfiguration)

			_, err = Inspect(t.Context(), store, paths, []string{"pos", "outputs"})
			require.ErrorIs(t, err, ErrFieldNotFound)
		})
	}
}

func TestCatalogCache(t *testing.T) {
	mem, paths := memoryShards(t, fourShards)
	store := &countingStore{Store: mem}
	cache := NewCatalogCache(time.Minute)

	for range 3 {
		data, err := Read(t.Context(), store, paths, testFields, WithCatalogCache(cache))
		require.NoError(t, err)
		require.Equal(t, 130, data.Len())
	}
	// four catalog opens once, then four stream opens per read
	assert.EqualValues(t, 4+3*4, store.opens.Load())
	assert.Equal(t, 4, cache.Len())

	_, err := Read(t.Context(), store, paths, []string{"pos"}, WithCatalogCache(cache))
	require.NoError(t, err)
	assert.Equal(t, 8, cache.Len(), "entries are keyed by field list")

	cache.Invalidate()
	assert.Zero(t, cache.Len())
}

func TestCatalogCacheSeparatesStores(t *testing.T) {
	small := container.NewMemoryStore()
	small.Put("train/c1.h5", makeShard(t, twoShards[1]))
	large := container.NewMemoryStore()
	large.Put("train/c1.h5", makeShard(t, twoShards[0]))
	cache := NewCatalogCache(time.Minute)

	for _, tc := range []struct {
		store *container.MemoryStore
		want  int
	}{{small, 23}, {large, 37}, {small, 23}} {
		data, err := Read(t.Context(), tc.store, []string{"train/c1.h5"}, []string{"pos"}, WithCatalogCache(cache))
		require.NoError(t, err)
		assert.Equal(t, tc.want, data.Len())
	}
	assert.Equal(t, 2, cache.Len())
}

func TestCatalogCacheSkipsFailures(t *testing.T) {
	store, paths := memoryShards(t, twoShards)
	cache := NewCatalogCache(time.Minute)

	_, err := NewStreamingReader(t.Context(), store, paths, []string{"pos", "nope"}, WithCatalogCache(cache))
	require.ErrorIs(t, err, ErrFieldNotFound)
	assert.Zero(t, cache.Len())
}

// scriptedSource replays batches, then returns err or io.EOF.
type scriptedSource struct {
	batches []*pipeline.Batch
	err     error
	calls   int
}

func (s *scriptedSource) Next(context.Context) (*pipeline.Batch, error) {
	s.calls++
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		return b, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func batchOf(t *testing.T, pos ...int64) *pipeline.Batch {
	t.Helper()
	b := pipeline.NewBatch()
	require.NoError(t, b.Set("pos", pipeline.Array[int64](append([]int64{}, pos...))))
	return b
}
