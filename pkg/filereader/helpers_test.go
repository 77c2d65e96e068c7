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
	"fmt"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/container/arrowstore"
	"github.com/cardinalhq/shardstream/pkg/container/blob"
	"github.com/cardinalhq/shardstream/pkg/container/parquetstore"
)

const targetField = "outputs/cpg/BS27_4_SER"

var testFields = []string{"pos", "chromo", "/" + targetField, "inputs/dna"}

type shardSpec struct {
	chromo string
	base   int64
	n      int
}

// makeShard builds a shard whose fields are all derived from pos, so row
// alignment can be checked on any batch.
func makeShard(t testing.TB, s shardSpec) *container.MemoryFile {
	t.Helper()
	pos := make(pipeline.Array[int64], s.n)
	chromo := make(pipeline.Array[string], s.n)
	target := make(pipeline.Array[int32], s.n)
	dna := make([]int32, 0, s.n*3)
	for i := range s.n {
		p := s.base + int64(i)*7
		pos[i] = p
		chromo[i] = s.chromo
		target[i] = int32(p%3) - 1
		dna = append(dna, dnaRow(p)...)
	}
	m, err := pipeline.NewMatrix(dna, 3)
	require.NoError(t, err)
	return container.NewMemoryFile().
		MustAdd("pos", pos).
		MustAdd("chromo", chromo).
		MustAdd(targetField, target).
		MustAdd("inputs/dna", m)
}

func dnaRow(p int64) []int32 {
	return []int32{int32(p % 5), int32(p % 7), int32(p % 11)}
}

var twoShards = []shardSpec{
	{chromo: "18", base: 3000023, n: 37},
	{chromo: "19", base: 4447000, n: 23},
}

var fourShards = []shardSpec{
	{chromo: "18", base: 3000023, n: 37},
	{chromo: "18", base: 3100000, n: 29},
	{chromo: "19", base: 4000000, n: 41},
	{chromo: "19", base: 4447000, n: 23},
}

type backend struct {
	name  string
	build func(t *testing.T, files []*container.MemoryFile) (container.Store, []string)
}

var backends = []backend{
	{
		name: "memory",
		build: func(t *testing.T, files []*container.MemoryFile) (container.Store, []string) {
			store := container.NewMemoryStore()
			paths := make([]string, len(files))
			for i, f := range files {
				paths[i] = fmt.Sprintf("shard_%03d", i)
				store.Put(paths[i], f)
			}
			return store, paths
		},
	},
	{
		name: "parquet",
		build: func(t *testing.T, files []*container.MemoryFile) (container.Store, []string) {
			dir := t.TempDir()
			paths := make([]string, len(files))
			for i, f := range files {
				paths[i] = filepath.Join(dir, fmt.Sprintf("shard_%03d.parquet", i))
				require.NoError(t, parquetstore.WriteFile(paths[i], f, parquetstore.WriteOptions{RowGroupSize: 16}))
			}
			return parquetstore.New(blob.Local{}), paths
		},
	},
	{
		name: "arrow",
		build: func(t *testing.T, files []*container.MemoryFile) (container.Store, []string) {
			dir := t.TempDir()
			paths := make([]string, len(files))
			for i, f := range files {
				paths[i] = filepath.Join(dir, fmt.Sprintf("shard_%03d.arrow", i))
				require.NoError(t, arrowstore.WriteFile(paths[i], f, arrowstore.WriteOptions{RecordSize: 16}))
			}
			return arrowstore.New(blob.Local{}), paths
		},
	},
}

func buildShards(t *testing.T, b backend, specs []shardSpec) (container.Store, []string, []*container.MemoryFile) {
	t.Helper()
	files := make([]*container.MemoryFile, len(specs))
	for i, s := range specs {
		files[i] = makeShard(t, s)
	}
	store, paths := b.build(t, files)
	return store, paths, files
}

func memoryShards(t *testing.T, specs []shardSpec) (*container.MemoryStore, []string) {
	t.Helper()
	store, paths, _ := buildShards(t, backends[0], specs)
	return store.(*container.MemoryStore), paths
}

func posValues(t testing.TB, b *pipeline.Batch) []int64 {
	t.Helper()
	col := b.Column("pos")
	require.NotNil(t, col)
	return col.Values().([]int64)
}

// requireAligned checks that every field of every row derives from the
// same pos value.
func requireAligned(t testing.TB, b *pipeline.Batch) {
	t.Helper()
	pos := posValues(t, b)
	target := b.Column("/" + targetField).Values().([]int32)
	dna := b.Column("inputs/dna").(pipeline.Matrix[int32])
	require.Len(t, target, len(pos))
	require.Equal(t, len(pos), dna.Len())
	for i, p := range pos {
		require.Equal(t, int32(p%3)-1, target[i], "row %d", i)
		require.Equal(t, dnaRow(p), dna.Row(i), "row %d", i)
	}
}

// sortedByPos returns b with rows ordered by pos.
func sortedByPos(t testing.TB, b *pipeline.Batch) *pipeline.Batch {
	t.Helper()
	pos := posValues(t, b)
	idx := make([]int, len(pos))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, c int) int {
		switch {
		case pos[a] < pos[c]:
			return -1
		case pos[a] > pos[c]:
			return 1
		}
		return 0
	})
	return b.Take(idx)
}

func drain(t *testing.T, ctx context.Context, r *StreamingReader) []*pipeline.Batch {
	t.Helper()
	var out []*pipeline.Batch
	for b, err := range r.Batches(ctx) {
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

type countingStore struct {
	container.Store
	opens atomic.Int32
}

func (s *countingStore) Open(ctx context.Context, path string) (container.Handle, error) {
	s.opens.Add(1)
	return s.Store.Open(ctx, path)
}
