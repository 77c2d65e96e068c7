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

package arrowstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/container/blob"
)

func sampleFile(t *testing.T, n int) *container.MemoryFile {
	t.Helper()
	ids := make(pipeline.Array[int32], n)
	names := make(pipeline.Array[string], n)
	scores := make(pipeline.Array[float64], n)
	onehot := make([]float32, 0, n*3)
	for i := range n {
		ids[i] = int32(i)
		names[i] = string(rune('a' + i%26))
		scores[i] = float64(i) / 4
		for j := range 3 {
			if i%3 == j {
				onehot = append(onehot, 1)
			} else {
				onehot = append(onehot, 0)
			}
		}
	}
	m, err := pipeline.NewMatrix(onehot, 3)
	require.NoError(t, err)

	return container.NewMemoryFile().
		MustAdd("id", ids).
		MustAdd("meta/name", names).
		MustAdd("outputs/score", scores).
		MustAdd("inputs/onehot", m)
}

func TestArrowRoundTrip(t *testing.T) {
	mf := sampleFile(t, 30)
	path := filepath.Join(t.TempDir(), "shard.arrow")
	require.NoError(t, WriteFile(path, mf, WriteOptions{RecordSize: 8}))

	h, err := New(blob.Local{}).Open(t.Context(), path)
	require.NoError(t, err)
	defer h.Close()

	for _, field := range mf.Fields() {
		n, err := h.Len(t.Context(), field)
		require.NoError(t, err)
		require.Equal(t, 30, n, field)

		col, err := h.ReadSlice(t.Context(), field, 0, n)
		require.NoError(t, err)
		want := mf.Column(field)
		assert.Equal(t, want.Dims(), col.Dims(), field)
		assert.Equal(t, want.Values(), col.Values(), field)
	}

	rows, err := h.ReadIndices(t.Context(), "inputs/onehot", []int{4, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 1, 0, 0}, rows.Values())

	members, err := h.Members(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []container.Member{
		{Name: "id"},
		{Name: "meta", Group: true},
		{Name: "outputs", Group: true},
		{Name: "inputs", Group: true},
	}, members)
}

func TestArrowEmptyFile(t *testing.T) {
	mf := container.NewMemoryFile().MustAdd("x", pipeline.Array[int64]{})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, mf, WriteOptions{}))
	path := filepath.Join(t.TempDir(), "empty.arrow")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	h, err := New(nil).Open(t.Context(), path)
	require.NoError(t, err)
	defer h.Close()

	n, err := h.Len(t.Context(), "x")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArrowNullsRejected(t *testing.T) {
	mem := memory.DefaultAllocator
	schema := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)

	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues([]int64{1, 0, 3}, []bool{true, false, true})
	arr := b.NewArray()
	defer arr.Release()
	rec := array.NewRecordBatch(schema, []arrow.Array{arr}, 3)
	defer rec.Release()

	var buf bytes.Buffer
	fw, err := ipc.NewFileWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	require.NoError(t, err)
	require.NoError(t, fw.Write(rec))
	require.NoError(t, fw.Close())

	path := filepath.Join(t.TempDir(), "nulls.arrow")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	h, err := New(blob.Local{}).Open(t.Context(), path)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.ReadSlice(t.Context(), "x", 0, 1)
	require.ErrorIs(t, err, container.ErrUnsupportedType)
}

func TestArrowWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Write(&buf, container.NewMemoryFile(), WriteOptions{}))

	ragged := container.NewMemoryFile().
		MustAdd("a", pipeline.Array[float64]{1}).
		MustAdd("b", pipeline.Array[float64]{1, 2})
	require.ErrorIs(t, Write(&buf, ragged, WriteOptions{}), pipeline.ErrLengthMismatch)

	type label int8
	odd := container.NewMemoryFile().MustAdd("a", pipeline.Array[label]{1})
	require.ErrorIs(t, Write(&buf, odd, WriteOptions{}), container.ErrUnsupportedType)
}

func TestArrowOpenMissing(t *testing.T) {
	_, err := New(blob.Local{}).Open(t.Context(), filepath.Join(t.TempDir(), "nope.arrow"))
	require.ErrorIs(t, err, container.ErrNotFound)
}

func TestArrowNarrowIntegerRoundTrip(t *testing.T) {
	onehot, err := pipeline.NewMatrix([]int16{1, 0, 0, 1, -1, 1}, 2)
	require.NoError(t, err)
	mf := container.NewMemoryFile().
		MustAdd("outputs/cpg/BS27_4_SER", pipeline.Array[int8]{1, -1, 0}).
		MustAdd("i16", pipeline.Array[int16]{-32768, 0, 32767}).
		MustAdd("u8", pipeline.Array[uint8]{0, 128, 255}).
		MustAdd("u16", pipeline.Array[uint16]{0, 1, 65535}).
		MustAdd("u32", pipeline.Array[uint32]{0, 1 << 31, 4294967295}).
		MustAdd("u64", pipeline.Array[uint64]{0, 1 << 63, 18446744073709551615}).
		MustAdd("inputs/onehot", onehot)

	path := filepath.Join(t.TempDir(), "narrow.arrow")
	require.NoError(t, WriteFile(path, mf, WriteOptions{RecordSize: 2}))

	h, err := New(blob.Local{}).Open(t.Context(), path)
	require.NoError(t, err)
	defer h.Close()

	for _, field := range mf.Fields() {
		t.Run(field, func(t *testing.T) {
			col, err := h.ReadSlice(t.Context(), field, 0, 3)
			require.NoError(t, err)
			want := mf.Column(field)
			assert.Equal(t, want.Values(), col.Values())
			assert.Equal(t, want.Width(), col.Width())
		})
	}
}

func TestArrowWriteFileRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.arrow")
	type label int8
	bad := container.NewMemoryFile().MustAdd("a", pipeline.Array[label]{1})

	require.ErrorIs(t, WriteFile(path, bad, WriteOptions{}), container.ErrUnsupportedType)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
