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

package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/shardstream/pipeline"
)

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"":                        "",
		"/":                       "",
		"pos":                     "pos",
		"/pos":                    "pos",
		"/outputs/cpg/BS27_4_SER": "outputs/cpg/BS27_4_SER",
		"outputs//cpg/":           "outputs/cpg",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanPath(in), "CleanPath(%q)", in)
	}
}

func TestTree(t *testing.T) {
	tree, err := TreeOf("chromo", "pos", "outputs/cpg/A", "outputs/cpg/B", "inputs/dna")
	require.NoError(t, err)

	members, err := tree.Members("")
	require.NoError(t, err)
	assert.Equal(t, []Member{
		{Name: "chromo"},
		{Name: "pos"},
		{Name: "outputs", Group: true},
		{Name: "inputs", Group: true},
	}, members)

	members, err = tree.Members("/outputs/cpg")
	require.NoError(t, err)
	assert.Equal(t, []Member{{Name: "A"}, {Name: "B"}}, members)

	_, err = tree.Members("pos")
	assert.ErrorIs(t, err, ErrNotGroup)

	_, err = tree.Members("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, tree.IsField("outputs/cpg/A"))
	assert.True(t, tree.IsGroup("outputs"))
	assert.True(t, tree.IsGroup(""))
	assert.False(t, tree.IsField("pos/x"))

	assert.Equal(t, []string{"chromo", "pos", "outputs/cpg/A", "outputs/cpg/B", "inputs/dna"}, tree.Fields())
}

func TestTree_Conflicts(t *testing.T) {
	_, err := TreeOf("a", "a")
	assert.Error(t, err)

	_, err = TreeOf("a", "a/b")
	assert.Error(t, err)

	_, err = TreeOf("")
	assert.Error(t, err)
}

func newTestFile(t *testing.T) *MemoryFile {
	t.Helper()
	f := NewMemoryFile()
	require.NoError(t, f.Add("pos", pipeline.Array[int64]{10, 20, 30, 40}))
	require.NoError(t, f.Add("chromo", pipeline.Array[string]{"1", "1", "2", "2"}))
	m, err := pipeline.NewMatrix([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 2)
	require.NoError(t, err)
	require.NoError(t, f.Add("inputs/dna", m))
	return f
}

func TestMemoryStore_Reads(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryStore()
	store.Put("a.shard", newTestFile(t))

	h, err := store.Open(ctx, "a.shard")
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	assert.Equal(t, "a.shard", h.Path())

	n, err := h.Len(ctx, "/pos")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	col, err := h.ReadSlice(ctx, "pos", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30}, col.Values())

	col, err = h.ReadIndices(ctx, "chromo", []int{3, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, col.Values())

	col, err = h.ReadIndices(ctx, "inputs/dna", []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 0, 1}, col.Values())
	assert.Equal(t, 2, col.Width())

	_, err = h.ReadSlice(ctx, "pos", 2, 5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = h.ReadIndices(ctx, "pos", []int{4})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = h.Len(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.Len(ctx, "inputs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_HandleLifecycle(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryStore()
	store.Put("a.shard", newTestFile(t))

	_, err := store.Open(ctx, "missing.shard")
	require.ErrorIs(t, err, ErrNotFound)

	h, err := store.Open(ctx, "a.shard")
	require.NoError(t, err)
	assert.Equal(t, 1, store.OpenHandles())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 0, store.OpenHandles())

	_, err = h.Len(ctx, "pos")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.Members(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStore_DeleteKeepsOpenHandles(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryStore()
	store.Put("a.shard", newTestFile(t))

	h, err := store.Open(ctx, "a.shard")
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	store.Delete("a.shard")

	n, err := h.Len(ctx, "pos")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = store.Open(ctx, "a.shard")
	assert.ErrorIs(t, err, ErrNotFound)
}
