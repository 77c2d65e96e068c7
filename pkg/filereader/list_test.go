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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/fieldnames"
)

func listFixture(t *testing.T) (*container.MemoryStore, string) {
	t.Helper()
	one := pipeline.Array[float32]{0}
	f := container.NewMemoryFile().
		MustAdd("chromo", pipeline.Array[string]{"1"}).
		MustAdd("pos", pipeline.Array[int64]{1}).
		MustAdd("inputs/dna", one).
		MustAdd("inputs/cpg/BS27_1_SER/dist", one).
		MustAdd("inputs/cpg/BS27_1_SER/state", one).
		MustAdd("inputs/cpg/BS27_3_SER/dist", one).
		MustAdd("outputs/cpg/BS27_1_SER", one).
		MustAdd("outputs/cpg/BS27_3_SER", one).
		MustAdd("outputs/stats/mean", one)
	store := container.NewMemoryStore()
	store.Put("data.h5", f)
	return store, "data.h5"
}

func TestList(t *testing.T) {
	store, shard := listFixture(t)

	tests := []struct {
		name  string
		group string
		opts  ListOptions
		want  []string
	}{
		{
			name: "root",
			want: []string{"chromo", "pos"},
		},
		{
			name:  "root groups",
			group: "/",
			opts:  ListOptions{Groups: true},
			want:  []string{"inputs", "outputs"},
		},
		{
			name:  "direct children",
			group: "outputs/cpg",
			want:  []string{"BS27_1_SER", "BS27_3_SER"},
		},
		{
			name:  "recursive",
			group: "/outputs",
			opts:  ListOptions{Recursive: true},
			want:  []string{"cpg/BS27_1_SER", "cpg/BS27_3_SER", "stats/mean"},
		},
		{
			name:  "recursive groups",
			group: "inputs",
			opts:  ListOptions{Recursive: true, Groups: true},
			want:  []string{"cpg", "cpg/BS27_1_SER", "cpg/BS27_3_SER"},
		},
		{
			name:  "regex",
			group: "inputs",
			opts:  ListOptions{Recursive: true, Regex: `dist$`},
			want:  []string{"cpg/BS27_1_SER/dist", "cpg/BS27_3_SER/dist"},
		},
		{
			name:  "limit",
			group: "outputs",
			opts:  ListOptions{Recursive: true, Limit: 2},
			want:  []string{"cpg/BS27_1_SER", "cpg/BS27_3_SER"},
		},
		{
			name:  "missing group",
			group: "targets",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List(t.Context(), store, shard, tt.group, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListErrors(t *testing.T) {
	store, shard := listFixture(t)

	_, err := List(t.Context(), store, shard, "targets", ListOptions{MustExist: true})
	require.ErrorIs(t, err, container.ErrNotFound)

	_, err = List(t.Context(), store, shard, "pos", ListOptions{})
	require.ErrorIs(t, err, container.ErrNotGroup)

	_, err = List(t.Context(), store, shard, "", ListOptions{Regex: "("})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = List(t.Context(), store, "missing.h5", "", ListOptions{})
	require.ErrorIs(t, err, ErrIO)
	assert.Zero(t, store.OpenHandles())
}

func TestExpandGroups(t *testing.T) {
	store, shard := listFixture(t)

	got, err := ExpandGroups(t.Context(), store, shard, fieldnames.Groups{
		{Name: "outputs"},
		{Name: "inputs", Child: fieldnames.Leaf("dna")},
		{Name: "pos"},
		{Name: "targets"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"outputs/cpg/BS27_1_SER",
		"outputs/cpg/BS27_3_SER",
		"outputs/stats/mean",
		"inputs/dna",
		"pos",
		"targets",
	}, got)

	flat, err := ExpandGroups(t.Context(), store, shard, fieldnames.Leaves("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, flat)
}
