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

// Package container defines the hierarchical array store that readers pull
// samples from, and provides the shared handle implementation used by the
// concrete backends.
//
// A container (one shard file) holds named one- or two-dimensional arrays
// organized in groups, addressed by slash-separated field paths such as
// "outputs/cpg/BS27_4_SER". Every array in a container is indexed by sample.
//
// # Backends
//
//   - MemoryStore: in-process containers, safe for concurrent use
//   - parquetstore: Parquet files, nested groups form the hierarchy
//   - arrowstore: Arrow IPC files, one column per field path
//
// Backends resolve shard paths to bytes through package blob, so any of them
// can read local, S3 and compressed files.
package container

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/cardinalhq/shardstream/pipeline"
)

var (
	// ErrNotFound indicates a missing container, group or field.
	ErrNotFound = errors.New("not found")

	// ErrNotGroup indicates a group operation on a field.
	ErrNotGroup = errors.New("not a group")

	// ErrClosed indicates use of a closed handle.
	ErrClosed = errors.New("handle is closed")

	// ErrOutOfRange indicates a sample index outside the field.
	ErrOutOfRange = errors.New("sample index out of range")

	// ErrUnsupportedType indicates an array type the backend cannot decode.
	ErrUnsupportedType = errors.New("unsupported array type")
)

// Member is one direct child of a group.
type Member struct {
	Name  string
	Group bool
}

// Store opens containers by path.
type Store interface {
	// Open returns a handle for the container at path. The handle must be
	// closed by the caller.
	Open(ctx context.Context, path string) (Handle, error)
}

// Handle is an open container. Handles are not safe for concurrent use.
type Handle interface {
	// Path returns the path the handle was opened with.
	Path() string

	// Members lists the direct children of group in container order.
	// The empty group is the root.
	Members(ctx context.Context, group string) ([]Member, error)

	// Len returns the number of samples in field.
	Len(ctx context.Context, field string) (int, error)

	// ReadSlice returns samples [start, stop) of field.
	ReadSlice(ctx context.Context, field string, start, stop int) (pipeline.Column, error)

	// ReadIndices returns the samples of field at indices, in index order.
	ReadIndices(ctx context.Context, field string, indices []int) (pipeline.Column, error)

	// Close releases the handle. Closing twice is not an error.
	Close() error
}

// Separator joins group and field names in a path.
const Separator = "/"

// CleanPath normalizes a field or group path for lookup: leading and trailing
// slashes are dropped and repeated slashes collapse. The root is "".
func CleanPath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean("/" + p)
	return strings.TrimPrefix(cleaned, "/")
}

// SplitPath returns the components of a cleaned path.
func SplitPath(p string) []string {
	p = CleanPath(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, Separator)
}
