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
	"context"
	"fmt"

	"github.com/cardinalhq/shardstream/pipeline"
)

// ColumnSource decodes whole fields of one open container. Backends implement
// it and wrap it with NewHandle, which adds lookup, caching and bounds checks.
type ColumnSource interface {
	// Length returns the sample count of a field without decoding it.
	Length(ctx context.Context, field string) (int, error)

	// Load decodes every sample of a field.
	Load(ctx context.Context, field string) (pipeline.Column, error)

	// Close releases the underlying file.
	Close() error
}

// handle serves reads from fully decoded fields. A field is decoded on first
// read and kept until Close, so memory is bounded by the fields read from one
// container.
type handle struct {
	path   string
	tree   *Tree
	src    ColumnSource
	cache  map[string]pipeline.Column
	closed bool
}

// NewHandle returns a Handle over src. Field paths are resolved against tree.
func NewHandle(path string, tree *Tree, src ColumnSource) Handle {
	return &handle{
		path:  path,
		tree:  tree,
		src:   src,
		cache: make(map[string]pipeline.Column),
	}
}

func (h *handle) Path() string {
	return h.path
}

func (h *handle) Members(_ context.Context, group string) ([]Member, error) {
	if h.closed {
		return nil, ErrClosed
	}
	return h.tree.Members(CleanPath(group))
}

func (h *handle) resolve(field string) (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	key := CleanPath(field)
	if h.tree.IsField(key) {
		return key, nil
	}
	if h.tree.IsGroup(key) {
		return "", fmt.Errorf("%w: %q is a group, not a field", ErrNotFound, field)
	}
	return "", fmt.Errorf("%w: field %q", ErrNotFound, field)
}

func (h *handle) Len(ctx context.Context, field string) (int, error) {
	key, err := h.resolve(field)
	if err != nil {
		return 0, err
	}
	if col, ok := h.cache[key]; ok {
		return col.Len(), nil
	}
	return h.src.Length(ctx, key)
}

func (h *handle) column(ctx context.Context, field string) (pipeline.Column, error) {
	key, err := h.resolve(field)
	if err != nil {
		return nil, err
	}
	if col, ok := h.cache[key]; ok {
		return col, nil
	}
	col, err := h.src.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %q from %s: %w", field, h.path, err)
	}
	h.cache[key] = col
	return col, nil
}

func (h *handle) ReadSlice(ctx context.Context, field string, start, stop int) (pipeline.Column, error) {
	col, err := h.column(ctx, field)
	if err != nil {
		return nil, err
	}
	if start < 0 || stop < start || stop > col.Len() {
		return nil, fmt.Errorf("%w: [%d, %d) of %q with %d samples", ErrOutOfRange, start, stop, field, col.Len())
	}
	return col.Slice(start, stop), nil
}

func (h *handle) ReadIndices(ctx context.Context, field string, indices []int) (pipeline.Column, error) {
	col, err := h.column(ctx, field)
	if err != nil {
		return nil, err
	}
	n := col.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: index %d of %q with %d samples", ErrOutOfRange, idx, field, n)
		}
	}
	return col.Take(indices), nil
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.cache = nil
	return h.src.Close()
}
