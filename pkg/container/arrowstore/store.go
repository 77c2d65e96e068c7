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

// Package arrowstore reads and writes containers stored as Arrow IPC files.
//
// Each top-level schema field is one container field named by its full path,
// for example "outputs/cpg/BS27_4_SER". Primitive columns become arrays and
// fixed-size list columns become matrices.
package arrowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/container/blob"
)

// Store opens Arrow IPC containers through a blob.Fetcher.
type Store struct {
	fetcher blob.Fetcher
	mem     memory.Allocator
}

var _ container.Store = (*Store)(nil)

// New returns a Store. A nil fetcher reads local, optionally compressed files.
func New(fetcher blob.Fetcher) *Store {
	if fetcher == nil {
		fetcher = blob.Default()
	}
	return &Store{fetcher: fetcher, mem: memory.DefaultAllocator}
}

func (s *Store) Open(ctx context.Context, path string) (container.Handle, error) {
	f, err := s.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(s.mem))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open arrow %s: %w", path, err)
	}

	tree := container.NewTree()
	for _, field := range reader.Schema().Fields() {
		if err := tree.Add(field.Name); err != nil {
			_ = reader.Close()
			_ = f.Close()
			return nil, fmt.Errorf("arrow %s: %w", path, err)
		}
	}

	return container.NewHandle(path, tree, &source{file: f, reader: reader, rows: -1}), nil
}

type source struct {
	file   blob.File
	reader *ipc.FileReader
	rows   int
}

func (s *source) index(field string) (int, error) {
	for i, f := range s.reader.Schema().Fields() {
		if container.CleanPath(f.Name) == field {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: column %q", container.ErrNotFound, field)
}

func (s *source) Length(ctx context.Context, _ string) (int, error) {
	if s.rows >= 0 {
		return s.rows, nil
	}
	total := 0
	for i := range s.reader.NumRecords() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rec, err := s.reader.Record(i)
		if err != nil {
			return 0, fmt.Errorf("read record %d: %w", i, err)
		}
		total += int(rec.NumRows())
	}
	s.rows = total
	return total, nil
}

func (s *source) Load(ctx context.Context, field string) (pipeline.Column, error) {
	idx, err := s.index(field)
	if err != nil {
		return nil, err
	}

	dt := s.reader.Schema().Field(idx).Type
	width, matrix := 1, false
	if fsl, ok := dt.(*arrow.FixedSizeListType); ok {
		width, matrix = int(fsl.Len()), true
		dt = fsl.Elem()
	}

	switch dt.ID() {
	case arrow.BOOL:
		return load(ctx, s, idx, matrix, width, boolValues)
	case arrow.INT8:
		return load(ctx, s, idx, matrix, width, int8Values)
	case arrow.INT16:
		return load(ctx, s, idx, matrix, width, int16Values)
	case arrow.INT32:
		return load(ctx, s, idx, matrix, width, int32Values)
	case arrow.INT64:
		return load(ctx, s, idx, matrix, width, int64Values)
	case arrow.UINT8:
		return load(ctx, s, idx, matrix, width, uint8Values)
	case arrow.UINT16:
		return load(ctx, s, idx, matrix, width, uint16Values)
	case arrow.UINT32:
		return load(ctx, s, idx, matrix, width, uint32Values)
	case arrow.UINT64:
		return load(ctx, s, idx, matrix, width, uint64Values)
	case arrow.FLOAT32:
		return load(ctx, s, idx, matrix, width, float32Values)
	case arrow.FLOAT64:
		return load(ctx, s, idx, matrix, width, float64Values)
	case arrow.STRING:
		return load(ctx, s, idx, matrix, width, stringValues)
	default:
		return nil, fmt.Errorf("%w: %q has arrow type %s", container.ErrUnsupportedType, field, dt)
	}
}

func (s *source) Close() error {
	_ = s.reader.Close()
	return s.file.Close()
}

// load copies one column out of every record of the file.
func load[T pipeline.Element](ctx context.Context, s *source, idx int, matrix bool, width int, extract func(arrow.Array) ([]T, bool)) (pipeline.Column, error) {
	name := s.reader.Schema().Field(idx).Name
	var data []T
	for i := range s.reader.NumRecords() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.reader.Record(i)
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", i, err)
		}

		col := rec.Column(idx)
		if col.NullN() > 0 {
			return nil, fmt.Errorf("%w: %q holds null values", container.ErrUnsupportedType, name)
		}

		values := col
		if matrix {
			fsl, ok := col.(*array.FixedSizeList)
			if !ok {
				return nil, fmt.Errorf("%w: %q is %T", container.ErrUnsupportedType, name, col)
			}
			lo := int64(fsl.Offset() * width)
			hi := int64((fsl.Offset() + fsl.Len()) * width)
			values = array.NewSlice(fsl.ListValues(), lo, hi)
		}

		vals, ok := extract(values)
		if ok {
			data = append(data, vals...)
		}
		if matrix {
			values.Release()
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T", container.ErrUnsupportedType, name, values)
		}
	}

	if !matrix {
		return pipeline.Array[T](data), nil
	}
	return pipeline.NewMatrix(data, width)
}

func boolValues(a arrow.Array) ([]bool, bool) {
	b, ok := a.(*array.Boolean)
	if !ok {
		return nil, false
	}
	out := make([]bool, b.Len())
	for i := range out {
		out[i] = b.Value(i)
	}
	return out, true
}

func int8Values(a arrow.Array) ([]int8, bool) {
	x, ok := a.(*array.Int8)
	if !ok {
		return nil, false
	}
	return x.Int8Values(), true
}

func int16Values(a arrow.Array) ([]int16, bool) {
	x, ok := a.(*array.Int16)
	if !ok {
		return nil, false
	}
	return x.Int16Values(), true
}

func uint8Values(a arrow.Array) ([]uint8, bool) {
	x, ok := a.(*array.Uint8)
	if !ok {
		return nil, false
	}
	return x.Uint8Values(), true
}

func uint16Values(a arrow.Array) ([]uint16, bool) {
	x, ok := a.(*array.Uint16)
	if !ok {
		return nil, false
	}
	return x.Uint16Values(), true
}

func uint32Values(a arrow.Array) ([]uint32, bool) {
	x, ok := a.(*array.Uint32)
	if !ok {
		return nil, false
	}
	return x.Uint32Values(), true
}

func uint64Values(a arrow.Array) ([]uint64, bool) {
	x, ok := a.(*array.Uint64)
	if !ok {
		return nil, false
	}
	return x.Uint64Values(), true
}

func int32Values(a arrow.Array) ([]int32, bool) {
	x, ok := a.(*array.Int32)
	if !ok {
		return nil, false
	}
	return x.Int32Values(), true
}

func int64Values(a arrow.Array) ([]int64, bool) {
	x, ok := a.(*array.Int64)
	if !ok {
		return nil, false
	}
	return x.Int64Values(), true
}

func float32Values(a arrow.Array) ([]float32, bool) {
	x, ok := a.(*array.Float32)
	if !ok {
		return nil, false
	}
	return x.Float32Values(), true
}

func float64Values(a arrow.Array) ([]float64, bool) {
	x, ok := a.(*array.Float64)
	if !ok {
		return nil, false
	}
	return x.Float64Values(), true
}

func stringValues(a arrow.Array) ([]string, bool) {
	x, ok := a.(*array.String)
	if !ok {
		return nil, false
	}
	out := make([]string, x.Len())
	for i := range out {
		out[i] = strings.Clone(x.Value(i))
	}
	return out, true
}
