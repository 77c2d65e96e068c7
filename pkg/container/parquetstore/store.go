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

// Package parquetstore reads and writes containers stored as Parquet files.
//
// Nested Parquet groups form the container hierarchy: the leaf column
// outputs.cpg.BS27_4_SER is the field "outputs/cpg/BS27_4_SER". Required and
// optional leaves become one-dimensional arrays; repeated leaves whose lists
// all have the same length become matrices. Every field of a Parquet
// container has one sample per row.
package parquetstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/container/blob"
)

// Store opens Parquet containers through a blob.Fetcher.
type Store struct {
	fetcher blob.Fetcher
}

var _ container.Store = (*Store)(nil)

// New returns a Store. A nil fetcher reads local, optionally compressed files.
func New(fetcher blob.Fetcher) *Store {
	if fetcher == nil {
		fetcher = blob.Default()
	}
	return &Store{fetcher: fetcher}
}

func (s *Store) Open(ctx context.Context, path string) (container.Handle, error) {
	f, err := s.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, f.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	tree := container.NewTree()
	for _, col := range pf.Schema().Columns() {
		if err := tree.Add(strings.Join(col, container.Separator)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("parquet %s: %w", path, err)
		}
	}

	return container.NewHandle(path, tree, &source{file: f, pf: pf}), nil
}

type source struct {
	file blob.File
	pf   *parquet.File
}

func (s *source) Length(_ context.Context, _ string) (int, error) {
	return int(s.pf.NumRows()), nil
}

func (s *source) Load(ctx context.Context, field string) (pipeline.Column, error) {
	leaf, ok := s.pf.Schema().Lookup(container.SplitPath(field)...)
	if !ok {
		return nil, fmt.Errorf("%w: column %q", container.ErrNotFound, field)
	}
	if leaf.MaxRepetitionLevel > 1 {
		return nil, fmt.Errorf("%w: %q is nested more than one list deep", container.ErrUnsupportedType, field)
	}

	switch kind := leaf.Node.Type().Kind(); kind {
	case parquet.Boolean:
		return collect(ctx, s, leaf, parquet.Value.Boolean)
	case parquet.Int32:
		return loadInt32(ctx, s, leaf)
	case parquet.Int64:
		if it := intType(leaf.Node); it != nil && !it.IsSigned {
			return collect(ctx, s, leaf, func(v parquet.Value) uint64 { return uint64(v.Int64()) })
		}
		return collect(ctx, s, leaf, parquet.Value.Int64)
	case parquet.Float:
		return collect(ctx, s, leaf, parquet.Value.Float)
	case parquet.Double:
		return collect(ctx, s, leaf, parquet.Value.Double)
	case parquet.ByteArray:
		return collect(ctx, s, leaf, func(v parquet.Value) string { return string(v.ByteArray()) })
	default:
		return nil, fmt.Errorf("%w: %q has parquet kind %s", container.ErrUnsupportedType, field, kind)
	}
}

// intType returns the integer annotation of a leaf, or nil for a plain
// physical integer column.
func intType(node parquet.Node) *format.IntType {
	lt := node.Type().LogicalType()
	if lt == nil {
		return nil
	}
	return lt.Integer
}

// loadInt32 narrows an INT32 column to the width its logical type declares.
func loadInt32(ctx context.Context, s *source, leaf parquet.LeafColumn) (pipeline.Column, error) {
	it := intType(leaf.Node)
	if it == nil {
		return collect(ctx, s, leaf, parquet.Value.Int32)
	}
	switch {
	case it.IsSigned && it.BitWidth == 8:
		return collect(ctx, s, leaf, func(v parquet.Value) int8 { return int8(v.Int32()) })
	case it.IsSigned && it.BitWidth == 16:
		return collect(ctx, s, leaf, func(v parquet.Value) int16 { return int16(v.Int32()) })
	case it.IsSigned:
		return collect(ctx, s, leaf, parquet.Value.Int32)
	case it.BitWidth == 8:
		return collect(ctx, s, leaf, func(v parquet.Value) uint8 { return uint8(v.Int32()) })
	case it.BitWidth == 16:
		return collect(ctx, s, leaf, func(v parquet.Value) uint16 { return uint16(v.Int32()) })
	default:
		return collect(ctx, s, leaf, func(v parquet.Value) uint32 { return uint32(v.Int32()) })
	}
}

func (s *source) Close() error {
	return s.file.Close()
}

// scan calls fn for every value of one leaf column, row group by row group.
func (s *source) scan(ctx context.Context, column int, fn func(parquet.Value) error) error {
	buf := make([]parquet.Value, 1024)
	for _, rg := range s.pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := scanChunk(rg.ColumnChunks()[column], buf, fn); err != nil {
			return err
		}
	}
	return nil
}

func scanChunk(chunk parquet.ColumnChunk, buf []parquet.Value, fn func(parquet.Value) error) error {
	pages := chunk.Pages()
	defer func() { _ = pages.Close() }()

	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read page: %w", err)
		}

		values := page.Values()
		for {
			n, err := values.ReadValues(buf)
			for _, v := range buf[:n] {
				if ferr := fn(v); ferr != nil {
					return ferr
				}
			}
			if errors.Is(err, io.EOF) || (err == nil && n == 0) {
				break
			}
			if err != nil {
				return fmt.Errorf("read values: %w", err)
			}
		}
	}
}

// collect decodes one leaf column. Non-repeated leaves become an Array;
// repeated leaves become a Matrix and must hold lists of equal length.
func collect[T pipeline.Element](ctx context.Context, s *source, leaf parquet.LeafColumn, conv func(parquet.Value) T) (pipeline.Column, error) {
	field := strings.Join(leaf.Path, container.Separator)
	repeated := leaf.MaxRepetitionLevel == 1
	data := make([]T, 0, s.pf.NumRows())

	rows, width, rowLen := 0, -1, 0
	endRow := func() error {
		if rows == 0 {
			return nil
		}
		if width < 0 {
			width = rowLen
			return nil
		}
		if rowLen != width {
			return fmt.Errorf("%w: %q row %d has %d values, want %d", container.ErrUnsupportedType, field, rows-1, rowLen, width)
		}
		return nil
	}

	err := s.scan(ctx, leaf.ColumnIndex, func(v parquet.Value) error {
		if v.IsNull() {
			return fmt.Errorf("%w: %q holds null values", container.ErrUnsupportedType, field)
		}
		if repeated && v.RepetitionLevel() == 0 {
			if err := endRow(); err != nil {
				return err
			}
			rows++
			rowLen = 0
		}
		rowLen++
		data = append(data, conv(v))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !repeated {
		return pipeline.Array[T](data), nil
	}
	if err := endRow(); err != nil {
		return nil, err
	}
	if width <= 0 {
		width = 1
	}
	return pipeline.NewMatrix(data, width)
}
