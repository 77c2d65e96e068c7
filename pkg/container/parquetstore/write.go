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

package parquetstore

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
)

// DefaultRowGroupSize is the number of rows per row group written by Write.
const DefaultRowGroupSize = 10000

// WriteOptions configures Write.
type WriteOptions struct {
	// RowGroupSize is the number of rows per row group.
	RowGroupSize int

	// Compression is one of "snappy" (default), "zstd", "gzip" or "none".
	Compression string
}

func (o WriteOptions) compression() (parquet.WriterOption, error) {
	switch o.Compression {
	case "", "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "none":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, fmt.Errorf("unknown parquet compression %q", o.Compression)
	}
}

// WriteFile writes the container to a new file at path. The file is removed
// again when writing fails.
func WriteFile(path string, file *container.MemoryFile, opts WriteOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return Write(f, file, opts)
}

// Write encodes the container as Parquet. All fields must have the same
// number of samples. Every pipeline element type is supported: integers
// narrower than 64 bits are stored in INT32 columns with an integer logical
// type. Matrices are written as repeated leaves.
func Write(w io.Writer, file *container.MemoryFile, opts WriteOptions) error {
	fields := file.Fields()
	if len(fields) == 0 {
		return fmt.Errorf("container has no fields")
	}
	compression, err := opts.compression()
	if err != nil {
		return err
	}
	rowGroupSize := opts.RowGroupSize
	if rowGroupSize <= 0 {
		rowGroupSize = DefaultRowGroupSize
	}

	root := newGroupNode()
	encoders := make(map[string]*encoder, len(fields))
	numRows := -1
	for _, field := range fields {
		col := file.Column(field)
		if numRows < 0 {
			numRows = col.Len()
		} else if col.Len() != numRows {
			return fmt.Errorf("%w: field %q has %d samples, want %d", pipeline.ErrLengthMismatch, field, col.Len(), numRows)
		}
		enc, err := newEncoder(col)
		if err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
		encoders[field] = enc
		root.insert(container.SplitPath(field), enc.node)
	}

	schema := parquet.NewSchema("shard", root.build())
	columns := schema.Columns()
	ordered := make([]*encoder, len(columns))
	for i, path := range columns {
		ordered[i] = encoders[strings.Join(path, container.Separator)]
	}

	pw := parquet.NewWriter(w, schema, compression)
	for start := 0; start < numRows; start += rowGroupSize {
		stop := min(start+rowGroupSize, numRows)
		buf := parquet.NewBuffer(schema)
		rows := make([]parquet.Row, 0, stop-start)
		for i := start; i < stop; i++ {
			rows = append(rows, buildRow(ordered, i))
		}
		if _, err := buf.WriteRows(rows); err != nil {
			_ = pw.Close()
			return fmt.Errorf("buffer rows: %w", err)
		}
		if _, err := pw.WriteRowGroup(buf); err != nil {
			_ = pw.Close()
			return fmt.Errorf("write row group: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func buildRow(encoders []*encoder, i int) parquet.Row {
	var row parquet.Row
	for colIdx, enc := range encoders {
		if !enc.repeated {
			row = append(row, enc.value(i).Level(0, 0, colIdx))
			continue
		}
		base := i * enc.width
		for j := range enc.width {
			rep := 1
			if j == 0 {
				rep = 0
			}
			row = append(row, enc.value(base+j).Level(rep, 1, colIdx))
		}
	}
	return row
}

// encoder turns the flat values of one column into parquet values.
type encoder struct {
	node     parquet.Node
	repeated bool
	width    int
	value    func(k int) parquet.Value
}

func newEncoder(col pipeline.Column) (*encoder, error) {
	enc := &encoder{width: col.Width(), repeated: col.Dims() == 2}

	switch v := col.Values().(type) {
	case []bool:
		enc.node = parquet.Leaf(parquet.BooleanType)
		enc.value = func(k int) parquet.Value { return parquet.BooleanValue(v[k]) }
	case []int8:
		enc.node = parquet.Int(8)
		enc.value = func(k int) parquet.Value { return parquet.Int32Value(int32(v[k])) }
	case []int16:
		enc.node = parquet.Int(16)
		enc.value = func(k int) parquet.Value { return parquet.Int32Value(int32(v[k])) }
	case []int32:
		enc.node = parquet.Int(32)
		enc.value = func(k int) parquet.Value { return parquet.Int32Value(v[k]) }
	case []int64:
		enc.node = parquet.Int(64)
		enc.value = func(k int) parquet.Value { return parquet.Int64Value(v[k]) }
	case []uint8:
		enc.node = parquet.Uint(8)
		enc.value = func(k int) parquet.Value { return parquet.Int32Value(int32(v[k])) }
	case []uint16:
		enc.node = parquet.Uint(16)
		enc.value = func(k int) parquet.Value { return parquet.Int32Value(int32(v[k])) }
	case []uint32:
		enc.node = parquet.Uint(32)
		enc.value = func(k int) parquet.Value { return parquet.Int32Value(int32(v[k])) }
	case []uint64:
		enc.node = parquet.Uint(64)
		enc.value = func(k int) parquet.Value { return parquet.Int64Value(int64(v[k])) }
	case []float32:
		enc.node = parquet.Leaf(parquet.FloatType)
		enc.value = func(k int) parquet.Value { return parquet.FloatValue(v[k]) }
	case []float64:
		enc.node = parquet.Leaf(parquet.DoubleType)
		enc.value = func(k int) parquet.Value { return parquet.DoubleValue(v[k]) }
	case []string:
		enc.node = parquet.String()
		enc.value = func(k int) parquet.Value { return parquet.ByteArrayValue([]byte(v[k])) }
	default:
		return nil, fmt.Errorf("%w: %T", container.ErrUnsupportedType, col)
	}

	if enc.repeated {
		enc.node = parquet.Repeated(enc.node)
	}
	return enc, nil
}

// groupNode assembles the nested parquet groups of a container.
type groupNode struct {
	children map[string]*groupNode
	leaf     parquet.Node
}

func newGroupNode() *groupNode {
	return &groupNode{children: make(map[string]*groupNode)}
}

func (g *groupNode) insert(path []string, leaf parquet.Node) {
	if len(path) == 1 {
		g.children[path[0]] = &groupNode{leaf: leaf}
		return
	}
	child, ok := g.children[path[0]]
	if !ok {
		child = newGroupNode()
		g.children[path[0]] = child
	}
	child.insert(path[1:], leaf)
}

func (g *groupNode) build() parquet.Node {
	if g.leaf != nil {
		return g.leaf
	}
	group := make(parquet.Group, len(g.children))
	for name, child := range g.children {
		group[name] = child.build()
	}
	return group
}
