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
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
)

// DefaultRecordSize is the number of rows per record batch written by Write.
const DefaultRecordSize = 8192

// WriteOptions configures Write.
type WriteOptions struct {
	// RecordSize is the number of rows per record batch.
	RecordSize int
}

// WriteFile writes the container to a new file at path. A partially
// written file is removed when writing fails.
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

// Write encodes the container as an Arrow IPC file. All fields must have the
// same number of samples.
func Write(w io.Writer, file *container.MemoryFile, opts WriteOptions) error {
	fields := file.Fields()
	if len(fields) == 0 {
		return fmt.Errorf("container has no fields")
	}
	recordSize := opts.RecordSize
	if recordSize <= 0 {
		recordSize = DefaultRecordSize
	}

	mem := memory.DefaultAllocator
	columns := make([]pipeline.Column, len(fields))
	schemaFields := make([]arrow.Field, len(fields))
	numRows := -1
	for i, name := range fields {
		col := file.Column(name)
		if numRows < 0 {
			numRows = col.Len()
		} else if col.Len() != numRows {
			return fmt.Errorf("%w: field %q has %d samples, want %d", pipeline.ErrLengthMismatch, name, col.Len(), numRows)
		}
		dt, err := dataType(col)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		columns[i] = col
		schemaFields[i] = arrow.Field{Name: name, Type: dt}
	}
	schema := arrow.NewSchema(schemaFields, nil)

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}

	for start := 0; start < numRows; start += recordSize {
		stop := min(start+recordSize, numRows)
		if err := writeRecord(fw, mem, schema, columns, start, stop); err != nil {
			_ = fw.Close()
			return err
		}
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

func writeRecord(fw *ipc.FileWriter, mem memory.Allocator, schema *arrow.Schema, columns []pipeline.Column, start, stop int) error {
	arrays := make([]arrow.Array, 0, len(columns))
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	for i, col := range columns {
		arr, err := buildArray(mem, schema.Field(i).Type, col.Slice(start, stop))
		if err != nil {
			return fmt.Errorf("field %q: %w", schema.Field(i).Name, err)
		}
		arrays = append(arrays, arr)
	}

	rec := array.NewRecordBatch(schema, arrays, int64(stop-start))
	defer rec.Release()
	if err := fw.Write(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func elemType(values any) (arrow.DataType, error) {
	switch values.(type) {
	case []bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case []int8:
		return arrow.PrimitiveTypes.Int8, nil
	case []int16:
		return arrow.PrimitiveTypes.Int16, nil
	case []int32:
		return arrow.PrimitiveTypes.Int32, nil
	case []int64:
		return arrow.PrimitiveTypes.Int64, nil
	case []uint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case []uint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case []uint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case []uint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case []float32:
		return arrow.PrimitiveTypes.Float32, nil
	case []float64:
		return arrow.PrimitiveTypes.Float64, nil
	case []string:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, fmt.Errorf("%w: %T", container.ErrUnsupportedType, values)
	}
}

func dataType(col pipeline.Column) (arrow.DataType, error) {
	dt, err := elemType(col.Values())
	if err != nil {
		return nil, err
	}
	if col.Dims() == 2 {
		return arrow.FixedSizeListOf(int32(col.Width()), dt), nil
	}
	return dt, nil
}

func buildArray(mem memory.Allocator, dt arrow.DataType, col pipeline.Column) (arrow.Array, error) {
	if fsl, ok := dt.(*arrow.FixedSizeListType); ok {
		lb := array.NewFixedSizeListBuilder(mem, fsl.Len(), fsl.Elem())
		defer lb.Release()
		for range col.Len() {
			lb.Append(true)
		}
		if err := appendValues(lb.ValueBuilder(), col.Values()); err != nil {
			return nil, err
		}
		return lb.NewArray(), nil
	}

	b := array.NewBuilder(mem, dt)
	defer b.Release()
	if err := appendValues(b, col.Values()); err != nil {
		return nil, err
	}
	return b.NewArray(), nil
}

func appendValues(b array.Builder, values any) error {
	switch v := values.(type) {
	case []bool:
		b.(*array.BooleanBuilder).AppendValues(v, nil)
	case []int8:
		b.(*array.Int8Builder).AppendValues(v, nil)
	case []int16:
		b.(*array.Int16Builder).AppendValues(v, nil)
	case []int32:
		b.(*array.Int32Builder).AppendValues(v, nil)
	case []int64:
		b.(*array.Int64Builder).AppendValues(v, nil)
	case []uint8:
		b.(*array.Uint8Builder).AppendValues(v, nil)
	case []uint16:
		b.(*array.Uint16Builder).AppendValues(v, nil)
	case []uint32:
		b.(*array.Uint32Builder).AppendValues(v, nil)
	case []uint64:
		b.(*array.Uint64Builder).AppendValues(v, nil)
	case []float32:
		b.(*array.Float32Builder).AppendValues(v, nil)
	case []float64:
		b.(*array.Float64Builder).AppendValues(v, nil)
	case []string:
		b.(*array.StringBuilder).AppendValues(v, nil)
	default:
		return fmt.Errorf("%w: %T", container.ErrUnsupportedType, values)
	}
	return nil
}
