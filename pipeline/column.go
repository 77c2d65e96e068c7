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

package pipeline

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrColumnMismatch is returned when columns of different element types
	// or widths are combined.
	ErrColumnMismatch = errors.New("column type mismatch")

	// ErrLengthMismatch is returned when a column does not have the same
	// number of samples as the other columns of a batch.
	ErrLengthMismatch = errors.New("column length mismatch")
)

// Element is the set of value types a Column can hold.
type Element interface {
	~bool |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		~string
}

// Column is an ordered array of samples for one field.
//
// Every selection, sequential or shuffled, goes through Slice or Take, so a
// batch is always "an index list applied to a column".
type Column interface {
	// Len returns the number of samples.
	Len() int

	// Width returns the number of values per sample. It is 1 for Array.
	Width() int

	// Dims returns 1 for arrays and 2 for matrices.
	Dims() int

	// Slice returns samples [start, stop). The result may share memory with
	// the receiver but never grows into it.
	Slice(start, stop int) Column

	// Take returns the samples at the given indices, in that order.
	Take(indices []int) Column

	// Value returns sample i. Arrays return a scalar, matrices a []T row.
	Value(i int) any

	// Values returns the flat backing slice ([]T).
	Values() any

	concat(others []Column) (Column, error)
	hash(d *xxhash.Digest)
	equal(o Column) bool
}

// sameValues compares element by element. NaN equals NaN so that a batch
// always equals a copy of itself.
func sameValues[T Element](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		w := b[i]
		if v != w && (v == v || w == w) {
			return false
		}
	}
	return true
}

// ConcatColumns joins columns of identical element type and width along the
// sample axis.
func ConcatColumns(cols ...Column) (Column, error) {
	if len(cols) == 0 {
		return nil, errors.New("no columns to concatenate")
	}
	if len(cols) == 1 {
		return cols[0], nil
	}
	return cols[0].concat(cols[1:])
}

// -----------------------------------------------------------------------------
// Array
// -----------------------------------------------------------------------------

// Array is a one-dimensional column: one value per sample.
type Array[T Element] []T

var _ Column = Array[int64](nil)

func (a Array[T]) Len() int   { return len(a) }
func (a Array[T]) Width() int { return 1 }
func (a Array[T]) Dims() int  { return 1 }

func (a Array[T]) Slice(start, stop int) Column {
	return a[start:stop:stop]
}

func (a Array[T]) Take(indices []int) Column {
	out := make(Array[T], len(indices))
	for i, idx := range indices {
		out[i] = a[idx]
	}
	return out
}

func (a Array[T]) Value(i int) any { return a[i] }
func (a Array[T]) Values() any     { return []T(a) }

func (a Array[T]) concat(others []Column) (Column, error) {
	n := len(a)
	for i, c := range others {
		o, ok := c.(Array[T])
		if !ok {
			return nil, fmt.Errorf("%w: column %d is %T, want %T", ErrColumnMismatch, i+1, c, a)
		}
		n += len(o)
	}
	out := make(Array[T], 0, n)
	out = append(out, a...)
	for _, c := range others {
		out = append(out, c.(Array[T])...)
	}
	return out, nil
}

func (a Array[T]) equal(o Column) bool {
	b, ok := o.(Array[T])
	return ok && sameValues(a, b)
}

func (a Array[T]) hash(d *xxhash.Digest) {
	var buf []byte
	buf = fmt.Appendf(buf, "%T/1\x00", a)
	for _, v := range a {
		buf = fmt.Appendf(buf, "%v\x00", v)
		if len(buf) > 4096 {
			_, _ = d.Write(buf)
			buf = buf[:0]
		}
	}
	_, _ = d.Write(buf)
}

// -----------------------------------------------------------------------------
// Matrix
// -----------------------------------------------------------------------------

// Matrix is a two-dimensional column stored row-major: every sample is a row
// of Width values.
type Matrix[T Element] struct {
	data  []T
	width int
}

var _ Column = Matrix[float32]{}

// NewMatrix wraps row-major data with the given row width.
func NewMatrix[T Element](data []T, width int) (Matrix[T], error) {
	if width <= 0 {
		return Matrix[T]{}, fmt.Errorf("matrix width must be positive, got %d", width)
	}
	if len(data)%width != 0 {
		return Matrix[T]{}, fmt.Errorf("matrix data length %d is not a multiple of width %d", len(data), width)
	}
	return Matrix[T]{data: data, width: width}, nil
}

func (m Matrix[T]) Len() int {
	if m.width == 0 {
		return 0
	}
	return len(m.data) / m.width
}

func (m Matrix[T]) Width() int { return m.width }
func (m Matrix[T]) Dims() int  { return 2 }

func (m Matrix[T]) Slice(start, stop int) Column {
	lo, hi := start*m.width, stop*m.width
	return Matrix[T]{data: m.data[lo:hi:hi], width: m.width}
}

func (m Matrix[T]) Take(indices []int) Column {
	out := make([]T, 0, len(indices)*m.width)
	for _, idx := range indices {
		out = append(out, m.Row(idx)...)
	}
	return Matrix[T]{data: out, width: m.width}
}

// Row returns sample i as a slice of Width values.
func (m Matrix[T]) Row(i int) []T {
	lo, hi := i*m.width, (i+1)*m.width
	return m.data[lo:hi:hi]
}

func (m Matrix[T]) Value(i int) any { return m.Row(i) }
func (m Matrix[T]) Values() any     { return m.data }

func (m Matrix[T]) concat(others []Column) (Column, error) {
	n := len(m.data)
	for i, c := range others {
		o, ok := c.(Matrix[T])
		if !ok {
			return nil, fmt.Errorf("%w: column %d is %T, want %T", ErrColumnMismatch, i+1, c, m)
		}
		if o.width != m.width {
			return nil, fmt.Errorf("%w: column %d has width %d, want %d", ErrColumnMismatch, i+1, o.width, m.width)
		}
		n += len(o.data)
	}
	out := make([]T, 0, n)
	out = append(out, m.data...)
	for _, c := range others {
		out = append(out, c.(Matrix[T]).data...)
	}
	return Matrix[T]{data: out, width: m.width}, nil
}

func (m Matrix[T]) equal(o Column) bool {
	b, ok := o.(Matrix[T])
	return ok && b.width == m.width && sameValues(m.data, b.data)
}

func (m Matrix[T]) hash(d *xxhash.Digest) {
	var buf []byte
	buf = fmt.Appendf(buf, "%T/%d\x00", m, m.width)
	for _, v := range m.data {
		buf = fmt.Appendf(buf, "%v\x00", v)
		if len(buf) > 4096 {
			_, _ = d.Write(buf)
			buf = buf[:0]
		}
	}
	_, _ = d.Write(buf)
}
