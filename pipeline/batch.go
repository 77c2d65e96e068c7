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

// Package pipeline holds the columnar batch model shared by every reader:
// a Batch maps field paths to equally long Columns.
package pipeline

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Batch is an ordered mapping from field path to Column. Every column in a
// batch has the same number of samples, so row i of every field refers to
// the same original sample.
type Batch struct {
	fields  []string
	columns map[string]Column
	n       int
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{columns: make(map[string]Column)}
}

// Set stores col under field. The first column fixes the batch length; later
// columns must match it. Replacing a field keeps its position.
func (b *Batch) Set(field string, col Column) error {
	if col == nil {
		return fmt.Errorf("nil column for field %q", field)
	}
	_, exists := b.columns[field]
	onlyField := exists && len(b.fields) == 1
	if len(b.fields) > 0 && !onlyField && col.Len() != b.n {
		return fmt.Errorf("%w: field %q has %d samples, batch has %d", ErrLengthMismatch, field, col.Len(), b.n)
	}
	if !exists {
		b.fields = append(b.fields, field)
	}
	b.columns[field] = col
	b.n = col.Len()
	return nil
}

// Column returns the column for field, or nil when the batch has no such field.
func (b *Batch) Column(field string) Column {
	return b.columns[field]
}

// Fields returns the field paths in insertion order.
func (b *Batch) Fields() []string {
	out := make([]string, len(b.fields))
	copy(out, b.fields)
	return out
}

// NumFields returns the number of fields.
func (b *Batch) NumFields() int {
	return len(b.fields)
}

// Len returns the number of samples.
func (b *Batch) Len() int {
	return b.n
}

// Slice returns samples [start, stop) of every field.
func (b *Batch) Slice(start, stop int) *Batch {
	out := &Batch{
		fields:  b.Fields(),
		columns: make(map[string]Column, len(b.fields)),
		n:       stop - start,
	}
	for _, f := range b.fields {
		out.columns[f] = b.columns[f].Slice(start, stop)
	}
	return out
}

// Take returns the samples at indices from every field, in index order.
func (b *Batch) Take(indices []int) *Batch {
	out := &Batch{
		fields:  b.Fields(),
		columns: make(map[string]Column, len(b.fields)),
		n:       len(indices),
	}
	for _, f := range b.fields {
		out.columns[f] = b.columns[f].Take(indices)
	}
	return out
}

// Truncate returns the first n samples. It returns b itself when b already
// holds n samples or fewer.
func (b *Batch) Truncate(n int) *Batch {
	if n >= b.n {
		return b
	}
	if n < 0 {
		n = 0
	}
	return b.Slice(0, n)
}

// Equal reports whether both batches hold the same fields with identical
// values in identical order. NaN compares equal to NaN. Field insertion order
// is not compared.
func (b *Batch) Equal(o *Batch) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.n != o.n || len(b.fields) != len(o.fields) {
		return false
	}
	for _, f := range b.fields {
		oc, ok := o.columns[f]
		if !ok {
			return false
		}
		if !b.columns[f].equal(oc) {
			return false
		}
	}
	return true
}

// Fingerprint hashes field names, element types and values in field order.
// Two batches with the same fingerprint hold the same data.
func (b *Batch) Fingerprint() uint64 {
	d := xxhash.New()
	for _, f := range b.fields {
		_, _ = d.WriteString(f)
		_, _ = d.Write([]byte{0})
		b.columns[f].hash(d)
	}
	return d.Sum64()
}

// Concat joins batches along the sample axis. All batches must hold the same
// field set; the field order of the first batch is kept.
func Concat(batches []*Batch) (*Batch, error) {
	if len(batches) == 0 {
		return NewBatch(), nil
	}
	if len(batches) == 1 {
		return batches[0], nil
	}

	first := batches[0]
	out := NewBatch()
	for _, f := range first.fields {
		cols := make([]Column, 0, len(batches))
		for i, batch := range batches {
			c, ok := batch.columns[f]
			if !ok {
				return nil, fmt.Errorf("batch %d has no field %q", i, f)
			}
			cols = append(cols, c)
		}
		joined, err := ConcatColumns(cols...)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f, err)
		}
		if err := out.Set(f, joined); err != nil {
			return nil, err
		}
	}
	for i, batch := range batches[1:] {
		if len(batch.fields) != len(first.fields) {
			return nil, fmt.Errorf("batch %d has %d fields, want %d", i+1, len(batch.fields), len(first.fields))
		}
	}
	return out, nil
}
