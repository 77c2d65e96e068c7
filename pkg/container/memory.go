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
	"sync"
	"sync/atomic"

	"github.com/cardinalhq/shardstream/pipeline"
)

// MemoryFile is an in-memory container. Fields may have different lengths;
// readers are expected to detect that.
type MemoryFile struct {
	tree    *Tree
	columns map[string]pipeline.Column
}

// NewMemoryFile returns an empty container.
func NewMemoryFile() *MemoryFile {
	return &MemoryFile{
		tree:    NewTree(),
		columns: make(map[string]pipeline.Column),
	}
}

// Add stores col under field.
func (f *MemoryFile) Add(field string, col pipeline.Column) error {
	if col == nil {
		return fmt.Errorf("nil column for field %q", field)
	}
	if err := f.tree.Add(field); err != nil {
		return err
	}
	f.columns[CleanPath(field)] = col
	return nil
}

// MustAdd is like Add but panics on error. It is intended for tests and
// fixtures.
func (f *MemoryFile) MustAdd(field string, col pipeline.Column) *MemoryFile {
	if err := f.Add(field, col); err != nil {
		panic(err)
	}
	return f
}

// Fields returns the field paths of the container.
func (f *MemoryFile) Fields() []string {
	return f.tree.Fields()
}

// Column returns the column stored under field, or nil.
func (f *MemoryFile) Column(field string) pipeline.Column {
	return f.columns[CleanPath(field)]
}

// MemoryStore keeps containers in memory, keyed by path.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	files  map[string]*MemoryFile
	active atomic.Int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*MemoryFile)}
}

// Put stores f at path, replacing any previous container.
func (s *MemoryStore) Put(path string, f *MemoryFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = f
}

// Delete removes the container at path. Handles that are already open keep
// working.
func (s *MemoryStore) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

// OpenHandles returns the number of handles opened and not yet closed.
func (s *MemoryStore) OpenHandles() int {
	return int(s.active.Load())
}

func (s *MemoryStore) Open(_ context.Context, path string) (Handle, error) {
	s.mu.RLock()
	f, ok := s.files[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: container %q", ErrNotFound, path)
	}

	s.active.Add(1)
	return NewHandle(path, f.tree, &memorySource{file: f, store: s}), nil
}

type memorySource struct {
	file  *MemoryFile
	store *MemoryStore
}

func (m *memorySource) Length(_ context.Context, field string) (int, error) {
	return m.file.columns[field].Len(), nil
}

func (m *memorySource) Load(_ context.Context, field string) (pipeline.Column, error) {
	return m.file.columns[field], nil
}

func (m *memorySource) Close() error {
	m.store.active.Add(-1)
	return nil
}
