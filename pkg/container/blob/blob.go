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

// Package blob resolves shard paths to local random-access files.
//
// Container backends need io.ReaderAt access with a known size. A Fetcher
// provides that for local files directly and for remote or compressed shards
// by materializing them into a temporary file that is removed on Close.
package blob

import (
	"context"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
)

// File is a random access view of one shard's bytes.
type File interface {
	io.ReaderAt
	io.ReadSeeker

	// Name returns the path the file was fetched with.
	Name() string

	// Size returns the number of bytes.
	Size() int64

	// Close releases the file and removes any temporary copy.
	Close() error
}

// Fetcher resolves a shard path to a File.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (File, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) (File, error)

func (f FetcherFunc) Fetch(ctx context.Context, path string) (File, error) {
	return f(ctx, path)
}

// osFile is a File backed by an open *os.File. When temp is set the file is
// removed on Close.
type osFile struct {
	*os.File
	name string
	size int64
	temp bool
}

func (f *osFile) Name() string { return f.name }
func (f *osFile) Size() int64  { return f.size }

func (f *osFile) Close() error {
	var result *multierror.Error
	if err := f.File.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if f.temp {
		if err := os.Remove(f.File.Name()); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// openTemp opens a temporary file written by one of the fetchers. The file
// is removed if it cannot be opened.
func openTemp(name, tmpPath string) (File, error) {
	f, err := os.Open(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return nil, err
	}
	return &osFile{File: f, name: name, size: st.Size(), temp: true}, nil
}
