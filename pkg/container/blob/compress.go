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

package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies a whole-file compression format by extension.
type Compression struct {
	// Name identifies the format, for example "zstd".
	Name string

	// Extension is the file suffix, for example ".zst".
	Extension string

	// Decompress wraps a reader with decompression.
	Decompress func(r io.Reader) (io.ReadCloser, error)
}

// Zstd decompresses ".zst" shards.
var Zstd = Compression{
	Name:      "zstd",
	Extension: ".zst",
	Decompress: func(r io.Reader) (io.ReadCloser, error) {
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	},
}

// Gzip decompresses ".gz" shards.
var Gzip = Compression{
	Name:      "gzip",
	Extension: ".gz",
	Decompress: func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
}

// Decompressing wraps a Fetcher and transparently decompresses shards whose
// path ends in one of the configured extensions. Other paths pass through.
type Decompressing struct {
	next    Fetcher
	formats []Compression
	tmpDir  string
}

var _ Fetcher = (*Decompressing)(nil)

// NewDecompressing returns a fetcher that decompresses into tmpDir (the
// system default when empty). With no formats, Zstd and Gzip are used.
func NewDecompressing(next Fetcher, tmpDir string, formats ...Compression) *Decompressing {
	if len(formats) == 0 {
		formats = []Compression{Zstd, Gzip}
	}
	return &Decompressing{next: next, formats: formats, tmpDir: tmpDir}
}

func (d *Decompressing) format(path string) (Compression, bool) {
	for _, c := range d.formats {
		if strings.HasSuffix(path, c.Extension) {
			return c, true
		}
	}
	return Compression{}, false
}

func (d *Decompressing) Fetch(ctx context.Context, path string) (File, error) {
	src, err := d.next.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	c, ok := d.format(path)
	if !ok {
		return src, nil
	}
	defer func() { _ = src.Close() }()

	rc, err := c.Decompress(src)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s stream: %w", path, c.Name, err)
	}
	defer func() { _ = rc.Close() }()

	tmp, err := os.CreateTemp(d.tmpDir, "shard-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%s: decompress %s: %w", path, c.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	return openTemp(path, tmp.Name())
}
