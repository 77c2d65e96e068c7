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

package cmd

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/container/arrowstore"
	"github.com/cardinalhq/shardstream/pkg/container/blob"
	"github.com/cardinalhq/shardstream/pkg/container/parquetstore"
)

var arrowExtensions = []string{".arrow", ".ipc", ".feather"}

// autoStore picks the backend from the shard's extension, ignoring a
// trailing compression suffix. Unknown extensions are read as Parquet.
type autoStore struct {
	parquet container.Store
	arrow   container.Store
}

func (s autoStore) Open(ctx context.Context, p string) (container.Handle, error) {
	if isArrow(p) {
		return s.arrow.Open(ctx, p)
	}
	return s.parquet.Open(ctx, p)
}

func isArrow(p string) bool {
	base := path.Base(p)
	for _, c := range []blob.Compression{blob.Zstd, blob.Gzip} {
		base = strings.TrimSuffix(base, c.Extension)
	}
	ext := path.Ext(base)
	for _, a := range arrowExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func openStore(ctx context.Context) (container.Store, error) {
	fetcher, err := cfg.Fetcher(ctx)
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "parquet":
		return parquetstore.New(fetcher), nil
	case "arrow":
		return arrowstore.New(fetcher), nil
	case "", "auto":
		return autoStore{parquet: parquetstore.New(fetcher), arrow: arrowstore.New(fetcher)}, nil
	default:
		return nil, fmt.Errorf("unknown container format %q", cfg.Format)
	}
}
