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

package filereader

import (
	"context"
	"fmt"

	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/container"
)

// Read loads every selected sample of shards into one batch. Looping is
// always off; shuffling, the cap and the epoch size apply as for a
// StreamingReader, and WithBatchSize is ignored.
//
// The result equals the concatenation of the batches an identically
// configured StreamingReader yields. When no samples are selected the batch
// has no fields.
func Read(ctx context.Context, store container.Store, shards []string, fields []string, opts ...Option) (*pipeline.Batch, error) {
	all := make([]Option, 0, len(opts)+2)
	all = append(all, opts...)
	all = append(all, WithBatchSize(DefaultMaterializeBatchSize), WithLoop(false))

	r, err := NewStreamingReader(ctx, store, shards, fields, all...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	batch, err := ReadAll(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("read %d shards: %w", len(shards), err)
	}
	return batch, nil
}
