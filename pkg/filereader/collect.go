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
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/shardstream/pipeline"
)

// BatchSource yields batches until io.EOF.
type BatchSource interface {
	Next(ctx context.Context) (*pipeline.Batch, error)
}

// Reader is a BatchSource that holds resources until closed.
type Reader interface {
	BatchSource
	Close() error
}

// CollectFrom pulls batches from src until at least target samples have been
// gathered and returns exactly target samples. When src is exhausted first,
// everything it produced is returned without error. A target of zero returns
// an empty batch without pulling.
func CollectFrom(ctx context.Context, src BatchSource, target int) (*pipeline.Batch, error) {
	if target < 0 {
		return nil, configError("target must not be negative, got %d", target)
	}
	if target == 0 {
		return pipeline.NewBatch(), nil
	}
	return collect(ctx, src, target)
}

// ReadAll drains src and concatenates every batch.
func ReadAll(ctx context.Context, src BatchSource) (*pipeline.Batch, error) {
	return collect(ctx, src, -1)
}

func collect(ctx context.Context, src BatchSource, target int) (*pipeline.Batch, error) {
	var batches []*pipeline.Batch
	total := 0
	for target < 0 || total < target {
		batch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
		total += batch.Len()
	}

	out, err := pipeline.Concat(batches)
	if err != nil {
		return nil, fmt.Errorf("concatenate %d batches: %w", len(batches), err)
	}
	if target >= 0 {
		out = out.Truncate(target)
	}
	return out, nil
}
