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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsOutCounter      otelmetric.Int64Counter
	batchesOutCounter   otelmetric.Int64Counter
	shardsOpenedCounter otelmetric.Int64Counter
	loopsCounter        otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/shardstream/pkg/filereader")

	var err error
	rowsOutCounter, err = meter.Int64Counter(
		"shardstream.reader.rows.out",
		otelmetric.WithDescription("Number of samples returned by streaming readers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.out counter: %w", err))
	}

	batchesOutCounter, err = meter.Int64Counter(
		"shardstream.reader.batches.out",
		otelmetric.WithDescription("Number of batches returned by streaming readers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create batches.out counter: %w", err))
	}

	shardsOpenedCounter, err = meter.Int64Counter(
		"shardstream.reader.shards.opened",
		otelmetric.WithDescription("Number of shard handles opened by streaming readers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create shards.opened counter: %w", err))
	}

	loopsCounter, err = meter.Int64Counter(
		"shardstream.reader.loops",
		otelmetric.WithDescription("Number of times a looping reader restarted at the first shard"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create loops counter: %w", err))
	}
}

var readerAttr = otelmetric.WithAttributes(attribute.String("reader", "StreamingReader"))

func recordBatch(ctx context.Context, rows int) {
	rowsOutCounter.Add(ctx, int64(rows), readerAttr)
	batchesOutCounter.Add(ctx, 1, readerAttr)
}

func recordShardOpened(ctx context.Context) {
	shardsOpenedCounter.Add(ctx, 1, readerAttr)
}

func recordLoop(ctx context.Context) {
	loopsCounter.Add(ctx, 1, readerAttr)
}
