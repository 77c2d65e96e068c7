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
	"io"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/shardstream/internal/logctx"
	"github.com/cardinalhq/shardstream/pipeline"
	"github.com/cardinalhq/shardstream/pkg/filereader"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type catRecord struct {
	Batch   int            `json:"batch"`
	Samples int            `json:"samples"`
	Fields  map[string]any `json:"fields"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "cat [flags] shard...",
		Short: "Stream batches as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			fields, err := c.Flags().GetStringSlice("fields")
			if err != nil {
				return fmt.Errorf("failed to get fields flag: %w", err)
			}
			expand, err := c.Flags().GetBool("expand")
			if err != nil {
				return fmt.Errorf("failed to get expand flag: %w", err)
			}
			maxBatches, err := c.Flags().GetInt("max-batches")
			if err != nil {
				return fmt.Errorf("failed to get max-batches flag: %w", err)
			}
			if err := applyReaderFlags(c); err != nil {
				return err
			}
			return runCommand("cat", func(ctx context.Context) error {
				return runCat(ctx, os.Stdout, args, fields, expand, maxBatches)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringSlice("fields", nil, "Field paths to read")
	cmd.Flags().Bool("expand", false, "Expand groups named in --fields to every field below them")
	cmd.Flags().Int("max-batches", 0, "Stop after this many batches when positive")
	cmd.Flags().Int("batch-size", 0, "Samples per batch")
	cmd.Flags().Bool("shuffle", false, "Shuffle samples within each shard")
	cmd.Flags().Bool("loop", false, "Restart at the first shard when done")
	cmd.Flags().Int("cap", 0, "Stop after this many samples in total")
	cmd.Flags().Int64("seed", 0, "Seed for shuffling")
	cmd.Flags().Int("epoch-size", 0, "Samples per loop pass")
	if err := cmd.MarkFlagRequired("fields"); err != nil {
		panic(fmt.Errorf("failed to mark fields flag as required: %w", err))
	}
}

// applyReaderFlags overrides the reader configuration with flags that were
// set on the command line.
func applyReaderFlags(c *cobra.Command) error {
	flags := c.Flags()
	var err error
	if flags.Changed("batch-size") {
		if cfg.Reader.BatchSize, err = flags.GetInt("batch-size"); err != nil {
			return err
		}
	}
	if flags.Changed("shuffle") {
		if cfg.Reader.Shuffle, err = flags.GetBool("shuffle"); err != nil {
			return err
		}
	}
	if flags.Changed("loop") {
		if cfg.Reader.Loop, err = flags.GetBool("loop"); err != nil {
			return err
		}
	}
	if flags.Changed("cap") {
		if cfg.Reader.Cap, err = flags.GetInt("cap"); err != nil {
			return err
		}
	}
	if flags.Changed("seed") {
		if cfg.Reader.Seed, err = flags.GetInt64("seed"); err != nil {
			return err
		}
	}
	if flags.Changed("epoch-size") {
		if cfg.Reader.EpochSize, err = flags.GetInt("epoch-size"); err != nil {
			return err
		}
	}
	return nil
}

func runCat(ctx context.Context, out io.Writer, shards, names []string, expand bool, maxBatches int) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	fields, err := resolveFields(ctx, store, shards, names, expand)
	if err != nil {
		return err
	}

	r, err := filereader.NewStreamingReader(ctx, store, shards, fields, cfg.ReaderOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	enc := json.NewEncoder(out)
	n := 0
	for batch, err := range r.Batches(ctx) {
		if err != nil {
			return err
		}
		if err := enc.Encode(toRecord(n, batch)); err != nil {
			return fmt.Errorf("failed to write batch %d: %w", n, err)
		}
		n++
		if maxBatches > 0 && n >= maxBatches {
			break
		}
	}

	logctx.FromContext(ctx).Info("Streamed batches",
		slog.Int("batches", n),
		slog.Int("samples", r.Yielded()),
		slog.Int("passes", r.Loops()+1))
	return nil
}

func toRecord(i int, b *pipeline.Batch) catRecord {
	rec := catRecord{Batch: i, Samples: b.Len(), Fields: make(map[string]any, b.NumFields())}
	for _, f := range b.Fields() {
		col := b.Column(f)
		if col.Dims() == 1 {
			rec.Fields[f] = col.Values()
			continue
		}
		rows := make([]any, col.Len())
		for j := range rows {
			rows[j] = col.Value(j)
		}
		rec.Fields[f] = rows
	}
	return rec
}
