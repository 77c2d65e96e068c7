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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/shardstream/internal/logctx"
	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/container/arrowstore"
	"github.com/cardinalhq/shardstream/pkg/container/parquetstore"
	"github.com/cardinalhq/shardstream/pkg/filereader"
)

func init() {
	cmd := &cobra.Command{
		Use:   "convert [flags] shard",
		Short: "Rewrite a shard as Parquet or Arrow IPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			out, err := c.Flags().GetString("out")
			if err != nil {
				return fmt.Errorf("failed to get out flag: %w", err)
			}
			to, err := c.Flags().GetString("to")
			if err != nil {
				return fmt.Errorf("failed to get to flag: %w", err)
			}
			rowGroup, err := c.Flags().GetInt("row-group-size")
			if err != nil {
				return fmt.Errorf("failed to get row-group-size flag: %w", err)
			}
			compression, err := c.Flags().GetString("compression")
			if err != nil {
				return fmt.Errorf("failed to get compression flag: %w", err)
			}
			return runCommand("convert", func(ctx context.Context) error {
				return runConvert(ctx, args[0], out, to, rowGroup, compression)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().String("out", "", "Output file")
	cmd.Flags().String("to", "parquet", "Output format: parquet or arrow")
	cmd.Flags().Int("row-group-size", 0, "Rows per row group or record batch")
	cmd.Flags().String("compression", "snappy", "Parquet compression: snappy, zstd, gzip or none")
	if err := cmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Errorf("failed to mark out flag as required: %w", err))
	}
}

func runConvert(ctx context.Context, shard, out, to string, rowGroup int, compression string) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	fields, err := filereader.List(ctx, store, shard, "", filereader.ListOptions{Recursive: true, MustExist: true})
	if err != nil {
		return err
	}

	data, err := filereader.Read(ctx, store, []string{shard}, fields)
	if err != nil {
		return err
	}
	if data.Len() == 0 {
		return fmt.Errorf("shard %s has no samples", shard)
	}
	mf := container.NewMemoryFile()
	for _, f := range fields {
		if err := mf.Add(f, data.Column(f)); err != nil {
			return err
		}
	}

	switch to {
	case "parquet":
		err = parquetstore.WriteFile(out, mf, parquetstore.WriteOptions{RowGroupSize: rowGroup, Compression: compression})
	case "arrow":
		err = arrowstore.WriteFile(out, mf, arrowstore.WriteOptions{RecordSize: rowGroup})
	default:
		return fmt.Errorf("unknown output format %q", to)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	logctx.FromContext(ctx).Info("Converted shard",
		slog.String("shard", shard),
		slog.String("out", out),
		slog.Int("fields", len(fields)),
		slog.Int("samples", data.Len()))
	return nil
}
