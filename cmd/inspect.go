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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/fieldnames"
	"github.com/cardinalhq/shardstream/pkg/filereader"
)

func init() {
	cmd := &cobra.Command{
		Use:   "inspect [flags] shard...",
		Short: "Print the sample count of every shard",
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
			return runCommand("inspect", func(ctx context.Context) error {
				return runInspect(ctx, args, fields, expand)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringSlice("fields", nil, "Field paths to count")
	cmd.Flags().Bool("expand", false, "Expand groups named in --fields to every field below them")
	if err := cmd.MarkFlagRequired("fields"); err != nil {
		panic(fmt.Errorf("failed to mark fields flag as required: %w", err))
	}
}

// resolveFields turns --fields into field paths, expanding groups against
// the first shard when requested.
func resolveFields(ctx context.Context, store container.Store, shards, names []string, expand bool) ([]string, error) {
	if !expand {
		return fieldnames.Resolve(fieldnames.LeafList(names))
	}
	groups := make(fieldnames.Groups, len(names))
	for i, n := range names {
		groups[i] = fieldnames.Group{Name: n}
	}
	return filereader.ExpandGroups(ctx, store, shards[0], groups)
}

func runInspect(ctx context.Context, shards, names []string, expand bool) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	fields, err := resolveFields(ctx, store, shards, names, expand)
	if err != nil {
		return err
	}

	infos, err := filereader.Inspect(ctx, store, shards, fields)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SHARD\tSAMPLES")
	total := 0
	for _, info := range infos {
		total += info.Samples
		_, _ = fmt.Fprintf(w, "%s\t%d\n", info.Path, info.Samples)
	}
	_, _ = fmt.Fprintf(w, "total (%d fields)\t%d\n", len(fields), total)
	return w.Flush()
}
