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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/shardstream/pkg/filereader"
)

func init() {
	var opts filereader.ListOptions
	var group string

	cmd := &cobra.Command{
		Use:   "ls [flags] shard",
		Short: "List the fields or groups of a shard",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand("ls", func(ctx context.Context) error {
				return runList(ctx, args[0], group, opts)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&group, "group", "", "Group to list, the root when empty")
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "Descend into subgroups")
	cmd.Flags().BoolVar(&opts.Groups, "groups", false, "List groups instead of fields")
	cmd.Flags().StringVar(&opts.Regex, "regex", "", "Only list names matching this expression")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "List at most this many names")
	cmd.Flags().BoolVar(&opts.MustExist, "must-exist", true, "Fail when the group does not exist")
}

func runList(ctx context.Context, shard, group string, opts filereader.ListOptions) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	names, err := filereader.List(ctx, store, shard, group, opts)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}
