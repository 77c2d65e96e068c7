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
	"regexp"

	"github.com/cardinalhq/shardstream/pkg/container"
	"github.com/cardinalhq/shardstream/pkg/fieldnames"
)

// ListOptions controls List.
type ListOptions struct {
	// Recursive descends into subgroups.
	Recursive bool

	// Groups lists group names instead of fields.
	Groups bool

	// Regex keeps only names matching the expression.
	Regex string

	// Limit keeps at most this many names when positive.
	Limit int

	// MustExist makes a missing group an error. Otherwise List returns nil.
	MustExist bool
}

// List returns the names under group in one shard, relative to group and in
// container order.
func List(ctx context.Context, store container.Store, shard, group string, opts ListOptions) ([]string, error) {
	var re *regexp.Regexp
	if opts.Regex != "" {
		var err error
		if re, err = regexp.Compile(opts.Regex); err != nil {
			return nil, configError("bad regex %q: %v", opts.Regex, err)
		}
	}

	h, err := store.Open(ctx, shard)
	if err != nil {
		return nil, &ShardError{Kind: ErrIO, Shard: shard, Cause: err}
	}
	defer func() { _ = h.Close() }()

	names, err := listGroup(ctx, h, container.CleanPath(group), "", opts)
	if err != nil {
		if errors.Is(err, container.ErrNotFound) && !opts.MustExist {
			return nil, nil
		}
		return nil, &ShardError{Kind: ErrFieldNotFound, Shard: shard, Field: group, Cause: err}
	}

	if re != nil {
		kept := names[:0]
		for _, n := range names {
			if re.MatchString(n) {
				kept = append(kept, n)
			}
		}
		names = kept
	}
	if opts.Limit > 0 && len(names) > opts.Limit {
		names = names[:opts.Limit]
	}
	return names, nil
}

func listGroup(ctx context.Context, h container.Handle, group, prefix string, opts ListOptions) ([]string, error) {
	members, err := h.Members(ctx, group)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range members {
		name := m.Name
		if prefix != "" {
			name = prefix + container.Separator + m.Name
		}
		if !m.Group {
			if !opts.Groups {
				names = append(names, name)
			}
			continue
		}
		if opts.Groups {
			names = append(names, name)
		}
		if opts.Recursive {
			sub, err := listGroup(ctx, h, joinPath(group, m.Name), name, opts)
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
		}
	}
	return names, nil
}

func joinPath(group, name string) string {
	if group == "" {
		return name
	}
	return group + container.Separator + name
}

// ExpandGroups resolves spec against one shard. A group given without
// leaves that is a group in the shard expands to all fields below it;
// otherwise it stays a field path, as with fieldnames.Resolve.
func ExpandGroups(ctx context.Context, store container.Store, shard string, spec fieldnames.Spec) ([]string, error) {
	var groups fieldnames.Groups
	switch s := spec.(type) {
	case fieldnames.Group:
		groups = fieldnames.Groups{s}
	case fieldnames.Groups:
		groups = s
	default:
		return fieldnames.Resolve(spec)
	}

	h, err := store.Open(ctx, shard)
	if err != nil {
		return nil, &ShardError{Kind: ErrIO, Shard: shard, Cause: err}
	}
	defer func() { _ = h.Close() }()

	expanded := make(fieldnames.Groups, 0, len(groups))
	for _, g := range groups {
		if g.Child != nil {
			expanded = append(expanded, g)
			continue
		}
		leaves, err := listGroup(ctx, h, container.CleanPath(g.Name), "", ListOptions{Recursive: true})
		switch {
		case err == nil && len(leaves) > 0:
			expanded = append(expanded, fieldnames.Group{Name: g.Name, Child: fieldnames.LeafList(leaves)})
		case err == nil, errors.Is(err, container.ErrNotGroup), errors.Is(err, container.ErrNotFound):
			expanded = append(expanded, g)
		default:
			return nil, fmt.Errorf("expand group %q in %s: %w", g.Name, shard, err)
		}
	}
	return fieldnames.Resolve(expanded)
}
