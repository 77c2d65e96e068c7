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

package fieldnames

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrConfiguration marks an invalid specification.
var ErrConfiguration = errors.New("configuration error")

// Separator joins a group name and a leaf name.
const Separator = "/"

// Spec is a field-name specification. It is implemented by Leaf, LeafList,
// Group and Groups only.
type Spec interface {
	spec()
}

// Leaf is a single field name.
type Leaf string

// LeafList is an ordered list of field names.
type LeafList []string

// Group names a group of fields. A nil Child means the group name is itself
// the field path. Child may be a Leaf or a LeafList; anything deeper is a
// configuration error.
type Group struct {
	Name  string
	Child Spec
}

// Groups is an ordered list of groups.
type Groups []Group

func (Leaf) spec()     {}
func (LeafList) spec() {}
func (Group) spec()    {}
func (Groups) spec()   {}

// Leaves is shorthand for LeafList{names...}.
func Leaves(names ...string) LeafList {
	return LeafList(names)
}

// Resolve flattens spec into field paths.
func Resolve(spec Spec) ([]string, error) {
	r := resolver{seen: mapset.NewThreadUnsafeSet[string]()}

	switch s := spec.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty field specification", ErrConfiguration)
	case Leaf:
		if err := r.add(string(s)); err != nil {
			return nil, err
		}
	case LeafList:
		for _, name := range s {
			if err := r.add(name); err != nil {
				return nil, err
			}
		}
	case Group:
		if err := r.group(s); err != nil {
			return nil, err
		}
	case Groups:
		for _, g := range s {
			if err := r.group(g); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported specification %T", ErrConfiguration, spec)
	}

	if len(r.paths) == 0 {
		return nil, fmt.Errorf("%w: specification resolves to no fields", ErrConfiguration)
	}
	return r.paths, nil
}

// MustResolve is like Resolve but panics on error. It is intended for
// package-level variables and tests.
func MustResolve(spec Spec) []string {
	paths, err := Resolve(spec)
	if err != nil {
		panic(err)
	}
	return paths
}

// Join builds a field path from a group and a leaf.
func Join(group, leaf string) string {
	return group + Separator + leaf
}

type resolver struct {
	paths []string
	seen  mapset.Set[string]
}

func (r *resolver) add(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty field name", ErrConfiguration)
	}
	if r.seen.Add(path) {
		r.paths = append(r.paths, path)
	}
	return nil
}

func (r *resolver) group(g Group) error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: empty group name", ErrConfiguration)
	}

	switch c := g.Child.(type) {
	case nil:
		return r.add(g.Name)
	case Leaf:
		if c == "" {
			return fmt.Errorf("%w: empty leaf in group %q", ErrConfiguration, g.Name)
		}
		return r.add(Join(g.Name, string(c)))
	case LeafList:
		for _, leaf := range c {
			if leaf == "" {
				return fmt.Errorf("%w: empty leaf in group %q", ErrConfiguration, g.Name)
			}
			if err := r.add(Join(g.Name, leaf)); err != nil {
				return err
			}
		}
		return nil
	case Group, Groups:
		return fmt.Errorf("%w: group %q nests another group; only one level is supported", ErrConfiguration, g.Name)
	default:
		return fmt.Errorf("%w: group %q has unsupported child %T", ErrConfiguration, g.Name, g.Child)
	}
}
