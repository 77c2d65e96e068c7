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

package container

import (
	"fmt"
	"strings"
)

// Tree records the group hierarchy of a container in insertion order.
type Tree struct {
	root *node
}

type node struct {
	name     string
	leaf     bool
	children []*node
	index    map[string]*node
}

func newNode(name string, leaf bool) *node {
	n := &node{name: name, leaf: leaf}
	if !leaf {
		n.index = make(map[string]*node)
	}
	return n
}

// NewTree returns a tree holding only the root group.
func NewTree() *Tree {
	return &Tree{root: newNode("", false)}
}

// TreeOf builds a tree from field paths.
func TreeOf(fields ...string) (*Tree, error) {
	t := NewTree()
	for _, f := range fields {
		if err := t.Add(f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add records a field, creating its parent groups.
func (t *Tree) Add(field string) error {
	parts := SplitPath(field)
	if len(parts) == 0 {
		return fmt.Errorf("empty field path %q", field)
	}

	cur := t.root
	for i, part := range parts {
		last := i == len(parts)-1
		child, ok := cur.index[part]
		switch {
		case !ok:
			child = newNode(part, last)
			cur.index[part] = child
			cur.children = append(cur.children, child)
		case last:
			return fmt.Errorf("duplicate path %q", field)
		case child.leaf:
			return fmt.Errorf("path %q passes through field %q", field, strings.Join(parts[:i+1], "/"))
		}
		cur = child
	}
	return nil
}

func (t *Tree) lookup(p string) *node {
	cur := t.root
	for _, part := range SplitPath(p) {
		if cur.leaf {
			return nil
		}
		next, ok := cur.index[part]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// IsField reports whether p names a field.
func (t *Tree) IsField(p string) bool {
	n := t.lookup(p)
	return n != nil && n.leaf
}

// IsGroup reports whether p names a group. The empty path is the root group.
func (t *Tree) IsGroup(p string) bool {
	n := t.lookup(p)
	return n != nil && !n.leaf
}

// Members lists the direct children of group.
func (t *Tree) Members(group string) ([]Member, error) {
	n := t.lookup(group)
	if n == nil {
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, group)
	}
	if n.leaf {
		return nil, fmt.Errorf("%w: %q", ErrNotGroup, group)
	}
	out := make([]Member, len(n.children))
	for i, c := range n.children {
		out[i] = Member{Name: c.name, Group: !c.leaf}
	}
	return out, nil
}

// Fields returns every field path in depth-first insertion order.
func (t *Tree) Fields() []string {
	var out []string
	var walk func(prefix string, n *node)
	walk = func(prefix string, n *node) {
		for _, c := range n.children {
			p := c.name
			if prefix != "" {
				p = prefix + "/" + c.name
			}
			if c.leaf {
				out = append(out, p)
				continue
			}
			walk(p, c)
		}
	}
	walk("", t.root)
	return out
}
