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

// Package fieldnames flattens grouped field-name specifications into the
// ordered list of field paths a reader addresses.
//
// A specification is one of:
//
//	Leaf("pos")                                  -> ["pos"]
//	LeafList{"pos", "chromo"}                    -> ["pos", "chromo"]
//	Groups{
//	    {Name: "inputs", Child: LeafList{"dna"}},
//	    {Name: "outputs", Child: Leaf("cpg")},
//	    {Name: "chromo"},                         // absent child
//	}                                            -> ["inputs/dna", "outputs/cpg", "chromo"]
//
// Resolution keeps declared order, never sorts, and collapses duplicate paths
// to their first occurrence.
package fieldnames
