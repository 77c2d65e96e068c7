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

package blob

import (
	"context"
	"fmt"
	"strings"
)

// Mux routes paths to fetchers by URL scheme. Paths without a scheme go to
// the fallback fetcher.
type Mux struct {
	schemes  map[string]Fetcher
	fallback Fetcher
}

var _ Fetcher = (*Mux)(nil)

// NewMux returns a Mux that sends scheme-less paths to fallback.
func NewMux(fallback Fetcher) *Mux {
	return &Mux{schemes: make(map[string]Fetcher), fallback: fallback}
}

// Handle registers f for paths of the form "scheme://...".
func (m *Mux) Handle(scheme string, f Fetcher) *Mux {
	m.schemes[scheme] = f
	return m
}

func (m *Mux) Fetch(ctx context.Context, path string) (File, error) {
	if scheme, _, ok := strings.Cut(path, "://"); ok {
		f, found := m.schemes[scheme]
		if !found {
			return nil, fmt.Errorf("no fetcher for scheme %q in %q", scheme, path)
		}
		return f.Fetch(ctx, path)
	}
	if m.fallback == nil {
		return nil, fmt.Errorf("no fetcher for %q", path)
	}
	return m.fallback.Fetch(ctx, path)
}

// Default reads local files and decompresses .zst and .gz shards.
func Default() Fetcher {
	return NewDecompressing(Local{}, "")
}
