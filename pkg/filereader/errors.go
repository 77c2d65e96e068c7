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
	"errors"
	"fmt"

	"github.com/cardinalhq/shardstream/pkg/fieldnames"
)

var (
	// ErrConfiguration marks invalid reader arguments. It is the same value
	// as fieldnames.ErrConfiguration.
	ErrConfiguration = fieldnames.ErrConfiguration

	// ErrFieldNotFound marks a requested field missing from a shard.
	ErrFieldNotFound = errors.New("field not found")

	// ErrShapeMismatch marks a shard whose fields disagree on sample count.
	ErrShapeMismatch = errors.New("field lengths differ")

	// ErrIO marks a shard that could not be opened or read.
	ErrIO = errors.New("shard i/o error")
)

// ShardError identifies the shard and field a catalog or stream failure
// belongs to. errors.Is matches both Kind and Cause.
type ShardError struct {
	Kind  error
	Shard string
	Field string
	Cause error
}

func (e *ShardError) Error() string {
	msg := fmt.Sprintf("%v: shard %q", e.Kind, e.Shard)
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ShardError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func lengthMismatch(field string, n int, first string, samples int) error {
	return fmt.Errorf("%q has %d samples, %q has %d", field, n, first, samples)
}
