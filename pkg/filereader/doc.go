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

// Package filereader streams aligned batches of samples out of sharded
// containers.
//
// # Overview
//
// A training or evaluation dataset is split into shards, each a container
// (see package container) holding one array per field, all indexed by sample.
// Readers select a list of field paths, usually built with
// fieldnames.Resolve, and return pipeline.Batch values in which row i of
// every field belongs to the same sample.
//
// # Readers
//
//   - StreamingReader: pull-based batches with optional shuffling, looping,
//     a global sample cap and a per-pass epoch size
//   - Read: loads everything into one batch
//   - CollectFrom: gathers a fixed number of samples from any BatchSource
//
// Example usage:
//
//	fields := fieldnames.MustResolve(fieldnames.Groups{
//	    {Name: "inputs", Child: fieldnames.Leaves("dna")},
//	    {Name: "outputs", Child: fieldnames.Leaves("cpg/BS27_4_SER")},
//	})
//	r, err := filereader.NewStreamingReader(ctx, store, shards, fields,
//	    filereader.WithBatchSize(128),
//	    filereader.WithShuffle(true),
//	    filereader.WithLoop(true))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for batch, err := range r.Batches(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    // use batch.Column("inputs/dna")
//	}
//
// # Inspection
//
// Inspect reports the sample count of every shard, and List and
// ExpandGroups browse the group hierarchy of a shard.
package filereader
