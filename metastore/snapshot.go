// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package metastore

import (
	"golang.org/x/exp/slices"

	"github.com/SnellerInc/shardplan/expr"
)

// PartitionSnapshot is one partition together
// with the chunks that belonged to it at the
// moment the snapshot was taken.
//
// A PartitionSnapshot must not be modified
// after it has been captured.
type PartitionSnapshot struct {
	Partition IDRow[Partition]
	Chunks    []IDRow[Chunk]
}

// ID returns the partition id.
func (p *PartitionSnapshot) ID() uint64 { return p.Partition.ID }

// Files returns the storage files of the
// partition (if it has one) followed by the
// files of each of its chunks.
func (p *PartitionSnapshot) Files() []string {
	out := make([]string, 0, len(p.Chunks)+1)
	if name, ok := p.Partition.Row.FullName(p.Partition.ID); ok {
		out = append(out, name)
	}
	for i := range p.Chunks {
		out = append(out, p.Chunks[i].Row.FullName(p.Chunks[i].ID))
	}
	return out
}

func (p *PartitionSnapshot) clone() PartitionSnapshot {
	return PartitionSnapshot{
		Partition: p.Partition,
		Chunks:    slices.Clone(p.Chunks),
	}
}

// IndexSnapshot is every partition of
// one index of one table that was known
// at the time the plan was built.
//
// An IndexSnapshot must not be modified
// after it has been captured.
type IndexSnapshot struct {
	TablePath  TablePath
	Index      IDRow[Index]
	Partitions []PartitionSnapshot
	// SortOn is the optional explicit
	// list of sort columns.
	SortOn []string
}

// NewIndexSnapshot constructs an IndexSnapshot,
// copying the provided partition list so that
// later changes by the caller are not observed.
func NewIndexSnapshot(path TablePath, index IDRow[Index], parts []PartitionSnapshot, sortOn []string) IndexSnapshot {
	cp := make([]PartitionSnapshot, len(parts))
	for i := range parts {
		cp[i] = parts[i].clone()
	}
	return IndexSnapshot{
		TablePath:  path,
		Index:      index,
		Partitions: cp,
		SortOn:     slices.Clone(sortOn),
	}
}

// TableName returns "schema.table".
func (i *IndexSnapshot) TableName() string { return i.TablePath.TableName() }

// Table returns the table row.
func (i *IndexSnapshot) Table() *IDRow[Table] { return &i.TablePath.Table }

// Columns returns the index columns.
func (i *IndexSnapshot) Columns() []expr.Field { return i.Index.Row.Columns }

// PartitionIDs returns the ids of every
// partition in the snapshot, in snapshot order.
func (i *IndexSnapshot) PartitionIDs() []uint64 {
	out := make([]uint64, len(i.Partitions))
	for j := range i.Partitions {
		out[j] = i.Partitions[j].ID()
	}
	return out
}

// SchemaSnapshot is the ordered collection of
// every IndexSnapshot referenced by a plan.
type SchemaSnapshot struct {
	Indexes []IndexSnapshot
}

// PartitionIDs returns the set of every
// partition id in the schema snapshot.
func (s *SchemaSnapshot) PartitionIDs() PartitionSet {
	var ids []uint64
	for i := range s.Indexes {
		ids = append(ids, s.Indexes[i].PartitionIDs()...)
	}
	return Restrict(ids...)
}
