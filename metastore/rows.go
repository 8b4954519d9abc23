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
	"strconv"

	"github.com/SnellerInc/shardplan/expr"
)

// IDRow is a metadata row together
// with its identity in the store.
type IDRow[T any] struct {
	ID  uint64
	Row T
}

// Row constructs an IDRow.
func Row[T any](id uint64, row T) IDRow[T] {
	return IDRow[T]{ID: id, Row: row}
}

// Schema is a namespace of tables.
type Schema struct {
	Name string
}

// Table is the metadata row of a table.
type Table struct {
	Name     string
	SchemaID uint64
	Columns  []expr.Field
	// Sealed tables accept no more ingestion.
	Sealed bool
}

// TablePath locates a table within its schema.
type TablePath struct {
	Schema IDRow[Schema]
	Table  IDRow[Table]
}

// TableName returns "schema.table".
func (p *TablePath) TableName() string {
	return p.Schema.Row.Name + "." + p.Table.Row.Name
}

// Index is the metadata row of one
// sorted, partitioned copy of a table.
type Index struct {
	Name    string
	TableID uint64
	Columns []expr.Field
	// SortKeySize is the number of leading
	// columns that form the sort key.
	SortKeySize int
	// PartitionSplitThreshold is the row
	// count at which a partition is split.
	PartitionSplitThreshold int64
}

// Partition is the metadata row of
// one shard of an index.
type Partition struct {
	IndexID uint64
	// ParentPartitionID is zero
	// for a root partition.
	ParentPartitionID uint64
	Active            bool
	MainTableRowCount int64
	// HasFile is false until the partition
	// has been written to storage for the
	// first time.
	HasFile bool
	// FileName overrides the default
	// storage name of the partition file.
	FileName string
}

// FullName returns the name of the storage
// file for the partition with the given id,
// or false if the partition has no file yet.
func (p *Partition) FullName(id uint64) (string, bool) {
	if !p.HasFile {
		return "", false
	}
	if p.FileName != "" {
		return p.FileName, true
	}
	return strconv.FormatUint(id, 10) + ".parquet", true
}

// Chunk is the metadata row of a unit
// of newly ingested data that belongs
// to a partition.
type Chunk struct {
	PartitionID uint64
	RowCount    int64
	Uploaded    bool
	Active      bool
	// FileName overrides the default
	// storage name of the chunk file.
	FileName string
}

// FullName returns the name of the storage
// file for the chunk with the given id.
// Every chunk has a file.
func (c *Chunk) FullName(id uint64) string {
	if c.FileName != "" {
		return c.FileName
	}
	return strconv.FormatUint(id, 10) + ".chunk.parquet"
}
