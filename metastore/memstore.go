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
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"

	"github.com/SnellerInc/shardplan/expr"
)

// ErrNotFound is returned when a row
// referenced by id does not exist.
var ErrNotFound = errors.New("metastore: not found")

// MemStore is an in-memory metadata store.
//
// Rows live in copy-on-write B-trees ordered
// by (parent id, id), so a Snapshot can copy
// every tree under one lock and then read the
// copies without blocking writers.
type MemStore struct {
	mu     sync.RWMutex
	nextID uint64

	schemas    *btree.BTreeG[IDRow[Schema]]
	tables     *btree.BTreeG[IDRow[Table]]
	indexes    *btree.BTreeG[IDRow[Index]]
	partitions *btree.BTreeG[IDRow[Partition]]
	chunks     *btree.BTreeG[IDRow[Chunk]]

	// parent ids of partitions and chunks;
	// these never change once assigned
	partIndex   map[uint64]uint64
	chunkParent map[uint64]uint64
}

func byID[T any](a, b IDRow[T]) bool { return a.ID < b.ID }

// NewMemStore returns an empty store.
// Identifiers are allocated starting at 1.
func NewMemStore() *MemStore {
	return &MemStore{
		schemas: btree.NewBTreeG(byID[Schema]),
		tables: btree.NewBTreeG(func(a, b IDRow[Table]) bool {
			if a.Row.SchemaID != b.Row.SchemaID {
				return a.Row.SchemaID < b.Row.SchemaID
			}
			return a.ID < b.ID
		}),
		indexes: btree.NewBTreeG(func(a, b IDRow[Index]) bool {
			if a.Row.TableID != b.Row.TableID {
				return a.Row.TableID < b.Row.TableID
			}
			return a.ID < b.ID
		}),
		partitions: btree.NewBTreeG(func(a, b IDRow[Partition]) bool {
			if a.Row.IndexID != b.Row.IndexID {
				return a.Row.IndexID < b.Row.IndexID
			}
			return a.ID < b.ID
		}),
		chunks: btree.NewBTreeG(func(a, b IDRow[Chunk]) bool {
			if a.Row.PartitionID != b.Row.PartitionID {
				return a.Row.PartitionID < b.Row.PartitionID
			}
			return a.ID < b.ID
		}),
		partIndex:   make(map[uint64]uint64),
		chunkParent: make(map[uint64]uint64),
	}
}

func (m *MemStore) alloc() uint64 {
	m.nextID++
	return m.nextID
}

// CreateSchema adds a schema and returns its id.
func (m *MemStore) CreateSchema(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.alloc()
	m.schemas.Set(Row(id, Schema{Name: name}))
	return id
}

func (m *MemStore) findTable(id uint64) (IDRow[Table], bool) {
	var out IDRow[Table]
	found := false
	m.tables.Scan(func(t IDRow[Table]) bool {
		if t.ID == id {
			out, found = t, true
			return false
		}
		return true
	})
	return out, found
}

// CreateTable adds a table to the schema
// with the given id and returns the table id.
func (m *MemStore) CreateTable(schemaID uint64, name string, columns []expr.Field) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas.Get(IDRow[Schema]{ID: schemaID}); !ok {
		return 0, errors.Wrapf(ErrNotFound, "schema %d", schemaID)
	}
	id := m.alloc()
	m.tables.Set(Row(id, Table{
		Name:     name,
		SchemaID: schemaID,
		Columns:  expr.Schema(columns).Clone(),
	}))
	return id, nil
}

// SealTable marks a table as accepting no more ingestion.
func (m *MemStore) SealTable(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.findTable(id)
	if !ok {
		return errors.Wrapf(ErrNotFound, "table %d", id)
	}
	t.Row.Sealed = true
	m.tables.Set(t)
	return nil
}

// CreateIndex adds an index to a table and returns the index id.
func (m *MemStore) CreateIndex(idx Index) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findTable(idx.TableID); !ok {
		return 0, errors.Wrapf(ErrNotFound, "table %d", idx.TableID)
	}
	id := m.alloc()
	idx.Columns = expr.Schema(idx.Columns).Clone()
	m.indexes.Set(Row(id, idx))
	return id, nil
}

func (m *MemStore) hasIndex(id uint64) bool {
	found := false
	m.indexes.Scan(func(i IDRow[Index]) bool {
		found = i.ID == id
		return !found
	})
	return found
}

// CreatePartition adds a partition to an
// index and returns the partition id.
func (m *MemStore) CreatePartition(p Partition) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasIndex(p.IndexID) {
		return 0, errors.Wrapf(ErrNotFound, "index %d", p.IndexID)
	}
	id := m.alloc()
	m.partitions.Set(Row(id, p))
	m.partIndex[id] = p.IndexID
	return id, nil
}

// UpdatePartition calls fn with the current
// partition row and stores the result.
// The index a partition belongs to cannot change.
func (m *MemStore) UpdatePartition(id uint64, fn func(p *Partition)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index, ok := m.partIndex[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "partition %d", id)
	}
	p, _ := m.partitions.Get(Row(id, Partition{IndexID: index}))
	fn(&p.Row)
	p.Row.IndexID = index
	m.partitions.Set(p)
	return nil
}

// AddChunk adds a chunk to a partition
// and returns the chunk id.
func (m *MemStore) AddChunk(c Chunk) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partIndex[c.PartitionID]; !ok {
		return 0, errors.Wrapf(ErrNotFound, "partition %d", c.PartitionID)
	}
	id := m.alloc()
	m.chunks.Set(Row(id, c))
	m.chunkParent[id] = c.PartitionID
	return id, nil
}

// UpdateChunk calls fn with the current
// chunk row and stores the result.
func (m *MemStore) UpdateChunk(id uint64, fn func(c *Chunk)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	part, ok := m.chunkParent[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "chunk %d", id)
	}
	c, _ := m.chunks.Get(Row(id, Chunk{PartitionID: part}))
	fn(&c.Row)
	c.Row.PartitionID = part
	m.chunks.Set(c)
	return nil
}

type view struct {
	schemas    *btree.BTreeG[IDRow[Schema]]
	tables     *btree.BTreeG[IDRow[Table]]
	indexes    *btree.BTreeG[IDRow[Index]]
	partitions *btree.BTreeG[IDRow[Partition]]
	chunks     *btree.BTreeG[IDRow[Chunk]]
}

func (m *MemStore) view() *view {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &view{
		schemas:    m.schemas.Copy(),
		tables:     m.tables.Copy(),
		indexes:    m.indexes.Copy(),
		partitions: m.partitions.Copy(),
		chunks:     m.chunks.Copy(),
	}
}

// Snapshot returns one IndexSnapshot for every
// index of every table in tableIDs (or of every
// table when tableIDs is empty), ordered by
// schema id and then by table id.
//
// Every row in the result is read from the same
// point-in-time copy of the store, so writes that
// happen during or after the call are never
// visible in the returned snapshots. Only active
// partitions and active chunks are included.
func (m *MemStore) Snapshot(ctx context.Context, tableIDs ...uint64) ([]IndexSnapshot, error) {
	v := m.view()
	var tables []IDRow[Table]
	if len(tableIDs) == 0 {
		v.tables.Scan(func(t IDRow[Table]) bool {
			tables = append(tables, t)
			return true
		})
	} else {
		want := make(map[uint64]bool, len(tableIDs))
		for _, id := range tableIDs {
			want[id] = true
		}
		v.tables.Scan(func(t IDRow[Table]) bool {
			if want[t.ID] {
				tables = append(tables, t)
				delete(want, t.ID)
			}
			return true
		})
		for id := range want {
			return nil, errors.Wrapf(ErrNotFound, "table %d", id)
		}
	}
	out := []IndexSnapshot{}
	for i := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		schema, ok := v.schemas.Get(IDRow[Schema]{ID: tables[i].Row.SchemaID})
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "schema %d of table %q", tables[i].Row.SchemaID, tables[i].Row.Name)
		}
		path := TablePath{Schema: schema, Table: tables[i]}
		v.indexes.Ascend(IDRow[Index]{Row: Index{TableID: tables[i].ID}}, func(idx IDRow[Index]) bool {
			if idx.Row.TableID != tables[i].ID {
				return false
			}
			out = append(out, IndexSnapshot{
				TablePath:  path,
				Index:      idx,
				Partitions: v.partitionsOf(idx.ID),
			})
			return true
		})
	}
	return out, nil
}

func (v *view) partitionsOf(index uint64) []PartitionSnapshot {
	parts := []PartitionSnapshot{}
	v.partitions.Ascend(IDRow[Partition]{Row: Partition{IndexID: index}}, func(p IDRow[Partition]) bool {
		if p.Row.IndexID != index {
			return false
		}
		if p.Row.Active {
			parts = append(parts, PartitionSnapshot{Partition: p, Chunks: v.chunksOf(p.ID)})
		}
		return true
	})
	return parts
}

func (v *view) chunksOf(part uint64) []IDRow[Chunk] {
	chunks := []IDRow[Chunk]{}
	v.chunks.Ascend(IDRow[Chunk]{Row: Chunk{PartitionID: part}}, func(c IDRow[Chunk]) bool {
		if c.Row.PartitionID != part {
			return false
		}
		if c.Row.Active {
			chunks = append(chunks, c)
		}
		return true
	})
	return chunks
}
