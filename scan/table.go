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

// Package scan implements the table-access
// handle that a worker binds to its local files.
package scan

import (
	"github.com/amazon-ion/ion-go/ion"
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
)

// ErrFileNotLocal is returned by Bind when a file
// of an assigned partition has not been fetched.
var ErrFileNotLocal = errors.New("file is not available locally")

// LocalPartition is one bound partition.
type LocalPartition struct {
	ID uint64
	// Partition is the local path of the
	// partition file, or "" if the partition
	// has no file yet.
	Partition string
	// Chunks are the local paths of the
	// chunk files, in snapshot order.
	Chunks []string
}

// Paths returns the partition file (if any)
// followed by the chunk files.
func (l *LocalPartition) Paths() []string {
	out := make([]string, 0, len(l.Chunks)+1)
	if l.Partition != "" {
		out = append(out, l.Partition)
	}
	return append(out, l.Chunks...)
}

// Table reads one index of one table.
//
// A Table built with New describes every
// partition of the index snapshot; Bind
// produces a worker-local Table restricted
// to a set of partitions.
type Table struct {
	Index  metastore.IndexSnapshot
	Schema expr.Schema

	bound bool
	parts metastore.PartitionSet
	files []LocalPartition
}

// New returns an unbound Table. If schema
// is nil, the index columns are used.
func New(index metastore.IndexSnapshot, schema expr.Schema) *Table {
	if schema == nil {
		schema = expr.Schema(index.Columns()).Clone()
	}
	return &Table{
		Index:  index,
		Schema: schema,
		parts:  metastore.Unrestricted(),
	}
}

var _ logical.TableSource = (*Table)(nil)

// TableSchema implements logical.TableSource.
func (t *Table) TableSchema() expr.Schema { return t.Schema }

// Bound returns whether t was produced by Bind.
func (t *Table) Bound() bool { return t.bound }

// Partitions returns the partitions that t may read.
func (t *Table) Partitions() metastore.PartitionSet { return t.parts }

// Files returns the bound partitions with
// their local paths, in snapshot order.
// It returns nil for an unbound table.
func (t *Table) Files() []LocalPartition { return t.files }

// Bind returns a copy of t that reads only the
// partitions in parts, using remoteToLocal to
// translate storage file names to local paths.
//
// When parts is restricted, every file of every
// member partition must be present in remoteToLocal.
// When parts is unrestricted, files absent from
// the map keep their storage names.
func (t *Table) Bind(remoteToLocal map[string]string, parts metastore.PartitionSet) (*Table, error) {
	local := func(remote string) (string, error) {
		if path, ok := remoteToLocal[remote]; ok {
			return path, nil
		}
		if parts.Restricted() {
			return "", errors.Wrapf(ErrFileNotLocal, "table %s: %q", t.Index.TableName(), remote)
		}
		return remote, nil
	}
	files := []LocalPartition{}
	for i := range t.Index.Partitions {
		ps := &t.Index.Partitions[i]
		if !parts.Contains(ps.ID()) {
			continue
		}
		lp := LocalPartition{ID: ps.ID(), Chunks: make([]string, 0, len(ps.Chunks))}
		if name, ok := ps.Partition.Row.FullName(ps.ID()); ok {
			path, err := local(name)
			if err != nil {
				return nil, err
			}
			lp.Partition = path
		}
		for j := range ps.Chunks {
			path, err := local(ps.Chunks[j].Row.FullName(ps.Chunks[j].ID))
			if err != nil {
				return nil, err
			}
			lp.Chunks = append(lp.Chunks, path)
		}
		files = append(files, lp)
	}
	return &Table{
		Index:  t.Index,
		Schema: t.Schema,
		bound:  true,
		parts:  parts,
		files:  files,
	}, nil
}

// Encode writes the unbound form of t.
// Bindings are worker-local and are not encoded.
func (t *Table) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.Field("index")
	t.Index.Encode(e)
	e.Field("schema")
	expr.EncodeSchema(e, t.Schema)
	e.EndStruct()
}

// Decode reads a Table written by Encode.
func Decode(r ion.Reader) (*Table, error) {
	t := &Table{parts: metastore.Unrestricted()}
	err := ionx.UnpackStruct(r, func(name string) error {
		var err error
		switch name {
		case "index":
			err = t.Index.Decode(r)
		case "schema":
			t.Schema, err = expr.DecodeSchema(r)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan.Decode")
	}
	return t, nil
}
