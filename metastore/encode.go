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
	"github.com/amazon-ion/ion-go/ion"
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
)

// Encode writes the index snapshot as an ion structure.
func (i *IndexSnapshot) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.Field("table_path")
	encodeTablePath(e, &i.TablePath)
	e.Field("index")
	encodeIndex(e, &i.Index)
	e.Field("partitions")
	e.BeginList()
	for j := range i.Partitions {
		encodePartitionSnapshot(e, &i.Partitions[j])
	}
	e.EndList()
	if i.SortOn != nil {
		e.Field("sort_on")
		e.Strings(i.SortOn)
	}
	e.EndStruct()
}

// Decode reads an index snapshot written by Encode.
func (i *IndexSnapshot) Decode(r ion.Reader) error {
	return ionx.UnpackStruct(r, func(name string) error {
		switch name {
		case "table_path":
			return decodeTablePath(r, &i.TablePath)
		case "index":
			return decodeIndex(r, &i.Index)
		case "partitions":
			i.Partitions = []PartitionSnapshot{}
			return ionx.UnpackList(r, func() error {
				var p PartitionSnapshot
				if err := decodePartitionSnapshot(r, &p); err != nil {
					return err
				}
				i.Partitions = append(i.Partitions, p)
				return nil
			})
		case "sort_on":
			var err error
			i.SortOn, err = ionx.Strings(r)
			return err
		default:
			return ionx.ErrUnexpectedField
		}
	})
}

// EncodeSnapshots writes a list of index snapshots.
func EncodeSnapshots(e *ionx.Encoder, lst []IndexSnapshot) {
	e.BeginList()
	for i := range lst {
		lst[i].Encode(e)
	}
	e.EndList()
}

// DecodeSnapshots reads a list written by EncodeSnapshots.
func DecodeSnapshots(r ion.Reader) ([]IndexSnapshot, error) {
	out := []IndexSnapshot{}
	err := ionx.UnpackList(r, func() error {
		var s IndexSnapshot
		if err := s.Decode(r); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeTablePath(e *ionx.Encoder, p *TablePath) {
	e.BeginStruct()
	e.Field("schema_id")
	e.Uint(p.Schema.ID)
	e.Field("schema")
	e.String(p.Schema.Row.Name)
	e.Field("table_id")
	e.Uint(p.Table.ID)
	e.Field("table")
	e.String(p.Table.Row.Name)
	e.Field("columns")
	expr.EncodeSchema(e, p.Table.Row.Columns)
	if p.Table.Row.Sealed {
		e.Field("sealed")
		e.Bool(true)
	}
	e.EndStruct()
}

func decodeTablePath(r ion.Reader, p *TablePath) error {
	err := ionx.UnpackStruct(r, func(name string) error {
		var err error
		switch name {
		case "schema_id":
			p.Schema.ID, err = ionx.Uint(r)
		case "schema":
			p.Schema.Row.Name, err = ionx.String(r)
		case "table_id":
			p.Table.ID, err = ionx.Uint(r)
		case "table":
			p.Table.Row.Name, err = ionx.String(r)
		case "columns":
			p.Table.Row.Columns, err = expr.DecodeSchema(r)
		case "sealed":
			p.Table.Row.Sealed, err = ionx.Bool(r)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
	p.Table.Row.SchemaID = p.Schema.ID
	return err
}

func encodeIndex(e *ionx.Encoder, i *IDRow[Index]) {
	e.BeginStruct()
	e.Field("id")
	e.Uint(i.ID)
	e.Field("name")
	e.String(i.Row.Name)
	e.Field("table_id")
	e.Uint(i.Row.TableID)
	e.Field("columns")
	expr.EncodeSchema(e, i.Row.Columns)
	e.Field("sort_key_size")
	e.Int(int64(i.Row.SortKeySize))
	if i.Row.PartitionSplitThreshold > 0 {
		e.Field("split_threshold")
		e.Int(i.Row.PartitionSplitThreshold)
	}
	e.EndStruct()
}

func decodeIndex(r ion.Reader, i *IDRow[Index]) error {
	return ionx.UnpackStruct(r, func(name string) error {
		var err error
		switch name {
		case "id":
			i.ID, err = ionx.Uint(r)
		case "name":
			i.Row.Name, err = ionx.String(r)
		case "table_id":
			i.Row.TableID, err = ionx.Uint(r)
		case "columns":
			i.Row.Columns, err = expr.DecodeSchema(r)
		case "sort_key_size":
			var n int64
			n, err = ionx.Int(r)
			i.Row.SortKeySize = int(n)
		case "split_threshold":
			i.Row.PartitionSplitThreshold, err = ionx.Int(r)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
}

func encodePartitionSnapshot(e *ionx.Encoder, p *PartitionSnapshot) {
	e.BeginStruct()
	e.Field("partition")
	encodePartition(e, &p.Partition)
	e.Field("chunks")
	e.BeginList()
	for i := range p.Chunks {
		encodeChunk(e, &p.Chunks[i])
	}
	e.EndList()
	e.EndStruct()
}

func decodePartitionSnapshot(r ion.Reader, p *PartitionSnapshot) error {
	return ionx.UnpackStruct(r, func(name string) error {
		switch name {
		case "partition":
			return decodePartition(r, &p.Partition)
		case "chunks":
			p.Chunks = []IDRow[Chunk]{}
			return ionx.UnpackList(r, func() error {
				var c IDRow[Chunk]
				if err := decodeChunk(r, &c); err != nil {
					return err
				}
				p.Chunks = append(p.Chunks, c)
				return nil
			})
		default:
			return ionx.ErrUnexpectedField
		}
	})
}

func encodePartition(e *ionx.Encoder, p *IDRow[Partition]) {
	e.BeginStruct()
	e.Field("id")
	e.Uint(p.ID)
	e.Field("index_id")
	e.Uint(p.Row.IndexID)
	if p.Row.ParentPartitionID != 0 {
		e.Field("parent_id")
		e.Uint(p.Row.ParentPartitionID)
	}
	e.Field("active")
	e.Bool(p.Row.Active)
	e.Field("rows")
	e.Int(p.Row.MainTableRowCount)
	e.Field("has_file")
	e.Bool(p.Row.HasFile)
	if p.Row.FileName != "" {
		e.Field("file")
		e.String(p.Row.FileName)
	}
	e.EndStruct()
}

func decodePartition(r ion.Reader, p *IDRow[Partition]) error {
	return ionx.UnpackStruct(r, func(name string) error {
		var err error
		switch name {
		case "id":
			p.ID, err = ionx.Uint(r)
		case "index_id":
			p.Row.IndexID, err = ionx.Uint(r)
		case "parent_id":
			p.Row.ParentPartitionID, err = ionx.Uint(r)
		case "active":
			p.Row.Active, err = ionx.Bool(r)
		case "rows":
			p.Row.MainTableRowCount, err = ionx.Int(r)
		case "has_file":
			p.Row.HasFile, err = ionx.Bool(r)
		case "file":
			p.Row.FileName, err = ionx.String(r)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
}

func encodeChunk(e *ionx.Encoder, c *IDRow[Chunk]) {
	e.BeginStruct()
	e.Field("id")
	e.Uint(c.ID)
	e.Field("partition_id")
	e.Uint(c.Row.PartitionID)
	e.Field("rows")
	e.Int(c.Row.RowCount)
	e.Field("uploaded")
	e.Bool(c.Row.Uploaded)
	e.Field("active")
	e.Bool(c.Row.Active)
	if c.Row.FileName != "" {
		e.Field("file")
		e.String(c.Row.FileName)
	}
	e.EndStruct()
}

func decodeChunk(r ion.Reader, c *IDRow[Chunk]) error {
	return ionx.UnpackStruct(r, func(name string) error {
		var err error
		switch name {
		case "id":
			c.ID, err = ionx.Uint(r)
		case "partition_id":
			c.Row.PartitionID, err = ionx.Uint(r)
		case "rows":
			c.Row.RowCount, err = ionx.Int(r)
		case "uploaded":
			c.Row.Uploaded, err = ionx.Bool(r)
		case "active":
			c.Row.Active, err = ionx.Bool(r)
		case "file":
			c.Row.FileName, err = ionx.String(r)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
}

// EncodePartitionSet writes a restricted set as a
// list of ids. The unrestricted set cannot be
// encoded this way; callers omit the field instead.
func EncodePartitionSet(e *ionx.Encoder, s PartitionSet) error {
	if !s.Restricted() {
		return errors.New("cannot encode the unrestricted partition set")
	}
	e.BeginList()
	for _, id := range s.ids {
		e.Uint(id)
	}
	e.EndList()
	return nil
}

// DecodePartitionSet reads a list written
// by EncodePartitionSet.
func DecodePartitionSet(r ion.Reader) (PartitionSet, error) {
	var ids []uint64
	err := ionx.UnpackList(r, func() error {
		id, err := ionx.Uint(r)
		if err == nil {
			ids = append(ids, id)
		}
		return err
	})
	if err != nil {
		return PartitionSet{}, err
	}
	return Restrict(ids...), nil
}
