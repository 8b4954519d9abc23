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

package scan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/metastore"
)

func testIndex() metastore.IndexSnapshot {
	cols := []expr.Field{{Name: "x", Type: expr.TypeFloat64}}
	return metastore.NewIndexSnapshot(
		metastore.TablePath{
			Schema: metastore.Row(1, metastore.Schema{Name: "s"}),
			Table:  metastore.Row(2, metastore.Table{Name: "t", SchemaID: 1, Columns: cols}),
		},
		metastore.Row(3, metastore.Index{Name: "i", TableID: 2, Columns: cols}),
		[]metastore.PartitionSnapshot{
			{
				Partition: metastore.Row(1, metastore.Partition{HasFile: true, FileName: "part_1.dat"}),
				Chunks:    []metastore.IDRow[metastore.Chunk]{metastore.Row(5, metastore.Chunk{PartitionID: 1, FileName: "chunk_1.dat"})},
			},
			{
				// no partition file yet
				Partition: metastore.Row(2, metastore.Partition{}),
				Chunks:    []metastore.IDRow[metastore.Chunk]{metastore.Row(6, metastore.Chunk{PartitionID: 2})},
			},
		},
		nil,
	)
}

func TestBind(t *testing.T) {
	tbl := New(testIndex(), nil)
	require.False(t, tbl.Bound())
	require.False(t, tbl.Partitions().Restricted())
	require.Equal(t, "x", tbl.TableSchema()[0].Name)

	local := map[string]string{
		"chunk_1.dat":     "/tmp/c1",
		"part_1.dat":      "/tmp/p1",
		"6.chunk.parquet": "/tmp/c6",
	}
	b, err := tbl.Bind(local, metastore.Restrict(2))
	require.NoError(t, err)
	require.True(t, b.Bound())
	require.False(t, tbl.Bound(), "Bind must not modify the receiver")
	require.Equal(t, []LocalPartition{{ID: 2, Chunks: []string{"/tmp/c6"}}}, b.Files())
	require.Equal(t, []string{"/tmp/c6"}, b.Files()[0].Paths())

	b, err = tbl.Bind(local, metastore.Restrict(1, 2))
	require.NoError(t, err)
	require.Len(t, b.Files(), 2)
	require.Equal(t, []string{"/tmp/p1", "/tmp/c1"}, b.Files()[0].Paths())

	b, err = tbl.Bind(nil, metastore.Restrict())
	require.NoError(t, err)
	require.Empty(t, b.Files())

	delete(local, "part_1.dat")
	_, err = tbl.Bind(local, metastore.Restrict(1))
	require.ErrorIs(t, err, ErrFileNotLocal)

	// unrestricted falls back to storage names
	b, err = tbl.Bind(local, metastore.Unrestricted())
	require.NoError(t, err)
	require.Equal(t, []string{"part_1.dat", "/tmp/c1"}, b.Files()[0].Paths())
}

func TestEncode(t *testing.T) {
	in := New(testIndex(), expr.Schema{{Name: "x", Type: expr.TypeFloat64, Qualifier: "t"}})
	buf, err := ionx.Marshal(in.Encode)
	require.NoError(t, err)
	r, err := ionx.Open(buf)
	require.NoError(t, err)
	out, err := Decode(r)
	require.NoError(t, err)
	opts := cmp.Options{
		cmp.AllowUnexported(Table{}, metastore.PartitionSet{}),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(in, out, opts); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}
