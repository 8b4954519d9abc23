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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
	"github.com/SnellerInc/shardplan/plan"
	"github.com/SnellerInc/shardplan/scan"
)

// writePlan stores a plan scanning a table
// with partitions 1 and 2 into dir
func writePlan(t *testing.T, dir string) (string, *plan.SerializedPlan) {
	cols := []expr.Field{{Name: "x", Type: expr.TypeInt64}}
	m := metastore.NewMemStore()
	schema := m.CreateSchema("public")
	table, err := m.CreateTable(schema, "t", cols)
	require.NoError(t, err)
	index, err := m.CreateIndex(metastore.Index{Name: "primary", TableID: table, Columns: cols})
	require.NoError(t, err)
	for _, name := range []string{"a.parquet", "b.parquet"} {
		part, err := m.CreatePartition(metastore.Partition{IndexID: index, Active: true, HasFile: true, FileName: name})
		require.NoError(t, err)
		_, err = m.AddChunk(metastore.Chunk{PartitionID: part, Active: true, FileName: "chunk-" + name})
		require.NoError(t, err)
	}
	snaps, err := m.Snapshot(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	p := &logical.Limit{
		N: 10,
		Nonterminal: logical.Nonterminal{Input: &logical.TableScan{
			TableName:       snaps[0].TableName(),
			Source:          scan.New(snaps[0], nil),
			ProjectedSchema: cols,
		}},
	}
	sp, err := plan.New(p, snaps)
	require.NoError(t, err)
	buf, err := plan.Marshal(sp)
	require.NoError(t, err)
	file := filepath.Join(dir, "query.plan")
	require.NoError(t, os.WriteFile(file, buf, 0o644))
	return file, sp
}

func run(t *testing.T, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestDescribe(t *testing.T) {
	file, sp := writePlan(t, t.TempDir())
	out, err := run(t, "describe", file)
	require.NoError(t, err)
	require.Contains(t, out, "fingerprint ")
	require.Contains(t, out, sp.ID.String())
	require.Contains(t, out, "Limit: 10")
	require.Contains(t, out, "TableScan: public.t")
}

func TestFiles(t *testing.T) {
	file, _ := writePlan(t, t.TempDir())
	out, err := run(t, "files", file)
	require.NoError(t, err)
	require.Equal(t, "a.parquet\nchunk-a.parquet\nb.parquet\nchunk-b.parquet\n", out)

	out, err = run(t, "files", file, "--partitions", "999")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestClassify(t *testing.T) {
	file, _ := writePlan(t, t.TempDir())
	out, err := run(t, "classify", file)
	require.NoError(t, err)
	require.Equal(t, "data\n", out)
}

func TestBind(t *testing.T) {
	dir := t.TempDir()
	file, sp := writePlan(t, dir)
	first := sp.IndexSnapshots()[0].Partitions[0].ID()
	asn := filepath.Join(dir, "worker.yaml")
	require.NoError(t, os.WriteFile(asn, []byte(strings.Join([]string{
		"partitions: [" + strconv.FormatUint(first, 10) + "]",
		"files:",
		"  a.parquet: /cache/a",
		"  chunk-a.parquet: /cache/chunk-a",
	}, "\n")), 0o644))
	out, err := run(t, "bind", file, "--assignment", asn)
	require.NoError(t, err)
	require.Contains(t, out, "TableScan: public.t")

	// none of the files are local
	require.NoError(t, os.WriteFile(asn, []byte("partitions: [1, 2, 3, 4, 5, 6, 7, 8]\nfiles: {}\n"), 0o644))
	_, err = run(t, "bind", file, "--assignment", asn)
	require.ErrorIs(t, err, scan.ErrFileNotLocal)

	require.NoError(t, os.WriteFile(asn, []byte("partitoins: [1]\n"), 0o644))
	_, err = run(t, "bind", file, "--assignment", asn)
	require.Error(t, err)

	_, err = run(t, "bind", file)
	require.ErrorContains(t, err, "assignment")
}

func TestShard(t *testing.T) {
	dir := t.TempDir()
	file, sp := writePlan(t, dir)
	out := filepath.Join(dir, "shards")
	names, err := run(t, "--compression", "s2", "shard", file, "-n", "3", "--out", out)
	require.NoError(t, err)
	lines := strings.Fields(names)
	require.Len(t, lines, 3)

	var ids []uint64
	for _, name := range lines {
		buf, err := os.ReadFile(name)
		require.NoError(t, err)
		s, err := plan.Unmarshal(buf)
		require.NoError(t, err)
		require.Equal(t, sp.ID, s.ID)
		require.True(t, s.Partitions().Restricted())
		ids = append(ids, s.PartitionIDsToExecute()...)
	}
	require.ElementsMatch(t, sp.IndexSnapshots()[0].PartitionIDs(), ids)

	_, err = run(t, "shard", file, "-n", "0", "--out", out)
	require.Error(t, err)
}
