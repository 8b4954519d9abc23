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

package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
	"github.com/SnellerInc/shardplan/scan"
	"github.com/SnellerInc/shardplan/udf"
)

var testColumns = []expr.Field{
	{Name: "x", Type: expr.TypeInt64},
	{Name: "host", Type: expr.TypeUtf8, Nullable: true},
}

func partition(id uint64, file string, chunks ...metastore.IDRow[metastore.Chunk]) metastore.PartitionSnapshot {
	p := metastore.Partition{IndexID: 3, Active: true}
	if file != "" {
		p.HasFile = true
		p.FileName = file
	}
	return metastore.PartitionSnapshot{Partition: metastore.Row(id, p), Chunks: chunks}
}

func chunk(id, part uint64, file string) metastore.IDRow[metastore.Chunk] {
	return metastore.Row(id, metastore.Chunk{PartitionID: part, Active: true, FileName: file})
}

func index(schema, table string, parts ...metastore.PartitionSnapshot) metastore.IndexSnapshot {
	return metastore.NewIndexSnapshot(
		metastore.TablePath{
			Schema: metastore.Row(1, metastore.Schema{Name: schema}),
			Table:  metastore.Row(2, metastore.Table{Name: table, SchemaID: 1, Columns: testColumns}),
		},
		metastore.Row(3, metastore.Index{Name: "primary", TableID: 2, Columns: testColumns, SortKeySize: 1}),
		parts,
		nil,
	)
}

// scenarioIndex has partitions 1 and 2 with one chunk each
func scenarioIndex() metastore.IndexSnapshot {
	return index("public", "events",
		partition(1, "part_1.dat", chunk(11, 1, "chunk_1.dat")),
		partition(2, "part_2.dat", chunk(12, 2, "chunk_2.dat")),
	)
}

func scanOf(idx metastore.IndexSnapshot) *logical.TableScan {
	return &logical.TableScan{
		TableName:       idx.TableName(),
		Source:          scan.New(idx, nil),
		ProjectedSchema: testColumns,
	}
}

func filterOverScan(idx metastore.IndexSnapshot) logical.Plan {
	return &logical.Filter{
		Predicate:   &expr.Binary{Left: expr.Col("x"), Op: expr.OpGt, Right: expr.Lit(expr.Int64(10))},
		Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
	}
}

func TestFilesForPartition(t *testing.T) {
	idx := scenarioIndex()
	sp, err := New(filterOverScan(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	got := sp.WithPartitions(metastore.Restrict(2)).FilesToDownload()
	require.Equal(t, []string{"part_2.dat", "chunk_2.dat"}, got)

	got = sp.WithPartitions(metastore.Restrict(1, 2)).FilesToDownload()
	require.Equal(t, []string{"part_1.dat", "chunk_1.dat", "part_2.dat", "chunk_2.dat"}, got)

	// unrestricted copies read everything
	require.Equal(t, got, sp.FilesToDownload())
}

func TestFilesNotDeduplicated(t *testing.T) {
	left := index("public", "a", partition(7, "p7.dat", chunk(70, 7, "c70.dat")))
	right := index("public", "b", partition(7, "p7.dat", chunk(70, 7, "c70.dat")), partition(8, ""))
	p := &logical.Join{
		Left:   scanOf(left),
		Right:  scanOf(right),
		On:     []logical.JoinOn{{Left: expr.Column{Name: "x"}, Right: expr.Column{Name: "x"}}},
		Type:   logical.JoinInner,
		Output: append(expr.Schema(testColumns).Clone(), testColumns...),
	}
	sp, err := New(p, []metastore.IndexSnapshot{left, right})
	require.NoError(t, err)
	got := sp.WithPartitions(metastore.Restrict(7)).FilesToDownload()
	require.Equal(t, []string{"p7.dat", "c70.dat", "p7.dat", "c70.dat"}, got)

	// a partition without a file contributes nothing
	require.Empty(t, sp.WithPartitions(metastore.Restrict(8)).FilesToDownload())
}

func TestFilesMonotone(t *testing.T) {
	idx := index("public", "t",
		partition(1, "p1", chunk(10, 1, "c10"), chunk(11, 1, "")),
		partition(2, ""),
		partition(3, "p3", chunk(30, 3, "c30")),
		partition(4, "p4"),
	)
	sp, err := New(scanOf(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)

	sets := [][]uint64{{}, {1}, {1, 3}, {1, 2, 3}, {1, 2, 3, 4}, {1, 2, 3, 4, 99}}
	var prev []string
	for _, ids := range sets {
		got := sp.WithPartitions(metastore.Restrict(ids...)).FilesToDownload()
		for _, f := range prev {
			require.Contains(t, got, f, "partitions %v", ids)
		}
		prev = got
	}
	require.Equal(t, []string{"p1", "c10", "11.chunk.parquet", "p3", "c30", "p4"}, prev)
}

func TestEmptyRestriction(t *testing.T) {
	idx := scenarioIndex()
	sp, err := New(filterOverScan(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	require.Empty(t, sp.WithPartitions(metastore.Restrict()).FilesToDownload())
	require.Empty(t, sp.WithPartitions(metastore.PartitionSet{}).FilesToDownload())

	// an empty restriction still materializes,
	// but the scan reads nothing
	lp, err := sp.WithPartitions(metastore.Restrict()).LogicalPlan(nil)
	require.NoError(t, err)
	ts := lp.Inputs()[0].(*logical.TableScan)
	require.Empty(t, ts.Source.(*scan.Table).Files())
}

func TestClassifier(t *testing.T) {
	catalog := index(CatalogSchema, "tables")
	data := scenarioIndex()
	one := &logical.EmptyRelation{ProduceOneRow: true}
	cases := []struct {
		name string
		plan logical.Plan
		want bool
	}{
		{"no scans", &logical.Projection{
			Exprs:       []expr.Node{expr.Lit(expr.Int64(1))},
			Nonterminal: logical.Nonterminal{Input: one},
		}, false},
		{"catalog only", &logical.Union{Plans: []logical.Plan{scanOf(catalog), scanOf(catalog)}}, false},
		{"data", filterOverScan(data), true},
		{"catalog then data", &logical.Union{Plans: []logical.Plan{scanOf(catalog), filterOverScan(data)}}, true},
		{"catalog prefix is not enough", &logical.TableScan{TableName: "information_schema_x.t"}, true},
		{"bare table name", &logical.TableScan{TableName: "t"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, IsDataSelectQuery(c.plan))
		})
	}
}

type otherSource struct{}

func (otherSource) TableSchema() expr.Schema { return nil }

type private struct{}

func (private) Name() string           { return "private" }
func (private) Inputs() []logical.Plan { return nil }
func (private) Schema() expr.Schema    { return nil }

func TestSerializeErrors(t *testing.T) {
	idx := scenarioIndex()
	cases := []struct {
		name string
		plan logical.Plan
		is   error
	}{
		{"table source", &logical.Limit{
			N:           1,
			Nonterminal: logical.Nonterminal{Input: &logical.TableScan{TableName: "public.t", Source: otherSource{}}},
		}, ErrUnexpectedTableSource},
		{"scalar udf", &logical.Filter{
			Predicate:   &expr.ScalarUDFCall{Func: &expr.ScalarUDF{Name: "nope"}},
			Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
		}, ErrUnknownFunction},
		{"aggregate udf", &logical.Aggregate{
			AggrExprs:   []expr.Node{&expr.AggregateUDFCall{Func: &expr.AggregateUDF{Name: "nope"}}},
			Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
		}, ErrUnknownFunction},
		{"explain", &logical.Explain{Plan: scanOf(idx)}, ErrUnsupportedPlan},
		{"external table", &logical.CreateExternalTable{Name: "x"}, ErrUnsupportedPlan},
		{"extension", &logical.Sort{
			Nonterminal: logical.Nonterminal{Input: &logical.Extension{Node: private{}}},
		}, ErrUnrecognizedExtension},
		{"missing predicate", &logical.Filter{
			Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
		}, ErrInvalidExpression},
		{"alias without expression", &logical.Projection{
			Exprs:       []expr.Node{&expr.Alias{Name: "a"}},
			Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
		}, ErrInvalidExpression},
		{"udf without descriptor", &logical.Filter{
			Predicate:   &expr.ScalarUDFCall{},
			Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
		}, ErrUnknownFunction},
		{"topk sort column", &logical.ClusterAggregateTopK{
			Limit:          3,
			AggregateExprs: []expr.Node{&expr.Aggregate{Op: expr.AggCount, Args: []expr.Node{expr.Wildcard{}}}},
			SortColumns:    []logical.SortColumn{{AggIndex: 1}},
			Nonterminal:    logical.Nonterminal{Input: scanOf(idx)},
		}, ErrInvalidPlan},
		{"missing input", &logical.Limit{N: 1}, ErrUnsupportedPlan},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sp, err := New(c.plan, []metastore.IndexSnapshot{idx})
			require.ErrorIs(t, err, c.is)
			require.Nil(t, sp)
		})
	}
}

// everything returns a plan using every
// operator that has a snapshot form
func everything(t *testing.T) (logical.Plan, []metastore.IndexSnapshot) {
	a := scenarioIndex()
	b := index("public", "hosts", partition(5, "p5.dat"))
	dateBin, ok := udf.Scalar("date_bin")
	require.True(t, ok)
	merge, ok := udf.Aggregate("merge")
	require.True(t, ok)
	out := expr.Schema{{Name: "host", Type: expr.TypeUtf8}, {Name: "n", Type: expr.TypeInt64}}

	scanA := scanOf(a)
	scanA.Projection = []int{1, 0}
	scanA.Filters = []expr.Node{&expr.Unary{Op: expr.OpIsNotNull, Expr: expr.Col("host")}}
	scanA.Alias = "e"
	limit := 1000
	scanA.Limit = &limit

	topk := &logical.ClusterAggregateTopK{
		Limit:      10,
		GroupExprs: []expr.Node{expr.Col("host")},
		AggregateExprs: []expr.Node{
			&expr.Aggregate{Op: expr.AggCount, Args: []expr.Node{expr.Wildcard{}}},
			&expr.AggregateUDFCall{Func: merge, Args: []expr.Node{expr.Col("x")}},
		},
		SortColumns: []logical.SortColumn{{AggIndex: 0, Asc: false, NullsFirst: true}},
		Output:      out,
		Snapshots:   [][]metastore.IndexSnapshot{{a}},
		Nonterminal: logical.Nonterminal{Input: &logical.Repartition{
			Scheme:      &logical.Hash{Exprs: []expr.Node{expr.Col("host")}, N: 4},
			Nonterminal: logical.Nonterminal{Input: scanA},
		}},
	}
	send := &logical.ClusterSend{
		Snapshots: [][]metastore.IndexSnapshot{{a}, {b}},
		Nonterminal: logical.Nonterminal{Input: &logical.Join{
			Left: &logical.Aggregate{
				GroupExprs: []expr.Node{expr.Col("host")},
				AggrExprs:  []expr.Node{&expr.Aggregate{Op: expr.AggSum, Args: []expr.Node{expr.Col("x")}, Distinct: true}},
				Output:     out,
				Nonterminal: logical.Nonterminal{Input: &logical.Repartition{
					Scheme:      &logical.RoundRobin{N: 2},
					Nonterminal: logical.Nonterminal{Input: filterOverScan(a)},
				}},
			},
			Right: scanOf(b),
			On: []logical.JoinOn{{
				Left:  expr.Column{Name: "host", Qualifier: "events"},
				Right: expr.Column{Name: "host", Qualifier: "hosts"},
			}},
			Type:   logical.JoinLeft,
			Output: append(out.Clone(), testColumns...),
		}},
	}
	p := &logical.Limit{
		N: 5,
		Nonterminal: logical.Nonterminal{Input: &logical.Skip{
			N: 2,
			Nonterminal: logical.Nonterminal{Input: &logical.Sort{
				Exprs: []expr.Node{&expr.Sort{Expr: expr.Col("n"), Asc: true}},
				Nonterminal: logical.Nonterminal{Input: &logical.Projection{
					Exprs: []expr.Node{
						expr.Col("host"),
						&expr.Alias{Name: "bucket", Expr: &expr.ScalarUDFCall{
							Func: dateBin,
							Args: []expr.Node{expr.Lit(expr.Int64(60)), expr.Col("ts"), expr.Lit(expr.Timestamp(0))},
						}},
					},
					Output: out,
					Nonterminal: logical.Nonterminal{Input: &logical.Union{
						Plans: []logical.Plan{
							topk,
							send,
							&logical.EmptyRelation{ProduceOneRow: false, Output: out},
						},
						Output: out,
						Alias:  "u",
					}},
				}},
			}},
		}},
	}
	return p, []metastore.IndexSnapshot{a, b}
}

func identity(files []string) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f] = f
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	p, indexes := everything(t)
	sp, err := New(p, indexes)
	require.NoError(t, err)
	for _, opts := range [][]MarshalOption{
		nil,
		{WithCompression("zstd")},
		{WithCompression("zstd-better")},
		{WithCompression("s2")},
	} {
		buf, err := Marshal(sp, opts...)
		require.NoError(t, err)
		out, err := Unmarshal(buf)
		require.NoError(t, err)
		require.Equal(t, sp.ID, out.ID)
		require.False(t, out.Partitions().Restricted())

		lp, err := out.LogicalPlan(identity(out.FilesToDownload()))
		require.NoError(t, err)
		require.Equal(t, logical.ToString(p), logical.ToString(lp))
		require.True(t, p.Schema().Equal(lp.Schema()))

		// every scan is bound to the same
		// files as the original snapshot
		logical.Inspect(lp, func(n logical.Plan) bool {
			if ts, ok := n.(*logical.TableScan); ok {
				tbl := ts.Source.(*scan.Table)
				require.True(t, tbl.Bound())
				var want []string
				for i := range tbl.Index.Partitions {
					want = append(want, tbl.Index.Partitions[i].Files()...)
				}
				var got []string
				for _, part := range tbl.Files() {
					got = append(got, part.Paths()...)
				}
				require.Equal(t, want, got)
			}
			return true
		})

		want, err := sp.Fingerprint()
		require.NoError(t, err)
		got, err := out.Fingerprint()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRoundTripRestricted(t *testing.T) {
	idx := scenarioIndex()
	sp, err := New(filterOverScan(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	sp = sp.WithPartitions(metastore.Restrict(2))
	buf, err := Marshal(sp)
	require.NoError(t, err)
	out, err := Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, out.PartitionIDsToExecute())
	require.Equal(t, sp.FilesToDownload(), out.FilesToDownload())

	// missing local files are a materialization error
	_, err = out.LogicalPlan(map[string]string{"part_2.dat": "/data/p2"})
	require.ErrorIs(t, err, scan.ErrFileNotLocal)

	lp, err := out.LogicalPlan(map[string]string{"part_2.dat": "/data/p2", "chunk_2.dat": "/data/c2"})
	require.NoError(t, err)
	tbl := lp.Inputs()[0].(*logical.TableScan).Source.(*scan.Table)
	require.Equal(t, []scan.LocalPartition{{ID: 2, Partition: "/data/p2", Chunks: []string{"/data/c2"}}}, tbl.Files())
	require.True(t, IsDataSelectQuery(lp))
}

func TestShard(t *testing.T) {
	left := index("public", "a", partition(1, "p1"), partition(2, "p2"), partition(7, "p7"))
	right := index("public", "b", partition(7, "p7"), partition(9, "p9"))
	p := &logical.Union{Plans: []logical.Plan{scanOf(left), scanOf(right)}, Output: testColumns}
	sp, err := New(p, []metastore.IndexSnapshot{left, right})
	require.NoError(t, err)

	require.Nil(t, sp.Shard(0))
	shards := sp.Shard(3)
	require.Len(t, shards, 3)
	var all []uint64
	for _, s := range shards {
		require.True(t, s.Partitions().Restricted())
		require.Same(t, sp.shared, s.shared)
		require.Equal(t, sp.ID, s.ID)
		all = append(all, s.PartitionIDsToExecute()...)
		files := s.FilesToDownload()
		if s.Partitions().Contains(7) {
			require.Equal(t, 2, countOf(files, "p7"))
		} else {
			require.Zero(t, countOf(files, "p7"))
		}
	}
	slices.Sort(all)
	require.Equal(t, []uint64{1, 2, 7, 9}, all)

	// sharding a restricted copy only
	// distributes its own partitions
	all = nil
	for _, s := range sp.WithPartitions(metastore.Restrict(2, 9)).Shard(2) {
		all = append(all, s.PartitionIDsToExecute()...)
	}
	slices.Sort(all)
	require.Equal(t, []uint64{2, 9}, all)
}

func countOf(lst []string, s string) int {
	n := 0
	for i := range lst {
		if lst[i] == s {
			n++
		}
	}
	return n
}

func TestWithPartitionsShares(t *testing.T) {
	idx := scenarioIndex()
	sp, err := New(filterOverScan(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	a := sp.WithPartitions(metastore.Restrict(1))
	b := a.WithPartitions(metastore.Restrict(2))
	require.Same(t, sp.Root(), a.Root())
	require.Same(t, sp.Root(), b.Root())
	require.Equal(t, []uint64{1}, a.PartitionIDsToExecute())
	require.Equal(t, []uint64{2}, b.PartitionIDsToExecute())
	require.Nil(t, sp.PartitionIDsToExecute())

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	require.Equal(t, fa, fb)
	require.Contains(t, b.String(), sp.ID.String())
	require.Contains(t, b.String(), "partitions={2}")
	require.Contains(t, b.String(), "TableScan: public.events")
}

func TestUnmarshalErrors(t *testing.T) {
	future, err := ionx.Marshal(func(e *ionx.Encoder) {
		e.BeginStruct()
		e.Field("version")
		e.Int(Version + 1)
		e.EndStruct()
	})
	require.NoError(t, err)
	_, err = Unmarshal(future)
	require.ErrorIs(t, err, ErrVersion)

	noVersion, err := ionx.Marshal(func(e *ionx.Encoder) {
		e.BeginStruct()
		e.Field("id")
		e.String("x")
		e.EndStruct()
	})
	require.NoError(t, err)
	_, err = Unmarshal(noVersion)
	require.Error(t, err)

	idx := scenarioIndex()
	sp, err := New(filterOverScan(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	_, err = Marshal(sp, WithCompression("lz4"))
	require.Error(t, err)

	buf, err := Marshal(sp)
	require.NoError(t, err)
	_, err = Unmarshal(buf[:len(buf)/2])
	require.Error(t, err)
}

func TestWildcardPointer(t *testing.T) {
	idx := scenarioIndex()
	p := &logical.Aggregate{
		AggrExprs:   []expr.Node{&expr.Aggregate{Op: expr.AggCount, Args: []expr.Node{&expr.Wildcard{}}}},
		Output:      expr.Schema{{Name: "n", Type: expr.TypeInt64}},
		Nonterminal: logical.Nonterminal{Input: scanOf(idx)},
	}
	sp, err := New(p, []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	lp, err := sp.LogicalPlan(nil)
	require.NoError(t, err)
	require.Equal(t, logical.ToString(p), logical.ToString(lp))
}

func TestMaterializeUnknownNode(t *testing.T) {
	_, err := Materialize(nil, nil, metastore.Unrestricted())
	require.ErrorIs(t, err, ErrUnsupportedPlan)
}

func TestScanLimitZero(t *testing.T) {
	idx := scenarioIndex()
	zero := 0
	for _, limit := range []*int{nil, &zero} {
		ts := scanOf(idx)
		ts.Limit = limit
		sp, err := New(ts, []metastore.IndexSnapshot{idx})
		require.NoError(t, err)
		buf, err := Marshal(sp)
		require.NoError(t, err)
		out, err := Unmarshal(buf)
		require.NoError(t, err)
		lp, err := out.LogicalPlan(nil)
		require.NoError(t, err)
		got := lp.(*logical.TableScan)
		if limit == nil {
			require.Nil(t, got.Limit)
			require.NotContains(t, logical.ToString(lp), "limit=")
			continue
		}
		require.NotNil(t, got.Limit)
		require.Zero(t, *got.Limit)
		require.NotSame(t, limit, got.Limit)
		require.Contains(t, logical.ToString(lp), "limit=0")
	}
}

func TestLargeIDs(t *testing.T) {
	const (
		big    = uint64(1) << 63
		bigger = ^uint64(0)
	)
	idx := index("public", "t",
		partition(big, "", chunk(bigger, big, "")),
		partition(bigger, "last.dat"),
	)
	sp, err := New(scanOf(idx), []metastore.IndexSnapshot{idx})
	require.NoError(t, err)
	sp = sp.WithPartitions(metastore.Restrict(big, bigger))
	buf, err := Marshal(sp)
	require.NoError(t, err)
	out, err := Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, []uint64{big, bigger}, out.PartitionIDsToExecute())
	require.Equal(t, []string{"18446744073709551615.chunk.parquet", "last.dat"}, out.FilesToDownload())
	_, err = out.Fingerprint()
	require.NoError(t, err)
}
