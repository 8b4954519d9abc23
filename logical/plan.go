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

package logical

import (
	"fmt"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/metastore"
)

// Plan is a single node in an executable
// relational plan tree.
//
// The set of Plan implementations is closed;
// every implementation lives in this package.
// Each node exclusively owns its inputs.
type Plan interface {
	fmt.Stringer

	// Inputs returns the child plans
	// in their natural order.
	Inputs() []Plan
	// Schema returns the output schema.
	Schema() expr.Schema

	plan()
}

// TableSource is implemented by the
// table-access handles held by a TableScan.
type TableSource interface {
	TableSchema() expr.Schema
}

// Nonterminal is embedded in every
// Plan that has exactly one input.
type Nonterminal struct {
	Input Plan
}

func (n *Nonterminal) Inputs() []Plan { return []Plan{n.Input} }

// Projection evaluates a list of
// expressions against each input row.
type Projection struct {
	Nonterminal
	Exprs  []expr.Node
	Output expr.Schema
}

// Filter discards rows for which
// Predicate is not true.
type Filter struct {
	Nonterminal
	Predicate expr.Node
}

// Aggregate groups its input by
// GroupExprs and computes AggrExprs
// for each group.
type Aggregate struct {
	Nonterminal
	GroupExprs []expr.Node
	AggrExprs  []expr.Node
	Output     expr.Schema
}

// Sort orders its input. Each of
// Exprs is an *expr.Sort.
type Sort struct {
	Nonterminal
	Exprs []expr.Node
}

// Union concatenates its inputs.
type Union struct {
	Plans  []Plan
	Output expr.Schema
	// Alias is optional.
	Alias string
}

// JoinType is the kind of a Join.
type JoinType uint8

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinSemi
	JoinAnti
	joinTypeCount
)

var joinTypeNames = [joinTypeCount]string{
	JoinInner: "inner",
	JoinLeft:  "left",
	JoinRight: "right",
	JoinFull:  "full",
	JoinSemi:  "semi",
	JoinAnti:  "anti",
}

func (j JoinType) String() string {
	if j < joinTypeCount {
		return joinTypeNames[j]
	}
	return fmt.Sprintf("JoinType(%d)", uint8(j))
}

// ParseJoinType is the inverse of JoinType.String.
func ParseJoinType(s string) (JoinType, bool) {
	for i := range joinTypeNames {
		if joinTypeNames[i] == s {
			return JoinType(i), true
		}
	}
	return 0, false
}

// JoinOn is one equality condition of a Join.
type JoinOn struct {
	Left, Right expr.Column
}

// Join combines the rows of Left
// and Right on equal column pairs.
type Join struct {
	Left, Right Plan
	On          []JoinOn
	Type        JoinType
	Output      expr.Schema
}

// TableScan reads rows from a table.
type TableScan struct {
	TableName string
	Source    TableSource
	// Projection is the list of source
	// column indexes to read; nil means all.
	Projection      []int
	ProjectedSchema expr.Schema
	// Filters are predicates that the
	// source may use to skip data.
	Filters []expr.Node
	Alias   string
	// Limit is the maximum number of rows
	// to read, or nil if there is no limit.
	Limit *int
}

// EmptyRelation produces either no
// rows or exactly one row with no columns.
type EmptyRelation struct {
	ProduceOneRow bool
	Output        expr.Schema
}

// Limit returns at most N rows.
type Limit struct {
	Nonterminal
	N int64
}

// Skip discards the first N rows.
type Skip struct {
	Nonterminal
	N int64
}

// Partitioning describes how a Repartition
// distributes rows. It is either *RoundRobin
// or *Hash.
type Partitioning interface {
	fmt.Stringer
	// Count returns the number of output partitions.
	Count() int
	partitioning()
}

type RoundRobin struct {
	N int
}

type Hash struct {
	Exprs []expr.Node
	N     int
}

func (r *RoundRobin) Count() int { return r.N }
func (h *Hash) Count() int       { return h.N }
func (*RoundRobin) partitioning() {}
func (*Hash) partitioning()       {}

func (r *RoundRobin) String() string { return fmt.Sprintf("round_robin(%d)", r.N) }
func (h *Hash) String() string {
	return fmt.Sprintf("hash(%s; %d)", exprList(h.Exprs), h.N)
}

// Repartition redistributes its input rows.
type Repartition struct {
	Nonterminal
	Scheme Partitioning
}

// ClusterSend ships its input to the
// workers of the cluster. Snapshots holds,
// for every table read by the input, the
// index snapshots that describe all of the
// data the workers may scan.
type ClusterSend struct {
	Nonterminal
	Snapshots [][]metastore.IndexSnapshot
}

// SortColumn is one ordering key of a
// ClusterAggregateTopK; AggIndex selects
// one of the aggregate expressions.
type SortColumn struct {
	AggIndex   int
	Asc        bool
	NullsFirst bool
}

// ClusterAggregateTopK computes the first
// Limit groups of an aggregation ordered by
// SortColumns. Each worker produces its own
// top groups and the results are merged.
type ClusterAggregateTopK struct {
	Nonterminal
	Limit          int
	GroupExprs     []expr.Node
	AggregateExprs []expr.Node
	SortColumns    []SortColumn
	Output         expr.Schema
	Snapshots      [][]metastore.IndexSnapshot
}

// Explain describes another plan.
type Explain struct {
	Verbose bool
	Plan    Plan
}

// CreateExternalTable defines a
// table backed by external files.
type CreateExternalTable struct {
	Name     string
	Location string
	Format   string
	Output   expr.Schema
}

// UserDefined is the interface that
// operators private to a planner implement
// so that they can appear in a plan inside
// an Extension.
type UserDefined interface {
	Name() string
	Inputs() []Plan
	Schema() expr.Schema
}

// Extension wraps a UserDefined operator.
type Extension struct {
	Node UserDefined
}

func (p *Projection) Schema() expr.Schema { return p.Output }
func (f *Filter) Schema() expr.Schema     { return f.Input.Schema() }
func (a *Aggregate) Schema() expr.Schema  { return a.Output }
func (s *Sort) Schema() expr.Schema       { return s.Input.Schema() }
func (u *Union) Schema() expr.Schema      { return u.Output }
func (j *Join) Schema() expr.Schema       { return j.Output }
func (t *TableScan) Schema() expr.Schema  { return t.ProjectedSchema }
func (e *EmptyRelation) Schema() expr.Schema {
	return e.Output
}
func (l *Limit) Schema() expr.Schema       { return l.Input.Schema() }
func (s *Skip) Schema() expr.Schema        { return s.Input.Schema() }
func (r *Repartition) Schema() expr.Schema { return r.Input.Schema() }
func (c *ClusterSend) Schema() expr.Schema { return c.Input.Schema() }
func (c *ClusterAggregateTopK) Schema() expr.Schema {
	return c.Output
}

var explainSchema = expr.Schema{
	{Name: "plan_type", Type: expr.TypeUtf8},
	{Name: "plan", Type: expr.TypeUtf8},
}

func (e *Explain) Schema() expr.Schema             { return explainSchema }
func (c *CreateExternalTable) Schema() expr.Schema { return expr.Schema{} }
func (e *Extension) Schema() expr.Schema           { return e.Node.Schema() }

func (u *Union) Inputs() []Plan               { return u.Plans }
func (j *Join) Inputs() []Plan                { return []Plan{j.Left, j.Right} }
func (t *TableScan) Inputs() []Plan           { return nil }
func (e *EmptyRelation) Inputs() []Plan       { return nil }
func (e *Explain) Inputs() []Plan             { return []Plan{e.Plan} }
func (c *CreateExternalTable) Inputs() []Plan { return nil }
func (e *Extension) Inputs() []Plan           { return e.Node.Inputs() }

func (*Projection) plan()           {}
func (*Filter) plan()               {}
func (*Aggregate) plan()            {}
func (*Sort) plan()                 {}
func (*Union) plan()                {}
func (*Join) plan()                 {}
func (*TableScan) plan()            {}
func (*EmptyRelation) plan()        {}
func (*Limit) plan()                {}
func (*Skip) plan()                 {}
func (*Repartition) plan()          {}
func (*ClusterSend) plan()          {}
func (*ClusterAggregateTopK) plan() {}
func (*Explain) plan()              {}
func (*CreateExternalTable) plan()  {}
func (*Extension) plan()            {}
