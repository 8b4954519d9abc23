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
	"strconv"
	"strings"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/metastore"
)

func exprList(lst []expr.Node) string {
	var dst strings.Builder
	for i := range lst {
		if i > 0 {
			dst.WriteString(", ")
		}
		dst.WriteString(expr.ToString(lst[i]))
	}
	return dst.String()
}

func (p *Projection) String() string {
	return "Projection: " + exprList(p.Exprs)
}

func (f *Filter) String() string {
	return "Filter: " + expr.ToString(f.Predicate)
}

func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate: groupBy=[%s], aggr=[%s]", exprList(a.GroupExprs), exprList(a.AggrExprs))
}

func (s *Sort) String() string {
	return "Sort: " + exprList(s.Exprs)
}

func (u *Union) String() string {
	if u.Alias != "" {
		return "Union: " + u.Alias
	}
	return "Union"
}

func (j *Join) String() string {
	var dst strings.Builder
	fmt.Fprintf(&dst, "Join: type=%s, on=[", j.Type)
	for i := range j.On {
		if i > 0 {
			dst.WriteString(", ")
		}
		fmt.Fprintf(&dst, "%s = %s", expr.ToString(&j.On[i].Left), expr.ToString(&j.On[i].Right))
	}
	dst.WriteByte(']')
	return dst.String()
}

func (t *TableScan) String() string {
	var dst strings.Builder
	dst.WriteString("TableScan: ")
	dst.WriteString(t.TableName)
	if t.Alias != "" {
		dst.WriteString(" AS ")
		dst.WriteString(t.Alias)
	}
	if t.Projection != nil {
		dst.WriteString(" projection=[")
		for i, c := range t.Projection {
			if i > 0 {
				dst.WriteString(", ")
			}
			dst.WriteString(strconv.Itoa(c))
		}
		dst.WriteByte(']')
	}
	if len(t.Filters) > 0 {
		fmt.Fprintf(&dst, " filters=[%s]", exprList(t.Filters))
	}
	if t.Limit != nil {
		fmt.Fprintf(&dst, " limit=%d", *t.Limit)
	}
	return dst.String()
}

func (e *EmptyRelation) String() string {
	if e.ProduceOneRow {
		return "EmptyRelation: one row"
	}
	return "EmptyRelation"
}

func (l *Limit) String() string       { return fmt.Sprintf("Limit: %d", l.N) }
func (s *Skip) String() string        { return fmt.Sprintf("Skip: %d", s.N) }
func (r *Repartition) String() string { return "Repartition: " + r.Scheme.String() }

func snapshotList(dst *strings.Builder, lst [][]metastore.IndexSnapshot) {
	dst.WriteByte('[')
	for i := range lst {
		if i > 0 {
			dst.WriteString(", ")
		}
		for j := range lst[i] {
			if j > 0 {
				dst.WriteByte('|')
			}
			s := &lst[i][j]
			fmt.Fprintf(dst, "%s/%s(%d)", s.TableName(), s.Index.Row.Name, len(s.Partitions))
		}
	}
	dst.WriteByte(']')
}

func (c *ClusterSend) String() string {
	var dst strings.Builder
	dst.WriteString("ClusterSend: snapshots=")
	snapshotList(&dst, c.Snapshots)
	return dst.String()
}

func (c *ClusterAggregateTopK) String() string {
	var dst strings.Builder
	fmt.Fprintf(&dst, "ClusterAggregateTopK: limit=%d, groupBy=[%s], aggr=[%s], sortBy=[",
		c.Limit, exprList(c.GroupExprs), exprList(c.AggregateExprs))
	for i, s := range c.SortColumns {
		if i > 0 {
			dst.WriteString(", ")
		}
		dst.WriteString(strconv.Itoa(s.AggIndex))
		if s.Asc {
			dst.WriteString(" ASC")
		} else {
			dst.WriteString(" DESC")
		}
		if s.NullsFirst {
			dst.WriteString(" NULLS FIRST")
		} else {
			dst.WriteString(" NULLS LAST")
		}
	}
	dst.WriteString("], snapshots=")
	snapshotList(&dst, c.Snapshots)
	return dst.String()
}

func (e *Explain) String() string {
	if e.Verbose {
		return "Explain: verbose"
	}
	return "Explain"
}

func (c *CreateExternalTable) String() string {
	return fmt.Sprintf("CreateExternalTable: %s location=%q format=%s", c.Name, c.Location, c.Format)
}

func (e *Extension) String() string { return "Extension: " + e.Node.Name() }

func tabline(dst *strings.Builder, indent int, line string) {
	for i := 0; i < indent; i++ {
		dst.WriteByte('\t')
	}
	dst.WriteString(line)
	dst.WriteByte('\n')
}

func describe(dst *strings.Builder, indent int, p Plan) {
	tabline(dst, indent, p.String())
	for _, in := range p.Inputs() {
		describe(dst, indent+1, in)
	}
}

// ToString returns an indented, one-node-per-line
// description of the plan rooted at p.
func ToString(p Plan) string {
	var dst strings.Builder
	describe(&dst, 0, p)
	return dst.String()
}
