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
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
	"github.com/SnellerInc/shardplan/plan/pexpr"
)

// Materialize rebuilds an executable plan from
// a snapshot plan. Every table scan is bound to
// the local files in remoteToLocal and restricted
// to the partitions in parts.
//
// The first error encountered aborts the whole
// conversion; Materialize never returns a
// partially built plan.
func Materialize(n Node, remoteToLocal map[string]string, parts metastore.PartitionSet) (logical.Plan, error) {
	m := materializer{local: remoteToLocal, parts: parts}
	return m.plan(n)
}

type materializer struct {
	local map[string]string
	parts metastore.PartitionSet
}

func (m *materializer) nonterminal(n *Nonterminal) (logical.Nonterminal, error) {
	in, err := m.plan(n.From)
	return logical.Nonterminal{Input: in}, err
}

func (m *materializer) plan(n Node) (logical.Plan, error) {
	switch n := n.(type) {
	case *Projection:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.Projection{
			Nonterminal: in,
			Exprs:       pexpr.Nodes(n.Exprs),
			Output:      n.Output.Clone(),
		}, nil
	case *Filter:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.Filter{Nonterminal: in, Predicate: n.Predicate.Node()}, nil
	case *Aggregate:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.Aggregate{
			Nonterminal: in,
			GroupExprs:  pexpr.Nodes(n.GroupExprs),
			AggrExprs:   pexpr.Nodes(n.AggrExprs),
			Output:      n.Output.Clone(),
		}, nil
	case *Sort:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.Sort{Nonterminal: in, Exprs: pexpr.Nodes(n.Exprs)}, nil
	case *Union:
		out := &logical.Union{
			Plans:  make([]logical.Plan, len(n.Plans)),
			Output: n.Output.Clone(),
			Alias:  n.Alias,
		}
		for i := range n.Plans {
			p, err := m.plan(n.Plans[i])
			if err != nil {
				return nil, err
			}
			out.Plans[i] = p
		}
		return out, nil
	case *Join:
		left, err := m.plan(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := m.plan(n.Right)
		if err != nil {
			return nil, err
		}
		return &logical.Join{
			Left:   left,
			Right:  right,
			On:     append([]logical.JoinOn(nil), n.On...),
			Type:   n.Type,
			Output: n.Output.Clone(),
		}, nil
	case *TableScan:
		tbl, err := n.Table.Bind(m.local, m.parts)
		if err != nil {
			return nil, errors.Wrapf(err, "binding table %q", n.TableName)
		}
		var proj []int
		if n.Projection != nil {
			proj = append([]int{}, n.Projection...)
		}
		return &logical.TableScan{
			TableName:       n.TableName,
			Source:          tbl,
			Projection:      proj,
			ProjectedSchema: n.ProjectedSchema.Clone(),
			Filters:         pexpr.Nodes(n.Filters),
			Alias:           n.Alias,
			Limit:           cloneLimit(n.Limit),
		}, nil
	case *EmptyRelation:
		return &logical.EmptyRelation{ProduceOneRow: n.ProduceOneRow, Output: n.Output.Clone()}, nil
	case *Limit:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.Limit{Nonterminal: in, N: n.N}, nil
	case *Skip:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.Skip{Nonterminal: in, N: n.N}, nil
	case *Repartition:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		var scheme logical.Partitioning = &logical.RoundRobin{N: n.N}
		if n.Hashed {
			scheme = &logical.Hash{Exprs: pexpr.Nodes(n.HashExprs), N: n.N}
		}
		return &logical.Repartition{Nonterminal: in, Scheme: scheme}, nil
	case *ClusterSend:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.ClusterSend{Nonterminal: in, Snapshots: n.Snapshots}, nil
	case *ClusterAggregateTopK:
		in, err := m.nonterminal(&n.Nonterminal)
		if err != nil {
			return nil, err
		}
		return &logical.ClusterAggregateTopK{
			Nonterminal:    in,
			Limit:          n.Limit,
			GroupExprs:     pexpr.Nodes(n.GroupExprs),
			AggregateExprs: pexpr.Nodes(n.AggregateExprs),
			SortColumns:    append([]logical.SortColumn{}, n.SortColumns...),
			Output:         n.Output.Clone(),
			Snapshots:      n.Snapshots,
		}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedPlan, "unexpected node %T", n)
}

