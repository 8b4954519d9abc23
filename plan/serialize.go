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
	"fmt"

	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
	"github.com/SnellerInc/shardplan/plan/pexpr"
	"github.com/SnellerInc/shardplan/scan"
)

var (
	// ErrUnsupportedPlan is returned by Serialize
	// for plans that have no snapshot form.
	ErrUnsupportedPlan = errors.New("plan is not supported in a distributed context")
	// ErrUnrecognizedExtension is returned by
	// Serialize for planner-private operators.
	ErrUnrecognizedExtension = errors.New("unrecognized extension operator")
	// ErrUnexpectedTableSource is returned by
	// Serialize when a table scan does not
	// read a *scan.Table.
	ErrUnexpectedTableSource = errors.New("unexpected table source")
	// ErrUnknownFunction is returned by Serialize
	// when a user-defined function is not registered.
	ErrUnknownFunction = pexpr.ErrUnknownFunction
	// ErrInvalidExpression is returned by Serialize
	// for a missing expression or an expression
	// kind that has no snapshot form.
	ErrInvalidExpression = pexpr.ErrInvalidExpression
	// ErrInvalidPlan is returned when a plan node
	// is internally inconsistent.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Serialize converts an executable plan into
// its snapshot form. Serialize never returns
// a partially converted plan.
func Serialize(p logical.Plan) (Node, error) {
	switch p := p.(type) {
	case *logical.Projection:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		exprs, err := pexpr.FromList(p.Exprs)
		if err != nil {
			return nil, errors.Wrap(err, "projection")
		}
		return &Projection{
			Nonterminal: Nonterminal{From: in},
			Exprs:       exprs,
			Output:      p.Output.Clone(),
		}, nil
	case *logical.Filter:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		pred, err := pexpr.From(p.Predicate)
		if err != nil {
			return nil, errors.Wrap(err, "filter")
		}
		return &Filter{Nonterminal: Nonterminal{From: in}, Predicate: pred}, nil
	case *logical.Aggregate:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		group, err := pexpr.FromList(p.GroupExprs)
		if err != nil {
			return nil, errors.Wrap(err, "aggregate group")
		}
		aggr, err := pexpr.FromList(p.AggrExprs)
		if err != nil {
			return nil, errors.Wrap(err, "aggregate")
		}
		return &Aggregate{
			Nonterminal: Nonterminal{From: in},
			GroupExprs:  group,
			AggrExprs:   aggr,
			Output:      p.Output.Clone(),
		}, nil
	case *logical.Sort:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		exprs, err := pexpr.FromList(p.Exprs)
		if err != nil {
			return nil, errors.Wrap(err, "sort")
		}
		return &Sort{Nonterminal: Nonterminal{From: in}, Exprs: exprs}, nil
	case *logical.Union:
		out := &Union{
			Plans:  make([]Node, len(p.Plans)),
			Output: p.Output.Clone(),
			Alias:  p.Alias,
		}
		for i := range p.Plans {
			in, err := Serialize(p.Plans[i])
			if err != nil {
				return nil, err
			}
			out.Plans[i] = in
		}
		return out, nil
	case *logical.Join:
		left, err := Serialize(p.Left)
		if err != nil {
			return nil, err
		}
		right, err := Serialize(p.Right)
		if err != nil {
			return nil, err
		}
		return &Join{
			Left:   left,
			Right:  right,
			On:     append([]logical.JoinOn(nil), p.On...),
			Type:   p.Type,
			Output: p.Output.Clone(),
		}, nil
	case *logical.TableScan:
		tbl, ok := p.Source.(*scan.Table)
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedTableSource, "table scan of %q: %T", p.TableName, p.Source)
		}
		filters, err := pexpr.FromList(p.Filters)
		if err != nil {
			return nil, errors.Wrapf(err, "table scan of %q", p.TableName)
		}
		var proj []int
		if p.Projection != nil {
			proj = append([]int{}, p.Projection...)
		}
		return &TableScan{
			TableName:       p.TableName,
			Table:           scan.New(tbl.Index, tbl.Schema),
			Projection:      proj,
			ProjectedSchema: p.ProjectedSchema.Clone(),
			Filters:         filters,
			Alias:           p.Alias,
			Limit:           cloneLimit(p.Limit),
		}, nil
	case *logical.EmptyRelation:
		return &EmptyRelation{ProduceOneRow: p.ProduceOneRow, Output: p.Output.Clone()}, nil
	case *logical.Limit:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		return &Limit{Nonterminal: Nonterminal{From: in}, N: p.N}, nil
	case *logical.Skip:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		return &Skip{Nonterminal: Nonterminal{From: in}, N: p.N}, nil
	case *logical.Repartition:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		out := &Repartition{Nonterminal: Nonterminal{From: in}, N: p.Scheme.Count()}
		if h, ok := p.Scheme.(*logical.Hash); ok {
			out.Hashed = true
			out.HashExprs, err = pexpr.FromList(h.Exprs)
			if err != nil {
				return nil, errors.Wrap(err, "repartition")
			}
		}
		return out, nil
	case *logical.ClusterSend:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		return &ClusterSend{
			Nonterminal: Nonterminal{From: in},
			Snapshots:   cloneSnapshots(p.Snapshots),
		}, nil
	case *logical.ClusterAggregateTopK:
		in, err := Serialize(p.Input)
		if err != nil {
			return nil, err
		}
		group, err := pexpr.FromList(p.GroupExprs)
		if err != nil {
			return nil, errors.Wrap(err, "topk group")
		}
		aggr, err := pexpr.FromList(p.AggregateExprs)
		if err != nil {
			return nil, errors.Wrap(err, "topk aggregate")
		}
		out := &ClusterAggregateTopK{
			Nonterminal:    Nonterminal{From: in},
			Limit:          p.Limit,
			GroupExprs:     group,
			AggregateExprs: aggr,
			SortColumns:    append([]logical.SortColumn{}, p.SortColumns...),
			Output:         p.Output.Clone(),
			Snapshots:      cloneSnapshots(p.Snapshots),
		}
		if err := out.check(); err != nil {
			return nil, errors.Wrap(err, "topk")
		}
		return out, nil
	case *logical.Extension:
		return nil, errors.Wrapf(ErrUnrecognizedExtension, "%q", p.Node.Name())
	case *logical.Explain:
		return nil, errors.Wrap(ErrUnsupportedPlan, "explain")
	case *logical.CreateExternalTable:
		return nil, errors.Wrapf(ErrUnsupportedPlan, "create external table %q", p.Name)
	}
	return nil, errors.Wrap(ErrUnsupportedPlan, fmt.Sprintf("%T", p))
}

func cloneLimit(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

// cloneSnapshots copies the outer lists;
// the snapshots themselves are immutable
func cloneSnapshots(in [][]metastore.IndexSnapshot) [][]metastore.IndexSnapshot {
	out := make([][]metastore.IndexSnapshot, len(in))
	for i := range in {
		out[i] = append([]metastore.IndexSnapshot{}, in[i]...)
	}
	return out
}
