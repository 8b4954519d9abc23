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

package pexpr

import (
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/udf"
)

// ErrUnknownFunction is returned by From when a
// user-defined function is not in the registry.
var ErrUnknownFunction = errors.New("unknown function")

// ErrInvalidExpression is returned by From for a
// missing expression or an expression kind that
// has no snapshot form.
var ErrInvalidExpression = errors.New("invalid expression")

// From converts an executable expression
// into its snapshot form. User-defined
// functions are resolved by name to their
// registered kind.
func From(n expr.Node) (Expr, error) {
	switch n := n.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidExpression, "missing expression")
	case *expr.Alias:
		in, err := From(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Alias{Expr: in, Name: n.Name}, nil
	case *expr.Column:
		return &Column{Name: n.Name, Qualifier: n.Qualifier}, nil
	case *expr.ScalarVariable:
		return &ScalarVariable{Names: append([]string(nil), n.Names...)}, nil
	case *expr.Literal:
		return &Literal{Value: n.Value}, nil
	case *expr.Binary:
		left, err := From(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := From(n.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Left: left, Op: n.Op, Right: right}, nil
	case *expr.Unary:
		in, err := From(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: n.Op, Expr: in}, nil
	case *expr.Between:
		lst, err := FromList([]expr.Node{n.Expr, n.Low, n.High})
		if err != nil {
			return nil, err
		}
		return &Between{Expr: lst[0], Negated: n.Negated, Low: lst[1], High: lst[2]}, nil
	case *expr.Case:
		out := &Case{WhenThen: make([]WhenThen, len(n.WhenThen))}
		var err error
		if out.Expr, err = fromOptional(n.Expr); err != nil {
			return nil, err
		}
		for i := range n.WhenThen {
			if out.WhenThen[i].When, err = From(n.WhenThen[i].When); err != nil {
				return nil, err
			}
			if out.WhenThen[i].Then, err = From(n.WhenThen[i].Then); err != nil {
				return nil, err
			}
		}
		if out.Else, err = fromOptional(n.Else); err != nil {
			return nil, err
		}
		return out, nil
	case *expr.Cast:
		in, err := From(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Cast{Expr: in, Type: n.Type, Try: n.Try}, nil
	case *expr.Sort:
		in, err := From(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Sort{Expr: in, Asc: n.Asc, NullsFirst: n.NullsFirst}, nil
	case *expr.ScalarFunc:
		args, err := FromList(n.Args)
		if err != nil {
			return nil, err
		}
		return &ScalarFunc{Func: n.Func, Args: args}, nil
	case *expr.ScalarUDFCall:
		if n.Func == nil {
			return nil, errors.Wrap(ErrUnknownFunction, "scalar function without a descriptor")
		}
		kind, ok := udf.ScalarKindByName(n.Func.Name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownFunction, "scalar function %q", n.Func.Name)
		}
		args, err := FromList(n.Args)
		if err != nil {
			return nil, err
		}
		return &ScalarUDF{Kind: kind, Args: args}, nil
	case *expr.Aggregate:
		args, err := FromList(n.Args)
		if err != nil {
			return nil, err
		}
		return &Aggregate{Op: n.Op, Args: args, Distinct: n.Distinct}, nil
	case *expr.AggregateUDFCall:
		if n.Func == nil {
			return nil, errors.Wrap(ErrUnknownFunction, "aggregate function without a descriptor")
		}
		kind, ok := udf.AggregateKindByName(n.Func.Name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownFunction, "aggregate function %q", n.Func.Name)
		}
		args, err := FromList(n.Args)
		if err != nil {
			return nil, err
		}
		return &AggregateUDF{Kind: kind, Args: args}, nil
	case *expr.InList:
		in, err := From(n.Expr)
		if err != nil {
			return nil, err
		}
		lst, err := FromList(n.List)
		if err != nil {
			return nil, err
		}
		return &InList{Expr: in, List: lst, Negated: n.Negated}, nil
	case expr.Wildcard, *expr.Wildcard:
		return &Wildcard{}, nil
	}
	return nil, errors.Wrapf(ErrInvalidExpression, "unexpected expression %T", n)
}

func fromOptional(n expr.Node) (Expr, error) {
	if n == nil {
		return nil, nil
	}
	return From(n)
}

// FromList converts each expression in lst.
func FromList(lst []expr.Node) ([]Expr, error) {
	out := make([]Expr, len(lst))
	for i := range lst {
		e, err := From(lst[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Nodes rebuilds each expression in lst.
func Nodes(lst []Expr) []expr.Node {
	out := make([]expr.Node, len(lst))
	for i := range lst {
		out[i] = lst[i].Node()
	}
	return out
}

func optional(e Expr) expr.Node {
	if e == nil {
		return nil
	}
	return e.Node()
}

func (a *Alias) Node() expr.Node {
	return &expr.Alias{Expr: a.Expr.Node(), Name: a.Name}
}

func (c *Column) Node() expr.Node {
	return &expr.Column{Name: c.Name, Qualifier: c.Qualifier}
}

func (s *ScalarVariable) Node() expr.Node {
	return &expr.ScalarVariable{Names: append([]string(nil), s.Names...)}
}

func (l *Literal) Node() expr.Node { return &expr.Literal{Value: l.Value} }

func (b *Binary) Node() expr.Node {
	return &expr.Binary{Left: b.Left.Node(), Op: b.Op, Right: b.Right.Node()}
}

func (u *Unary) Node() expr.Node {
	return &expr.Unary{Op: u.Op, Expr: u.Expr.Node()}
}

func (b *Between) Node() expr.Node {
	return &expr.Between{
		Expr:    b.Expr.Node(),
		Negated: b.Negated,
		Low:     b.Low.Node(),
		High:    b.High.Node(),
	}
}

func (c *Case) Node() expr.Node {
	out := &expr.Case{
		Expr:     optional(c.Expr),
		WhenThen: make([]expr.WhenThen, len(c.WhenThen)),
		Else:     optional(c.Else),
	}
	for i := range c.WhenThen {
		out.WhenThen[i] = expr.WhenThen{
			When: c.WhenThen[i].When.Node(),
			Then: c.WhenThen[i].Then.Node(),
		}
	}
	return out
}

func (c *Cast) Node() expr.Node {
	return &expr.Cast{Expr: c.Expr.Node(), Type: c.Type, Try: c.Try}
}

func (s *Sort) Node() expr.Node {
	return &expr.Sort{Expr: s.Expr.Node(), Asc: s.Asc, NullsFirst: s.NullsFirst}
}

func (s *ScalarFunc) Node() expr.Node {
	return &expr.ScalarFunc{Func: s.Func, Args: Nodes(s.Args)}
}

func (s *ScalarUDF) Node() expr.Node {
	return &expr.ScalarUDFCall{Func: udf.ScalarByKind(s.Kind), Args: Nodes(s.Args)}
}

func (a *Aggregate) Node() expr.Node {
	return &expr.Aggregate{Op: a.Op, Args: Nodes(a.Args), Distinct: a.Distinct}
}

func (a *AggregateUDF) Node() expr.Node {
	return &expr.AggregateUDFCall{Func: udf.AggregateByKind(a.Kind), Args: Nodes(a.Args)}
}

func (i *InList) Node() expr.Node {
	return &expr.InList{Expr: i.Expr.Node(), List: Nodes(i.List), Negated: i.Negated}
}

func (w *Wildcard) Node() expr.Node { return expr.Wildcard{} }
