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
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/udf"
)

func roundtrip(t *testing.T, n expr.Node) expr.Node {
	t.Helper()
	e, err := From(n)
	require.NoError(t, err)
	buf, err := ionx.Marshal(e.Encode)
	require.NoError(t, err)
	r, err := ionx.Open(buf)
	require.NoError(t, err)
	out, err := Decode(r)
	require.NoError(t, err)
	return out.Node()
}

func TestRoundTrip(t *testing.T) {
	a, b := expr.Col("a"), &expr.Column{Name: "b", Qualifier: "t"}
	coalesce, _ := udf.Scalar("coalesce")
	merge, _ := udf.Aggregate("merge")
	nodes := []expr.Node{
		a,
		b,
		&expr.Alias{Expr: a, Name: "x"},
		&expr.ScalarVariable{Names: []string{"@@session", "tz"}},
		expr.Lit(expr.Null{Of: expr.TypeInt64}),
		expr.Lit(expr.Bool(true)),
		expr.Lit(expr.Int64(-3)),
		expr.Lit(expr.Uint64(math.MaxUint64)),
		expr.Lit(expr.Float64(1.5)),
		expr.Lit(expr.Float64(math.NaN())),
		expr.Lit(expr.String("it's")),
		expr.Lit(expr.Bytes{0, 1, 0xff}),
		expr.Lit(expr.Timestamp(1700000000000000000)),
		expr.Lit(expr.Date(-1)),
		&expr.Binary{Left: a, Op: expr.OpNotLike, Right: expr.Lit(expr.String("x%"))},
		&expr.Unary{Op: expr.OpIsNotNull, Expr: b},
		&expr.Between{Expr: a, Negated: true, Low: expr.Lit(expr.Int64(1)), High: expr.Lit(expr.Int64(2))},
		&expr.Case{
			WhenThen: []expr.WhenThen{{When: a, Then: b}},
		},
		&expr.Case{
			Expr:     a,
			WhenThen: []expr.WhenThen{{When: expr.Lit(expr.Int64(1)), Then: b}, {When: expr.Lit(expr.Int64(2)), Then: a}},
			Else:     expr.Lit(expr.Null{Of: expr.TypeUtf8}),
		},
		&expr.Cast{Expr: a, Type: expr.TypeFloat64, Try: true},
		&expr.Sort{Expr: a, Asc: false, NullsFirst: true},
		&expr.ScalarFunc{Func: expr.Abs, Args: []expr.Node{a}},
		&expr.ScalarUDFCall{Func: coalesce, Args: []expr.Node{a, b, expr.Lit(expr.Int64(0))}},
		&expr.Aggregate{Op: expr.AggCount, Args: []expr.Node{expr.Wildcard{}}},
		&expr.Aggregate{Op: expr.AggSum, Args: []expr.Node{a}, Distinct: true},
		&expr.AggregateUDFCall{Func: merge, Args: []expr.Node{b}},
		&expr.InList{Expr: a, List: []expr.Node{expr.Lit(expr.Int64(1)), expr.Lit(expr.Int64(2))}, Negated: true},
		expr.Wildcard{},
	}
	for _, n := range nodes {
		t.Run(expr.ToString(n), func(t *testing.T) {
			got := roundtrip(t, n)
			if !expr.Equal(n, got) {
				t.Fatalf("got %s, want %s", expr.ToString(got), expr.ToString(n))
			}
		})
	}
}

func TestFunctionKinds(t *testing.T) {
	for _, k := range udf.ScalarKinds() {
		desc := udf.ScalarByKind(k)
		args := make([]expr.Node, len(desc.Signature))
		for i := range args {
			args[i] = expr.Lit(expr.Null{Of: desc.Signature[i]})
		}
		got := roundtrip(t, &expr.ScalarUDFCall{Func: &expr.ScalarUDF{Name: desc.Name}, Args: args})
		call, ok := got.(*expr.ScalarUDFCall)
		require.True(t, ok)
		require.Equal(t, desc.Name, call.Func.Name)
		require.Len(t, call.Args, len(args))
		require.Same(t, desc, call.Func)
	}
	for _, k := range udf.AggregateKinds() {
		desc := udf.AggregateByKind(k)
		got := roundtrip(t, &expr.AggregateUDFCall{Func: &expr.AggregateUDF{Name: desc.Name}, Args: []expr.Node{expr.Col("x")}})
		call, ok := got.(*expr.AggregateUDFCall)
		require.True(t, ok)
		require.Equal(t, desc.Name, call.Func.Name)
		require.Len(t, call.Args, 1)
	}
}

func TestUnknownFunction(t *testing.T) {
	bogus := &expr.Binary{
		Left: expr.Col("a"),
		Op:   expr.OpEq,
		Right: &expr.ScalarUDFCall{
			Func: &expr.ScalarUDF{Name: "no_such_function"},
		},
	}
	_, err := From(bogus)
	require.ErrorIs(t, err, ErrUnknownFunction)

	_, err = From(&expr.AggregateUDFCall{Func: &expr.AggregateUDF{Name: "nope"}})
	require.ErrorIs(t, err, ErrUnknownFunction)
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		write func(e *ionx.Encoder)
		is    error
	}{
		{
			name: "unknown type",
			write: func(e *ionx.Encoder) {
				e.BeginStruct()
				e.SetType("subquery")
				e.EndStruct()
			},
			is: ionx.ErrUnknownType,
		},
		{
			name: "type not first",
			write: func(e *ionx.Encoder) {
				e.BeginStruct()
				e.Field("name")
				e.String("a")
				e.SetType("column")
				e.EndStruct()
			},
		},
		{
			name: "unexpected field",
			write: func(e *ionx.Encoder) {
				e.BeginStruct()
				e.SetType("column")
				e.Field("name")
				e.String("a")
				e.Field("color")
				e.String("red")
				e.EndStruct()
			},
			is: ionx.ErrUnexpectedField,
		},
		{
			name: "missing operand",
			write: func(e *ionx.Encoder) {
				e.BeginStruct()
				e.SetType("binary")
				e.Field("op")
				e.Symbol("=")
				e.Field("left")
				(&Column{Name: "a"}).Encode(e)
				e.EndStruct()
			},
		},
		{
			name: "unknown kind",
			write: func(e *ionx.Encoder) {
				e.BeginStruct()
				e.SetType("scalar_udf")
				e.Field("kind")
				e.Symbol("launch_missiles")
				e.Field("args")
				e.BeginList()
				e.EndList()
				e.EndStruct()
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf, err := ionx.Marshal(c.write)
			require.NoError(t, err)
			r, err := ionx.Open(buf)
			require.NoError(t, err)
			_, err = Decode(r)
			require.Error(t, err)
			if c.is != nil {
				require.ErrorIs(t, err, c.is)
			}
		})
	}
}

func TestInvalidExpressions(t *testing.T) {
	for _, n := range []expr.Node{
		nil,
		&expr.Alias{Name: "a"},
		&expr.Binary{Left: expr.Col("a"), Op: expr.OpEq},
		&expr.Between{Expr: expr.Col("a"), Low: expr.Lit(expr.Int64(1))},
		&expr.InList{List: []expr.Node{expr.Lit(expr.Int64(1))}},
	} {
		_, err := From(n)
		require.ErrorIs(t, err, ErrInvalidExpression, "%T", n)
	}

	for _, n := range []expr.Node{expr.Wildcard{}, &expr.Wildcard{}} {
		e, err := From(n)
		require.NoError(t, err)
		require.Equal(t, &Wildcard{}, e)
		require.True(t, expr.Equal(expr.Wildcard{}, e.Node()))
	}
}
