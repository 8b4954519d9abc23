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
	"github.com/amazon-ion/ion-go/ion"
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/udf"
)

// Expr is a snapshot expression node.
//
// Every Expr encodes itself as a struct whose
// first field is "type" and whose remaining
// fields are set through SetField on decode.
type Expr interface {
	ionx.FieldSetter

	// Node rebuilds the executable expression.
	Node() expr.Node
	// Encode writes the expression.
	Encode(e *ionx.Encoder)

	check() error
}

type (
	Alias struct {
		Expr Expr
		Name string
	}
	Column struct {
		Name, Qualifier string
	}
	ScalarVariable struct {
		Names []string
	}
	Literal struct {
		Value expr.Scalar
	}
	Binary struct {
		Left  Expr
		Op    expr.Operator
		Right Expr
	}
	Unary struct {
		Op   expr.UnaryOp
		Expr Expr
	}
	Between struct {
		Expr      Expr
		Negated   bool
		Low, High Expr
	}
	WhenThen struct {
		When, Then Expr
	}
	Case struct {
		Expr     Expr // optional
		WhenThen []WhenThen
		Else     Expr // optional
	}
	Cast struct {
		Expr Expr
		Type expr.DataType
		Try  bool
	}
	Sort struct {
		Expr       Expr
		Asc        bool
		NullsFirst bool
	}
	ScalarFunc struct {
		Func expr.BuiltinFunc
		Args []Expr
	}
	// ScalarUDF is a call to a user-defined
	// scalar function, identified by kind.
	ScalarUDF struct {
		Kind udf.ScalarKind
		Args []Expr
	}
	Aggregate struct {
		Op       expr.AggregateOp
		Args     []Expr
		Distinct bool
	}
	// AggregateUDF is a call to a user-defined
	// aggregate function, identified by kind.
	AggregateUDF struct {
		Kind udf.AggregateKind
		Args []Expr
	}
	InList struct {
		Expr    Expr
		List    []Expr
		Negated bool
	}
	Wildcard struct{}
)

func empty(typ string) (ionx.FieldSetter, bool) {
	switch typ {
	case "alias":
		return &Alias{}, true
	case "column":
		return &Column{}, true
	case "scalar_variable":
		return &ScalarVariable{}, true
	case "literal":
		return &Literal{}, true
	case "binary":
		return &Binary{}, true
	case "unary":
		return &Unary{}, true
	case "between":
		return &Between{}, true
	case "case":
		return &Case{}, true
	case "cast":
		return &Cast{}, true
	case "sort":
		return &Sort{}, true
	case "scalar_func":
		return &ScalarFunc{}, true
	case "scalar_udf":
		return &ScalarUDF{}, true
	case "aggregate":
		return &Aggregate{}, true
	case "aggregate_udf":
		return &AggregateUDF{}, true
	case "in_list":
		return &InList{}, true
	case "wildcard":
		return &Wildcard{}, true
	}
	return nil, false
}

// Decode reads an expression written by Expr.Encode.
func Decode(r ion.Reader) (Expr, error) {
	fs, err := ionx.UnpackTyped(r, empty)
	if err != nil {
		return nil, err
	}
	e := fs.(Expr)
	if err := e.check(); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeList reads a list written by EncodeList.
func DecodeList(r ion.Reader) ([]Expr, error) {
	out := []Expr{}
	err := ionx.UnpackList(r, func() error {
		e, err := Decode(r)
		if err == nil {
			out = append(out, e)
		}
		return err
	})
	return out, err
}

// EncodeList writes lst as an ion list.
func EncodeList(e *ionx.Encoder, lst []Expr) {
	e.BeginList()
	for i := range lst {
		lst[i].Encode(e)
	}
	e.EndList()
}

func decodeSymbol[T any](r ion.Reader, parse func(string) (T, bool), what string) (T, error) {
	s, err := ionx.String(r)
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := parse(s)
	if !ok {
		return v, errors.Errorf("unknown %s %q", what, s)
	}
	return v, nil
}

func missing(what string) error {
	return errors.Errorf("missing %s", what)
}

func (a *Alias) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("alias")
	e.Field("expr")
	a.Expr.Encode(e)
	e.Field("name")
	e.String(a.Name)
	e.EndStruct()
}

func (a *Alias) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "expr":
		a.Expr, err = Decode(r)
	case "name":
		a.Name, err = ionx.String(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (c *Column) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("column")
	e.Field("name")
	e.String(c.Name)
	if c.Qualifier != "" {
		e.Field("qualifier")
		e.String(c.Qualifier)
	}
	e.EndStruct()
}

func (c *Column) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "name":
		c.Name, err = ionx.String(r)
	case "qualifier":
		c.Qualifier, err = ionx.String(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (s *ScalarVariable) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("scalar_variable")
	e.Field("names")
	e.Strings(s.Names)
	e.EndStruct()
}

func (s *ScalarVariable) SetField(name string, r ion.Reader) error {
	if name != "names" {
		return ionx.ErrUnexpectedField
	}
	var err error
	s.Names, err = ionx.Strings(r)
	return err
}

func (l *Literal) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("literal")
	e.Field("value")
	expr.EncodeScalar(e, l.Value)
	e.EndStruct()
}

func (l *Literal) SetField(name string, r ion.Reader) error {
	if name != "value" {
		return ionx.ErrUnexpectedField
	}
	var err error
	l.Value, err = expr.DecodeScalar(r)
	return err
}

func (b *Binary) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("binary")
	e.Field("op")
	e.Symbol(b.Op.String())
	e.Field("left")
	b.Left.Encode(e)
	e.Field("right")
	b.Right.Encode(e)
	e.EndStruct()
}

func (b *Binary) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "op":
		b.Op, err = decodeSymbol(r, expr.ParseOperator, "operator")
	case "left":
		b.Left, err = Decode(r)
	case "right":
		b.Right, err = Decode(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (u *Unary) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("unary")
	e.Field("op")
	e.Symbol(u.Op.String())
	e.Field("expr")
	u.Expr.Encode(e)
	e.EndStruct()
}

func (u *Unary) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "op":
		u.Op, err = decodeSymbol(r, expr.ParseUnaryOp, "unary operator")
	case "expr":
		u.Expr, err = Decode(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (b *Between) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("between")
	e.Field("expr")
	b.Expr.Encode(e)
	if b.Negated {
		e.Field("negated")
		e.Bool(true)
	}
	e.Field("low")
	b.Low.Encode(e)
	e.Field("high")
	b.High.Encode(e)
	e.EndStruct()
}

func (b *Between) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "expr":
		b.Expr, err = Decode(r)
	case "negated":
		b.Negated, err = ionx.Bool(r)
	case "low":
		b.Low, err = Decode(r)
	case "high":
		b.High, err = Decode(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (c *Case) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("case")
	if c.Expr != nil {
		e.Field("expr")
		c.Expr.Encode(e)
	}
	e.Field("when_then")
	e.BeginList()
	for i := range c.WhenThen {
		e.BeginStruct()
		e.Field("when")
		c.WhenThen[i].When.Encode(e)
		e.Field("then")
		c.WhenThen[i].Then.Encode(e)
		e.EndStruct()
	}
	e.EndList()
	if c.Else != nil {
		e.Field("else")
		c.Else.Encode(e)
	}
	e.EndStruct()
}

func (c *Case) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "expr":
		c.Expr, err = Decode(r)
	case "when_then":
		c.WhenThen = []WhenThen{}
		err = ionx.UnpackList(r, func() error {
			var wt WhenThen
			err := ionx.UnpackStruct(r, func(name string) error {
				var err error
				switch name {
				case "when":
					wt.When, err = Decode(r)
				case "then":
					wt.Then, err = Decode(r)
				default:
					err = ionx.ErrUnexpectedField
				}
				return err
			})
			if err == nil && (wt.When == nil || wt.Then == nil) {
				err = missing("when or then")
			}
			c.WhenThen = append(c.WhenThen, wt)
			return err
		})
	case "else":
		c.Else, err = Decode(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (c *Cast) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("cast")
	e.Field("expr")
	c.Expr.Encode(e)
	e.Field("to")
	expr.EncodeType(e, c.Type)
	if c.Try {
		e.Field("try")
		e.Bool(true)
	}
	e.EndStruct()
}

func (c *Cast) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "expr":
		c.Expr, err = Decode(r)
	case "to":
		c.Type, err = expr.DecodeType(r)
	case "try":
		c.Try, err = ionx.Bool(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (s *Sort) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("sort")
	e.Field("expr")
	s.Expr.Encode(e)
	e.Field("asc")
	e.Bool(s.Asc)
	e.Field("nulls_first")
	e.Bool(s.NullsFirst)
	e.EndStruct()
}

func (s *Sort) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "expr":
		s.Expr, err = Decode(r)
	case "asc":
		s.Asc, err = ionx.Bool(r)
	case "nulls_first":
		s.NullsFirst, err = ionx.Bool(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (s *ScalarFunc) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("scalar_func")
	e.Field("func")
	e.Symbol(s.Func.String())
	e.Field("args")
	EncodeList(e, s.Args)
	e.EndStruct()
}

func (s *ScalarFunc) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "func":
		s.Func, err = decodeSymbol(r, expr.LookupBuiltin, "builtin function")
	case "args":
		s.Args, err = DecodeList(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (s *ScalarUDF) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("scalar_udf")
	e.Field("kind")
	e.Symbol(s.Kind.String())
	e.Field("args")
	EncodeList(e, s.Args)
	e.EndStruct()
}

func (s *ScalarUDF) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "kind":
		s.Kind, err = decodeSymbol(r, udf.ParseScalarKind, "scalar function kind")
	case "args":
		s.Args, err = DecodeList(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (a *Aggregate) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("aggregate")
	e.Field("op")
	e.Symbol(a.Op.String())
	e.Field("args")
	EncodeList(e, a.Args)
	if a.Distinct {
		e.Field("distinct")
		e.Bool(true)
	}
	e.EndStruct()
}

func (a *Aggregate) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "op":
		a.Op, err = decodeSymbol(r, expr.LookupAggregate, "aggregate")
	case "args":
		a.Args, err = DecodeList(r)
	case "distinct":
		a.Distinct, err = ionx.Bool(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (a *AggregateUDF) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("aggregate_udf")
	e.Field("kind")
	e.Symbol(a.Kind.String())
	e.Field("args")
	EncodeList(e, a.Args)
	e.EndStruct()
}

func (a *AggregateUDF) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "kind":
		a.Kind, err = decodeSymbol(r, udf.ParseAggregateKind, "aggregate function kind")
	case "args":
		a.Args, err = DecodeList(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (i *InList) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("in_list")
	e.Field("expr")
	i.Expr.Encode(e)
	e.Field("list")
	EncodeList(e, i.List)
	if i.Negated {
		e.Field("negated")
		e.Bool(true)
	}
	e.EndStruct()
}

func (i *InList) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "expr":
		i.Expr, err = Decode(r)
	case "list":
		i.List, err = DecodeList(r)
	case "negated":
		i.Negated, err = ionx.Bool(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (w *Wildcard) Encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("wildcard")
	e.EndStruct()
}

func (w *Wildcard) SetField(name string, r ion.Reader) error {
	return ionx.ErrUnexpectedField
}

func (a *Alias) check() error {
	if a.Expr == nil {
		return missing("alias expr")
	}
	return nil
}

func (c *Column) check() error {
	if c.Name == "" {
		return missing("column name")
	}
	return nil
}

func (s *ScalarVariable) check() error { return nil }

func (l *Literal) check() error {
	if l.Value == nil {
		return missing("literal value")
	}
	return nil
}

func (b *Binary) check() error {
	if b.Left == nil || b.Right == nil {
		return missing("binary operand")
	}
	return nil
}

func (u *Unary) check() error {
	if u.Expr == nil {
		return missing("unary operand")
	}
	return nil
}

func (b *Between) check() error {
	if b.Expr == nil || b.Low == nil || b.High == nil {
		return missing("between operand")
	}
	return nil
}

func (c *Case) check() error { return nil }

func (c *Cast) check() error {
	if c.Expr == nil {
		return missing("cast operand")
	}
	return nil
}

func (s *Sort) check() error {
	if s.Expr == nil {
		return missing("sort expr")
	}
	return nil
}

func (s *ScalarFunc) check() error   { return nil }
func (s *ScalarUDF) check() error    { return nil }
func (a *Aggregate) check() error    { return nil }
func (a *AggregateUDF) check() error { return nil }

func (i *InList) check() error {
	if i.Expr == nil {
		return missing("in-list operand")
	}
	return nil
}

func (w *Wildcard) check() error { return nil }
