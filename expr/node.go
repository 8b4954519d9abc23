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

package expr

import (
	"strings"

	"golang.org/x/exp/slices"
)

// Visitor is an interface that must
// be satisfied by the argument to Visit.
//
// A Visitor's Visit method is invoked for each node encountered by Walk. If
// the result visitor w is not nil, Walk visits each of the children of node
// with the visitor w, followed by a call of w.Visit(nil).
//
// (see also: ast.Visitor)
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses an expression in depth-first order: It starts by calling
// v.Visit(node); node must not be nil. If the visitor w returned by
// v.Visit(node) is not nil, Walk is invoked recursively with visitor w for
// each of the non-nil children of node, followed by a call of w.Visit(nil).
//
// (see also: ast.Walk)
func Walk(v Visitor, n Node) {
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

func walkList(v Visitor, lst []Node) {
	for i := range lst {
		Walk(v, lst[i])
	}
}

// Node is an executable expression node.
//
// The set of Node implementations is closed;
// every implementation lives in this package.
// Each composite node exclusively owns its children.
type Node interface {
	// Equals returns whether this node
	// is structurally identical to another node.
	Equals(Node) bool

	text(dst *strings.Builder)
	walk(Visitor)
}

// Equal returns whether a and b are equivalent.
// a or b may be nil.
func Equal(a, b Node) bool {
	if a == nil {
		return b == nil
	}
	return b != nil && a.Equals(b)
}

// EqualList returns whether a and b are
// pairwise equivalent.
func EqualList(a, b []Node) bool {
	return slices.EqualFunc(a, b, Equal)
}

// ToString returns the SQL-like
// textual representation of n.
func ToString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	var dst strings.Builder
	n.text(&dst)
	return dst.String()
}

func textList(dst *strings.Builder, lst []Node) {
	for i := range lst {
		if i > 0 {
			dst.WriteString(", ")
		}
		lst[i].text(dst)
	}
}

// Alias is 'Expr AS Name'
type Alias struct {
	Expr Node
	Name string
}

func (a *Alias) Equals(e Node) bool {
	o, ok := e.(*Alias)
	return ok && a.Name == o.Name && Equal(a.Expr, o.Expr)
}

func (a *Alias) text(dst *strings.Builder) {
	a.Expr.text(dst)
	dst.WriteString(" AS ")
	dst.WriteString(a.Name)
}

func (a *Alias) walk(v Visitor) { Walk(v, a.Expr) }

// Column is a reference to a column
// of the input relation.
type Column struct {
	Name string
	// Qualifier is the optional
	// relation name for Name.
	Qualifier string
}

// Col returns a reference to the unqualified column name.
func Col(name string) *Column { return &Column{Name: name} }

func (c *Column) Equals(e Node) bool {
	o, ok := e.(*Column)
	return ok && *c == *o
}

func (c *Column) text(dst *strings.Builder) {
	if c.Qualifier != "" {
		dst.WriteString(c.Qualifier)
		dst.WriteByte('.')
	}
	dst.WriteString(c.Name)
}

func (c *Column) walk(v Visitor) {}

// ScalarVariable is a reference
// to a session variable like @@version.
type ScalarVariable struct {
	Names []string
}

func (s *ScalarVariable) Equals(e Node) bool {
	o, ok := e.(*ScalarVariable)
	return ok && slices.Equal(s.Names, o.Names)
}

func (s *ScalarVariable) text(dst *strings.Builder) {
	dst.WriteString(strings.Join(s.Names, "."))
}

func (s *ScalarVariable) walk(v Visitor) {}

// Literal is a constant.
type Literal struct {
	Value Scalar
}

// Lit constructs a literal.
func Lit(s Scalar) *Literal { return &Literal{Value: s} }

func (l *Literal) Equals(e Node) bool {
	o, ok := e.(*Literal)
	return ok && l.Value.equals(o.Value)
}

func (l *Literal) text(dst *strings.Builder) { l.Value.text(dst) }
func (l *Literal) walk(v Visitor)            {}

// Binary is 'Left Op Right'
type Binary struct {
	Left  Node
	Op    Operator
	Right Node
}

func (b *Binary) Equals(e Node) bool {
	o, ok := e.(*Binary)
	return ok && b.Op == o.Op && Equal(b.Left, o.Left) && Equal(b.Right, o.Right)
}

func (b *Binary) text(dst *strings.Builder) {
	dst.WriteByte('(')
	b.Left.text(dst)
	dst.WriteByte(' ')
	dst.WriteString(b.Op.String())
	dst.WriteByte(' ')
	b.Right.text(dst)
	dst.WriteByte(')')
}

func (b *Binary) walk(v Visitor) {
	Walk(v, b.Left)
	Walk(v, b.Right)
}

// Unary is NOT, unary minus, IS NULL or IS NOT NULL.
type Unary struct {
	Op   UnaryOp
	Expr Node
}

func (u *Unary) Equals(e Node) bool {
	o, ok := e.(*Unary)
	return ok && u.Op == o.Op && Equal(u.Expr, o.Expr)
}

func (u *Unary) text(dst *strings.Builder) {
	switch u.Op {
	case OpNot:
		dst.WriteString("NOT ")
		u.Expr.text(dst)
	case OpNegative:
		dst.WriteByte('-')
		u.Expr.text(dst)
	case OpIsNull:
		u.Expr.text(dst)
		dst.WriteString(" IS NULL")
	case OpIsNotNull:
		u.Expr.text(dst)
		dst.WriteString(" IS NOT NULL")
	}
}

func (u *Unary) walk(v Visitor) { Walk(v, u.Expr) }

// Between is 'Expr [NOT] BETWEEN Low AND High'
type Between struct {
	Expr      Node
	Negated   bool
	Low, High Node
}

func (b *Between) Equals(e Node) bool {
	o, ok := e.(*Between)
	return ok && b.Negated == o.Negated &&
		Equal(b.Expr, o.Expr) && Equal(b.Low, o.Low) && Equal(b.High, o.High)
}

func (b *Between) text(dst *strings.Builder) {
	b.Expr.text(dst)
	if b.Negated {
		dst.WriteString(" NOT")
	}
	dst.WriteString(" BETWEEN ")
	b.Low.text(dst)
	dst.WriteString(" AND ")
	b.High.text(dst)
}

func (b *Between) walk(v Visitor) {
	Walk(v, b.Expr)
	Walk(v, b.Low)
	Walk(v, b.High)
}

// WhenThen is one arm of a CASE expression.
type WhenThen struct {
	When, Then Node
}

// Case is
//
//	CASE [Expr] WHEN ... THEN ... [ELSE Else] END
type Case struct {
	// Expr is the optional base expression
	// compared against each When arm.
	Expr     Node
	WhenThen []WhenThen
	// Else is optional.
	Else Node
}

func (c *Case) Equals(e Node) bool {
	o, ok := e.(*Case)
	if !ok || !Equal(c.Expr, o.Expr) || !Equal(c.Else, o.Else) {
		return false
	}
	return slices.EqualFunc(c.WhenThen, o.WhenThen, func(a, b WhenThen) bool {
		return Equal(a.When, b.When) && Equal(a.Then, b.Then)
	})
}

func (c *Case) text(dst *strings.Builder) {
	dst.WriteString("CASE")
	if c.Expr != nil {
		dst.WriteByte(' ')
		c.Expr.text(dst)
	}
	for i := range c.WhenThen {
		dst.WriteString(" WHEN ")
		c.WhenThen[i].When.text(dst)
		dst.WriteString(" THEN ")
		c.WhenThen[i].Then.text(dst)
	}
	if c.Else != nil {
		dst.WriteString(" ELSE ")
		c.Else.text(dst)
	}
	dst.WriteString(" END")
}

func (c *Case) walk(v Visitor) {
	if c.Expr != nil {
		Walk(v, c.Expr)
	}
	for i := range c.WhenThen {
		Walk(v, c.WhenThen[i].When)
		Walk(v, c.WhenThen[i].Then)
	}
	if c.Else != nil {
		Walk(v, c.Else)
	}
}

// Cast is CAST(Expr AS Type), or
// TRY_CAST(Expr AS Type) when Try is set.
type Cast struct {
	Expr Node
	Type DataType
	Try  bool
}

func (c *Cast) Equals(e Node) bool {
	o, ok := e.(*Cast)
	return ok && c.Type == o.Type && c.Try == o.Try && Equal(c.Expr, o.Expr)
}

func (c *Cast) text(dst *strings.Builder) {
	if c.Try {
		dst.WriteString("TRY_")
	}
	dst.WriteString("CAST(")
	c.Expr.text(dst)
	dst.WriteString(" AS ")
	dst.WriteString(strings.ToUpper(c.Type.String()))
	dst.WriteByte(')')
}

func (c *Cast) walk(v Visitor) { Walk(v, c.Expr) }

// Sort is an ordering key:
// Expr ASC|DESC NULLS FIRST|LAST
type Sort struct {
	Expr       Node
	Asc        bool
	NullsFirst bool
}

func (s *Sort) Equals(e Node) bool {
	o, ok := e.(*Sort)
	return ok && s.Asc == o.Asc && s.NullsFirst == o.NullsFirst && Equal(s.Expr, o.Expr)
}

func (s *Sort) text(dst *strings.Builder) {
	s.Expr.text(dst)
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

func (s *Sort) walk(v Visitor) { Walk(v, s.Expr) }

// ScalarFunc is a call to a builtin scalar function.
type ScalarFunc struct {
	Func BuiltinFunc
	Args []Node
}

func (s *ScalarFunc) Equals(e Node) bool {
	o, ok := e.(*ScalarFunc)
	return ok && s.Func == o.Func && EqualList(s.Args, o.Args)
}

func (s *ScalarFunc) text(dst *strings.Builder) {
	dst.WriteString(s.Func.String())
	dst.WriteByte('(')
	textList(dst, s.Args)
	dst.WriteByte(')')
}

func (s *ScalarFunc) walk(v Visitor) { walkList(v, s.Args) }

// ScalarUDFCall is a call to a
// user-defined scalar function.
type ScalarUDFCall struct {
	Func *ScalarUDF
	Args []Node
}

func (s *ScalarUDFCall) Equals(e Node) bool {
	o, ok := e.(*ScalarUDFCall)
	return ok && s.Func.Name == o.Func.Name && EqualList(s.Args, o.Args)
}

func (s *ScalarUDFCall) text(dst *strings.Builder) {
	dst.WriteString(s.Func.Name)
	dst.WriteByte('(')
	textList(dst, s.Args)
	dst.WriteByte(')')
}

func (s *ScalarUDFCall) walk(v Visitor) { walkList(v, s.Args) }

// Aggregate is a call to a builtin aggregate.
type Aggregate struct {
	Op       AggregateOp
	Args     []Node
	Distinct bool
}

func (a *Aggregate) Equals(e Node) bool {
	o, ok := e.(*Aggregate)
	return ok && a.Op == o.Op && a.Distinct == o.Distinct && EqualList(a.Args, o.Args)
}

func (a *Aggregate) text(dst *strings.Builder) {
	dst.WriteString(a.Op.String())
	dst.WriteByte('(')
	if a.Distinct {
		dst.WriteString("DISTINCT ")
	}
	textList(dst, a.Args)
	dst.WriteByte(')')
}

func (a *Aggregate) walk(v Visitor) { walkList(v, a.Args) }

// AggregateUDFCall is a call to a
// user-defined aggregate function.
type AggregateUDFCall struct {
	Func *AggregateUDF
	Args []Node
}

func (a *AggregateUDFCall) Equals(e Node) bool {
	o, ok := e.(*AggregateUDFCall)
	return ok && a.Func.Name == o.Func.Name && EqualList(a.Args, o.Args)
}

func (a *AggregateUDFCall) text(dst *strings.Builder) {
	dst.WriteString(a.Func.Name)
	dst.WriteByte('(')
	textList(dst, a.Args)
	dst.WriteByte(')')
}

func (a *AggregateUDFCall) walk(v Visitor) { walkList(v, a.Args) }

// InList is 'Expr [NOT] IN (List...)'
type InList struct {
	Expr    Node
	List    []Node
	Negated bool
}

func (i *InList) Equals(e Node) bool {
	o, ok := e.(*InList)
	return ok && i.Negated == o.Negated && Equal(i.Expr, o.Expr) && EqualList(i.List, o.List)
}

func (i *InList) text(dst *strings.Builder) {
	i.Expr.text(dst)
	if i.Negated {
		dst.WriteString(" NOT")
	}
	dst.WriteString(" IN (")
	textList(dst, i.List)
	dst.WriteByte(')')
}

func (i *InList) walk(v Visitor) {
	Walk(v, i.Expr)
	walkList(v, i.List)
}

// Wildcard is '*'
type Wildcard struct{}

func (Wildcard) Equals(e Node) bool {
	switch e.(type) {
	case Wildcard, *Wildcard:
		return true
	}
	return false
}

func (Wildcard) text(dst *strings.Builder) { dst.WriteByte('*') }
func (Wildcard) walk(v Visitor)            {}
