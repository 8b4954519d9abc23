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
	"fmt"
	"strings"
)

// Operator is a binary operator.
type Operator uint8

const (
	OpEq Operator = iota
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpPlus
	OpMinus
	OpMultiply
	OpDivide
	OpModulo
	OpAnd
	OpOr
	OpLike
	OpNotLike

	opCount
)

var op2Name = [opCount]string{
	"=",        // OpEq
	"!=",       // OpNotEq
	"<",        // OpLt
	"<=",       // OpLtEq
	">",        // OpGt
	">=",       // OpGtEq
	"+",        // OpPlus
	"-",        // OpMinus
	"*",        // OpMultiply
	"/",        // OpDivide
	"%",        // OpModulo
	"AND",      // OpAnd
	"OR",       // OpOr
	"LIKE",     // OpLike
	"NOT LIKE", // OpNotLike
}

func (o Operator) String() string {
	if o < opCount {
		return op2Name[o]
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}

// Valid returns whether o is a known operator.
func (o Operator) Valid() bool { return o < opCount }

// ParseOperator is the inverse of Operator.String.
func ParseOperator(s string) (Operator, bool) {
	for i := range op2Name {
		if op2Name[i] == s {
			return Operator(i), true
		}
	}
	return 0, false
}

// UnaryOp is the operation of a Unary node.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota
	OpNegative
	OpIsNull
	OpIsNotNull

	unaryCount
)

var unary2Name = [unaryCount]string{
	"not",
	"negative",
	"is_null",
	"is_not_null",
}

func (u UnaryOp) String() string {
	if u < unaryCount {
		return unary2Name[u]
	}
	return fmt.Sprintf("UnaryOp(%d)", uint8(u))
}

// ParseUnaryOp is the inverse of UnaryOp.String.
func ParseUnaryOp(s string) (UnaryOp, bool) {
	for i := range unary2Name {
		if unary2Name[i] == s {
			return UnaryOp(i), true
		}
	}
	return 0, false
}

// BuiltinFunc is one of the scalar
// functions built into the execution engine.
type BuiltinFunc uint8

const (
	Abs BuiltinFunc = iota
	Ceil
	Floor
	Round
	Trunc
	Sqrt
	Exp
	Ln
	Log2
	Log10
	Concat
	Lower
	Upper
	Trim
	Ltrim
	Rtrim
	CharLength
	Substr
	Replace
	ToTimestamp
	DateTrunc
	DatePart
	NullIf

	builtinCount
)

var builtin2Name = [builtinCount]string{
	"ABS",          // Abs
	"CEIL",         // Ceil
	"FLOOR",        // Floor
	"ROUND",        // Round
	"TRUNC",        // Trunc
	"SQRT",         // Sqrt
	"EXP",          // Exp
	"LN",           // Ln
	"LOG2",         // Log2
	"LOG10",        // Log10
	"CONCAT",       // Concat
	"LOWER",        // Lower
	"UPPER",        // Upper
	"TRIM",         // Trim
	"LTRIM",        // Ltrim
	"RTRIM",        // Rtrim
	"CHAR_LENGTH",  // CharLength
	"SUBSTR",       // Substr
	"REPLACE",      // Replace
	"TO_TIMESTAMP", // ToTimestamp
	"DATE_TRUNC",   // DateTrunc
	"DATE_PART",    // DatePart
	"NULLIF",       // NullIf
}

func (b BuiltinFunc) String() string {
	if b < builtinCount {
		return builtin2Name[b]
	}
	return "UNKNOWN"
}

// LookupBuiltin returns the builtin
// with the given (case-insensitive) name.
func LookupBuiltin(name string) (BuiltinFunc, bool) {
	name = strings.ToUpper(name)
	for i := range builtin2Name {
		if builtin2Name[i] == name {
			return BuiltinFunc(i), true
		}
	}
	return 0, false
}

// AggregateOp is one of the
// built-in aggregation functions.
type AggregateOp uint8

const (
	AggCount AggregateOp = iota
	AggSum
	AggMin
	AggMax
	AggAvg
	AggApproxDistinct

	aggCount
)

var agg2Name = [aggCount]string{
	"COUNT",
	"SUM",
	"MIN",
	"MAX",
	"AVG",
	"APPROX_DISTINCT",
}

func (a AggregateOp) String() string {
	if a < aggCount {
		return agg2Name[a]
	}
	return "UNKNOWN"
}

// LookupAggregate returns the aggregate
// with the given (case-insensitive) name.
func LookupAggregate(name string) (AggregateOp, bool) {
	name = strings.ToUpper(name)
	for i := range agg2Name {
		if agg2Name[i] == name {
			return AggregateOp(i), true
		}
	}
	return 0, false
}

// ScalarUDF describes a user-defined
// scalar function. Executable plans refer
// to user-defined functions through
// these descriptors, i.e. by name.
type ScalarUDF struct {
	Name string
	// Signature is the list of argument types.
	// If Variadic is set, the last type may
	// be repeated any number of times (including zero).
	Signature []DataType
	Variadic  bool
	Return    DataType
}

// Arity returns the number of declared
// arguments, or -1 for a variadic function.
func (s *ScalarUDF) Arity() int {
	if s.Variadic {
		return -1
	}
	return len(s.Signature)
}

// AggregateUDF describes a user-defined
// aggregate function.
type AggregateUDF struct {
	Name      string
	Signature []DataType
	Return    DataType
}

func (a *AggregateUDF) Arity() int { return len(a.Signature) }
