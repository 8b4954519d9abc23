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
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// DataType is the type of a column
// or of the result of an expression.
type DataType uint8

const (
	TypeNull DataType = iota
	TypeBoolean
	TypeInt64
	TypeUint64
	TypeFloat64
	TypeDecimal
	TypeInt96
	TypeUtf8
	TypeBinary
	TypeTimestamp
	TypeDate

	typeCount
)

var typeNames = [typeCount]string{
	TypeNull:      "null",
	TypeBoolean:   "boolean",
	TypeInt64:     "int64",
	TypeUint64:    "uint64",
	TypeFloat64:   "float64",
	TypeDecimal:   "decimal",
	TypeInt96:     "int96",
	TypeUtf8:      "utf8",
	TypeBinary:    "binary",
	TypeTimestamp: "timestamp",
	TypeDate:      "date",
}

func (t DataType) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Valid returns whether t is a known type.
func (t DataType) Valid() bool { return t < typeCount }

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	for i := range typeNames {
		if typeNames[i] == s {
			return DataType(i), true
		}
	}
	return 0, false
}

// Field is one column of a Schema.
type Field struct {
	// Qualifier is the (optional) relation
	// name that qualifies Name.
	Qualifier string
	Name      string
	Type      DataType
	Nullable  bool
}

// QualifiedName returns qualifier.name,
// or just the name if there is no qualifier.
func (f *Field) QualifiedName() string {
	if f.Qualifier == "" {
		return f.Name
	}
	return f.Qualifier + "." + f.Name
}

// Schema is the ordered list of
// output columns of a plan node.
type Schema []Field

// Equal returns whether s and o have
// identical fields in identical order.
func (s Schema) Equal(o Schema) bool {
	return slices.Equal(s, o)
}

// Clone returns a copy of s.
func (s Schema) Clone() Schema {
	return slices.Clone(s)
}

// Project returns the columns of s
// selected by the given indices.
func (s Schema) Project(idx []int) (Schema, error) {
	out := make(Schema, len(idx))
	for i, j := range idx {
		if j < 0 || j >= len(s) {
			return nil, fmt.Errorf("projection index %d out of range (%d columns)", j, len(s))
		}
		out[i] = s[j]
	}
	return out, nil
}

func (s Schema) String() string {
	var dst strings.Builder
	dst.WriteByte('[')
	for i := range s {
		if i > 0 {
			dst.WriteString(", ")
		}
		dst.WriteString(s[i].QualifiedName())
		dst.WriteByte(':')
		dst.WriteString(s[i].Type.String())
		if s[i].Nullable {
			dst.WriteByte('?')
		}
	}
	dst.WriteByte(']')
	return dst.String()
}

// Scalar is a constant value
// held by a Literal node.
type Scalar interface {
	// Type returns the data type of the constant.
	Type() DataType
	text(dst *strings.Builder)
	equals(Scalar) bool
}

// Null is a NULL of a particular type.
type Null struct{ Of DataType }

type (
	Bool    bool
	Int64   int64
	Uint64  uint64
	Float64 float64
	String  string
	Bytes   []byte
	// Timestamp is nanoseconds since the Unix epoch.
	Timestamp int64
	// Date is days since the Unix epoch.
	Date int32
)

func (n Null) Type() DataType      { return n.Of }
func (Bool) Type() DataType        { return TypeBoolean }
func (Int64) Type() DataType       { return TypeInt64 }
func (Uint64) Type() DataType      { return TypeUint64 }
func (Float64) Type() DataType     { return TypeFloat64 }
func (String) Type() DataType      { return TypeUtf8 }
func (Bytes) Type() DataType       { return TypeBinary }
func (Timestamp) Type() DataType   { return TypeTimestamp }
func (Date) Type() DataType        { return TypeDate }

func (n Null) equals(o Scalar) bool      { return o == Scalar(n) }
func (b Bool) equals(o Scalar) bool      { return o == Scalar(b) }
func (i Int64) equals(o Scalar) bool     { return o == Scalar(i) }
func (u Uint64) equals(o Scalar) bool    { return o == Scalar(u) }
func (s String) equals(o Scalar) bool    { return o == Scalar(s) }
func (t Timestamp) equals(o Scalar) bool { return o == Scalar(t) }
func (d Date) equals(o Scalar) bool      { return o == Scalar(d) }

func (f Float64) equals(o Scalar) bool {
	of, ok := o.(Float64)
	// NaN literals are equal to each other
	return ok && (f == of || (f != f && of != of))
}

func (b Bytes) equals(o Scalar) bool {
	ob, ok := o.(Bytes)
	return ok && bytes.Equal(b, ob)
}

func (n Null) text(dst *strings.Builder) { dst.WriteString("NULL") }

func (b Bool) text(dst *strings.Builder) {
	if b {
		dst.WriteString("TRUE")
	} else {
		dst.WriteString("FALSE")
	}
}

func (i Int64) text(dst *strings.Builder)  { dst.WriteString(strconv.FormatInt(int64(i), 10)) }
func (u Uint64) text(dst *strings.Builder) { dst.WriteString(strconv.FormatUint(uint64(u), 10)) }

func (f Float64) text(dst *strings.Builder) {
	dst.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 64))
}

func (s String) text(dst *strings.Builder) { dst.WriteString(strconv.Quote(string(s))) }

func (b Bytes) text(dst *strings.Builder) { fmt.Fprintf(dst, "X'%x'", []byte(b)) }

func (t Timestamp) text(dst *strings.Builder) {
	dst.WriteString("TIMESTAMP '")
	dst.WriteString(time.Unix(0, int64(t)).UTC().Format(time.RFC3339Nano))
	dst.WriteByte('\'')
}

func (d Date) text(dst *strings.Builder) {
	dst.WriteString("DATE '")
	dst.WriteString(time.Unix(int64(d)*86400, 0).UTC().Format("2006-01-02"))
	dst.WriteByte('\'')
}
