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

// Package udf is the registry of user-defined
// functions that may appear in a distributed plan.
//
// Executable plans refer to user-defined functions
// by name; serialized plans refer to them by kind.
// The tables in this package are the only mapping
// between the two.
package udf

import (
	"fmt"
	"strings"

	"github.com/SnellerInc/shardplan/expr"
)

// ScalarKind identifies a user-defined scalar function.
type ScalarKind uint8

const (
	HllCardinality ScalarKind = iota
	Coalesce
	Now
	UnixTimestamp
	DateAdd
	DateSub
	DateBin

	scalarCount
)

// AggregateKind identifies a user-defined aggregate function.
type AggregateKind uint8

const (
	MergeHll AggregateKind = iota

	aggregateCount
)

type scalarEntry struct {
	wire string // stable name used on the wire
	desc expr.ScalarUDF
}

type aggregateEntry struct {
	wire string
	desc expr.AggregateUDF
}

var scalars = [scalarCount]scalarEntry{
	HllCardinality: {"hll_cardinality", expr.ScalarUDF{
		Name:      "cardinality",
		Signature: []expr.DataType{expr.TypeBinary},
		Return:    expr.TypeUint64,
	}},
	Coalesce: {"coalesce", expr.ScalarUDF{
		Name:      "coalesce",
		Signature: []expr.DataType{expr.TypeNull},
		Variadic:  true,
		Return:    expr.TypeNull,
	}},
	Now: {"now", expr.ScalarUDF{
		Name:   "now",
		Return: expr.TypeTimestamp,
	}},
	UnixTimestamp: {"unix_timestamp", expr.ScalarUDF{
		Name:   "unix_timestamp",
		Return: expr.TypeInt64,
	}},
	DateAdd: {"date_add", expr.ScalarUDF{
		Name:      "date_add",
		Signature: []expr.DataType{expr.TypeTimestamp, expr.TypeInt64},
		Return:    expr.TypeTimestamp,
	}},
	DateSub: {"date_sub", expr.ScalarUDF{
		Name:      "date_sub",
		Signature: []expr.DataType{expr.TypeTimestamp, expr.TypeInt64},
		Return:    expr.TypeTimestamp,
	}},
	DateBin: {"date_bin", expr.ScalarUDF{
		Name:      "date_bin",
		Signature: []expr.DataType{expr.TypeInt64, expr.TypeTimestamp, expr.TypeTimestamp},
		Return:    expr.TypeTimestamp,
	}},
}

var aggregates = [aggregateCount]aggregateEntry{
	MergeHll: {"merge_hll", expr.AggregateUDF{
		Name:      "merge",
		Signature: []expr.DataType{expr.TypeBinary},
		Return:    expr.TypeBinary,
	}},
}

func (k ScalarKind) String() string {
	if k < scalarCount {
		return scalars[k].wire
	}
	return fmt.Sprintf("ScalarKind(%d)", uint8(k))
}

func (k AggregateKind) String() string {
	if k < aggregateCount {
		return aggregates[k].wire
	}
	return fmt.Sprintf("AggregateKind(%d)", uint8(k))
}

// ParseScalarKind is the inverse of ScalarKind.String.
func ParseScalarKind(s string) (ScalarKind, bool) {
	for i := range scalars {
		if scalars[i].wire == s {
			return ScalarKind(i), true
		}
	}
	return 0, false
}

// ParseAggregateKind is the inverse of AggregateKind.String.
func ParseAggregateKind(s string) (AggregateKind, bool) {
	for i := range aggregates {
		if aggregates[i].wire == s {
			return AggregateKind(i), true
		}
	}
	return 0, false
}

// ScalarKindByName returns the kind of the
// scalar function with the given name.
// Names are matched case-insensitively.
func ScalarKindByName(name string) (ScalarKind, bool) {
	for i := range scalars {
		if strings.EqualFold(scalars[i].desc.Name, name) {
			return ScalarKind(i), true
		}
	}
	return 0, false
}

// AggregateKindByName returns the kind of the
// aggregate function with the given name.
func AggregateKindByName(name string) (AggregateKind, bool) {
	for i := range aggregates {
		if strings.EqualFold(aggregates[i].desc.Name, name) {
			return AggregateKind(i), true
		}
	}
	return 0, false
}

// ScalarByKind returns the descriptor for k.
// The returned descriptor is shared and must
// not be modified. ScalarByKind panics if k
// is not a valid kind.
func ScalarByKind(k ScalarKind) *expr.ScalarUDF {
	return &scalars[k].desc
}

// AggregateByKind returns the descriptor for k.
// See ScalarByKind.
func AggregateByKind(k AggregateKind) *expr.AggregateUDF {
	return &aggregates[k].desc
}

// Scalar returns the descriptor for the
// scalar function with the given name.
func Scalar(name string) (*expr.ScalarUDF, bool) {
	k, ok := ScalarKindByName(name)
	if !ok {
		return nil, false
	}
	return ScalarByKind(k), true
}

// Aggregate returns the descriptor for the
// aggregate function with the given name.
func Aggregate(name string) (*expr.AggregateUDF, bool) {
	k, ok := AggregateKindByName(name)
	if !ok {
		return nil, false
	}
	return AggregateByKind(k), true
}

// ScalarKinds returns every scalar kind.
func ScalarKinds() []ScalarKind {
	out := make([]ScalarKind, scalarCount)
	for i := range out {
		out[i] = ScalarKind(i)
	}
	return out
}

// AggregateKinds returns every aggregate kind.
func AggregateKinds() []AggregateKind {
	out := make([]AggregateKind, aggregateCount)
	for i := range out {
		out[i] = AggregateKind(i)
	}
	return out
}
