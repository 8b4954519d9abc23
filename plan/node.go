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
	"github.com/amazon-ion/ion-go/ion"
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/expr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
	"github.com/SnellerInc/shardplan/plan/pexpr"
	"github.com/SnellerInc/shardplan/scan"
)

// Node is a single node in a snapshot plan tree.
//
// A snapshot plan has the same shape as the
// logical.Plan it was built from, but it holds
// no live references: table scans carry an
// unbound *scan.Table and user-defined functions
// are identified by kind.
type Node interface {
	ionx.FieldSetter

	// Inputs returns the child nodes.
	Inputs() []Node

	// encode should write the node as an ion structure;
	// the first field of the structure must have the
	// label "type" and hold the symbol that identifies
	// the node in empty()
	encode(e *ionx.Encoder)

	// check validates a decoded node
	check() error
}

// Nonterminal is embedded in every
// Node that has exactly one input.
type Nonterminal struct {
	From Node
}

func (n *Nonterminal) Inputs() []Node { return []Node{n.From} }

func (n *Nonterminal) check() error {
	if n.From == nil {
		return errors.New("missing input")
	}
	return nil
}

func (n *Nonterminal) encodeInput(e *ionx.Encoder) {
	e.Field("input")
	n.From.encode(e)
}

// setInput handles the "input" field;
// it returns false for any other label
func (n *Nonterminal) setInput(name string, r ion.Reader) (bool, error) {
	if name != "input" {
		return false, nil
	}
	var err error
	n.From, err = decode(r)
	return true, err
}

type Projection struct {
	Nonterminal
	Exprs  []pexpr.Expr
	Output expr.Schema
}

type Filter struct {
	Nonterminal
	Predicate pexpr.Expr
}

type Aggregate struct {
	Nonterminal
	GroupExprs []pexpr.Expr
	AggrExprs  []pexpr.Expr
	Output     expr.Schema
}

type Sort struct {
	Nonterminal
	Exprs []pexpr.Expr
}

type Union struct {
	Plans  []Node
	Output expr.Schema
	Alias  string
}

type Join struct {
	Left, Right Node
	On          []logical.JoinOn
	Type        logical.JoinType
	Output      expr.Schema
}

// TableScan reads the index described
// by Table, which is never bound.
type TableScan struct {
	TableName       string
	Table           *scan.Table
	Projection      []int
	ProjectedSchema expr.Schema
	Filters         []pexpr.Expr
	Alias           string
	Limit           *int
}

type EmptyRelation struct {
	ProduceOneRow bool
	Output        expr.Schema
}

type Limit struct {
	Nonterminal
	N int64
}

type Skip struct {
	Nonterminal
	N int64
}

// Repartition is a round-robin repartition
// unless Hashed is set, in which case rows are
// distributed by the hash of HashExprs.
type Repartition struct {
	Nonterminal
	Hashed    bool
	HashExprs []pexpr.Expr
	N         int
}

type ClusterSend struct {
	Nonterminal
	Snapshots [][]metastore.IndexSnapshot
}

type ClusterAggregateTopK struct {
	Nonterminal
	Limit          int
	GroupExprs     []pexpr.Expr
	AggregateExprs []pexpr.Expr
	SortColumns    []logical.SortColumn
	Output         expr.Schema
	Snapshots      [][]metastore.IndexSnapshot
}

func (u *Union) Inputs() []Node         { return u.Plans }
func (j *Join) Inputs() []Node          { return []Node{j.Left, j.Right} }
func (t *TableScan) Inputs() []Node     { return nil }
func (e *EmptyRelation) Inputs() []Node { return nil }

func empty(typ string) (ionx.FieldSetter, bool) {
	switch typ {
	case "projection":
		return &Projection{}, true
	case "filter":
		return &Filter{}, true
	case "aggregate":
		return &Aggregate{}, true
	case "sort":
		return &Sort{}, true
	case "union":
		return &Union{}, true
	case "join":
		return &Join{}, true
	case "table_scan":
		return &TableScan{}, true
	case "empty_relation":
		return &EmptyRelation{}, true
	case "limit":
		return &Limit{}, true
	case "skip":
		return &Skip{}, true
	case "repartition":
		return &Repartition{}, true
	case "cluster_send":
		return &ClusterSend{}, true
	case "cluster_aggregate_topk":
		return &ClusterAggregateTopK{}, true
	}
	return nil, false
}

func decode(r ion.Reader) (Node, error) {
	fs, err := ionx.UnpackTyped(r, empty)
	if err != nil {
		return nil, err
	}
	n := fs.(Node)
	if err := n.check(); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Projection) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("projection")
	e.Field("exprs")
	pexpr.EncodeList(e, p.Exprs)
	e.Field("schema")
	expr.EncodeSchema(e, p.Output)
	p.encodeInput(e)
	e.EndStruct()
}

func (p *Projection) SetField(name string, r ion.Reader) error {
	if ok, err := p.setInput(name, r); ok {
		return err
	}
	var err error
	switch name {
	case "exprs":
		p.Exprs, err = pexpr.DecodeList(r)
	case "schema":
		p.Output, err = expr.DecodeSchema(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (f *Filter) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("filter")
	e.Field("predicate")
	f.Predicate.Encode(e)
	f.encodeInput(e)
	e.EndStruct()
}

func (f *Filter) SetField(name string, r ion.Reader) error {
	if ok, err := f.setInput(name, r); ok {
		return err
	}
	if name != "predicate" {
		return ionx.ErrUnexpectedField
	}
	var err error
	f.Predicate, err = pexpr.Decode(r)
	return err
}

func (f *Filter) check() error {
	if f.Predicate == nil {
		return errors.New("filter without a predicate")
	}
	return f.Nonterminal.check()
}

func (a *Aggregate) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("aggregate")
	e.Field("group")
	pexpr.EncodeList(e, a.GroupExprs)
	e.Field("aggr")
	pexpr.EncodeList(e, a.AggrExprs)
	e.Field("schema")
	expr.EncodeSchema(e, a.Output)
	a.encodeInput(e)
	e.EndStruct()
}

func (a *Aggregate) SetField(name string, r ion.Reader) error {
	if ok, err := a.setInput(name, r); ok {
		return err
	}
	var err error
	switch name {
	case "group":
		a.GroupExprs, err = pexpr.DecodeList(r)
	case "aggr":
		a.AggrExprs, err = pexpr.DecodeList(r)
	case "schema":
		a.Output, err = expr.DecodeSchema(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (s *Sort) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("sort")
	e.Field("exprs")
	pexpr.EncodeList(e, s.Exprs)
	s.encodeInput(e)
	e.EndStruct()
}

func (s *Sort) SetField(name string, r ion.Reader) error {
	if ok, err := s.setInput(name, r); ok {
		return err
	}
	if name != "exprs" {
		return ionx.ErrUnexpectedField
	}
	var err error
	s.Exprs, err = pexpr.DecodeList(r)
	return err
}

func (u *Union) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("union")
	e.Field("inputs")
	e.BeginList()
	for i := range u.Plans {
		u.Plans[i].encode(e)
	}
	e.EndList()
	e.Field("schema")
	expr.EncodeSchema(e, u.Output)
	if u.Alias != "" {
		e.Field("alias")
		e.String(u.Alias)
	}
	e.EndStruct()
}

func (u *Union) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "inputs":
		u.Plans = []Node{}
		err = ionx.UnpackList(r, func() error {
			n, err := decode(r)
			if err == nil {
				u.Plans = append(u.Plans, n)
			}
			return err
		})
	case "schema":
		u.Output, err = expr.DecodeSchema(r)
	case "alias":
		u.Alias, err = ionx.String(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (u *Union) check() error { return nil }

func encodeColumn(e *ionx.Encoder, c *expr.Column) {
	e.BeginStruct()
	e.Field("name")
	e.String(c.Name)
	if c.Qualifier != "" {
		e.Field("qualifier")
		e.String(c.Qualifier)
	}
	e.EndStruct()
}

func decodeColumn(r ion.Reader, c *expr.Column) error {
	return ionx.UnpackStruct(r, func(name string) error {
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
	})
}

func (j *Join) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("join")
	e.Field("join_type")
	e.Symbol(j.Type.String())
	e.Field("on")
	e.BeginList()
	for i := range j.On {
		e.BeginStruct()
		e.Field("left")
		encodeColumn(e, &j.On[i].Left)
		e.Field("right")
		encodeColumn(e, &j.On[i].Right)
		e.EndStruct()
	}
	e.EndList()
	e.Field("schema")
	expr.EncodeSchema(e, j.Output)
	e.Field("left")
	j.Left.encode(e)
	e.Field("right")
	j.Right.encode(e)
	e.EndStruct()
}

func (j *Join) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "join_type":
		var s string
		s, err = ionx.String(r)
		if err == nil {
			var ok bool
			if j.Type, ok = logical.ParseJoinType(s); !ok {
				err = errors.Errorf("unknown join type %q", s)
			}
		}
	case "on":
		j.On = []logical.JoinOn{}
		err = ionx.UnpackList(r, func() error {
			var on logical.JoinOn
			err := ionx.UnpackStruct(r, func(name string) error {
				switch name {
				case "left":
					return decodeColumn(r, &on.Left)
				case "right":
					return decodeColumn(r, &on.Right)
				}
				return ionx.ErrUnexpectedField
			})
			j.On = append(j.On, on)
			return err
		})
	case "schema":
		j.Output, err = expr.DecodeSchema(r)
	case "left":
		j.Left, err = decode(r)
	case "right":
		j.Right, err = decode(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (j *Join) check() error {
	if j.Left == nil || j.Right == nil {
		return errors.New("join without both inputs")
	}
	return nil
}

func (t *TableScan) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("table_scan")
	e.Field("table_name")
	e.String(t.TableName)
	e.Field("table")
	t.Table.Encode(e)
	if t.Projection != nil {
		e.Field("projection")
		e.BeginList()
		for _, i := range t.Projection {
			e.Int(int64(i))
		}
		e.EndList()
	}
	e.Field("schema")
	expr.EncodeSchema(e, t.ProjectedSchema)
	if len(t.Filters) > 0 {
		e.Field("filters")
		pexpr.EncodeList(e, t.Filters)
	}
	if t.Alias != "" {
		e.Field("alias")
		e.String(t.Alias)
	}
	if t.Limit != nil {
		e.Field("limit")
		e.Int(int64(*t.Limit))
	}
	e.EndStruct()
}

func (t *TableScan) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "table_name":
		t.TableName, err = ionx.String(r)
	case "table":
		t.Table, err = scan.Decode(r)
	case "projection":
		t.Projection = []int{}
		err = ionx.UnpackList(r, func() error {
			i, err := ionx.Int(r)
			t.Projection = append(t.Projection, int(i))
			return err
		})
	case "schema":
		t.ProjectedSchema, err = expr.DecodeSchema(r)
	case "filters":
		t.Filters, err = pexpr.DecodeList(r)
	case "alias":
		t.Alias, err = ionx.String(r)
	case "limit":
		var i int64
		i, err = ionx.Int(r)
		if err == nil && i < 0 {
			err = errors.Errorf("negative limit %d", i)
		}
		n := int(i)
		t.Limit = &n
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (t *TableScan) check() error {
	if t.Table == nil {
		return errors.Errorf("table scan of %q without a table", t.TableName)
	}
	return nil
}

func (e *EmptyRelation) encode(enc *ionx.Encoder) {
	enc.BeginStruct()
	enc.SetType("empty_relation")
	enc.Field("one_row")
	enc.Bool(e.ProduceOneRow)
	enc.Field("schema")
	expr.EncodeSchema(enc, e.Output)
	enc.EndStruct()
}

func (e *EmptyRelation) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "one_row":
		e.ProduceOneRow, err = ionx.Bool(r)
	case "schema":
		e.Output, err = expr.DecodeSchema(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (e *EmptyRelation) check() error { return nil }

func (l *Limit) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("limit")
	e.Field("limit")
	e.Int(l.N)
	l.encodeInput(e)
	e.EndStruct()
}

func (l *Limit) SetField(name string, r ion.Reader) error {
	if ok, err := l.setInput(name, r); ok {
		return err
	}
	if name != "limit" {
		return ionx.ErrUnexpectedField
	}
	var err error
	l.N, err = ionx.Int(r)
	return err
}

func (s *Skip) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("skip")
	e.Field("skip")
	e.Int(s.N)
	s.encodeInput(e)
	e.EndStruct()
}

func (s *Skip) SetField(name string, r ion.Reader) error {
	if ok, err := s.setInput(name, r); ok {
		return err
	}
	if name != "skip" {
		return ionx.ErrUnexpectedField
	}
	var err error
	s.N, err = ionx.Int(r)
	return err
}

func (p *Repartition) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("repartition")
	e.Field("scheme")
	if p.Hashed {
		e.Symbol("hash")
		e.Field("exprs")
		pexpr.EncodeList(e, p.HashExprs)
	} else {
		e.Symbol("round_robin")
	}
	e.Field("n")
	e.Int(int64(p.N))
	p.encodeInput(e)
	e.EndStruct()
}

func (p *Repartition) SetField(name string, r ion.Reader) error {
	if ok, err := p.setInput(name, r); ok {
		return err
	}
	var err error
	switch name {
	case "scheme":
		var s string
		s, err = ionx.String(r)
		switch {
		case err != nil:
		case s == "hash":
			p.Hashed = true
		case s == "round_robin":
			p.Hashed = false
		default:
			err = errors.Errorf("unknown partitioning scheme %q", s)
		}
	case "exprs":
		p.HashExprs, err = pexpr.DecodeList(r)
	case "n":
		var i int64
		i, err = ionx.Int(r)
		p.N = int(i)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func encodeSnapshots(e *ionx.Encoder, lst [][]metastore.IndexSnapshot) {
	e.Field("snapshots")
	e.BeginList()
	for i := range lst {
		metastore.EncodeSnapshots(e, lst[i])
	}
	e.EndList()
}

func decodeSnapshots(r ion.Reader) ([][]metastore.IndexSnapshot, error) {
	out := [][]metastore.IndexSnapshot{}
	err := ionx.UnpackList(r, func() error {
		lst, err := metastore.DecodeSnapshots(r)
		out = append(out, lst)
		return err
	})
	return out, err
}

func (c *ClusterSend) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("cluster_send")
	encodeSnapshots(e, c.Snapshots)
	c.encodeInput(e)
	e.EndStruct()
}

func (c *ClusterSend) SetField(name string, r ion.Reader) error {
	if ok, err := c.setInput(name, r); ok {
		return err
	}
	if name != "snapshots" {
		return ionx.ErrUnexpectedField
	}
	var err error
	c.Snapshots, err = decodeSnapshots(r)
	return err
}

func (c *ClusterAggregateTopK) encode(e *ionx.Encoder) {
	e.BeginStruct()
	e.SetType("cluster_aggregate_topk")
	e.Field("limit")
	e.Int(int64(c.Limit))
	e.Field("group")
	pexpr.EncodeList(e, c.GroupExprs)
	e.Field("aggr")
	pexpr.EncodeList(e, c.AggregateExprs)
	e.Field("sort")
	e.BeginList()
	for _, s := range c.SortColumns {
		e.BeginStruct()
		e.Field("agg_index")
		e.Int(int64(s.AggIndex))
		e.Field("asc")
		e.Bool(s.Asc)
		e.Field("nulls_first")
		e.Bool(s.NullsFirst)
		e.EndStruct()
	}
	e.EndList()
	e.Field("schema")
	expr.EncodeSchema(e, c.Output)
	encodeSnapshots(e, c.Snapshots)
	c.encodeInput(e)
	e.EndStruct()
}

func (c *ClusterAggregateTopK) SetField(name string, r ion.Reader) error {
	if ok, err := c.setInput(name, r); ok {
		return err
	}
	var err error
	switch name {
	case "limit":
		var i int64
		i, err = ionx.Int(r)
		c.Limit = int(i)
	case "group":
		c.GroupExprs, err = pexpr.DecodeList(r)
	case "aggr":
		c.AggregateExprs, err = pexpr.DecodeList(r)
	case "sort":
		c.SortColumns = []logical.SortColumn{}
		err = ionx.UnpackList(r, func() error {
			var s logical.SortColumn
			err := ionx.UnpackStruct(r, func(name string) error {
				var err error
				switch name {
				case "agg_index":
					var i int64
					i, err = ionx.Int(r)
					s.AggIndex = int(i)
				case "asc":
					s.Asc, err = ionx.Bool(r)
				case "nulls_first":
					s.NullsFirst, err = ionx.Bool(r)
				default:
					err = ionx.ErrUnexpectedField
				}
				return err
			})
			c.SortColumns = append(c.SortColumns, s)
			return err
		})
	case "schema":
		c.Output, err = expr.DecodeSchema(r)
	case "snapshots":
		c.Snapshots, err = decodeSnapshots(r)
	default:
		err = ionx.ErrUnexpectedField
	}
	return err
}

func (c *ClusterAggregateTopK) check() error {
	for _, s := range c.SortColumns {
		if s.AggIndex < 0 || s.AggIndex >= len(c.AggregateExprs) {
			return errors.Wrapf(ErrInvalidPlan, "sort column refers to aggregate %d of %d", s.AggIndex, len(c.AggregateExprs))
		}
	}
	return c.Nonterminal.check()
}
