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

package logical

// Visitor is the argument to Walk.
//
// Visit is invoked for each plan node encountered
// by Walk. If the result visitor w is not nil, Walk
// visits each of the inputs of the node with w,
// followed by a call of w.Visit(nil).
//
// (see also: ast.Visitor)
type Visitor interface {
	Visit(Plan) Visitor
}

// Walk traverses a plan in depth-first,
// pre-order: it calls v.Visit(p) and, if
// the returned visitor is not nil, walks
// each input of p with that visitor.
func Walk(v Visitor, p Plan) {
	w := v.Visit(p)
	if w == nil {
		return
	}
	for _, in := range p.Inputs() {
		Walk(w, in)
	}
	w.Visit(nil)
}

type inspector func(Plan) bool

func (f inspector) Visit(p Plan) Visitor {
	if p != nil && f(p) {
		return f
	}
	return nil
}

// Inspect traverses a plan in depth-first
// order, calling fn for each node. If fn
// returns false, the inputs of that node
// are not visited.
func Inspect(p Plan, fn func(Plan) bool) {
	Walk(inspector(fn), p)
}
