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
	"strings"

	"github.com/SnellerInc/shardplan/logical"
)

// CatalogSchema is the schema that holds the
// system catalog tables. Scans of these tables
// do not read table data.
const CatalogSchema = "information_schema"

type dataScanFinder struct {
	found bool
}

func (d *dataScanFinder) Visit(p logical.Plan) logical.Visitor {
	if d.found || p == nil {
		return nil
	}
	if ts, ok := p.(*logical.TableScan); ok {
		schema, _, _ := strings.Cut(ts.TableName, ".")
		if schema != CatalogSchema {
			d.found = true
		}
		return nil
	}
	return d
}

// IsDataSelectQuery returns whether p scans
// at least one table outside of CatalogSchema.
// A plan with no table scans returns false.
func IsDataSelectQuery(p logical.Plan) bool {
	var d dataScanFinder
	logical.Walk(&d, p)
	return d.found
}
