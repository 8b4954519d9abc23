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

// Package pexpr defines the snapshot form of
// expressions that is embedded into a serialized
// plan, along with the conversions to and from
// executable expressions.
//
// Snapshot expressions refer to user-defined
// functions by their registered kind rather
// than by name, so a plan that references an
// unknown function cannot be serialized.
package pexpr
