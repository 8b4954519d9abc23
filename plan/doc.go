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

// Package plan converts executable plans into
// self-contained snapshots that can be sent to
// workers, and converts them back.
//
// A SerializedPlan is built once with New.
// Per-worker copies are derived with
// WithPartitions or Shard; they share the
// plan tree and the index snapshots. A worker
// fetches FilesToDownload, then calls
// LogicalPlan with the resulting local paths.
package plan
