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

package main

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/shardplan/metastore"
)

// assignment is the work given to one worker:
// the partitions it executes and where the
// storage files of those partitions are
// found locally.
//
//	partitions: [1, 2]
//	files:
//	  1.parquet: /cache/1.parquet
type assignment struct {
	Partitions []uint64          `json:"partitions"`
	Files      map[string]string `json:"files"`
}

func (a *assignment) partitionSet() metastore.PartitionSet {
	if a.Partitions == nil {
		return metastore.Unrestricted()
	}
	return metastore.Restrict(a.Partitions...)
}

func loadAssignment(file string) (*assignment, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	a := &assignment{}
	if err := yaml.UnmarshalStrict(buf, a); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", file)
	}
	return a, nil
}
