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

package metastore

import (
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// PartitionSet is the set of partitions
// that one copy of a plan may touch.
//
// A PartitionSet is either unrestricted
// (every partition; a plan that has not yet
// been specialized for a worker) or restricted
// to an explicit, possibly empty, list of ids.
// The zero value is restricted to nothing.
type PartitionSet struct {
	all bool
	ids []uint64 // sorted, unique
}

// Unrestricted returns the set of all partitions.
func Unrestricted() PartitionSet {
	return PartitionSet{all: true}
}

// Restrict returns the set containing exactly ids.
func Restrict(ids ...uint64) PartitionSet {
	cp := slices.Clone(ids)
	slices.Sort(cp)
	return PartitionSet{ids: slices.Compact(cp)}
}

// Restricted returns false for the
// unrestricted set and true otherwise.
func (s PartitionSet) Restricted() bool { return !s.all }

// Contains returns whether the partition
// with the given id is a member of s.
func (s PartitionSet) Contains(id uint64) bool {
	if s.all {
		return true
	}
	_, ok := slices.BinarySearch(s.ids, id)
	return ok
}

// IDs returns the sorted member ids of a
// restricted set, or nil if s is unrestricted.
func (s PartitionSet) IDs() []uint64 {
	if s.all {
		return nil
	}
	return slices.Clone(s.ids)
}

// Len returns the number of ids in a
// restricted set, or -1 if s is unrestricted.
func (s PartitionSet) Len() int {
	if s.all {
		return -1
	}
	return len(s.ids)
}

// Equal returns whether s and o
// describe the same set.
func (s PartitionSet) Equal(o PartitionSet) bool {
	return s.all == o.all && slices.Equal(s.ids, o.ids)
}

func (s PartitionSet) String() string {
	if s.all {
		return "all"
	}
	var dst strings.Builder
	dst.WriteByte('{')
	for i, id := range s.ids {
		if i > 0 {
			dst.WriteString(", ")
		}
		dst.WriteString(strconv.FormatUint(id, 10))
	}
	dst.WriteByte('}')
	return dst.String()
}
