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
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
)

// SerializedPlan is the unit that is sent
// to a worker: a snapshot plan, the index
// snapshots it refers to, and the set of
// partitions that this copy may read.
//
// The plan tree and the schema snapshot are
// immutable and shared by every copy derived
// with WithPartitions or Shard; only the
// partition set differs between copies.
type SerializedPlan struct {
	ID     uuid.UUID
	shared *shared
	parts  metastore.PartitionSet
}

type shared struct {
	root   Node
	schema *metastore.SchemaSnapshot
}

// New serializes p and returns a SerializedPlan
// that is not yet restricted to any partitions.
// indexes must be captured from one consistent
// read of the metadata store.
func New(p logical.Plan, indexes []metastore.IndexSnapshot) (*SerializedPlan, error) {
	root, err := Serialize(p)
	if err != nil {
		return nil, err
	}
	schema := &metastore.SchemaSnapshot{
		Indexes: append([]metastore.IndexSnapshot{}, indexes...),
	}
	return &SerializedPlan{
		ID:     uuid.New(),
		shared: &shared{root: root, schema: schema},
		parts:  metastore.Unrestricted(),
	}, nil
}

// Root returns the snapshot plan tree.
func (s *SerializedPlan) Root() Node { return s.shared.root }

// IndexSnapshots returns every index snapshot
// referenced by the plan. The result must not
// be modified.
func (s *SerializedPlan) IndexSnapshots() []metastore.IndexSnapshot {
	return s.shared.schema.Indexes
}

// Partitions returns the partitions
// this copy of the plan may read.
func (s *SerializedPlan) Partitions() metastore.PartitionSet { return s.parts }

// PartitionIDsToExecute returns a copy of the
// restricted partition ids, or nil if this copy
// has not been restricted.
func (s *SerializedPlan) PartitionIDsToExecute() []uint64 { return s.parts.IDs() }

// WithPartitions returns a copy of s that
// shares its plan and snapshots but reads
// only the partitions in parts.
func (s *SerializedPlan) WithPartitions(parts metastore.PartitionSet) *SerializedPlan {
	return &SerializedPlan{ID: s.ID, shared: s.shared, parts: parts}
}

// Shard splits the partitions readable by s
// into n copies of s. A partition is assigned
// by the hash of its id, so a partition that
// appears in several index snapshots always
// lands in the same copy. Some copies may
// be restricted to no partitions at all.
// Shard returns nil if n is less than one.
func (s *SerializedPlan) Shard(n int) []*SerializedPlan {
	const (
		k0 = 0x5d1ec810febed702
		k1 = 0x40fd7fee17262f71
	)
	if n < 1 {
		return nil
	}
	buckets := make([][]uint64, n)
	var tmp [8]byte
	for _, id := range s.shared.schema.PartitionIDs().IDs() {
		if !s.parts.Contains(id) {
			continue
		}
		binary.LittleEndian.PutUint64(tmp[:], id)
		i := siphash.Hash(k0, k1, tmp[:]) % uint64(n)
		buckets[i] = append(buckets[i], id)
	}
	out := make([]*SerializedPlan, n)
	for i := range out {
		out[i] = s.WithPartitions(metastore.Restrict(buckets[i]...))
	}
	return out
}

// LogicalPlan materializes the plan against the
// local files in remoteToLocal, restricted to
// the partitions of this copy.
func (s *SerializedPlan) LogicalPlan(remoteToLocal map[string]string) (logical.Plan, error) {
	return Materialize(s.shared.root, remoteToLocal, s.parts)
}

// FilesToDownload returns the storage files that
// must be available locally before this copy of
// the plan can be materialized.
//
// For each index snapshot, in order, and for each
// of its partitions that this copy may read, the
// result lists the partition file (if it has one)
// followed by the file of each chunk. A partition
// that appears in more than one index snapshot
// contributes its files once per snapshot.
func (s *SerializedPlan) FilesToDownload() []string {
	out := []string{}
	for i := range s.shared.schema.Indexes {
		index := &s.shared.schema.Indexes[i]
		for j := range index.Partitions {
			if s.parts.Contains(index.Partitions[j].ID()) {
				out = append(out, index.Partitions[j].Files()...)
			}
		}
	}
	return out
}

// Fingerprint returns a hash of the plan tree
// and the index snapshots. Every copy derived
// from one plan has the same fingerprint.
func (s *SerializedPlan) Fingerprint() ([blake2b.Size256]byte, error) {
	buf, err := ionx.Marshal(func(e *ionx.Encoder) {
		e.BeginStruct()
		s.shared.encode(e)
		e.EndStruct()
	})
	if err != nil {
		return [blake2b.Size256]byte{}, err
	}
	return blake2b.Sum256(buf), nil
}

// String returns the id, the partition set,
// and a description of the plan tree.
func (s *SerializedPlan) String() string {
	var dst strings.Builder
	fmt.Fprintf(&dst, "plan %s partitions=%s\n", s.ID, s.parts)
	// storage names stand in for local files
	p, err := Materialize(s.shared.root, nil, metastore.Unrestricted())
	if err != nil {
		fmt.Fprintf(&dst, "<%s>\n", err)
		return dst.String()
	}
	dst.WriteString(logical.ToString(p))
	return dst.String()
}
