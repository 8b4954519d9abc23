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
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/compr"
	"github.com/SnellerInc/shardplan/internal/ionx"
	"github.com/SnellerInc/shardplan/metastore"
)

// Version is the version of the wire format
// written by Marshal. Unmarshal rejects plans
// written with a later version.
const Version = 1

// ErrVersion is returned by Unmarshal for plans
// written by a newer version of this package.
var ErrVersion = errors.New("unsupported plan version")

func (s *shared) encode(e *ionx.Encoder) {
	e.Field("root")
	s.root.encode(e)
	e.Field("schema")
	e.BeginStruct()
	e.Field("indexes")
	metastore.EncodeSnapshots(e, s.schema.Indexes)
	e.EndStruct()
}

type marshalOptions struct {
	algo string
}

// MarshalOption is an option for Marshal.
type MarshalOption func(*marshalOptions)

// WithCompression compresses the encoded plan
// with the named algorithm (see compr.Names).
func WithCompression(name string) MarshalOption {
	return func(o *marshalOptions) {
		o.algo = name
	}
}

// Marshal encodes s, including its partition set.
//
// The result is an ion structure; if compression
// was requested, the structure wraps the compressed
// encoding of the plan in a blob.
func Marshal(s *SerializedPlan, opts ...MarshalOption) ([]byte, error) {
	var o marshalOptions
	for _, fn := range opts {
		fn(&o)
	}
	var comp compr.Compressor
	if o.algo != "" {
		if comp = compr.Compression(o.algo); comp == nil {
			return nil, errors.Errorf("plan.Marshal: unknown compression %q", o.algo)
		}
	}
	var perr error
	buf, err := ionx.Marshal(func(e *ionx.Encoder) {
		e.BeginStruct()
		e.Field("version")
		e.Int(Version)
		e.Field("id")
		e.String(s.ID.String())
		s.shared.encode(e)
		if s.parts.Restricted() {
			e.Field("partitions")
			perr = metastore.EncodePartitionSet(e, s.parts)
		}
		e.EndStruct()
	})
	if err == nil {
		err = perr
	}
	if err != nil {
		return nil, errors.Wrap(err, "plan.Marshal")
	}
	if comp == nil {
		return buf, nil
	}
	return ionx.Marshal(func(e *ionx.Encoder) {
		e.BeginStruct()
		e.Field("version")
		e.Int(Version)
		e.Field("compression")
		e.Symbol(comp.Name())
		e.Field("size")
		e.Int(int64(len(buf)))
		e.Field("data")
		e.Blob(comp.Compress(buf, nil))
		e.EndStruct()
	})
}

// Unmarshal decodes a plan written by Marshal.
func Unmarshal(buf []byte) (*SerializedPlan, error) {
	s, err := unmarshal(buf, true)
	if err != nil {
		return nil, errors.Wrap(err, "plan.Unmarshal")
	}
	return s, nil
}

func unmarshal(buf []byte, outer bool) (*SerializedPlan, error) {
	r, err := ionx.Open(buf)
	if err != nil {
		return nil, err
	}
	var (
		version int64
		id      string
		algo    string
		size    int64
		data    []byte
		root    Node
		schema  *metastore.SchemaSnapshot
		parts   = metastore.Unrestricted()
	)
	err = ionx.UnpackStruct(r, func(name string) error {
		if name != "version" && version == 0 {
			return errors.New("version must be the first field")
		}
		var err error
		switch name {
		case "version":
			version, err = ionx.Int(r)
			if err == nil && (version < 1 || version > Version) {
				err = errors.Wrapf(ErrVersion, "%d", version)
			}
		case "id":
			id, err = ionx.String(r)
		case "compression":
			if !outer {
				return errors.New("nested compression")
			}
			algo, err = ionx.String(r)
		case "size":
			size, err = ionx.Int(r)
		case "data":
			data, err = ionx.Blob(r)
		case "root":
			root, err = decode(r)
		case "schema":
			schema = &metastore.SchemaSnapshot{}
			err = ionx.UnpackStruct(r, func(name string) error {
				if name != "indexes" {
					return ionx.ErrUnexpectedField
				}
				var err error
				schema.Indexes, err = metastore.DecodeSnapshots(r)
				return err
			})
		case "partitions":
			parts, err = metastore.DecodePartitionSet(r)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if algo != "" {
		return decompress(algo, size, data)
	}
	if root == nil || schema == nil {
		return nil, errors.New("missing root or schema")
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Wrap(err, "plan id")
	}
	return &SerializedPlan{
		ID:     u,
		shared: &shared{root: root, schema: schema},
		parts:  parts,
	}, nil
}

// maxSize bounds the decompressed size
// that a compressed plan may claim
const maxSize = 1 << 30

func decompress(algo string, size int64, data []byte) (*SerializedPlan, error) {
	dec := compr.Decompression(algo)
	if dec == nil {
		return nil, errors.Errorf("unknown compression %q", algo)
	}
	if size <= 0 || size > maxSize {
		return nil, errors.Errorf("invalid decompressed size %d", size)
	}
	buf := make([]byte, size)
	if err := dec.Decompress(data, buf); err != nil {
		return nil, errors.Wrap(err, algo)
	}
	return unmarshal(buf, false)
}
