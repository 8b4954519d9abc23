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

package expr

import (
	"math"
	"strconv"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/pkg/errors"

	"github.com/SnellerInc/shardplan/internal/ionx"
)

// EncodeType writes t as a symbol.
func EncodeType(e *ionx.Encoder, t DataType) {
	e.Symbol(t.String())
}

// DecodeType reads a type written by EncodeType.
func DecodeType(r ion.Reader) (DataType, error) {
	s, err := ionx.String(r)
	if err != nil {
		return 0, err
	}
	t, ok := ParseDataType(s)
	if !ok {
		return 0, errors.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// EncodeSchema writes s as a list of structures.
func EncodeSchema(e *ionx.Encoder, s Schema) {
	e.BeginList()
	for i := range s {
		e.BeginStruct()
		if s[i].Qualifier != "" {
			e.Field("qualifier")
			e.String(s[i].Qualifier)
		}
		e.Field("name")
		e.String(s[i].Name)
		e.Field("type")
		EncodeType(e, s[i].Type)
		if s[i].Nullable {
			e.Field("nullable")
			e.Bool(true)
		}
		e.EndStruct()
	}
	e.EndList()
}

// DecodeSchema reads a schema written by EncodeSchema.
func DecodeSchema(r ion.Reader) (Schema, error) {
	out := Schema{}
	err := ionx.UnpackList(r, func() error {
		var f Field
		err := ionx.UnpackStruct(r, func(name string) error {
			var err error
			switch name {
			case "qualifier":
				f.Qualifier, err = ionx.String(r)
			case "name":
				f.Name, err = ionx.String(r)
			case "type":
				f.Type, err = DecodeType(r)
			case "nullable":
				f.Nullable, err = ionx.Bool(r)
			default:
				err = ionx.ErrUnexpectedField
			}
			return err
		})
		if err == nil {
			out = append(out, f)
		}
		return err
	})
	return out, err
}

// EncodeScalar writes s as a struct holding
// its data type and its value. A Null is
// written with an ion null value.
func EncodeScalar(e *ionx.Encoder, s Scalar) {
	e.BeginStruct()
	e.Field("type")
	EncodeType(e, s.Type())
	e.Field("value")
	switch s := s.(type) {
	case Null:
		e.Null()
	case Bool:
		e.Bool(bool(s))
	case Int64:
		e.Int(int64(s))
	case Uint64:
		// may not fit in an int64
		e.String(strconv.FormatUint(uint64(s), 10))
	case Float64:
		e.Float(float64(s))
	case String:
		e.String(string(s))
	case Bytes:
		e.Blob([]byte(s))
	case Timestamp:
		e.Int(int64(s))
	case Date:
		e.Int(int64(s))
	}
	e.EndStruct()
}

// DecodeScalar reads a scalar written by EncodeScalar.
func DecodeScalar(r ion.Reader) (Scalar, error) {
	var (
		typ  DataType
		out  Scalar
		null bool
		seen bool
	)
	err := ionx.UnpackStruct(r, func(name string) error {
		var err error
		switch name {
		case "type":
			typ, err = DecodeType(r)
			seen = true
		case "value":
			if !seen {
				return errors.New("value before type")
			}
			if ionx.IsNull(r) {
				null = true
				return nil
			}
			out, err = decodeValue(r, typ)
		default:
			err = ionx.ErrUnexpectedField
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if null {
		return Null{Of: typ}, nil
	}
	if out == nil {
		return nil, errors.New("scalar without a value")
	}
	return out, nil
}

func decodeValue(r ion.Reader, typ DataType) (Scalar, error) {
	switch typ {
	case TypeBoolean:
		b, err := ionx.Bool(r)
		return Bool(b), err
	case TypeInt64:
		i, err := ionx.Int(r)
		return Int64(i), err
	case TypeUint64:
		s, err := ionx.String(r)
		if err != nil {
			return nil, err
		}
		u, err := strconv.ParseUint(s, 10, 64)
		return Uint64(u), err
	case TypeFloat64:
		f, err := ionx.Float(r)
		return Float64(f), err
	case TypeUtf8:
		s, err := ionx.String(r)
		return String(s), err
	case TypeBinary:
		b, err := ionx.Blob(r)
		return Bytes(b), err
	case TypeTimestamp:
		i, err := ionx.Int(r)
		return Timestamp(i), err
	case TypeDate:
		i, err := ionx.Int(r)
		if err == nil && (i < math.MinInt32 || i > math.MaxInt32) {
			err = errors.Errorf("date %d out of range", i)
		}
		return Date(i), err
	}
	return nil, errors.Errorf("no literal representation for type %s", typ)
}
