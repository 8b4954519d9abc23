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

package ionx

import (
	"io"
	"math"
	"testing"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/stretchr/testify/require"
)

type point struct {
	name string
	x, y int64
	tags []string
}

func (p *point) SetField(name string, r ion.Reader) error {
	var err error
	switch name {
	case "name":
		p.name, err = String(r)
	case "x":
		p.x, err = Int(r)
	case "y":
		p.y, err = Int(r)
	case "tags":
		p.tags, err = Strings(r)
	default:
		err = ErrUnexpectedField
	}
	return err
}

func mkPoint(typ string) (FieldSetter, bool) {
	if typ == "point" {
		return &point{}, true
	}
	return nil, false
}

func TestTyped(t *testing.T) {
	buf, err := Marshal(func(e *Encoder) {
		e.BeginStruct()
		e.SetType("point")
		e.Field("name")
		e.String("origin")
		e.Field("x")
		e.Int(-3)
		e.Field("y")
		e.Uint(4)
		e.Field("tags")
		e.Strings([]string{"a", "b"})
		e.EndStruct()
	})
	require.NoError(t, err)
	r, err := Open(buf)
	require.NoError(t, err)
	v, err := UnpackTyped(r, mkPoint)
	require.NoError(t, err)
	require.Equal(t, &point{name: "origin", x: -3, y: 4, tags: []string{"a", "b"}}, v)
}

func TestTypedErrors(t *testing.T) {
	cases := []struct {
		name string
		enc  func(e *Encoder)
		is   error
	}{
		{"unknown type", func(e *Encoder) {
			e.BeginStruct()
			e.SetType("line")
			e.EndStruct()
		}, ErrUnknownType},
		{"unexpected field", func(e *Encoder) {
			e.BeginStruct()
			e.SetType("point")
			e.Field("z")
			e.Int(1)
			e.EndStruct()
		}, ErrUnexpectedField},
		{"type not first", func(e *Encoder) {
			e.BeginStruct()
			e.Field("x")
			e.Int(1)
			e.SetType("point")
			e.EndStruct()
		}, nil},
		{"no type", func(e *Encoder) {
			e.BeginStruct()
			e.EndStruct()
		}, nil},
		{"not a struct", func(e *Encoder) {
			e.Int(1)
		}, nil},
		{"wrong field type", func(e *Encoder) {
			e.BeginStruct()
			e.SetType("point")
			e.Field("x")
			e.String("1")
			e.EndStruct()
		}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf, err := Marshal(c.enc)
			require.NoError(t, err)
			r, err := Open(buf)
			require.NoError(t, err)
			_, err = UnpackTyped(r, mkPoint)
			require.Error(t, err)
			if c.is != nil {
				require.ErrorIs(t, err, c.is)
			}
		})
	}
}

func TestUint(t *testing.T) {
	for _, u := range []uint64{0, 1, 1<<63 - 1, 1 << 63, math.MaxUint64} {
		buf, err := Marshal(func(e *Encoder) {
			e.Uint(u)
		})
		require.NoError(t, err)
		r, err := Open(buf)
		require.NoError(t, err)
		got, err := Uint(r)
		require.NoError(t, err)
		require.Equal(t, u, got)
	}

	buf, err := Marshal(func(e *Encoder) {
		e.Int(-1)
	})
	require.NoError(t, err)
	r, err := Open(buf)
	require.NoError(t, err)
	_, err = Uint(r)
	require.Error(t, err)
}

func TestSymbolsAndStrings(t *testing.T) {
	buf, err := Marshal(func(e *Encoder) {
		e.BeginList()
		e.Symbol("zstd")
		e.String("zstd")
		e.EndList()
	})
	require.NoError(t, err)
	r, err := Open(buf)
	require.NoError(t, err)
	var got []string
	err = UnpackList(r, func() error {
		s, err := String(r)
		got = append(got, s)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"zstd", "zstd"}, got)
}

func TestOpenEmpty(t *testing.T) {
	_, err := Open(nil)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
