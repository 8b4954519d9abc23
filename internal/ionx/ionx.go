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

// Package ionx contains the small set of helpers
// used to write and read the tagged structures
// that make up a serialized plan.
package ionx

import (
	"bytes"
	"io"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownType is returned by UnpackTyped
	// when the "type" symbol is not recognized.
	ErrUnknownType = errors.New("unknown type")
	// ErrUnexpectedField is returned by field
	// setters for labels they do not understand.
	ErrUnexpectedField = errors.New("unexpected field")
)

// Encoder wraps an ion.Writer and remembers
// the first error produced by any write.
// Once an error has occurred, all further
// writes are no-ops.
type Encoder struct {
	w   ion.Writer
	err error
}

// NewEncoder returns an Encoder writing binary ion to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: ion.NewBinaryWriter(w)}
}

func (e *Encoder) do(fn func() error) {
	if e.err == nil {
		e.err = fn()
	}
}

func (e *Encoder) BeginStruct() { e.do(e.w.BeginStruct) }
func (e *Encoder) EndStruct()   { e.do(e.w.EndStruct) }
func (e *Encoder) BeginList()   { e.do(e.w.BeginList) }
func (e *Encoder) EndList()     { e.do(e.w.EndList) }

// Field begins a struct field with the given label.
func (e *Encoder) Field(name string) {
	e.do(func() error { return e.w.FieldName(ion.NewSymbolTokenFromString(name)) })
}

// SetType writes the "type" field that must be
// the first field of every tagged structure.
func (e *Encoder) SetType(name string) {
	e.Field("type")
	e.Symbol(name)
}

func (e *Encoder) Symbol(s string) {
	e.do(func() error { return e.w.WriteSymbolFromString(s) })
}

func (e *Encoder) String(s string) {
	e.do(func() error { return e.w.WriteString(s) })
}

func (e *Encoder) Int(i int64) {
	e.do(func() error { return e.w.WriteInt(i) })
}

// Uint writes u as a (non-negative) ion integer.
func (e *Encoder) Uint(u uint64) {
	e.do(func() error { return e.w.WriteUint(u) })
}

func (e *Encoder) Bool(b bool) {
	e.do(func() error { return e.w.WriteBool(b) })
}

func (e *Encoder) Float(f float64) {
	e.do(func() error { return e.w.WriteFloat(f) })
}

func (e *Encoder) Blob(b []byte) {
	e.do(func() error { return e.w.WriteBlob(b) })
}

func (e *Encoder) Null() { e.do(e.w.WriteNull) }

// Strings writes lst as a list of strings.
func (e *Encoder) Strings(lst []string) {
	e.BeginList()
	for i := range lst {
		e.String(lst[i])
	}
	e.EndList()
}

// Err returns the first error encountered.
func (e *Encoder) Err() error { return e.err }

// Finish flushes the underlying writer.
func (e *Encoder) Finish() error {
	e.do(e.w.Finish)
	return e.err
}

// Marshal runs fn against a fresh Encoder and
// returns the encoded bytes.
func Marshal(fn func(e *Encoder)) ([]byte, error) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	fn(e)
	if err := e.Finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open returns a Reader positioned on the first
// top-level value in buf.
func Open(buf []byte) (ion.Reader, error) {
	r := ion.NewReaderBytes(buf)
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, io.ErrUnexpectedEOF
	}
	return r, nil
}

// FieldSetter is implemented by values that can
// be decoded one struct field at a time.
type FieldSetter interface {
	SetField(name string, r ion.Reader) error
}

// UnpackStruct calls fn for each field of the
// struct on which r is positioned. When fn returns,
// the reader may be positioned anywhere inside the field.
func UnpackStruct(r ion.Reader, fn func(name string) error) error {
	if r.Type() != ion.StructType || r.IsNull() {
		return errors.Errorf("expected a struct; got %v", r.Type())
	}
	if err := r.StepIn(); err != nil {
		return err
	}
	for r.Next() {
		tok, err := r.FieldName()
		if err != nil {
			return err
		}
		if tok == nil || tok.Text == nil {
			return errors.New("struct field without a label")
		}
		if err := fn(*tok.Text); err != nil {
			return errors.Wrapf(err, "field %q", *tok.Text)
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	return r.StepOut()
}

// UnpackList calls fn once for each element
// of the list on which r is positioned.
func UnpackList(r ion.Reader, fn func() error) error {
	if r.Type() != ion.ListType || r.IsNull() {
		return errors.Errorf("expected a list; got %v", r.Type())
	}
	if err := r.StepIn(); err != nil {
		return err
	}
	i := 0
	for r.Next() {
		if err := fn(); err != nil {
			return errors.Wrapf(err, "item #%d", i)
		}
		i++
	}
	if err := r.Err(); err != nil {
		return err
	}
	return r.StepOut()
}

// UnpackTyped decodes a struct whose first field is
// the "type" symbol. The symbol is passed to mk, which
// returns an empty value that receives the rest of the fields.
func UnpackTyped(r ion.Reader, mk func(typ string) (FieldSetter, bool)) (FieldSetter, error) {
	var out FieldSetter
	err := UnpackStruct(r, func(name string) error {
		if out == nil {
			if name != "type" {
				return errors.Errorf("first field is %q instead of \"type\"", name)
			}
			typ, err := String(r)
			if err != nil {
				return err
			}
			var ok bool
			out, ok = mk(typ)
			if !ok {
				return errors.Wrapf(ErrUnknownType, "%q", typ)
			}
			return nil
		}
		return out.SetField(name, r)
	})
	if err == nil && out == nil {
		err = errors.New("missing \"type\" field")
	}
	return out, err
}

// IsNull reports whether r is positioned on a null value.
func IsNull(r ion.Reader) bool { return r.IsNull() }

// String reads a string or symbol.
func String(r ion.Reader) (string, error) {
	switch r.Type() {
	case ion.StringType:
	case ion.SymbolType:
		tok, err := r.SymbolValue()
		if err != nil {
			return "", err
		}
		if tok == nil || tok.Text == nil {
			return "", errors.New("unexpected symbol without text")
		}
		return *tok.Text, nil
	default:
		return "", errors.Errorf("expected a string; got %v", r.Type())
	}
	s, err := r.StringValue()
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", errors.New("unexpected null string")
	}
	return *s, nil
}

func Int(r ion.Reader) (int64, error) {
	if r.Type() != ion.IntType {
		return 0, errors.Errorf("expected an integer; got %v", r.Type())
	}
	i, err := r.Int64Value()
	if err != nil {
		return 0, err
	}
	if i == nil {
		return 0, errors.New("unexpected null integer")
	}
	return *i, nil
}

// Uint reads a non-negative integer
// that fits in 64 bits.
func Uint(r ion.Reader) (uint64, error) {
	if r.Type() != ion.IntType {
		return 0, errors.Errorf("expected an integer; got %v", r.Type())
	}
	i, err := r.BigIntValue()
	if err != nil {
		return 0, err
	}
	if i == nil {
		return 0, errors.New("unexpected null integer")
	}
	if i.Sign() < 0 || !i.IsUint64() {
		return 0, errors.Errorf("integer %s out of range", i)
	}
	return i.Uint64(), nil
}

func Bool(r ion.Reader) (bool, error) {
	if r.Type() != ion.BoolType {
		return false, errors.Errorf("expected a bool; got %v", r.Type())
	}
	b, err := r.BoolValue()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, errors.New("unexpected null bool")
	}
	return *b, nil
}

func Float(r ion.Reader) (float64, error) {
	if r.Type() != ion.FloatType {
		return 0, errors.Errorf("expected a float; got %v", r.Type())
	}
	f, err := r.FloatValue()
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, errors.New("unexpected null float")
	}
	return *f, nil
}

func Blob(r ion.Reader) ([]byte, error) {
	if r.Type() != ion.BlobType {
		return nil, errors.Errorf("expected a blob; got %v", r.Type())
	}
	b, err := r.ByteValue()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Strings reads a list of strings.
func Strings(r ion.Reader) ([]string, error) {
	out := []string{}
	err := UnpackList(r, func() error {
		s, err := String(r)
		if err == nil {
			out = append(out, s)
		}
		return err
	})
	return out, err
}
