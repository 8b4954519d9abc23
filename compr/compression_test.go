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

package compr

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctl := bytes.Repeat([]byte("partition "), 1000)
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			comp := Compression(name)
			if comp == nil {
				t.Fatalf("no compressor for %q", name)
			}
			dec := Decompression(comp.Name())
			if dec == nil {
				t.Fatalf("no decompressor for %q", comp.Name())
			}
			if dec.Name() != comp.Name() {
				t.Fatalf("names %q and %q differ", comp.Name(), dec.Name())
			}
			prefix := []byte("hdr")
			out := comp.Compress(ctl, append([]byte(nil), prefix...))
			if !bytes.HasPrefix(out, prefix) {
				t.Fatal("Compress did not append to dst")
			}
			if len(out)-len(prefix) >= len(ctl) {
				t.Errorf("%d bytes did not compress (got %d)", len(ctl), len(out)-len(prefix))
			}
			dst := make([]byte, len(ctl))
			if err := dec.Decompress(out[len(prefix):], dst); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst, ctl) {
				t.Fatal("mismatch")
			}
			// wrong output size
			if err := dec.Decompress(out[len(prefix):], dst[:len(dst)-1]); err == nil {
				t.Fatal("expected an error for a short buffer")
			}
		})
	}
}

func TestUnknown(t *testing.T) {
	if c := Compression("lz4"); c != nil {
		t.Fatalf("unexpected compressor %T", c)
	}
	if d := Decompression("zstd-better"); d != nil {
		t.Fatalf("unexpected decompressor %T", d)
	}
}
