// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package npy

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/x448/float16"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

// bin - little-endian byte builder for test records
type bin struct {
	b []byte
}

func (w *bin) f8(v float64) *bin {
	w.b = binary.LittleEndian.AppendUint64(w.b, math.Float64bits(v))
	return w
}
func (w *bin) f4(v float32) *bin {
	w.b = binary.LittleEndian.AppendUint32(w.b, math.Float32bits(v))
	return w
}
func (w *bin) f2(v float32) *bin {
	w.b = binary.LittleEndian.AppendUint16(w.b, float16.Fromfloat32(v).Bits())
	return w
}
func (w *bin) i4(v int32) *bin {
	w.b = binary.LittleEndian.AppendUint32(w.b, uint32(v))
	return w
}
func (w *bin) u4(v uint32) *bin {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
	return w
}
func (w *bin) u1(v uint8) *bin {
	w.b = append(w.b, v)
	return w
}
func (w *bin) flag(v bool) *bin {
	if v {
		return w.u1(1)
	}
	return w.u1(0)
}

// buildNpy - assembles a version 1.0 npy from a descr literal and packed
// record bytes
func buildNpy(descr string, shape string, records []byte) []byte {
	header := fmt.Sprintf("{'descr': %v, 'fortran_order': False, 'shape': %v, }", descr, shape)
	for (10+len(header)+1)%64 != 0 {
		header += " "
	}
	header += "\n"

	out := append([]byte{}, npyMagic...)
	out = append(out, 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(header)))
	out = append(out, header...)
	return append(out, records...)
}

const rev1Descr = "[('itr', [('itr', '<i4'), ('loc', '<f8', (3,)), ('eco', '<i4'), ('efo', '<f8'), ('cfr', '<f8'), ('dcr', '<f8'), ('fbg', '<f8')], (2,)), ('sqi', '<u4'), ('tim', '<f8'), ('tid', '<i4'), ('vld', '?'), ('fluo', '|u1')]"

func buildRev1Records() []byte {
	w := &bin{}

	// Record 0, tid 4
	w.i4(0).f8(1e-9).f8(2e-9).f8(0).i4(10).f8(1000).f8(0.5).f8(0.3).f8(70)
	w.i4(1).f8(1.5e-9).f8(2.5e-9).f8(0).i4(20).f8(2000).f8(0.6).f8(0.2).f8(71)
	w.u4(9).f8(0.001).i4(4).flag(true).u1(1)

	// Record 1, tid 6
	w.i4(0).f8(3e-9).f8(4e-9).f8(0).i4(30).f8(1500).f8(0.7).f8(0.4).f8(72)
	w.i4(1).f8(3.5e-9).f8(4.5e-9).f8(0).i4(40).f8(2500).f8(0.8).f8(0.1).f8(73)
	w.u4(9).f8(0.002).i4(6).flag(false).u1(1)

	return w.b
}

func TestDecodeRev1(t *testing.T) {
	data := buildNpy(rev1Descr, "(2,)", buildRev1Records())

	rev, err := SniffRevision(data)
	if err != nil || rev != dataset.Revision1 {
		t.Fatalf("SniffRevision: got %v, %v", rev, err)
	}

	payload, err := Decoder{}.Decode(data, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.Revision != dataset.Revision1 || payload.Raw1 == nil || payload.Raw2 != nil {
		t.Fatalf("Wrong payload shape: %+v", payload)
	}

	r := payload.Raw1
	if r.NumIterations != 2 || r.NumRows() != 2 {
		t.Fatalf("Got %v iterations, %v rows", r.NumIterations, r.NumRows())
	}
	if r.Tid[0] != 4 || r.Tid[1] != 6 {
		t.Errorf("Bad tids: %v", r.Tid)
	}
	if r.Vld[0] != true || r.Vld[1] != false {
		t.Errorf("Bad vld: %v", r.Vld)
	}
	if r.EfoAt(1, 1) != 2500 {
		t.Errorf("EfoAt(1,1) = %v", r.EfoAt(1, 1))
	}
	if r.CfrAt(0, 1) != 0.6 {
		t.Errorf("CfrAt(0,1) = %v", r.CfrAt(0, 1))
	}
	if x, y, z := r.LocAt(1, 0); x != 3e-9 || y != 4e-9 || z != 0 {
		t.Errorf("LocAt(1,0) = %v,%v,%v", x, y, z)
	}
	if r.EcoAt(1, 1) != 40 {
		t.Errorf("EcoAt(1,1) = %v", r.EcoAt(1, 1))
	}
	if r.FbgAt(0, 0) != 70 {
		t.Errorf("FbgAt(0,0) = %v", r.FbgAt(0, 0))
	}

	// lnc was absent so it must come back zero-filled, not nil
	if len(r.Lnc) != 12 {
		t.Errorf("Expected 12 lnc values, got %v", len(r.Lnc))
	}
}

const rev2Descr = "[('vld', '?'), ('bot', '?'), ('eot', '?'), ('tim', '<f8'), ('tid', '<u4'), ('itr', '<i4'), ('loc', '<f8', (3,)), ('eco', '<u4'), ('efo', '<f4'), ('cfr', '<f2'), ('dcr', '<f2', (2,)), ('fluo', '|u1')]"

func buildRev2Records() []byte {
	w := &bin{}
	row := func(vld, bot, eot bool, tim float64, tid uint32, itr int32, x float64, eco uint32, efo float32, cfr float32, dcr0 float32) {
		w.flag(vld).flag(bot).flag(eot).f8(tim).u4(tid).i4(itr)
		w.f8(x).f8(-x).f8(0)
		w.u4(eco).f4(efo).f2(cfr).f2(dcr0).f2(0.5).u1(1)
	}

	row(true, true, false, 0.001, 7, 0, 1e-9, 10, 10000, 0.5, 0.75)
	row(true, false, false, 0.002, 7, 1, 2e-9, 20, 20000, 0.25, 0.75)
	row(true, false, true, 0.003, 7, 2, 3e-9, 30, 30000, 0.125, 0.75)
	return w.b
}

func TestDecodeRev2(t *testing.T) {
	data := buildNpy(rev2Descr, "(3,)", buildRev2Records())

	rev, err := SniffRevision(data)
	if err != nil || rev != dataset.Revision2 {
		t.Fatalf("SniffRevision: got %v, %v", rev, err)
	}

	payload, err := Decoder{}.Decode(data, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.Revision != dataset.Revision2 || payload.Raw2 == nil || payload.Raw1 != nil {
		t.Fatalf("Wrong payload shape: %+v", payload)
	}

	r := payload.Raw2
	if r.NumRows() != 3 {
		t.Fatalf("Got %v rows", r.NumRows())
	}
	if !r.Bot[0] || r.Bot[1] || !r.Eot[2] {
		t.Errorf("Bad trace markers: bot=%v eot=%v", r.Bot, r.Eot)
	}
	if r.Tid[0] != 7 || r.Itr[2] != 2 {
		t.Errorf("Bad tid/itr: %v %v", r.Tid, r.Itr)
	}
	if r.X[1] != 2e-9 || r.Y[1] != -2e-9 {
		t.Errorf("Bad positions: %v %v", r.X[1], r.Y[1])
	}
	if r.Efo[2] != 30000 {
		t.Errorf("Bad efo: %v", r.Efo)
	}
	if r.Cfr[1] != 0.25 {
		t.Errorf("Bad cfr: %v", r.Cfr)
	}

	// dcr channel 0 only
	if r.Dcr[0] != 0.75 || r.Dcr[1] != 0.75 {
		t.Errorf("Bad dcr: %v", r.Dcr)
	}
}

func TestDecodeErrors(t *testing.T) {
	good := buildNpy(rev2Descr, "(3,)", buildRev2Records())

	// Bad magic
	bad := append([]byte{}, good...)
	bad[0] = 'X'
	_, err := Decoder{}.Decode(bad, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindCorruptHeader {
		t.Errorf("Expected CorruptHeader for bad magic, got %v", err)
	}

	// Truncated records
	_, err = Decoder{}.Decode(good[:len(good)-10], &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindDecodeFailure {
		t.Errorf("Expected DecodeFailure for truncated data, got %v", err)
	}

	// Fortran order
	fortran := buildNpy(rev2Descr, "(3,)", buildRev2Records())
	for i := 0; i < len(fortran)-5; i++ {
		if string(fortran[i:i+5]) == "False" {
			copy(fortran[i:], "True ")
			break
		}
	}
	_, err = Decoder{}.Decode(fortran, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindDecodeFailure {
		t.Errorf("Expected DecodeFailure for fortran order, got %v", err)
	}

	// Missing required field
	noTim := "[('vld', '?'), ('bot', '?'), ('tid', '<u4')]"
	w := &bin{}
	w.flag(true).flag(true).u4(1)
	_, err = Decoder{}.Decode(buildNpy(noTim, "(1,)", w.b), &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindDecodeFailure {
		t.Errorf("Expected DecodeFailure for missing field, got %v", err)
	}

	// Unclassifiable schema
	other := "[('a', '<f8'), ('b', '<f8')]"
	w = &bin{}
	w.f8(1).f8(2)
	_, err = Decoder{}.Decode(buildNpy(other, "(1,)", w.b), &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindFormatUnsupported {
		t.Errorf("Expected FormatUnsupported for unknown schema, got %v", err)
	}
}

func TestParseHeaderVersions(t *testing.T) {
	// Version 2.0 uses a 4 byte header length
	header := "{'descr': [('tid', '<u4')], 'fortran_order': False, 'shape': (1,), }\n"
	out := append([]byte{}, npyMagic...)
	out = append(out, 2, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(header)))
	out = append(out, header...)
	out = append(out, 5, 0, 0, 0)

	info, payload, err := parseHeader(out)
	if err != nil {
		t.Fatalf("parseHeader failed: %v", err)
	}
	if len(info.fields) != 1 || info.fields[0].name != "tid" || len(payload) != 4 {
		t.Errorf("Bad parse: %+v, %v payload bytes", info, len(payload))
	}

	// Unsupported future version
	out[6] = 9
	_, _, err = parseHeader(out)
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindFormatUnsupported {
		t.Errorf("Expected FormatUnsupported for npy version 9, got %v", err)
	}
}
