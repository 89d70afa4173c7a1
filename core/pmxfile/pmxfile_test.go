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

package pmxfile

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
)

func makeTestRev2() *dataset.RawRev2 {
	r := dataset.MakeRawRev2(6)

	// cfr/dcr values must survive half precision, efo/efc/fbg float32
	r.Vld = []bool{true, true, true, true, false, true}
	r.Fnl = []bool{false, false, true, false, false, true}
	r.Bot = []bool{true, false, false, true, false, false}
	r.Eot = []bool{false, false, true, false, false, true}
	r.Sta = []uint8{0, 1, 2, 0, 1, 2}
	r.Tim = []float64{0.001, 0.002, 0.003, 0.004, 0.005, 0.006}
	r.Tid = []uint32{7, 7, 7, 9, 9, 9}
	r.Gri = []uint32{1, 1, 1, 2, 2, 2}
	r.Thi = []uint8{0, 0, 0, 1, 1, 1}
	r.Sqi = []uint8{3, 3, 3, 3, 3, 3}
	r.Itr = []int32{0, 1, 2, 0, 1, 2}
	r.X = []float64{1.5e-8, 1.6e-8, 1.7e-8, 2.5e-8, 2.6e-8, 2.7e-8}
	r.Y = []float64{-1.5e-8, -1.6e-8, -1.7e-8, -2.5e-8, -2.6e-8, -2.7e-8}
	r.Z = []float64{0, 0, 0, 0, 0, 0}
	r.Lncx = []float64{1, 2, 3, 4, 5, 6}
	r.Lncy = []float64{6, 5, 4, 3, 2, 1}
	r.Lncz = []float64{0, 0, 0, 0, 0, 0}
	r.Eco = []uint32{10, 20, 30, 40, 50, 60}
	r.Ecc = []uint32{11, 21, 31, 41, 51, 61}
	r.Efo = []float64{10000.5, 20000.5, 30000.5, 40000.5, 50000.5, 60000.5}
	r.Efc = []float64{100, 200, 300, 400, 500, 600}
	r.Fbg = []float64{1000, 1500, 2000, 2500, 3000, 3500}
	r.Cfr = []float64{0.5, 0.25, 0.75, 0.125, 0.375, 0.625}
	r.Dcr = []float64{0.5, 0.5, 0.5, 0.25, 0.25, 0.25}
	r.Fluo = []uint8{1, 1, 1, 2, 2, 2}
	return r
}

func makeTestCanonical() *dataset.CanonicalTable {
	t := dataset.MakeCanonicalTable(2)
	t.AppendRow(dataset.CanonicalRow{Tid: 7, Tim: 0.003, X: 17.0, Y: -17.0, Z: 0, Efo: 30000.5, Cfr: 0.75, Eco: 30, Dcr: 0.5, Dwell: 1, Fbg: 2000, Itr: 2, Fluo: 1})
	t.AppendRow(dataset.CanonicalRow{Tid: 9, Tim: 0.006, X: 27.0, Y: -27.0, Z: 0, Efo: 60000.5, Cfr: 0.625, Eco: 60, Dcr: 0.25, Dwell: 1, Fbg: 3500, Itr: 2, Fluo: 2})
	return t
}

func TestRoundTripRev2(t *testing.T) {
	efoRange := [2]float64{13823.7, 48355.8}
	content := &Content{
		Params: Parameters{
			ZScalingFactor:  0.7,
			MinTraceLength:  4,
			NumFluorophores: 2,
			DwellTimeMs:     1.0,
			IsTracking:      0,
			PoolDcr:         1,
			ScaleBarSizeNm:  500,
			AppliedEfoRange: &efoRange,
		},
		Raw2:          makeTestRev2(),
		RawRows:       []int64{0, 1, 2, 5, 6, 7},
		Canonical:     makeTestCanonical(),
		CanonicalRows: []int64{2, 7},
	}

	data, err := Write(content)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.HasPrefix(data, Magic) {
		t.Errorf("Written file doesn't start with magic")
	}

	hdr, err := ReadHeader(data)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if hdr.FileVersion != CurrentFileVersion || hdr.ReaderVersion != 2 {
		t.Errorf("Unexpected header: %+v", hdr)
	}

	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got.Raw1 != nil {
		t.Errorf("Revision 1 table present in revision 2 file")
	}
	if !reflect.DeepEqual(got.Raw2, content.Raw2) {
		t.Errorf("Raw table didn't survive round trip")
	}
	if !reflect.DeepEqual(got.RawRows, content.RawRows) {
		t.Errorf("Raw row index didn't survive round trip: %v", got.RawRows)
	}
	if !reflect.DeepEqual(got.Canonical, content.Canonical) {
		t.Errorf("Processed table didn't survive round trip")
	}
	if !reflect.DeepEqual(got.CanonicalRows, content.CanonicalRows) {
		t.Errorf("Processed row index didn't survive round trip: %v", got.CanonicalRows)
	}
	if !reflect.DeepEqual(got.Params, content.Params) {
		t.Errorf("Parameters didn't survive round trip: %+v", got.Params)
	}
	if got.Params.AppliedCfrRange != nil {
		t.Errorf("CFR range should stay unset")
	}
}

func TestRoundTripRev1(t *testing.T) {
	r := dataset.MakeRawRev1(2, 3)
	r.Sqi = []uint32{1, 1, 1}
	r.Gri = []uint32{0, 0, 0}
	r.Tim = []float64{0.1, 0.2, 0.3}
	r.Tid = []int32{4, 4, 6}
	r.Vld = []bool{true, true, true}
	r.Act = []bool{false, false, false}
	r.Dos = []int32{0, 0, 0}
	r.Sky = []int32{0, 0, 0}
	r.Fluo = []uint8{1, 1, 1}
	r.Itr = []int32{0, 1, 0, 1, 0, 1}
	r.Tic = []uint64{10, 11, 20, 21, 30, 31}
	r.Loc = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}
	r.Lnc = make([]float64, 18)
	r.Eco = []int32{5, 6, 7, 8, 9, 10}
	r.Ecc = []int32{0, 0, 0, 0, 0, 0}
	r.Efo = []float64{1000, 2000, 1000, 2000, 1000, 2000}
	r.Efc = []float64{0, 0, 0, 0, 0, 0}
	r.Sta = []int32{0, 0, 0, 0, 0, 0}
	r.Cfr = []float64{0.8, 0.6, 0.8, 0.7, 0.9, 0.5}
	r.Dcr = []float64{0.4, 0.4, 0.3, 0.3, 0.2, 0.2}
	r.Ext = make([]float64, 18)
	r.Gvy = make([]float64, 6)
	r.Gvx = make([]float64, 6)
	r.Eoy = make([]float64, 6)
	r.Eox = make([]float64, 6)
	r.Dmz = make([]float64, 6)
	r.Lcy = make([]float64, 6)
	r.Lcx = make([]float64, 6)
	r.Lcz = make([]float64, 6)
	r.Fbg = []float64{70, 70, 70, 70, 70, 70}

	content := &Content{
		Params: Parameters{ZScalingFactor: 1, MinTraceLength: 1, NumFluorophores: 1, DwellTimeMs: 1, ScaleBarSizeNm: 500},
		Raw1:   r,
	}

	data, err := Write(content)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Header.ReaderVersion != 1 {
		t.Errorf("Expected reader version 1, got %v", got.Header.ReaderVersion)
	}
	if !reflect.DeepEqual(got.Raw1, r) {
		t.Errorf("Raw table didn't survive round trip")
	}

	// nil rows on write come back as a sequential index
	if !reflect.DeepEqual(got.RawRows, []int64{0, 1, 2}) {
		t.Errorf("Expected sequential row index, got %v", got.RawRows)
	}
	if got.Canonical != nil {
		t.Errorf("Processed table present in raw-only file")
	}
}

func TestReadHeaderBadInput(t *testing.T) {
	_, err := ReadHeader([]byte{0x00, 0x01})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindCorruptHeader {
		t.Errorf("Expected CorruptHeader for bad magic, got %v", err)
	}

	// Future file version
	var buf bytes.Buffer
	buf.Write(Magic)
	enc := cbor.NewEncoder(&buf)
	if err := enc.Encode(Header{FileVersion: "4.0", ReaderVersion: 1}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	_, err = ReadHeader(buf.Bytes())
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindFormatUnsupported {
		t.Errorf("Expected FormatUnsupported for version 4.0, got %v", err)
	}
}

func Example_readHeaderOldVersion() {
	// Version 2.0 files predate revision 2 raw tables, so whatever the
	// header claims the reader version is pinned to 1
	var buf bytes.Buffer
	buf.Write(Magic)
	enc := cbor.NewEncoder(&buf)
	enc.Encode(Header{FileVersion: "2.0", ReaderVersion: 2})

	hdr, err := ReadHeader(buf.Bytes())
	fmt.Printf("%v|%v|%v\n", hdr.FileVersion, hdr.ReaderVersion, err)

	// Output: 2.0|1|<nil>
}
