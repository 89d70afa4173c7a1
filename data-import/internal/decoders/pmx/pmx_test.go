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

package pmx

import (
	"testing"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/pmxfile"
)

func makeRev2() *dataset.RawRev2 {
	return &dataset.RawRev2{
		Vld:  []bool{true, true, true},
		Fnl:  []bool{false, false, true},
		Bot:  []bool{true, false, false},
		Eot:  []bool{false, false, true},
		Sta:  []uint8{0, 0, 0},
		Tim:  []float64{0.001, 0.002, 0.003},
		Tid:  []uint32{7, 7, 7},
		Gri:  []uint32{0, 0, 0},
		Thi:  []uint8{0, 0, 0},
		Sqi:  []uint8{1, 1, 1},
		Itr:  []int32{0, 1, 2},
		X:    []float64{1e-9, 2e-9, 3e-9},
		Y:    []float64{-1e-9, -2e-9, -3e-9},
		Z:    []float64{0, 0, 0},
		Lncx: []float64{0, 0, 0},
		Lncy: []float64{0, 0, 0},
		Lncz: []float64{0, 0, 0},
		Eco:  []uint32{10, 20, 30},
		Ecc:  []uint32{1, 1, 1},
		Efo:  []float64{10000.5, 20000.5, 30000.5},
		Efc:  []float64{0, 0, 0},
		Fbg:  []float64{70.5, 71.5, 72.5},
		Cfr:  []float64{0.5, 0.25, 0.125},
		Dcr:  []float64{0.75, 0.5, 0.25},
		Fluo: []uint8{0, 0, 0},
	}
}

func makeRev1() *dataset.RawRev1 {
	return &dataset.RawRev1{
		NumIterations: 1,
		Sqi:           []uint32{5, 5},
		Gri:           []uint32{0, 0},
		Tim:           []float64{0.1, 0.2},
		Tid:           []int32{4, 4},
		Vld:           []bool{true, true},
		Act:           []bool{false, false},
		Dos:           []int32{0, 0},
		Sky:           []int32{0, 0},
		Fluo:          []uint8{0, 0},
		Itr:           []int32{0, 0},
		Tic:           []uint64{100, 200},
		Loc:           []float64{1e-9, 2e-9, 0, 3e-9, 4e-9, 0},
		Lnc:           make([]float64, 6),
		Eco:           []int32{10, 20},
		Ecc:           []int32{0, 0},
		Efo:           []float64{1000, 2000},
		Efc:           []float64{0, 0},
		Sta:           []int32{0, 0},
		Cfr:           []float64{0.5, 0.5},
		Dcr:           []float64{0.3, 0.4},
		Ext:           make([]float64, 6),
		Gvy:           []float64{0, 0},
		Gvx:           []float64{0, 0},
		Eoy:           []float64{0, 0},
		Eox:           []float64{0, 0},
		Dmz:           []float64{0, 0},
		Lcy:           []float64{0, 0},
		Lcx:           []float64{0, 0},
		Lcz:           []float64{0, 0},
		Fbg:           []float64{70, 71},
	}
}

func TestDecodeRev2(t *testing.T) {
	data, err := pmxfile.Write(&pmxfile.Content{
		Params: pmxfile.Parameters{
			ZScalingFactor:  0.7,
			MinTraceLength:  4,
			NumFluorophores: 2,
			DwellTimeMs:     0.4,
			PoolDcr:         1,
			AppliedEfoRange: &[2]float64{13823.70184744663, 48355.829889892586},
		},
		Raw2: makeRev2(),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rev, err := SniffRevision(data)
	if err != nil || rev != dataset.Revision2 {
		t.Fatalf("SniffRevision: got %v, %v", rev, err)
	}

	payload, err := Decoder{}.Decode(data, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.Revision != dataset.Revision2 || payload.Raw2 == nil || payload.Raw2.NumRows() != 3 {
		t.Fatalf("Wrong table shape: %+v", payload)
	}
	if payload.Raw2.Cfr[1] != 0.25 || payload.Raw2.Efo[2] != 30000.5 {
		t.Errorf("Bad values: cfr=%v efo=%v", payload.Raw2.Cfr, payload.Raw2.Efo)
	}

	p := payload.Params
	if p == nil || p.ZScalingFactor != 0.7 || p.DwellTimeMs != 0.4 || p.NumFluorophores != 2 {
		t.Errorf("Bad acquisition params: %+v", p)
	}
	if !p.PoolDcr || p.Tracking || p.UnitScalingFactor != 1e9 {
		t.Errorf("Bad acquisition params: %+v", p)
	}

	f := payload.Filters
	if f == nil || f.MinTraceLength != 4 || f.EfoRange == nil || f.EfoRange[0] != 13823.70184744663 {
		t.Errorf("Bad persisted filters: %+v", f)
	}
	if f.CfrRange != nil {
		t.Errorf("CfrRange should stay unset: %+v", f.CfrRange)
	}
}

func TestDecodeRev1WithProcessed(t *testing.T) {
	canonical := dataset.MakeCanonicalTable(2)
	canonical.AppendRow(dataset.CanonicalRow{Tid: 4, Tim: 0.1, X: 1, Y: 2, Efo: 1000, Cfr: 0.5, Eco: 10, Dcr: 0.3, Dwell: 2, Fbg: 70})
	canonical.AppendRow(dataset.CanonicalRow{Tid: 4, Tim: 0.2, X: 3, Y: 4, Efo: 2000, Cfr: 0.5, Eco: 20, Dcr: 0.4, Dwell: 3, Fbg: 71, Itr: 1})

	data, err := pmxfile.Write(&pmxfile.Content{Raw1: makeRev1(), Canonical: canonical})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rev, err := SniffRevision(data)
	if err != nil || rev != dataset.Revision1 {
		t.Fatalf("SniffRevision: got %v, %v", rev, err)
	}

	payload, err := Decoder{}.Decode(data, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.Revision != dataset.Revision1 || payload.Raw1 == nil || payload.Raw1.NumRows() != 2 {
		t.Fatalf("Wrong table shape: %+v", payload)
	}
	if payload.Processed == nil || payload.Processed.NumRows() != 2 || payload.Processed.Dwell[1] != 3 {
		t.Errorf("Processed table didn't carry through: %+v", payload.Processed)
	}

	// Unset stored parameters fall back to load defaults
	if payload.Params.ZScalingFactor != 1.0 || payload.Params.DwellTimeMs != 1.0 {
		t.Errorf("Bad default params: %+v", payload.Params)
	}
	if payload.Filters.MinTraceLength != 0 || payload.Filters.EfoRange != nil {
		t.Errorf("Bad default filters: %+v", payload.Filters)
	}
}

func TestDecodeErrors(t *testing.T) {
	log := &logger.NullLogger{}

	_, err := Decoder{}.Decode([]byte("not a pmx file at all"), log)
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindCorruptHeader {
		t.Errorf("Expected CorruptHeader for garbage, got %v", err)
	}

	// A file with parameters but no raw table cannot seed a dataset
	data, err := pmxfile.Write(&pmxfile.Content{Params: pmxfile.Parameters{MinTraceLength: 1}})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_, err = Decoder{}.Decode(data, log)
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindDecodeFailure {
		t.Errorf("Expected DecodeFailure without a raw table, got %v", err)
	}
}
