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

package resolver

import (
	"math"
	"strings"
	"testing"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

// buildRev1 - a table carrying just the columns the heuristics read.
// cfr is record-major; locValid says which (record, iteration) slots hold
// a position, the rest become NaN.
func buildRev1(n int, tids []int32, cfr []float64, locValid func(rec int, it int) bool) *dataset.RawRev1 {
	numRec := len(tids)

	loc := make([]float64, numRec*n*3)
	for rec := 0; rec < numRec; rec++ {
		for it := 0; it < n; it++ {
			v := 1e-9
			if !locValid(rec, it) {
				v = math.NaN()
			}
			base := (rec*n + it) * 3
			loc[base] = v
			loc[base+1] = v
			loc[base+2] = v
		}
	}

	return &dataset.RawRev1{
		NumIterations: n,
		Tid:           tids,
		Cfr:           cfr,
		Loc:           loc,
	}
}

func rev1Dataset(raw *dataset.RawRev1) *dataset.Dataset {
	return &dataset.Dataset{SourcePath: "run77.npy", Revision: dataset.Revision1, Raw1: raw}
}

func addRev2Row(r *dataset.RawRev2, tid uint32, itr int32, cfr float64) {
	r.Vld = append(r.Vld, true)
	r.Fnl = append(r.Fnl, true)
	r.Bot = append(r.Bot, false)
	r.Eot = append(r.Eot, false)
	r.Sta = append(r.Sta, 0)
	r.Tim = append(r.Tim, 0)
	r.Tid = append(r.Tid, tid)
	r.Gri = append(r.Gri, 0)
	r.Thi = append(r.Thi, 0)
	r.Sqi = append(r.Sqi, 0)
	r.Itr = append(r.Itr, itr)
	r.X = append(r.X, 1e-9)
	r.Y = append(r.Y, 2e-9)
	r.Z = append(r.Z, 0)
	r.Lncx = append(r.Lncx, 0)
	r.Lncy = append(r.Lncy, 0)
	r.Lncz = append(r.Lncz, 0)
	r.Eco = append(r.Eco, 10)
	r.Ecc = append(r.Ecc, 0)
	r.Efo = append(r.Efo, 10000)
	r.Efc = append(r.Efc, 0)
	r.Fbg = append(r.Fbg, 0)
	r.Cfr = append(r.Cfr, cfr)
	r.Dcr = append(r.Dcr, 0.5)
	r.Fluo = append(r.Fluo, 0)
}

func rev2Dataset(raw *dataset.RawRev2) *dataset.Dataset {
	return &dataset.Dataset{SourcePath: "run77.npy", Revision: dataset.Revision2, Raw2: raw}
}

func TestResolveRev1(t *testing.T) {
	const n = 10
	tids := []int32{7, 7, 8, 9}

	cfr := make([]float64, len(tids)*n)
	for rec := range tids {
		// Iterations 0 and 6 measured CFR, iteration 3 never did
		cfr[rec*n+0] = 0.30 + 0.01*float64(rec)
		cfr[rec*n+3] = cfrUnmeasured
		cfr[rec*n+6] = 0.50 + 0.05*float64(rec)
	}

	// Record 1 is the second localization of trace 7: only the last three
	// iterations re-ran
	raw := buildRev1(n, tids, cfr, func(rec int, it int) bool {
		return rec != 1 || it >= 7
	})

	indices, err := Resolve(rev1Dataset(raw), nil, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if indices.NumIterations != n || indices.Efo != 9 || indices.Eco != 9 || indices.Dcr != 9 || indices.Loc != 9 {
		t.Errorf("Unexpected indices: %v", indices)
	}
	if indices.Cfr != 6 || indices.LowConfidenceCfr {
		t.Errorf("Expected cfr index 6 with confidence, got %v", indices)
	}

	for i := 0; i < n; i++ {
		wantValid := i == 0 || i == 6
		if indices.ValidCfr[i] != wantValid {
			t.Errorf("ValidCfr[%v]: got %v, want %v", i, indices.ValidCfr[i], wantValid)
		}
		wantReloc := i >= 7
		if indices.Reloc[i] != wantReloc {
			t.Errorf("Reloc[%v]: got %v, want %v", i, indices.Reloc[i], wantReloc)
		}
	}
	if indices.NumRelocalizations() != 3 {
		t.Errorf("Expected 3 relocalizations, got %v", indices.NumRelocalizations())
	}
}

func TestResolveRev1CfrFallback(t *testing.T) {
	const n = 4
	tids := []int32{1, 1, 2}
	cfr := make([]float64, len(tids)*n) // all zero, no variance anywhere

	raw := buildRev1(n, tids, cfr, func(rec int, it int) bool { return true })

	log := &logger.RecordingLogger{}
	indices, err := Resolve(rev1Dataset(raw), nil, log)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if indices.Cfr != 3 || !indices.LowConfidenceCfr {
		t.Errorf("Expected low confidence fallback to 3, got %v", indices)
	}
	if !strings.Contains(strings.Join(log.Lines, "\n"), "defaulting cfr index to 3") {
		t.Errorf("Expected fallback log line, got %v", log.Lines)
	}
	if !strings.Contains(indices.String(), "cfr low confidence") {
		t.Errorf("Expected low confidence marker in %v", indices.String())
	}
}

func TestResolveRev1NoMultiLocTrace(t *testing.T) {
	const n = 3
	tids := []int32{1, 2, 3}
	cfr := make([]float64, len(tids)*n)
	for rec := range tids {
		cfr[rec*n+1] = 0.1 * float64(rec+1)
	}

	raw := buildRev1(n, tids, cfr, func(rec int, it int) bool { return true })

	indices, err := Resolve(rev1Dataset(raw), nil, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if indices.Cfr != 1 {
		t.Errorf("Expected cfr index 1, got %v", indices)
	}
	if indices.NumRelocalizations() != 0 {
		t.Errorf("Expected no relocalizations detected, got %v", indices.Reloc)
	}
}

func TestResolveRev1Aggregated(t *testing.T) {
	raw := buildRev1(1, []int32{1, 2, 3}, []float64{0.5, 0.6, 0.7}, func(rec int, it int) bool { return true })

	indices, err := Resolve(rev1Dataset(raw), nil, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if indices.NumIterations != 1 || indices.Cfr != 0 || indices.Loc != 0 || indices.Efo != 0 {
		t.Errorf("Unexpected aggregated indices: %v", indices)
	}
	if !indices.ValidCfr[0] || !indices.Reloc[0] {
		t.Errorf("Expected the only iteration valid and relocalizing: %v", indices)
	}
}

func TestResolveOverrides(t *testing.T) {
	const n = 10
	tids := []int32{7, 7, 8, 9}
	cfr := make([]float64, len(tids)*n)
	for rec := range tids {
		cfr[rec*n+6] = 0.50 + 0.05*float64(rec)
	}
	raw := buildRev1(n, tids, cfr, func(rec int, it int) bool { return rec != 1 || it >= 7 })

	cfrIdx := 4
	locIdx := 8
	indices, err := Resolve(rev1Dataset(raw), &Overrides{Cfr: &cfrIdx, Loc: &locIdx}, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if indices.Cfr != 4 || indices.Loc != 8 || indices.LowConfidenceCfr {
		t.Errorf("Overrides not applied: %v", indices)
	}

	bad := 10
	_, err = Resolve(rev1Dataset(raw), &Overrides{Cfr: &bad}, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindInvalidIterationSpec {
		t.Errorf("Expected InvalidIterationSpec for out of range override, got %v", err)
	}

	highCfr := 8
	lowLoc := 5
	_, err = Resolve(rev1Dataset(raw), &Overrides{Cfr: &highCfr, Loc: &lowLoc}, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindInvalidIterationSpec {
		t.Errorf("Expected InvalidIterationSpec for cfr after loc, got %v", err)
	}
}

func TestResolveEmpty(t *testing.T) {
	raw := buildRev1(3, []int32{}, []float64{}, func(rec int, it int) bool { return true })

	_, err := Resolve(rev1Dataset(raw), nil, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindEmptyInput {
		t.Errorf("Expected EmptyInput for empty table, got %v", err)
	}

	_, err = Resolve(&dataset.Dataset{SourcePath: "none"}, nil, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindEmptyInput {
		t.Errorf("Expected EmptyInput without a raw table, got %v", err)
	}
}

func TestResolveRev2(t *testing.T) {
	raw := dataset.MakeRawRev2(0)

	// Trace 21 re-localizes ordinals 3 and 4 after its first full cycle
	for _, itr := range []int32{0, 1, 2, 3, 4, 3, 4} {
		cfr := 0.0
		if itr == 2 {
			cfr = 0.5
		}
		addRev2Row(raw, 21, itr, cfr)
	}
	for _, itr := range []int32{0, 1, 2, 3, 4} {
		cfr := 0.0
		if itr == 2 {
			cfr = 0.6
		}
		addRev2Row(raw, 22, itr, cfr)
	}
	for _, itr := range []int32{0, 1, 2, 3, 4} {
		cfr := 0.0
		if itr == 2 {
			cfr = 0.7
		}
		addRev2Row(raw, 23, itr, cfr)
	}

	indices, err := Resolve(rev2Dataset(raw), nil, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if indices.NumIterations != 5 || indices.Efo != 4 || indices.Loc != 4 {
		t.Errorf("Unexpected indices: %v", indices)
	}
	if indices.Cfr != 2 || indices.LowConfidenceCfr {
		t.Errorf("Expected cfr ordinal 2 with confidence, got %v", indices)
	}
	for i := 0; i < 5; i++ {
		if indices.ValidCfr[i] != (i == 2) {
			t.Errorf("ValidCfr[%v]: got %v", i, indices.ValidCfr[i])
		}
		if indices.Reloc[i] != (i >= 3) {
			t.Errorf("Reloc[%v]: got %v", i, indices.Reloc[i])
		}
	}
}

func TestResolveRev2SingleTrace(t *testing.T) {
	raw := dataset.MakeRawRev2(0)
	for _, itr := range []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9} {
		addRev2Row(raw, 5, itr, 0.4)
	}

	log := &logger.RecordingLogger{}
	indices, err := Resolve(rev2Dataset(raw), nil, log)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A single trace gives the variance heuristic nothing to compare
	if indices.NumIterations != 10 || indices.Cfr != 9 || !indices.LowConfidenceCfr {
		t.Errorf("Expected low confidence fallback, got %v", indices)
	}
	if indices.NumRelocalizations() != 1 || !indices.Reloc[9] {
		t.Errorf("Expected ordinal 9 relocalizing, got %v", indices.Reloc)
	}
}

func TestResolveRev2NoLongTrace(t *testing.T) {
	raw := dataset.MakeRawRev2(0)
	for _, tid := range []uint32{1, 2, 3} {
		for itr := int32(0); itr < 5; itr++ {
			addRev2Row(raw, tid, itr, 0.1*float64(tid))
		}
	}

	_, err := Resolve(rev2Dataset(raw), nil, &logger.NullLogger{})
	if k, ok := errorwithkind.KindOf(err); !ok || k != errorwithkind.KindNoCompleteIterationsFound {
		t.Errorf("Expected NoCompleteIterationsFound, got %v", err)
	}
}

func TestResolveRev2Aggregated(t *testing.T) {
	raw := dataset.MakeRawRev2(0)
	for _, tid := range []uint32{1, 2, 3, 4} {
		addRev2Row(raw, tid, 0, 0.3)
	}

	indices, err := Resolve(rev2Dataset(raw), nil, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if indices.NumIterations != 1 || indices.Cfr != 0 || !indices.Reloc[0] {
		t.Errorf("Unexpected aggregated indices: %v", indices)
	}
}
