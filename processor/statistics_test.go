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

package processor

import (
	"math"
	"testing"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/logger"
)

func TestTraceStatistics(t *testing.T) {
	p := makeProcessor(1)
	stats := p.TraceStatistics()

	if len(stats) != 5 {
		t.Errorf("Expected statistics for 5 traces, got %v", len(stats))
	}

	// Sorted by trace id
	for i := 1; i < len(stats); i++ {
		if stats[i].Tid <= stats[i-1].Tid {
			t.Errorf("Expected statistics sorted by tid, got %v after %v", stats[i].Tid, stats[i-1].Tid)
		}
	}

	// tid 1: x = 1,3,5,7,9 -> mean 5, sample std sqrt(10)
	s := stats[0]
	if s.Tid != 1 || s.N != 5 {
		t.Errorf("Expected tid 1 with 5 localizations, got tid %v n=%v", s.Tid, s.N)
	}
	if s.Mx != 5 || s.My != 10 || s.Mz != 15 {
		t.Errorf("Expected means (5, 10, 15), got (%v, %v, %v)", s.Mx, s.My, s.Mz)
	}
	if math.Abs(s.Sx-math.Sqrt(10)) > 1e-12 {
		t.Errorf("Expected sx %v, got %v", math.Sqrt(10), s.Sx)
	}
	if s.Fluo != 1 {
		t.Errorf("Expected fluo 1, got %v", s.Fluo)
	}

	// tid 3 is a singleton: spread must be 0, not NaN
	s = stats[2]
	if s.N != 1 {
		t.Errorf("Expected tid 3 to be a singleton, got n=%v", s.N)
	}
	if s.Sx != 0 || s.Sy != 0 || s.Sz != 0 {
		t.Errorf("Expected zero spread for a singleton, got (%v, %v, %v)", s.Sx, s.Sy, s.Sz)
	}
	if s.Mx != 8 {
		t.Errorf("Expected singleton mean x 8, got %v", s.Mx)
	}
}

func TestTraceStatisticsFollowFilter(t *testing.T) {
	p := makeProcessor(1)

	// Narrow tid 1 to its first two rows (x=1, x=3)
	if err := p.ApplyRange("efo", 1000, 2500); err != nil {
		t.Errorf("Range failed: %v", err)
	}

	stats := p.TraceStatistics()
	if stats[0].Tid != 1 || stats[0].N != 2 {
		t.Errorf("Expected tid 1 with 2 localizations, got tid %v n=%v", stats[0].Tid, stats[0].N)
	}
	if stats[0].Mx != 2 {
		t.Errorf("Expected mean x 2 over the surviving rows, got %v", stats[0].Mx)
	}
}

func TestWeightedLocalizations(t *testing.T) {
	p := makeProcessor(1)

	// Plain mean: tid 5 has x = 0, 10
	locs := p.WeightedLocalizations()
	if len(locs) != 5 {
		t.Errorf("Expected 5 weighted localizations, got %v", len(locs))
	}
	if locs[4].Tid != 5 || locs[4].X != 5 {
		t.Errorf("Expected plain mean x 5 for tid 5, got %v", locs[4].X)
	}

	// ECO weighted: (0*1 + 10*3) / 4 = 7.5
	p.SetWeightedByECO(true)
	locs = p.WeightedLocalizations()
	if locs[4].X != 7.5 {
		t.Errorf("Expected ECO weighted mean x 7.5 for tid 5, got %v", locs[4].X)
	}

	// Toggling back restores the plain mean
	p.SetWeightedByECO(false)
	locs = p.WeightedLocalizations()
	if locs[4].X != 5 {
		t.Errorf("Expected plain mean x 5 after toggling weighting off, got %v", locs[4].X)
	}
}

func TestWeightedLocalizationsZeroWeights(t *testing.T) {
	table := dataset.MakeCanonicalTable(2)
	table.AppendRow(dataset.CanonicalRow{Tid: 1, X: 2, Fluo: 1})
	table.AppendRow(dataset.CanonicalRow{Tid: 1, X: 4, Fluo: 1})

	p := New(table, Config{MinTraceLength: 1}, &logger.NullLogger{})
	p.SetWeightedByECO(true)

	// No photon counts recorded: fall back to the plain mean
	locs := p.WeightedLocalizations()
	if len(locs) != 1 || locs[0].X != 3 {
		t.Errorf("Expected plain mean fallback x 3, got %v", locs)
	}
}

func TestDerivedCachesPerSelection(t *testing.T) {
	p := makeProcessor(1)

	all := p.TraceStatistics()
	p.SetActiveFluorophore(2)
	fluo2 := p.TraceStatistics()

	if len(fluo2) != 2 {
		t.Errorf("Expected 2 traces for fluo 2, got %v", len(fluo2))
	}

	// Switching back returns the cached union result unchanged
	p.SetActiveFluorophore(0)
	again := p.TraceStatistics()
	if len(again) != len(all) {
		t.Errorf("Expected cached union statistics after switching back, got %v traces", len(again))
	}
	if &again[0] != &all[0] {
		t.Errorf("Expected the union cache to survive a fluorophore switch")
	}

	// A mutation invalidates, and the recomputed result reflects it
	if err := p.ApplyThreshold("efo", 1000, true); err != nil {
		t.Errorf("Threshold failed: %v", err)
	}
	filtered := p.TraceStatistics()
	if len(filtered) != 3 {
		t.Errorf("Expected 3 traces after threshold, got %v", len(filtered))
	}
}
