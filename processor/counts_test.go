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
	"testing"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/logger"
)

// EFO band used by the acquisition this mirrors
const (
	efoLow  = 13823.70184744663
	efoHigh = 48355.829889892586
)

// buildLargeTable - 12580 localizations in a trace length / EFO layout
// matching a full acquisition:
//
//	677 rows in traces shorter than 4, all outside the EFO band
//	10385 rows in 5-long traces entirely inside the band
//	1518 rows in 6-long traces with at most 3 in-band rows each
//	  (679 in-band rows among them)
func buildLargeTable() *dataset.CanonicalTable {
	table := dataset.MakeCanonicalTable(12580)
	tid := int64(0)

	addTrace := func(length int, inBand int) {
		tid++
		for i := 0; i < length; i++ {
			efo := 60000.0
			if i < inBand {
				efo = 20000.0
			}
			table.AppendRow(dataset.CanonicalRow{
				Tid:  tid,
				Tim:  float64(table.NumRows()) * 0.001,
				X:    float64(i),
				Efo:  efo,
				Fluo: 1,
			})
		}
	}

	for i := 0; i < 225; i++ {
		addTrace(3, 0)
	}
	addTrace(2, 0)

	for i := 0; i < 2077; i++ {
		addTrace(5, 5)
	}

	for i := 0; i < 226; i++ {
		addTrace(6, 3)
	}
	addTrace(6, 1)
	for i := 0; i < 26; i++ {
		addTrace(6, 0)
	}

	return table
}

func TestLargeDatasetUnfiltered(t *testing.T) {
	p := New(buildLargeTable(), Config{MinTraceLength: 1}, &logger.NullLogger{})
	if p.NumValues() != 12580 {
		t.Errorf("Expected 12580 rows at min length 1, got %v", p.NumValues())
	}
}

func TestLargeDatasetGlobalFilter(t *testing.T) {
	p := New(buildLargeTable(), Config{MinTraceLength: 4}, &logger.NullLogger{})
	if p.NumValues() != 11903 {
		t.Errorf("Expected 11903 rows at min length 4, got %v", p.NumValues())
	}
}

func TestLargeDatasetEfoRange(t *testing.T) {
	p := New(buildLargeTable(), Config{MinTraceLength: 1}, &logger.NullLogger{})

	if err := p.ApplyRange("efo", efoLow, efoHigh); err != nil {
		t.Errorf("Range failed: %v", err)
	}
	if p.NumValues() != 11064 {
		t.Errorf("Expected 11064 rows in the EFO band, got %v", p.NumValues())
	}

	// Same range twice removes nothing
	if err := p.ApplyRange("efo", efoLow, efoHigh); err != nil {
		t.Errorf("Range failed: %v", err)
	}
	if p.NumValues() != 11064 {
		t.Errorf("Expected the EFO band filter to be idempotent, got %v rows", p.NumValues())
	}
}

func TestLargeDatasetEfoRangeWithGlobalFilter(t *testing.T) {
	p := New(buildLargeTable(), Config{MinTraceLength: 4}, &logger.NullLogger{})

	// The global tail re-counts trace lengths inside the band, dropping
	// traces that only partially overlap it
	if err := p.ApplyRange("efo", efoLow, efoHigh); err != nil {
		t.Errorf("Range failed: %v", err)
	}
	if p.NumValues() != 10385 {
		t.Errorf("Expected 10385 rows in the EFO band at min length 4, got %v", p.NumValues())
	}

	if err := p.ApplyRange("efo", efoLow, efoHigh); err != nil {
		t.Errorf("Range failed: %v", err)
	}
	if p.NumValues() != 10385 {
		t.Errorf("Expected the filter chain to be idempotent, got %v rows", p.NumValues())
	}
}
