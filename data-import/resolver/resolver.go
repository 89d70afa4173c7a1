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

// Acquisition files don't say which iteration of the measurement cycle
// each physical quantity should be read from, so we work it out from the
// data. The shape quantities (efo, eco, dcr, loc) are always measured in
// the final iteration; CFR is measured in whichever iteration the
// acquisition sequence scheduled it, which we find as the last iteration
// whose CFR values actually vary across records. Which iterations re-run
// on every re-localization of a trace is read off the first trace long
// enough to show it.
package resolver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

// cfrUnmeasured - value Imspector writes to CFR iterations that never
// measured it. Compared with a tolerance because the files store it in
// reduced precision.
const cfrUnmeasured = -3.05175781e-5
const cfrUnmeasuredTolerance = 1e-8

// Overrides - explicit iteration index picks, applied after the
// heuristics have run. Nil fields keep the heuristic result.
type Overrides struct {
	Cfr *int
	Loc *int
}

// Resolve - works out the iteration indices for the dataset's raw table.
// The raw table is read, never modified.
func Resolve(ds *dataset.Dataset, overrides *Overrides, log logger.ILogger) (dataset.IterationIndices, error) {
	empty := dataset.IterationIndices{}

	numRows := 0
	if ds.Raw1 != nil {
		numRows = ds.Raw1.NumRows()
	} else if ds.Raw2 != nil {
		numRows = ds.Raw2.NumRows()
	}
	if numRows == 0 {
		return empty, errorwithkind.MakeEmptyInputError(ds.SourcePath)
	}

	var indices dataset.IterationIndices
	var err error

	if ds.Raw1 != nil {
		indices, err = resolveRev1(ds.Raw1, log)
	} else {
		indices, err = resolveRev2(ds.Raw2, log)
	}
	if err != nil {
		return empty, err
	}

	if overrides != nil {
		if overrides.Cfr != nil {
			indices.Cfr = *overrides.Cfr
			indices.LowConfidenceCfr = false
		}
		if overrides.Loc != nil {
			indices.Loc = *overrides.Loc
		}
	}

	if err = indices.Validate(); err != nil {
		return empty, err
	}

	log.Infof("Resolved iteration indices: %v", indices)
	return indices, nil
}

func resolveRev1(raw *dataset.RawRev1, log logger.ILogger) (dataset.IterationIndices, error) {
	n := raw.NumIterations

	indices := dataset.IterationIndices{
		NumIterations: n,
		ValidCfr:      make([]bool, n),
		Reloc:         make([]bool, n),
	}

	// Aggregated acquisition, every row is an event and all quantities
	// live in the only iteration
	if n == 1 {
		indices.ValidCfr[0] = true
		indices.Reloc[0] = true
		return indices, nil
	}

	indices.Efo = n - 1
	indices.Eco = n - 1
	indices.Dcr = n - 1
	indices.Loc = n - 1

	for i := 0; i < n; i++ {
		indices.ValidCfr[i] = rev1CfrVaries(raw, i)
	}
	indices.Cfr = -1
	for i := n - 1; i >= 0; i-- {
		if indices.ValidCfr[i] {
			indices.Cfr = i
			break
		}
	}
	if indices.Cfr < 0 {
		indices.Cfr = n - 1
		indices.LowConfidenceCfr = true
		log.Infof("No iteration shows CFR variance across records, defaulting cfr index to %v", indices.Cfr)
	}

	// Relocalizing iterations are read off the NaN pattern of the second
	// record of the first trace holding more than one localization. The
	// first record of a trace localizes every iteration, later records
	// only re-run the relocalizing subset.
	second := -1
	for rec := 1; rec < raw.NumRows(); rec++ {
		if raw.Tid[rec] == raw.Tid[rec-1] {
			second = rec
			break
		}
	}
	if second < 0 {
		log.Infof("No trace holds more than one localization, cannot detect relocalizing iterations")
	} else {
		for i := 0; i < n; i++ {
			x, y, _ := raw.LocAt(second, i)
			indices.Reloc[i] = !math.IsNaN(x) && !math.IsNaN(y)
		}
	}

	return indices, nil
}

// rev1CfrVaries - true if the CFR values at this iteration vary across
// records, meaning the iteration really measured CFR
func rev1CfrVaries(raw *dataset.RawRev1, it int) bool {
	samples := []float64{}
	unique := math.NaN()
	uniform := true

	for rec := 0; rec < raw.NumRows(); rec++ {
		v := raw.CfrAt(rec, it)
		if math.IsNaN(v) {
			continue
		}
		if len(samples) == 0 {
			unique = v
		} else if v != unique {
			uniform = false
		}
		samples = append(samples, v)
	}

	// An iteration that never measured CFR carries the sentinel in every
	// record
	if uniform && len(samples) > 0 && math.Abs(unique-cfrUnmeasured) < cfrUnmeasuredTolerance {
		return false
	}

	return len(samples) > 1 && stat.Variance(samples, nil) > 0
}

func resolveRev2(raw *dataset.RawRev2, log logger.ILogger) (dataset.IterationIndices, error) {
	empty := dataset.IterationIndices{}

	// Cycle length from the highest iteration ordinal present
	n := 0
	for _, itr := range raw.Itr {
		if int(itr)+1 > n {
			n = int(itr) + 1
		}
	}
	if n <= 0 {
		return empty, errorwithkind.MakeDecodeFailureError(fmt.Errorf("no usable iteration ordinals"))
	}

	indices := dataset.IterationIndices{
		NumIterations: n,
		ValidCfr:      make([]bool, n),
		Reloc:         make([]bool, n),
	}

	if n == 1 {
		indices.ValidCfr[0] = true
		indices.Reloc[0] = true
		return indices, nil
	}

	indices.Efo = n - 1
	indices.Eco = n - 1
	indices.Dcr = n - 1
	indices.Loc = n - 1

	// One CFR sample per trace per ordinal, taken from each trace's first
	// full cycle. An ordinal whose samples vary across traces measured CFR.
	bounds := raw.TraceBounds()
	samples := make([][]float64, n)
	for _, b := range bounds {
		if b[1]-b[0] < n {
			continue
		}
		for row := b[0]; row < b[0]+n; row++ {
			ord := int(raw.Itr[row])
			if ord < 0 || ord >= n {
				continue
			}
			if v := raw.Cfr[row]; !math.IsNaN(v) {
				samples[ord] = append(samples[ord], v)
			}
		}
	}

	for i := 0; i < n; i++ {
		indices.ValidCfr[i] = len(samples[i]) > 1 && stat.Variance(samples[i], nil) > 0
	}
	indices.Cfr = -1
	for i := n - 1; i >= 0; i-- {
		if indices.ValidCfr[i] {
			indices.Cfr = i
			break
		}
	}
	if indices.Cfr < 0 {
		indices.Cfr = n - 1
		indices.LowConfidenceCfr = true
		log.Infof("No iteration ordinal shows CFR variance across traces, defaulting cfr index to %v", indices.Cfr)
	}

	// Relocalizing ordinals are the ones that show up again after a
	// trace's first full cycle
	found := false
	for _, b := range bounds {
		if b[1]-b[0] <= n {
			continue
		}
		for row := b[0] + n; row < b[1]; row++ {
			if ord := int(raw.Itr[row]); ord >= 0 && ord < n {
				indices.Reloc[ord] = true
			}
		}
		found = true
		break
	}
	if !found {
		return empty, errorwithkind.MakeNoCompleteIterationsFoundError()
	}

	return indices, nil
}
