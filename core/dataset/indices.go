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

package dataset

import (
	"fmt"

	"github.com/minfluxio/core/core/errorwithkind"
)

// IterationIndices - which iteration of the measurement cycle each physical
// quantity is read from when projecting raw records onto the canonical
// table. Resolved by the resolver, inspectable and overridable by callers.
type IterationIndices struct {
	// NumIterations - cycle length N
	NumIterations int

	Efo int
	Cfr int
	Dcr int
	Eco int
	Loc int

	// ValidCfr - per iteration: CFR values at this iteration vary across
	// records, so the iteration really measured CFR
	ValidCfr []bool

	// Reloc - per iteration: iteration re-runs on each localization of a trace
	Reloc []bool

	// LowConfidenceCfr - the CFR pick fell back to a default because the
	// variance heuristic had nothing to work with. Callers should offer an
	// override when this is set.
	LowConfidenceCfr bool
}

func (ii IterationIndices) String() string {
	confidence := ""
	if ii.LowConfidenceCfr {
		confidence = " (cfr low confidence)"
	}
	return fmt.Sprintf("efo=%v cfr=%v dcr=%v eco=%v loc=%v of N=%v%v",
		ii.Efo, ii.Cfr, ii.Dcr, ii.Eco, ii.Loc, ii.NumIterations, confidence)
}

// NumRelocalizations - how many iterations re-run per localization
func (ii IterationIndices) NumRelocalizations() int {
	count := 0
	for _, r := range ii.Reloc {
		if r {
			count++
		}
	}
	return count
}

// Validate - every index must address a real iteration, and CFR cannot be
// read from an iteration after the localization it belongs to
func (ii IterationIndices) Validate() error {
	for name, idx := range map[string]int{"efo": ii.Efo, "cfr": ii.Cfr, "dcr": ii.Dcr, "eco": ii.Eco, "loc": ii.Loc} {
		if idx < 0 || idx >= ii.NumIterations {
			return errorwithkind.MakeInvalidIterationSpecError(
				fmt.Sprintf("%v index %v outside cycle of %v iterations", name, idx, ii.NumIterations))
		}
	}

	if ii.Cfr > ii.Loc {
		return errorwithkind.MakeInvalidIterationSpecError(
			fmt.Sprintf("cfr index %v after loc index %v", ii.Cfr, ii.Loc))
	}

	return nil
}
