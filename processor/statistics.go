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
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/minfluxio/core/core/utils"
)

// TraceStatistics - per-trace aggregates over the current filtered view
type TraceStatistics struct {
	Tid int64 `json:"tid"`

	// N - localizations of this trace in the current view
	N int `json:"n"`

	// Mean position in nm
	Mx float64 `json:"mx"`
	My float64 `json:"my"`
	Mz float64 `json:"mz"`

	// Standard deviation per axis in nm, 0.0 for a single localization
	Sx float64 `json:"sx"`
	Sy float64 `json:"sy"`
	Sz float64 `json:"sz"`

	// Fluo - most frequent fluorophore id within the trace
	Fluo uint8 `json:"fluo"`
}

// WeightedLocalization - one representative position per trace, either a
// plain mean or an ECO photon-count weighted mean
type WeightedLocalization struct {
	Tid  int64   `json:"tid"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Fluo uint8   `json:"fluo"`
}

// traceRows - visible rows grouped per trace, with deterministic tid order
func (p *Processor) traceRows() ([]int64, map[int64][]int) {
	byTid := map[int64][]int{}
	for row := 0; row < p.table.NumRows(); row++ {
		if p.rowVisible(row) {
			tid := p.table.Tid[row]
			byTid[tid] = append(byTid[tid], row)
		}
	}

	tids := utils.GetMapKeys(byTid)
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })

	return tids, byTid
}

// TraceStatistics - per-trace means and spreads for the current filtered
// view, sorted by trace id. Cached per fluorophore selection; mutations
// invalidate, switching fluorophores does not.
func (p *Processor) TraceStatistics() []TraceStatistics {
	if cached, ok := p.statsCache[p.activeFluo]; ok {
		return cached
	}

	tids, byTid := p.traceRows()

	result := make([]TraceStatistics, 0, len(tids))
	for _, tid := range tids {
		rows := byTid[tid]

		xs := make([]float64, len(rows))
		ys := make([]float64, len(rows))
		zs := make([]float64, len(rows))
		fluoCounts := map[uint8]int{}
		for i, row := range rows {
			xs[i] = p.table.X[row]
			ys[i] = p.table.Y[row]
			zs[i] = p.table.Z[row]
			fluoCounts[p.table.Fluo[row]]++
		}

		s := TraceStatistics{
			Tid:  tid,
			N:    len(rows),
			Mx:   stat.Mean(xs, nil),
			My:   stat.Mean(ys, nil),
			Mz:   stat.Mean(zs, nil),
			Fluo: modalFluorophore(fluoCounts),
		}

		// Spread of a single localization is 0, not undefined
		if len(rows) > 1 {
			s.Sx = stat.StdDev(xs, nil)
			s.Sy = stat.StdDev(ys, nil)
			s.Sz = stat.StdDev(zs, nil)
		}

		result = append(result, s)
	}

	p.statsCache[p.activeFluo] = result
	return result
}

// WeightedLocalizations - one position per trace, plain mean or ECO
// weighted per the current weighting mode. Same caching behavior as
// TraceStatistics.
func (p *Processor) WeightedLocalizations() []WeightedLocalization {
	if cached, ok := p.weightedCache[p.activeFluo]; ok {
		return cached
	}

	tids, byTid := p.traceRows()

	result := make([]WeightedLocalization, 0, len(tids))
	for _, tid := range tids {
		rows := byTid[tid]

		xs := make([]float64, len(rows))
		ys := make([]float64, len(rows))
		zs := make([]float64, len(rows))
		var weights []float64
		if p.weightedByECO {
			weights = make([]float64, len(rows))
		}

		fluoCounts := map[uint8]int{}
		for i, row := range rows {
			xs[i] = p.table.X[row]
			ys[i] = p.table.Y[row]
			zs[i] = p.table.Z[row]
			if weights != nil {
				weights[i] = p.table.Eco[row]
			}
			fluoCounts[p.table.Fluo[row]]++
		}

		// A trace with no recorded photon counts falls back to the plain mean
		if weights != nil && utils.SumSlice[float64](weights) <= 0 {
			weights = nil
		}

		result = append(result, WeightedLocalization{
			Tid:  tid,
			X:    stat.Mean(xs, weights),
			Y:    stat.Mean(ys, weights),
			Z:    stat.Mean(zs, weights),
			Fluo: modalFluorophore(fluoCounts),
		})
	}

	p.weightedCache[p.activeFluo] = result
	return result
}

func modalFluorophore(counts map[uint8]int) uint8 {
	var best uint8
	bestCount := -1
	for f, c := range counts {
		if c > bestCount || (c == bestCount && f < best) {
			best = f
			bestCount = c
		}
	}
	return best
}
