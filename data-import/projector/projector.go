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

// Package projector combines a raw acquisition table with its resolved
// iteration indices into the canonical localization table. Unit and z
// scaling happen here and only here: raw positions are meters, canonical
// positions are nanometers with the z scaling factor already applied.
// Nothing downstream rescales.
package projector

import (
	"math"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

// Project - builds the canonical table for the dataset's raw table. The
// raw table and indices are read, never modified.
func Project(ds *dataset.Dataset, log logger.ILogger) (*dataset.CanonicalTable, error) {
	if err := ds.Indices.Validate(); err != nil {
		return nil, err
	}

	var table *dataset.CanonicalTable
	var err error

	if ds.Raw1 != nil {
		table, err = projectRev1(ds.Raw1, ds.Indices, ds.Params, log)
	} else if ds.Raw2 != nil {
		table, err = projectRev2(ds.Raw2, ds.Indices, ds.Params, log)
	} else {
		return nil, errorwithkind.MakeEmptyInputError(ds.SourcePath)
	}
	if err != nil {
		return nil, err
	}
	if table.NumRows() == 0 {
		return nil, errorwithkind.MakeEmptyInputError(ds.SourcePath)
	}

	normalizeFluorophores(table)

	if ds.Params.Tracking {
		broadcastTraceCfr(table, ds, log)
	}

	log.Infof("Projected %v localizations", table.NumRows())
	return table, nil
}

// dwell - how many dwell-time units the event emitted for:
// round(eco / (efo/1000) / dwellTimeMs)
func dwell(eco float64, efo float64, dwellTimeMs float64) float64 {
	return math.Round(eco / (efo / 1000.0) / dwellTimeMs)
}

func projectRev1(raw *dataset.RawRev1, idx dataset.IterationIndices, params dataset.AcquisitionParams, log logger.ILogger) (*dataset.CanonicalTable, error) {
	table := dataset.MakeCanonicalTable(raw.NumRows())

	for rec := 0; rec < raw.NumRows(); rec++ {
		x, y, z := raw.LocAt(rec, idx.Loc)
		x *= params.UnitScalingFactor
		y *= params.UnitScalingFactor
		z *= params.UnitScalingFactor * params.ZScalingFactor

		efo := raw.EfoAt(rec, idx.Efo)
		eco := float64(raw.EcoAt(rec, idx.Eco))

		dcr := raw.DcrAt(rec, idx.Dcr)
		if params.PoolDcr {
			dcr = pooledDcrRev1(raw, idx, rec, dcr)
		}

		table.AppendRow(dataset.CanonicalRow{
			Tid:   int64(raw.Tid[rec]),
			Tim:   raw.Tim[rec],
			X:     x,
			Y:     y,
			Z:     z,
			Efo:   efo,
			Cfr:   raw.CfrAt(rec, idx.Cfr),
			Eco:   eco,
			Dcr:   dcr,
			Dwell: dwell(eco, efo, params.DwellTimeMs),
			Fbg:   raw.FbgAt(rec, idx.Loc),
			Itr:   int32(idx.Loc),
			Fluo:  raw.Fluo[rec],
		})
	}

	return table, nil
}

// pooledDcrRev1 - ECO-weighted mean of DCR over the record's relocalizing
// iterations. Only kicks in when more than one iteration relocalizes;
// all-zero photon counts fall back to the plain mean.
func pooledDcrRev1(raw *dataset.RawRev1, idx dataset.IterationIndices, rec int, fallback float64) float64 {
	ecoSum := 0.0
	count := 0
	for it := 0; it < idx.NumIterations; it++ {
		if idx.Reloc[it] {
			ecoSum += float64(raw.EcoAt(rec, it))
			count++
		}
	}
	if count <= 1 {
		return fallback
	}

	pooled := 0.0
	for it := 0; it < idx.NumIterations; it++ {
		if !idx.Reloc[it] {
			continue
		}
		w := 1.0 / float64(count)
		if ecoSum > 0 {
			w = float64(raw.EcoAt(rec, it)) / ecoSum
		}
		pooled += w * raw.DcrAt(rec, it)
	}
	return pooled
}

func projectRev2(raw *dataset.RawRev2, idx dataset.IterationIndices, params dataset.AcquisitionParams, log logger.ILogger) (*dataset.CanonicalTable, error) {
	// Aggregated acquisitions have no cycle structure, every row is an event
	if idx.NumIterations == 1 {
		return projectRev2Aggregated(raw, params)
	}

	events := eventBlocks(raw, idx)
	log.Debugf("Revision 2 projection: %v events from %v iteration rows", len(events), raw.NumRows())

	numReloc := idx.NumRelocalizations()
	cfrRelocalizes := idx.Cfr < len(idx.Reloc) && idx.Reloc[idx.Cfr]

	table := dataset.MakeCanonicalTable(len(events))

	for _, block := range events {
		locRow := rowWithOrdinal(raw, block, idx.Loc)
		if locRow < 0 {
			// No relocalized position in this cycle, the marker row is the
			// best position we have
			locRow = block[len(block)-1]
		}

		// Per-event scalars key off the CFR row when CFR relocalizes with
		// the event, otherwise off the localization row. Tracking runs
		// measure CFR only in a trace's first cycle, so later events have
		// no CFR row of their own.
		keyRow := locRow
		cfr := math.NaN()
		if cfrRow := rowWithOrdinal(raw, block, idx.Cfr); cfrRow >= 0 && cfrRelocalizes {
			keyRow = cfrRow
			cfr = raw.Cfr[cfrRow]
		}

		efoRow := rowOrFallback(raw, block, idx.Efo, locRow)
		ecoRow := rowOrFallback(raw, block, idx.Eco, locRow)
		dcrRow := rowOrFallback(raw, block, idx.Dcr, locRow)

		x := raw.X[locRow] * params.UnitScalingFactor
		y := raw.Y[locRow] * params.UnitScalingFactor
		z := raw.Z[locRow] * params.UnitScalingFactor * params.ZScalingFactor

		efo := raw.Efo[efoRow]
		eco := float64(raw.Eco[ecoRow])

		dcr := raw.Dcr[dcrRow]
		if params.PoolDcr && numReloc > 1 {
			dcr = pooledDcrRev2(raw, block)
		}

		table.AppendRow(dataset.CanonicalRow{
			Tid:   int64(raw.Tid[keyRow]),
			Tim:   raw.Tim[keyRow],
			X:     x,
			Y:     y,
			Z:     z,
			Efo:   efo,
			Cfr:   cfr,
			Eco:   eco,
			Dcr:   dcr,
			Dwell: dwell(eco, efo, params.DwellTimeMs),
			Fbg:   raw.Fbg[keyRow],
			Itr:   int32(idx.Loc),
			Fluo:  raw.Fluo[keyRow],
		})
	}

	return table, nil
}

func projectRev2Aggregated(raw *dataset.RawRev2, params dataset.AcquisitionParams) (*dataset.CanonicalTable, error) {
	table := dataset.MakeCanonicalTable(raw.NumRows())

	for row := 0; row < raw.NumRows(); row++ {
		x := raw.X[row] * params.UnitScalingFactor
		y := raw.Y[row] * params.UnitScalingFactor
		z := raw.Z[row] * params.UnitScalingFactor * params.ZScalingFactor

		efo := raw.Efo[row]
		eco := float64(raw.Eco[row])

		table.AppendRow(dataset.CanonicalRow{
			Tid:   int64(raw.Tid[row]),
			Tim:   raw.Tim[row],
			X:     x,
			Y:     y,
			Z:     z,
			Efo:   efo,
			Cfr:   raw.Cfr[row],
			Eco:   eco,
			Dcr:   raw.Dcr[row],
			Dwell: dwell(eco, efo, params.DwellTimeMs),
			Fbg:   raw.Fbg[row],
			Itr:   0,
			Fluo:  raw.Fluo[row],
		})
	}

	return table, nil
}

// eventBlocks - groups raw rows into one block per localization event.
// Event ends are the rows carrying the last relocalizing ordinal; each
// event spans its end row plus the relocalizing rows leading up to it.
// Markers closer together than a full relocalization cycle would overlap,
// those are dropped, matching how the acquisition actually interleaves.
func eventBlocks(raw *dataset.RawRev2, idx dataset.IterationIndices) [][]int {
	lastReloc := -1
	for it := len(idx.Reloc) - 1; it >= 0; it-- {
		if idx.Reloc[it] {
			lastReloc = it
			break
		}
	}
	if lastReloc < 0 {
		lastReloc = idx.Loc
	}

	n := idx.NumRelocalizations() - 1
	if n < 0 {
		n = 0
	}

	blocks := [][]int{}
	lastMarker := -n - 1
	for row := 0; row < raw.NumRows(); row++ {
		if int(raw.Itr[row]) != lastReloc {
			continue
		}
		if row-lastMarker <= n {
			continue
		}
		start := row - n
		if start < 0 {
			start = 0
		}
		block := make([]int, 0, n+1)
		for r := start; r <= row; r++ {
			block = append(block, r)
		}
		blocks = append(blocks, block)
		lastMarker = row
	}

	return blocks
}

// rowWithOrdinal - the block row carrying the given iteration ordinal, -1
// if the ordinal did not re-run in this cycle
func rowWithOrdinal(raw *dataset.RawRev2, block []int, ordinal int) int {
	for _, row := range block {
		if int(raw.Itr[row]) == ordinal {
			return row
		}
	}
	return -1
}

func rowOrFallback(raw *dataset.RawRev2, block []int, ordinal int, fallback int) int {
	if row := rowWithOrdinal(raw, block, ordinal); row >= 0 {
		return row
	}
	return fallback
}

// pooledDcrRev2 - ECO-weighted mean of DCR over the event's rows
func pooledDcrRev2(raw *dataset.RawRev2, block []int) float64 {
	ecoSum := 0.0
	for _, row := range block {
		ecoSum += float64(raw.Eco[row])
	}

	pooled := 0.0
	for _, row := range block {
		w := 1.0 / float64(len(block))
		if ecoSum > 0 {
			w = float64(raw.Eco[row]) / ecoSum
		}
		pooled += w * raw.Dcr[row]
	}
	return pooled
}

// normalizeFluorophores - an acquisition that never assigned fluorophores
// stores zeros everywhere; canonical tables use 1-based ids
func normalizeFluorophores(table *dataset.CanonicalTable) {
	for _, f := range table.Fluo {
		if f != 0 {
			return
		}
	}
	for i := range table.Fluo {
		table.Fluo[i] = 1
	}
}

// broadcastTraceCfr - tracking acquisitions measure CFR once per trace, in
// the first cycle. Every canonical row of a trace gets that value.
func broadcastTraceCfr(table *dataset.CanonicalTable, ds *dataset.Dataset, log logger.ILogger) {
	traceCfr := map[int64]float64{}

	if ds.Raw1 != nil {
		raw := ds.Raw1
		for rec := 0; rec < raw.NumRows(); rec++ {
			tid := int64(raw.Tid[rec])
			if _, seen := traceCfr[tid]; seen {
				continue
			}
			if v := raw.CfrAt(rec, ds.Indices.Cfr); !math.IsNaN(v) {
				traceCfr[tid] = v
			}
		}
	} else if ds.Raw2 != nil {
		raw := ds.Raw2
		for row := 0; row < raw.NumRows(); row++ {
			if int(raw.Itr[row]) != ds.Indices.Cfr {
				continue
			}
			tid := int64(raw.Tid[row])
			if _, seen := traceCfr[tid]; seen {
				continue
			}
			if v := raw.Cfr[row]; !math.IsNaN(v) {
				traceCfr[tid] = v
			}
		}
	}

	missing := 0
	for row := range table.Cfr {
		if v, ok := traceCfr[table.Tid[row]]; ok {
			table.Cfr[row] = v
		} else {
			missing++
		}
	}
	if missing > 0 {
		log.Infof("Tracking CFR broadcast: %v rows belong to traces that never measured CFR", missing)
	}
}
