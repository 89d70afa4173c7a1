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

// Package processor owns the canonical localization table for one loaded
// acquisition and maintains the filtered view over it: per-fluorophore
// row selections, ad hoc threshold/range filters, and the global
// minimum-trace-length filter that re-runs as the tail of every mutation.
// Derived per-trace statistics and weighted positions are cached per
// fluorophore selection and recomputed lazily after an invalidation.
//
// Everything here is single threaded. The processor owns its table
// exclusively; callers that share one across goroutines serialize access
// themselves (the API layer does).
package processor

import (
	"fmt"
	"math"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/logger"
)

// FilterState - where the processor sits in its filtering lifecycle
type FilterState int

const (

	// Unfiltered - a table was loaded, no filter has run (transient,
	// construction applies the global filter immediately)
	Unfiltered FilterState = iota

	// GlobalFiltered - only the global minimum-trace-length filter applies
	GlobalFiltered

	// AdHocFiltered - at least one ad hoc filter narrowed the view further
	AdHocFiltered
)

func (s FilterState) String() string {
	switch s {
	case Unfiltered:
		return "unfiltered"
	case GlobalFiltered:
		return "global filtered"
	case AdHocFiltered:
		return "ad hoc filtered"
	}
	return fmt.Sprintf("state ?(%v)", int(s))
}

// Config - processor construction knobs. No globals: every instance
// carries its own copy.
type Config struct {
	// MinTraceLength - traces with fewer localizations than this are
	// dropped by the global filter. Minimum 1.
	MinTraceLength int

	// NumFluorophores - how many fluorophore partitions to track. Raised
	// automatically if the table carries higher ids.
	NumFluorophores int
}

// AppliedRanges - the range filters applied so far, recorded for
// persistence in the native container. Nil means never applied.
type AppliedRanges struct {
	Efo         *[2]float64
	Cfr         *[2]float64
	TraceLength *[2]float64
	Time        *[2]float64
}

// Processor - one filtering session over one canonical table
type Processor struct {
	table *dataset.CanonicalTable
	cfg   Config
	log   logger.ILogger

	// selected - per fluorophore id, over all table rows. A row counts as
	// visible when its own fluorophore's mask keeps it.
	selected map[uint8][]bool

	// activeFluo - 0 selects the union of all fluorophores
	activeFluo uint8

	state   FilterState
	applied AppliedRanges

	weightedByECO bool

	// Derived caches keyed by fluorophore selection. A missing entry is a
	// dirty cache; mutations invalidate by clearing the maps.
	statsCache    map[uint8][]TraceStatistics
	weightedCache map[uint8][]WeightedLocalization
}

// New - takes ownership of the table and applies the global filter
// immediately, so the initial state is GlobalFiltered
func New(table *dataset.CanonicalTable, cfg Config, log logger.ILogger) *Processor {
	if cfg.MinTraceLength < 1 {
		cfg.MinTraceLength = 1
	}
	if cfg.NumFluorophores < 1 {
		cfg.NumFluorophores = 1
	}
	for _, f := range table.Fluo {
		if int(f) > cfg.NumFluorophores {
			cfg.NumFluorophores = int(f)
		}
	}

	p := &Processor{
		table:         table,
		cfg:           cfg,
		log:           log,
		activeFluo:    0,
		state:         Unfiltered,
		statsCache:    map[uint8][]TraceStatistics{},
		weightedCache: map[uint8][]WeightedLocalization{},
	}
	p.initSelections()

	p.ApplyGlobalFilter()
	p.state = GlobalFiltered

	return p
}

func (p *Processor) initSelections() {
	p.selected = map[uint8][]bool{}
	for id := 1; id <= p.cfg.NumFluorophores; id++ {
		mask := make([]bool, p.table.NumRows())
		for i := range mask {
			mask[i] = true
		}
		p.selected[uint8(id)] = mask
	}
}

// affectedIDs - which fluorophore masks a mutation touches: all of them
// for the union selection, otherwise just the active one
func (p *Processor) affectedIDs() []uint8 {
	if p.activeFluo == 0 {
		ids := make([]uint8, 0, p.cfg.NumFluorophores)
		for id := 1; id <= p.cfg.NumFluorophores; id++ {
			ids = append(ids, uint8(id))
		}
		return ids
	}
	return []uint8{p.activeFluo}
}

// rowVisible - the row survives its fluorophore's selection mask and
// matches the active fluorophore
func (p *Processor) rowVisible(row int) bool {
	f := p.table.Fluo[row]
	mask, ok := p.selected[f]
	if !ok || !mask[row] {
		return false
	}
	return p.activeFluo == 0 || f == p.activeFluo
}

// visibleRows - current filtered view as table row numbers, ascending
func (p *Processor) visibleRows() []int {
	rows := []int{}
	for row := 0; row < p.table.NumRows(); row++ {
		if p.rowVisible(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// NumValues - how many localizations the current filtered view holds
func (p *Processor) NumValues() int {
	count := 0
	for row := 0; row < p.table.NumRows(); row++ {
		if p.rowVisible(row) {
			count++
		}
	}
	return count
}

// FullTable - the unfiltered canonical table. Callers must not mutate it.
func (p *Processor) FullTable() *dataset.CanonicalTable {
	return p.table
}

// FilteredTable - a fresh table holding the current filtered view
func (p *Processor) FilteredTable() *dataset.CanonicalTable {
	keep := make([]bool, p.table.NumRows())
	for row := range keep {
		keep[row] = p.rowVisible(row)
	}
	return p.table.Select(keep)
}

// FilteredTableRows - the table row numbers behind FilteredTable, for
// callers exporting the matching raw records
func (p *Processor) FilteredTableRows() []int64 {
	rows := p.visibleRows()
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = int64(r)
	}
	return out
}

func (p *Processor) State() FilterState {
	return p.state
}

func (p *Processor) MinTraceLength() int {
	return p.cfg.MinTraceLength
}

func (p *Processor) NumFluorophores() int {
	return p.cfg.NumFluorophores
}

func (p *Processor) ActiveFluorophore() uint8 {
	return p.activeFluo
}

// AppliedRanges - bounds of range filters applied since load/reset
func (p *Processor) AppliedRanges() AppliedRanges {
	return p.applied
}

// SetActiveFluorophore - 0 selects all fluorophores, 1..k one partition.
// Switching is cheap and never touches another selection's caches; an
// out-of-range id is ignored.
func (p *Processor) SetActiveFluorophore(id uint8) {
	if int(id) > p.cfg.NumFluorophores {
		p.log.Errorf("Fluorophore id %v out of range (have %v), selection unchanged", id, p.cfg.NumFluorophores)
		return
	}
	p.activeFluo = id
}

// SetFluorophoreIDs - adopts an external classifier's per-row fluorophore
// assignment. Resets all selections and re-applies the global filter.
func (p *Processor) SetFluorophoreIDs(ids []uint8) error {
	if len(ids) != p.table.NumRows() {
		return fmt.Errorf("Expected %v fluorophore ids, got %v", p.table.NumRows(), len(ids))
	}

	copy(p.table.Fluo, ids)

	p.cfg.NumFluorophores = 1
	for _, f := range ids {
		if int(f) > p.cfg.NumFluorophores {
			p.cfg.NumFluorophores = int(f)
		}
	}

	p.initSelections()
	p.invalidateDerived()
	p.ApplyGlobalFilter()
	p.state = GlobalFiltered

	return nil
}

// SetMinTraceLength - updates the threshold and re-runs the global
// filter. With no ad hoc filters active the selection re-derives from
// the full table, so relaxing the threshold takes effect; ad hoc
// narrowing cannot be replayed, so after one the filter only tightens.
func (p *Processor) SetMinTraceLength(n int) {
	if n < 1 {
		n = 1
	}
	p.cfg.MinTraceLength = n
	if n > 1 {
		p.applied.TraceLength = &[2]float64{float64(n), math.Inf(1)}
	} else {
		p.applied.TraceLength = nil
	}
	if p.state == GlobalFiltered {
		p.initSelections()
	}
	p.ApplyGlobalFilter()
}

// SetWeightedByECO - toggles photon-count weighting for the per-trace
// representative positions. Only the weighted cache is invalidated.
func (p *Processor) SetWeightedByECO(weighted bool) {
	if p.weightedByECO == weighted {
		return
	}
	p.weightedByECO = weighted
	p.weightedCache = map[uint8][]WeightedLocalization{}
}

func (p *Processor) WeightedByECO() bool {
	return p.weightedByECO
}

// ApplyGlobalFilter - drops every trace shorter than the minimum trace
// length, counted within each fluorophore selection. Idempotent: the
// second run in a row removes nothing. Runs as the tail of every other
// mutation.
func (p *Processor) ApplyGlobalFilter() {
	for _, id := range p.affectedIDs() {
		mask := p.selected[id]

		counts := map[int64]int{}
		for row := 0; row < p.table.NumRows(); row++ {
			if mask[row] && p.table.Fluo[row] == id {
				counts[p.table.Tid[row]]++
			}
		}

		for row := 0; row < p.table.NumRows(); row++ {
			if mask[row] && p.table.Fluo[row] == id && counts[p.table.Tid[row]] < p.cfg.MinTraceLength {
				mask[row] = false
			}
		}
	}

	p.invalidateDerived()
}

// applyPredicate - narrows the affected selections to visible rows that
// satisfy keep, then re-applies the global filter
func (p *Processor) applyPredicate(keep func(row int) bool) {
	for _, id := range p.affectedIDs() {
		mask := p.selected[id]
		for row := 0; row < p.table.NumRows(); row++ {
			if mask[row] && p.table.Fluo[row] == id && !keep(row) {
				mask[row] = false
			}
		}
	}

	p.ApplyGlobalFilter()
	p.state = AdHocFiltered
}

// ApplyThreshold - keep rows where the column is >= value (keepAbove) or
// < value. An empty result is not an error.
func (p *Processor) ApplyThreshold(column string, value float64, keepAbove bool) error {
	vals, err := p.table.FloatColumn(column)
	if err != nil {
		return err
	}

	p.applyPredicate(func(row int) bool {
		if keepAbove {
			return vals[row] >= value
		}
		return vals[row] < value
	})

	p.log.Debugf("Threshold on %v at %v (keep above: %v): %v rows remain", column, value, keepAbove, p.NumValues())
	return nil
}

// ApplyRange - keep rows where min <= column < max. Reversed bounds are
// normalized; a NaN bound leaves that side open; both NaN is a no-op.
func (p *Processor) ApplyRange(column string, min float64, max float64) error {
	if math.IsNaN(min) && math.IsNaN(max) {
		return nil
	}

	vals, err := p.table.FloatColumn(column)
	if err != nil {
		return err
	}

	min, max = normalizeRange(min, max)
	p.recordRange(column, min, max)

	p.applyPredicate(func(row int) bool {
		return vals[row] >= min && vals[row] < max
	})

	p.log.Debugf("Range on %v [%v, %v): %v rows remain", column, min, max, p.NumValues())
	return nil
}

// ApplyRangeComplement - keep rows OUTSIDE [min, max), cropping the range
// out of the dataset
func (p *Processor) ApplyRangeComplement(column string, min float64, max float64) error {
	if math.IsNaN(min) && math.IsNaN(max) {
		return nil
	}

	vals, err := p.table.FloatColumn(column)
	if err != nil {
		return err
	}

	min, max = normalizeRange(min, max)

	p.applyPredicate(func(row int) bool {
		return vals[row] < min || vals[row] >= max
	})

	return nil
}

// Apply2DRange - rectangular selection over two columns, both axes with
// the same half-open [min, max) convention
func (p *Processor) Apply2DRange(columnX string, columnY string, xMin, xMax, yMin, yMax float64) error {
	xVals, err := p.table.FloatColumn(columnX)
	if err != nil {
		return err
	}
	yVals, err := p.table.FloatColumn(columnY)
	if err != nil {
		return err
	}

	xMin, xMax = normalizeRange(xMin, xMax)
	yMin, yMax = normalizeRange(yMin, yMax)
	p.recordRange(columnX, xMin, xMax)
	p.recordRange(columnY, yMin, yMax)

	p.applyPredicate(func(row int) bool {
		return xVals[row] >= xMin && xVals[row] < xMax &&
			yVals[row] >= yMin && yVals[row] < yMax
	})

	return nil
}

// ApplyIndexSelection - keep only the given positions of the current
// filtered view. Out-of-range positions are ignored.
func (p *Processor) ApplyIndexSelection(indices []int64) {
	visible := p.visibleRows()

	keep := map[int]bool{}
	ignored := 0
	for _, idx := range indices {
		if idx >= 0 && idx < int64(len(visible)) {
			keep[visible[idx]] = true
		} else {
			ignored++
		}
	}
	if ignored > 0 {
		p.log.Errorf("Index selection: ignored %v positions outside the filtered view", ignored)
	}

	p.applyPredicate(func(row int) bool {
		return keep[row]
	})
}

// Reset - drops all ad hoc filters and re-derives the view from the full
// canonical table with only the global filter applied
func (p *Processor) Reset() {
	p.initSelections()
	p.activeFluo = 0
	p.applied = AppliedRanges{}
	p.invalidateDerived()
	p.ApplyGlobalFilter()
	p.state = GlobalFiltered
}

func (p *Processor) invalidateDerived() {
	p.statsCache = map[uint8][]TraceStatistics{}
	p.weightedCache = map[uint8][]WeightedLocalization{}
}

func (p *Processor) recordRange(column string, min float64, max float64) {
	bounds := &[2]float64{min, max}
	switch column {
	case "efo":
		p.applied.Efo = bounds
	case "cfr":
		p.applied.Cfr = bounds
	case "tim":
		p.applied.Time = bounds
	}
}

func normalizeRange(min float64, max float64) (float64, float64) {
	if math.IsNaN(min) {
		min = math.Inf(-1)
	}
	if math.IsNaN(max) {
		max = math.Inf(1)
	}
	if max < min {
		min, max = max, min
	}
	return min, max
}
