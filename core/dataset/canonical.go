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

import "fmt"

// CanonicalTable - one row per localization event, regardless of which
// container or schema revision the data came from. Positions are nm with
// z scaling already applied, dwell is in dwell-time units.
type CanonicalTable struct {
	Tid   []int64
	Tim   []float64
	X     []float64
	Y     []float64
	Z     []float64
	Efo   []float64
	Cfr   []float64
	Eco   []float64
	Dcr   []float64
	Dwell []float64
	Fbg   []float64
	Itr   []int32
	Fluo  []uint8
}

func MakeCanonicalTable(capacity int) *CanonicalTable {
	return &CanonicalTable{
		Tid:   make([]int64, 0, capacity),
		Tim:   make([]float64, 0, capacity),
		X:     make([]float64, 0, capacity),
		Y:     make([]float64, 0, capacity),
		Z:     make([]float64, 0, capacity),
		Efo:   make([]float64, 0, capacity),
		Cfr:   make([]float64, 0, capacity),
		Eco:   make([]float64, 0, capacity),
		Dcr:   make([]float64, 0, capacity),
		Dwell: make([]float64, 0, capacity),
		Fbg:   make([]float64, 0, capacity),
		Itr:   make([]int32, 0, capacity),
		Fluo:  make([]uint8, 0, capacity),
	}
}

func (t *CanonicalTable) NumRows() int {
	return len(t.Tid)
}

// CanonicalRow - a single event, used when building tables row by row
type CanonicalRow struct {
	Tid   int64
	Tim   float64
	X     float64
	Y     float64
	Z     float64
	Efo   float64
	Cfr   float64
	Eco   float64
	Dcr   float64
	Dwell float64
	Fbg   float64
	Itr   int32
	Fluo  uint8
}

func (t *CanonicalTable) AppendRow(row CanonicalRow) {
	t.Tid = append(t.Tid, row.Tid)
	t.Tim = append(t.Tim, row.Tim)
	t.X = append(t.X, row.X)
	t.Y = append(t.Y, row.Y)
	t.Z = append(t.Z, row.Z)
	t.Efo = append(t.Efo, row.Efo)
	t.Cfr = append(t.Cfr, row.Cfr)
	t.Eco = append(t.Eco, row.Eco)
	t.Dcr = append(t.Dcr, row.Dcr)
	t.Dwell = append(t.Dwell, row.Dwell)
	t.Fbg = append(t.Fbg, row.Fbg)
	t.Itr = append(t.Itr, row.Itr)
	t.Fluo = append(t.Fluo, row.Fluo)
}

func (t *CanonicalTable) RowAt(row int) CanonicalRow {
	return CanonicalRow{
		Tid:   t.Tid[row],
		Tim:   t.Tim[row],
		X:     t.X[row],
		Y:     t.Y[row],
		Z:     t.Z[row],
		Efo:   t.Efo[row],
		Cfr:   t.Cfr[row],
		Eco:   t.Eco[row],
		Dcr:   t.Dcr[row],
		Dwell: t.Dwell[row],
		Fbg:   t.Fbg[row],
		Itr:   t.Itr[row],
		Fluo:  t.Fluo[row],
	}
}

// Select - new table holding the rows where keep is set
func (t *CanonicalTable) Select(keep []bool) *CanonicalTable {
	count := 0
	for _, k := range keep {
		if k {
			count++
		}
	}

	out := MakeCanonicalTable(count)
	for row, k := range keep {
		if k {
			out.AppendRow(t.RowAt(row))
		}
	}
	return out
}

// SelectIndices - new table holding the given rows in the given order.
// Rows outside the table are skipped.
func (t *CanonicalTable) SelectIndices(rows []int64) *CanonicalTable {
	out := MakeCanonicalTable(len(rows))
	for _, row := range rows {
		if row >= 0 && row < int64(t.NumRows()) {
			out.AppendRow(t.RowAt(int(row)))
		}
	}
	return out
}

func (t *CanonicalTable) Clone() *CanonicalTable {
	out := MakeCanonicalTable(t.NumRows())
	for row := 0; row < t.NumRows(); row++ {
		out.AppendRow(t.RowAt(row))
	}
	return out
}

// FloatColumn - float view of a column for filtering. Float columns return
// the live backing slice; tid/itr/fluo return a converted copy.
func (t *CanonicalTable) FloatColumn(name string) ([]float64, error) {
	switch name {
	case "tim":
		return t.Tim, nil
	case "x":
		return t.X, nil
	case "y":
		return t.Y, nil
	case "z":
		return t.Z, nil
	case "efo":
		return t.Efo, nil
	case "cfr":
		return t.Cfr, nil
	case "eco":
		return t.Eco, nil
	case "dcr":
		return t.Dcr, nil
	case "dwell":
		return t.Dwell, nil
	case "fbg":
		return t.Fbg, nil
	case "tid":
		out := make([]float64, len(t.Tid))
		for i, v := range t.Tid {
			out[i] = float64(v)
		}
		return out, nil
	case "itr":
		out := make([]float64, len(t.Itr))
		for i, v := range t.Itr {
			out[i] = float64(v)
		}
		return out, nil
	case "fluo":
		out := make([]float64, len(t.Fluo))
		for i, v := range t.Fluo {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("Unknown column: %v", name)
}
