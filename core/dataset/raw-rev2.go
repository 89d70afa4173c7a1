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

// RawRev2 - revision 2 acquisition table. One entry per physical iteration
// row; traces are runs of rows sharing a tid, opened by bot and closed by
// eot. Positions are kept as float64, the acquisition's half precision
// columns (cfr, dcr) are widened to float64 at decode.
type RawRev2 struct {
	Vld  []bool
	Fnl  []bool
	Bot  []bool
	Eot  []bool
	Sta  []uint8
	Tim  []float64
	Tid  []uint32
	Gri  []uint32
	Thi  []uint8
	Sqi  []uint8
	Itr  []int32
	X    []float64
	Y    []float64
	Z    []float64
	Lncx []float64
	Lncy []float64
	Lncz []float64
	Eco  []uint32
	Ecc  []uint32
	Efo  []float64
	Efc  []float64
	Fbg  []float64
	Cfr  []float64
	Dcr  []float64
	Fluo []uint8
}

func MakeRawRev2(capacity int) *RawRev2 {
	return &RawRev2{
		Vld:  make([]bool, 0, capacity),
		Fnl:  make([]bool, 0, capacity),
		Bot:  make([]bool, 0, capacity),
		Eot:  make([]bool, 0, capacity),
		Sta:  make([]uint8, 0, capacity),
		Tim:  make([]float64, 0, capacity),
		Tid:  make([]uint32, 0, capacity),
		Gri:  make([]uint32, 0, capacity),
		Thi:  make([]uint8, 0, capacity),
		Sqi:  make([]uint8, 0, capacity),
		Itr:  make([]int32, 0, capacity),
		X:    make([]float64, 0, capacity),
		Y:    make([]float64, 0, capacity),
		Z:    make([]float64, 0, capacity),
		Lncx: make([]float64, 0, capacity),
		Lncy: make([]float64, 0, capacity),
		Lncz: make([]float64, 0, capacity),
		Eco:  make([]uint32, 0, capacity),
		Ecc:  make([]uint32, 0, capacity),
		Efo:  make([]float64, 0, capacity),
		Efc:  make([]float64, 0, capacity),
		Fbg:  make([]float64, 0, capacity),
		Cfr:  make([]float64, 0, capacity),
		Dcr:  make([]float64, 0, capacity),
		Fluo: make([]uint8, 0, capacity),
	}
}

func (r *RawRev2) NumRows() int {
	return len(r.Tid)
}

// Validate - checks all columns carry the same row count
func (r *RawRev2) Validate() error {
	n := r.NumRows()

	lens := map[string]int{
		"vld": len(r.Vld), "fnl": len(r.Fnl), "bot": len(r.Bot), "eot": len(r.Eot),
		"sta": len(r.Sta), "tim": len(r.Tim), "gri": len(r.Gri), "thi": len(r.Thi),
		"sqi": len(r.Sqi), "itr": len(r.Itr), "x": len(r.X), "y": len(r.Y), "z": len(r.Z),
		"lncx": len(r.Lncx), "lncy": len(r.Lncy), "lncz": len(r.Lncz),
		"eco": len(r.Eco), "ecc": len(r.Ecc), "efo": len(r.Efo), "efc": len(r.Efc),
		"fbg": len(r.Fbg), "cfr": len(r.Cfr), "dcr": len(r.Dcr), "fluo": len(r.Fluo),
	}
	for name, l := range lens {
		if l != n {
			return fmt.Errorf("Field %v: expected %v values, got %v", name, n, l)
		}
	}

	return nil
}

// Filter - in-place compaction to the rows where keep is set
func (r *RawRev2) Filter(keep []bool) {
	r.Vld = filterSlice(r.Vld, keep, 1)
	r.Fnl = filterSlice(r.Fnl, keep, 1)
	r.Bot = filterSlice(r.Bot, keep, 1)
	r.Eot = filterSlice(r.Eot, keep, 1)
	r.Sta = filterSlice(r.Sta, keep, 1)
	r.Tim = filterSlice(r.Tim, keep, 1)
	r.Tid = filterSlice(r.Tid, keep, 1)
	r.Gri = filterSlice(r.Gri, keep, 1)
	r.Thi = filterSlice(r.Thi, keep, 1)
	r.Sqi = filterSlice(r.Sqi, keep, 1)
	r.Itr = filterSlice(r.Itr, keep, 1)
	r.X = filterSlice(r.X, keep, 1)
	r.Y = filterSlice(r.Y, keep, 1)
	r.Z = filterSlice(r.Z, keep, 1)
	r.Lncx = filterSlice(r.Lncx, keep, 1)
	r.Lncy = filterSlice(r.Lncy, keep, 1)
	r.Lncz = filterSlice(r.Lncz, keep, 1)
	r.Eco = filterSlice(r.Eco, keep, 1)
	r.Ecc = filterSlice(r.Ecc, keep, 1)
	r.Efo = filterSlice(r.Efo, keep, 1)
	r.Efc = filterSlice(r.Efc, keep, 1)
	r.Fbg = filterSlice(r.Fbg, keep, 1)
	r.Cfr = filterSlice(r.Cfr, keep, 1)
	r.Dcr = filterSlice(r.Dcr, keep, 1)
	r.Fluo = filterSlice(r.Fluo, keep, 1)
}

// TraceBounds - start row (inclusive) and end row (exclusive) of each
// trace, in row order. Rows of one trace are contiguous and share a tid.
func (r *RawRev2) TraceBounds() [][2]int {
	bounds := [][2]int{}

	start := 0
	for row := 1; row <= r.NumRows(); row++ {
		if row == r.NumRows() || r.Tid[row] != r.Tid[start] {
			bounds = append(bounds, [2]int{start, row})
			start = row
		}
	}

	return bounds
}
