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

// RawRev1 - revision 1 acquisition table. One entry per event record; each
// record carries NumIterations iterations of every per-iteration quantity.
// Iteration planes are stored flat row-major: value for (row r, iteration i)
// sits at r*NumIterations+i, and 3-vectors at (r*NumIterations+i)*3.
type RawRev1 struct {
	NumIterations int

	// Per event
	Sqi  []uint32
	Gri  []uint32
	Tim  []float64
	Tid  []int32
	Vld  []bool
	Act  []bool
	Dos  []int32
	Sky  []int32
	Fluo []uint8

	// Per iteration
	Itr []int32
	Tic []uint64
	Loc []float64 // x,y,z per iteration
	Lnc []float64 // x,y,z per iteration
	Eco []int32
	Ecc []int32
	Efo []float64
	Efc []float64
	Sta []int32
	Cfr []float64
	Dcr []float64
	Ext []float64 // x,y,z per iteration
	Gvy []float64
	Gvx []float64
	Eoy []float64
	Eox []float64
	Dmz []float64
	Lcy []float64
	Lcx []float64
	Lcz []float64
	Fbg []float64
}

// MakeRawRev1 - allocates a table with capacity for the given record count
func MakeRawRev1(numIterations int, capacity int) *RawRev1 {
	perIter := capacity * numIterations
	return &RawRev1{
		NumIterations: numIterations,
		Sqi:           make([]uint32, 0, capacity),
		Gri:           make([]uint32, 0, capacity),
		Tim:           make([]float64, 0, capacity),
		Tid:           make([]int32, 0, capacity),
		Vld:           make([]bool, 0, capacity),
		Act:           make([]bool, 0, capacity),
		Dos:           make([]int32, 0, capacity),
		Sky:           make([]int32, 0, capacity),
		Fluo:          make([]uint8, 0, capacity),
		Itr:           make([]int32, 0, perIter),
		Tic:           make([]uint64, 0, perIter),
		Loc:           make([]float64, 0, perIter*3),
		Lnc:           make([]float64, 0, perIter*3),
		Eco:           make([]int32, 0, perIter),
		Ecc:           make([]int32, 0, perIter),
		Efo:           make([]float64, 0, perIter),
		Efc:           make([]float64, 0, perIter),
		Sta:           make([]int32, 0, perIter),
		Cfr:           make([]float64, 0, perIter),
		Dcr:           make([]float64, 0, perIter),
		Ext:           make([]float64, 0, perIter*3),
		Gvy:           make([]float64, 0, perIter),
		Gvx:           make([]float64, 0, perIter),
		Eoy:           make([]float64, 0, perIter),
		Eox:           make([]float64, 0, perIter),
		Dmz:           make([]float64, 0, perIter),
		Lcy:           make([]float64, 0, perIter),
		Lcx:           make([]float64, 0, perIter),
		Lcz:           make([]float64, 0, perIter),
		Fbg:           make([]float64, 0, perIter),
	}
}

func (r *RawRev1) NumRows() int {
	return len(r.Tid)
}

func (r *RawRev1) iterIdx(row int, it int) int {
	return row*r.NumIterations + it
}

// LocAt - localization position of (record, iteration)
func (r *RawRev1) LocAt(row int, it int) (float64, float64, float64) {
	base := r.iterIdx(row, it) * 3
	return r.Loc[base], r.Loc[base+1], r.Loc[base+2]
}

func (r *RawRev1) EfoAt(row int, it int) float64 {
	return r.Efo[r.iterIdx(row, it)]
}
func (r *RawRev1) CfrAt(row int, it int) float64 {
	return r.Cfr[r.iterIdx(row, it)]
}
func (r *RawRev1) DcrAt(row int, it int) float64 {
	return r.Dcr[r.iterIdx(row, it)]
}
func (r *RawRev1) EcoAt(row int, it int) int32 {
	return r.Eco[r.iterIdx(row, it)]
}
func (r *RawRev1) FbgAt(row int, it int) float64 {
	return r.Fbg[r.iterIdx(row, it)]
}

// Validate - checks plane lengths agree with the record count, so decoders
// can't hand out a half-filled table
func (r *RawRev1) Validate() error {
	n := r.NumRows()
	perIter := n * r.NumIterations

	if r.NumIterations <= 0 {
		return fmt.Errorf("Invalid iteration count: %v", r.NumIterations)
	}

	perEventLens := map[string]int{
		"sqi": len(r.Sqi), "gri": len(r.Gri), "tim": len(r.Tim), "vld": len(r.Vld),
		"act": len(r.Act), "dos": len(r.Dos), "sky": len(r.Sky), "fluo": len(r.Fluo),
	}
	for name, l := range perEventLens {
		if l != n {
			return fmt.Errorf("Field %v: expected %v values, got %v", name, n, l)
		}
	}

	perIterLens := map[string]int{
		"itr": len(r.Itr), "tic": len(r.Tic), "eco": len(r.Eco), "ecc": len(r.Ecc),
		"efo": len(r.Efo), "efc": len(r.Efc), "sta": len(r.Sta), "cfr": len(r.Cfr),
		"dcr": len(r.Dcr), "gvy": len(r.Gvy), "gvx": len(r.Gvx), "eoy": len(r.Eoy),
		"eox": len(r.Eox), "dmz": len(r.Dmz), "lcy": len(r.Lcy), "lcx": len(r.Lcx),
		"lcz": len(r.Lcz), "fbg": len(r.Fbg),
	}
	for name, l := range perIterLens {
		if l != perIter {
			return fmt.Errorf("Field %v: expected %v values, got %v", name, perIter, l)
		}
	}

	for name, l := range map[string]int{"loc": len(r.Loc), "lnc": len(r.Lnc), "ext": len(r.Ext)} {
		if l != perIter*3 {
			return fmt.Errorf("Field %v: expected %v values, got %v", name, perIter*3, l)
		}
	}

	return nil
}

// Filter - in-place compaction to the records where keep is set
func (r *RawRev1) Filter(keep []bool) {
	r.Sqi = filterSlice(r.Sqi, keep, 1)
	r.Gri = filterSlice(r.Gri, keep, 1)
	r.Tim = filterSlice(r.Tim, keep, 1)
	r.Tid = filterSlice(r.Tid, keep, 1)
	r.Vld = filterSlice(r.Vld, keep, 1)
	r.Act = filterSlice(r.Act, keep, 1)
	r.Dos = filterSlice(r.Dos, keep, 1)
	r.Sky = filterSlice(r.Sky, keep, 1)
	r.Fluo = filterSlice(r.Fluo, keep, 1)

	it := r.NumIterations
	r.Itr = filterSlice(r.Itr, keep, it)
	r.Tic = filterSlice(r.Tic, keep, it)
	r.Loc = filterSlice(r.Loc, keep, it*3)
	r.Lnc = filterSlice(r.Lnc, keep, it*3)
	r.Eco = filterSlice(r.Eco, keep, it)
	r.Ecc = filterSlice(r.Ecc, keep, it)
	r.Efo = filterSlice(r.Efo, keep, it)
	r.Efc = filterSlice(r.Efc, keep, it)
	r.Sta = filterSlice(r.Sta, keep, it)
	r.Cfr = filterSlice(r.Cfr, keep, it)
	r.Dcr = filterSlice(r.Dcr, keep, it)
	r.Ext = filterSlice(r.Ext, keep, it*3)
	r.Gvy = filterSlice(r.Gvy, keep, it)
	r.Gvx = filterSlice(r.Gvx, keep, it)
	r.Eoy = filterSlice(r.Eoy, keep, it)
	r.Eox = filterSlice(r.Eox, keep, it)
	r.Dmz = filterSlice(r.Dmz, keep, it)
	r.Lcy = filterSlice(r.Lcy, keep, it)
	r.Lcx = filterSlice(r.Lcx, keep, it)
	r.Lcz = filterSlice(r.Lcz, keep, it)
	r.Fbg = filterSlice(r.Fbg, keep, it)
}

// filterSlice - compacts s to entries whose record is kept. stride is how
// many consecutive values each record owns in s.
func filterSlice[T any](s []T, keep []bool, stride int) []T {
	out := s[:0]
	for rec, k := range keep {
		if k {
			out = append(out, s[rec*stride:(rec+1)*stride]...)
		}
	}
	return out
}
