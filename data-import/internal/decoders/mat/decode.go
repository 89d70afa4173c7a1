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

// Decodes the MATLAB workspace export. Revision 1 keeps per-event vectors
// at the top level plus an itr struct of records-by-iterations matrices;
// revision 2 is all flat top level vectors with loc/lnc/dcr as
// rows-by-channels matrices. MATLAB arrays are column major, tables here
// are row major, so matrices are transposed as they're read.
package mat

import (
	"errors"
	"fmt"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/utils"
)

type Decoder struct {
}

// SniffRevision - classifies from top level variable names only
func SniffRevision(data []byte) (dataset.SchemaRevision, error) {
	names, err := topLevelNames(data)
	if err != nil {
		return 0, err
	}
	return classify(names)
}

func classify(names map[string]int) (dataset.SchemaRevision, error) {
	if _, ok := names["bot"]; ok {
		return dataset.Revision2, nil
	}
	if _, ok := names["itr"]; ok {
		return dataset.Revision1, nil
	}
	return 0, errorwithkind.MakeKindError(
		errorwithkind.KindFormatUnsupported,
		errors.New("record schema is neither revision 1 nor revision 2"),
	)
}

func (d Decoder) Decode(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	vars, err := parseVars(data)
	if err != nil {
		return nil, err
	}

	names := map[string]int{}
	for name, v := range vars {
		names[name] = v.class
	}
	rev, err := classify(names)
	if err != nil {
		return nil, err
	}

	if rev == dataset.Revision2 {
		return decodeRev2(vars, jobLog)
	}
	return decodeRev1(vars, jobLog)
}

// matReader - extracts typed columns from a variable map, transposing
// matrices to row major. First failure sticks.
type matReader struct {
	vars   map[string]*matVar
	numRec int
	n      int
	err    error
}

func (m *matReader) fail(name string, err error) {
	if m.err == nil {
		m.err = fmt.Errorf("variable %v: %v", name, err)
	}
}

func (m *matReader) lookup(name string, required bool) *matVar {
	v, ok := m.vars[name]
	if !ok {
		if required {
			m.fail(name, errors.New("required variable is missing"))
		}
		return nil
	}
	if v.vals == nil {
		m.fail(name, errors.New("not a numeric array"))
		return nil
	}
	return v
}

// vector - a per-record vector in either orientation
func (m *matReader) vector(name string, required bool) []float64 {
	out := make([]float64, m.numRec)
	v := m.lookup(name, required)
	if m.err != nil || v == nil {
		return out
	}
	if v.count() != m.numRec {
		m.fail(name, fmt.Errorf("expected %v values, got %v", m.numRec, v.count()))
		return out
	}
	copy(out, v.vals)
	return out
}

// column - channel k of a records-by-channels matrix. Column major
// storage makes each channel a contiguous run.
func (m *matReader) column(name string, k int, required bool) []float64 {
	out := make([]float64, m.numRec)
	v := m.lookup(name, required)
	if m.err != nil || v == nil {
		return out
	}
	if len(v.dims) < 1 || v.dims[0] < 1 {
		m.fail(name, fmt.Errorf("bad dims %v", v.dims))
		return out
	}

	width := 1
	if len(v.dims) >= 2 {
		width = v.count() / v.dims[0]
	}
	if v.dims[0] != m.numRec || k >= width {
		m.fail(name, fmt.Errorf("channel %v of dims %v doesn't fit %v records", k, v.dims, m.numRec))
		return out
	}

	copy(out, v.vals[k*m.numRec:(k+1)*m.numRec])
	return out
}

// plane - a records-by-iterations matrix, transposed to the flat record
// major layout the revision 1 table uses
func (m *matReader) plane(name string, required bool) []float64 {
	out := make([]float64, m.numRec*m.n)
	v := m.lookup(name, required)
	if m.err != nil || v == nil {
		return out
	}
	if v.count() != m.numRec*m.n {
		m.fail(name, fmt.Errorf("expected %vx%v values, got %v", m.numRec, m.n, v.count()))
		return out
	}

	for rec := 0; rec < m.numRec; rec++ {
		for it := 0; it < m.n; it++ {
			out[rec*m.n+it] = v.vals[it*m.numRec+rec]
		}
	}
	return out
}

// planeVec - a records-by-iterations-by-3 array, flattened record major
// with the vector components innermost
func (m *matReader) planeVec(name string, required bool) []float64 {
	out := make([]float64, m.numRec*m.n*3)
	v := m.lookup(name, required)
	if m.err != nil || v == nil {
		return out
	}
	if v.count() != m.numRec*m.n*3 {
		m.fail(name, fmt.Errorf("expected %vx%vx3 values, got %v", m.numRec, m.n, v.count()))
		return out
	}

	for rec := 0; rec < m.numRec; rec++ {
		for it := 0; it < m.n; it++ {
			for k := 0; k < 3; k++ {
				out[(rec*m.n+it)*3+k] = v.vals[rec+it*m.numRec+k*m.numRec*m.n]
			}
		}
	}
	return out
}

func toI32(vals []float64) []int32 {
	return utils.ConvertSlice[int32](vals)
}

func toU32(vals []float64) []uint32 {
	return utils.ConvertSlice[uint32](vals)
}

func toU64(vals []float64) []uint64 {
	return utils.ConvertSlice[uint64](vals)
}

func toU8(vals []float64) []uint8 {
	return utils.ConvertSlice[uint8](vals)
}

func toBool(vals []float64) []bool {
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v != 0
	}
	return out
}

func decodeRev1(vars map[string]*matVar, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	itrVar, ok := vars["itr"]
	if !ok || itrVar.fields == nil {
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("itr variable is not an iteration struct"))
	}

	efoVar, ok := itrVar.fields["efo"]
	if !ok || len(efoVar.dims) < 1 {
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("iteration struct has no efo field"))
	}

	numRec := efoVar.dims[0]
	n := 1
	if len(efoVar.dims) >= 2 {
		n = efoVar.count() / efoVar.dims[0]
	}
	if numRec < 0 || n <= 0 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("bad iteration struct dims %v", efoVar.dims))
	}

	top := &matReader{vars: vars, numRec: numRec}
	iter := &matReader{vars: itrVar.fields, numRec: numRec, n: n}

	r := &dataset.RawRev1{
		NumIterations: n,
		Sqi:           toU32(top.vector("sqi", false)),
		Gri:           toU32(top.vector("gri", false)),
		Tim:           top.vector("tim", true),
		Tid:           toI32(top.vector("tid", true)),
		Vld:           toBool(top.vector("vld", false)),
		Act:           toBool(top.vector("act", false)),
		Dos:           toI32(top.vector("dos", false)),
		Sky:           toI32(top.vector("sky", false)),
		Fluo:          toU8(top.vector("fluo", false)),
		Itr:           toI32(iter.plane("itr", false)),
		Tic:           toU64(iter.plane("tic", false)),
		Loc:           iter.planeVec("loc", true),
		Lnc:           iter.planeVec("lnc", false),
		Eco:           toI32(iter.plane("eco", true)),
		Ecc:           toI32(iter.plane("ecc", false)),
		Efo:           iter.plane("efo", true),
		Efc:           iter.plane("efc", false),
		Sta:           toI32(iter.plane("sta", false)),
		Cfr:           iter.plane("cfr", true),
		Dcr:           iter.plane("dcr", true),
		Ext:           iter.planeVec("ext", false),
		Gvy:           iter.plane("gvy", false),
		Gvx:           iter.plane("gvx", false),
		Eoy:           iter.plane("eoy", false),
		Eox:           iter.plane("eox", false),
		Dmz:           iter.plane("dmz", false),
		Lcy:           iter.plane("lcy", false),
		Lcx:           iter.plane("lcx", false),
		Lcz:           iter.plane("lcz", false),
		Fbg:           iter.plane("fbg", false),
	}

	// vld missing means every record counts
	if _, ok := vars["vld"]; !ok {
		for i := range r.Vld {
			r.Vld[i] = true
		}
	}

	if top.err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(top.err)
	}
	if iter.err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(iter.err)
	}
	if err := r.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	jobLog.Infof("Read %v revision 1 records, %v iterations per record", numRec, n)

	return &dataset.RawPayload{
		Revision:    dataset.Revision1,
		Raw1:        r,
		Description: fmt.Sprintf("matlab workspace, %v records", numRec),
	}, nil
}

func decodeRev2(vars map[string]*matVar, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	tidVar, ok := vars["tid"]
	if !ok || tidVar.vals == nil {
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("tid variable is missing"))
	}
	numRow := tidVar.count()

	m := &matReader{vars: vars, numRec: numRow}

	r := &dataset.RawRev2{
		Vld:  toBool(m.vector("vld", false)),
		Fnl:  toBool(m.vector("fnl", false)),
		Bot:  toBool(m.vector("bot", true)),
		Eot:  toBool(m.vector("eot", false)),
		Sta:  toU8(m.vector("sta", false)),
		Tim:  m.vector("tim", true),
		Tid:  toU32(m.vector("tid", true)),
		Gri:  toU32(m.vector("gri", false)),
		Thi:  toU8(m.vector("thi", false)),
		Sqi:  toU8(m.vector("sqi", false)),
		Itr:  toI32(m.vector("itr", true)),
		X:    m.column("loc", 0, true),
		Y:    m.column("loc", 1, true),
		Z:    m.column("loc", 2, true),
		Lncx: m.column("lnc", 0, false),
		Lncy: m.column("lnc", 1, false),
		Lncz: m.column("lnc", 2, false),
		Eco:  toU32(m.vector("eco", true)),
		Ecc:  toU32(m.vector("ecc", false)),
		Efo:  m.vector("efo", true),
		Efc:  m.vector("efc", false),
		Fbg:  m.vector("fbg", false),
		Cfr:  m.vector("cfr", true),
		Dcr:  m.column("dcr", 0, true),
		Fluo: toU8(m.vector("fluo", false)),
	}

	if _, ok := vars["vld"]; !ok {
		for i := range r.Vld {
			r.Vld[i] = true
		}
	}

	if m.err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(m.err)
	}
	if err := r.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	jobLog.Infof("Read %v revision 2 iteration rows", numRow)

	return &dataset.RawPayload{
		Revision:    dataset.Revision2,
		Raw2:        r,
		Description: fmt.Sprintf("matlab workspace, %v iteration rows", numRow),
	}, nil
}
