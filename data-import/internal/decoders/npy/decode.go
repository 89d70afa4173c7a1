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

// Decodes numpy structured-array exports. Revision 1 files carry one event
// per record with a nested fixed-length iteration compound; revision 2
// files are flat, one physical iteration row per record.
package npy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

type Decoder struct {
}

// SniffRevision - classifies the record schema from the header alone
func SniffRevision(data []byte) (dataset.SchemaRevision, error) {
	info, _, err := parseHeader(data)
	if err != nil {
		return 0, err
	}
	return classify(info.fields)
}

func classify(fields []field) (dataset.SchemaRevision, error) {
	// Both revisions have an itr field; only revision 2 has trace markers
	if hasField(fields, "bot") {
		return dataset.Revision2, nil
	}
	if hasField(fields, "itr") {
		return dataset.Revision1, nil
	}
	return 0, errorwithkind.MakeKindError(
		errorwithkind.KindFormatUnsupported,
		errors.New("record schema is neither revision 1 nor revision 2"),
	)
}

func (d Decoder) Decode(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	info, payload, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if info.fortran {
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("fortran ordered arrays are not supported"))
	}
	if len(info.shape) != 1 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("expected a 1-d record array, shape is %v", info.shape))
	}

	rev, err := classify(info.fields)
	if err != nil {
		return nil, err
	}

	if rev == dataset.Revision2 {
		return decodeRev2(info, payload, jobLog)
	}
	return decodeRev1(info, payload, jobLog)
}

// Single value readers. Integer reads cover both signednesses so column
// readers can cast to their target width.

func readFloatVal(data []byte, off int, dtype string) (float64, error) {
	switch dtype {
	case "<f8":
		return math.Float64frombits(binary.LittleEndian.Uint64(data[off:])), nil
	case "<f4":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))), nil
	case "<f2":
		return float64(float16.Frombits(binary.LittleEndian.Uint16(data[off:])).Float32()), nil
	}
	return 0, fmt.Errorf("expected float dtype, got %v", dtype)
}

func readIntegerVal(data []byte, off int, dtype string) (int64, error) {
	switch dtype {
	case "|i1":
		return int64(int8(data[off])), nil
	case "<i2":
		return int64(int16(binary.LittleEndian.Uint16(data[off:]))), nil
	case "<i4":
		return int64(int32(binary.LittleEndian.Uint32(data[off:]))), nil
	case "<i8":
		return int64(binary.LittleEndian.Uint64(data[off:])), nil
	case "|u1":
		return int64(data[off]), nil
	case "<u2":
		return int64(binary.LittleEndian.Uint16(data[off:])), nil
	case "<u4":
		return int64(binary.LittleEndian.Uint32(data[off:])), nil
	case "<u8":
		return int64(binary.LittleEndian.Uint64(data[off:])), nil
	}
	return 0, fmt.Errorf("expected integer dtype, got %v", dtype)
}

func readBoolVal(data []byte, off int, dtype string) (bool, error) {
	switch dtype {
	case "?", "|b1", "|i1", "|u1":
		return data[off] != 0, nil
	}
	return false, fmt.Errorf("expected bool dtype, got %v", dtype)
}

// rev1Reader - extracts whole columns from revision 1 records. Missing
// optional fields produce zero-filled columns; the first failure sticks.
type rev1Reader struct {
	data    []byte
	numRec  int
	itemSz  int
	n       int
	top     map[string]fieldAt
	sub     map[string]fieldAt
	itrOff  int
	subItem int
	err     error
}

func (r *rev1Reader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %v: %v", name, err)
	}
}

func (r *rev1Reader) missing(name string, required bool) bool {
	if required {
		r.fail(name, errors.New("required field is missing"))
	}
	return true
}

func (r *rev1Reader) eventFloats(name string, required bool) []float64 {
	out := make([]float64, r.numRec)
	f, ok := r.top[name]
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	for rec := 0; rec < r.numRec; rec++ {
		v, err := readFloatVal(r.data, rec*r.itemSz+f.offset, f.dtype)
		if err != nil {
			r.fail(name, err)
			return out
		}
		out[rec] = v
	}
	return out
}

func (r *rev1Reader) eventInts(name string, required bool) []int64 {
	out := make([]int64, r.numRec)
	f, ok := r.top[name]
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	for rec := 0; rec < r.numRec; rec++ {
		v, err := readIntegerVal(r.data, rec*r.itemSz+f.offset, f.dtype)
		if err != nil {
			r.fail(name, err)
			return out
		}
		out[rec] = v
	}
	return out
}

func (r *rev1Reader) eventI32(name string, required bool) []int32 {
	vals := r.eventInts(name, required)
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out
}

func (r *rev1Reader) eventU32(name string, required bool) []uint32 {
	vals := r.eventInts(name, required)
	out := make([]uint32, len(vals))
	for i, v := range vals {
		out[i] = uint32(v)
	}
	return out
}

func (r *rev1Reader) eventU8(name string, required bool) []uint8 {
	vals := r.eventInts(name, required)
	out := make([]uint8, len(vals))
	for i, v := range vals {
		out[i] = uint8(v)
	}
	return out
}

func (r *rev1Reader) eventBools(name string, required bool, def bool) []bool {
	out := make([]bool, r.numRec)
	f, ok := r.top[name]
	if !ok && !required {
		for i := range out {
			out[i] = def
		}
		return out
	}
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	for rec := 0; rec < r.numRec; rec++ {
		v, err := readBoolVal(r.data, rec*r.itemSz+f.offset, f.dtype)
		if err != nil {
			r.fail(name, err)
			return out
		}
		out[rec] = v
	}
	return out
}

// iterFloats - a per-iteration column, perIter values each iteration,
// flattened record-major like RawRev1 stores them
func (r *rev1Reader) iterFloats(name string, perIter int, required bool) []float64 {
	out := make([]float64, r.numRec*r.n*perIter)
	f, ok := r.sub[name]
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	if shapeCount(f.shape) != perIter {
		r.fail(name, fmt.Errorf("expected %v values per iteration, dtype has %v", perIter, shapeCount(f.shape)))
		return out
	}

	elemSz, err := dtypeItemSize(f.dtype)
	if err != nil {
		r.fail(name, err)
		return out
	}

	idx := 0
	for rec := 0; rec < r.numRec; rec++ {
		for it := 0; it < r.n; it++ {
			base := rec*r.itemSz + r.itrOff + it*r.subItem + f.offset
			for k := 0; k < perIter; k++ {
				v, err := readFloatVal(r.data, base+k*elemSz, f.dtype)
				if err != nil {
					r.fail(name, err)
					return out
				}
				out[idx] = v
				idx++
			}
		}
	}
	return out
}

func (r *rev1Reader) iterInts(name string, required bool) []int64 {
	out := make([]int64, r.numRec*r.n)
	f, ok := r.sub[name]
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}

	idx := 0
	for rec := 0; rec < r.numRec; rec++ {
		for it := 0; it < r.n; it++ {
			v, err := readIntegerVal(r.data, rec*r.itemSz+r.itrOff+it*r.subItem+f.offset, f.dtype)
			if err != nil {
				r.fail(name, err)
				return out
			}
			out[idx] = v
			idx++
		}
	}
	return out
}

func (r *rev1Reader) iterI32(name string, required bool) []int32 {
	vals := r.iterInts(name, required)
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out
}

func (r *rev1Reader) iterU64(name string, required bool) []uint64 {
	vals := r.iterInts(name, required)
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = uint64(v)
	}
	return out
}

func decodeRev1(info headerInfo, payload []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	numRec := info.shape[0]

	itemSz, err := itemSize(info.fields)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}
	if len(payload) != numRec*itemSz {
		return nil, errorwithkind.MakeDecodeFailureError(
			fmt.Errorf("record data: expected %v bytes, got %v", numRec*itemSz, len(payload)))
	}

	top, err := layoutFields(info.fields)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	itrField, ok := top["itr"]
	if !ok || len(itrField.sub) == 0 {
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("itr field is not an iteration compound"))
	}
	n := shapeCount(itrField.shape)
	if n <= 0 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("invalid iteration count: %v", n))
	}

	sub, err := layoutFields(itrField.sub)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}
	subItem, err := itemSize(itrField.sub)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	rd := &rev1Reader{
		data:    payload,
		numRec:  numRec,
		itemSz:  itemSz,
		n:       n,
		top:     top,
		sub:     sub,
		itrOff:  itrField.offset,
		subItem: subItem,
	}

	r := &dataset.RawRev1{
		NumIterations: n,
		Sqi:           rd.eventU32("sqi", false),
		Gri:           rd.eventU32("gri", false),
		Tim:           rd.eventFloats("tim", true),
		Tid:           rd.eventI32("tid", true),
		Vld:           rd.eventBools("vld", false, true),
		Act:           rd.eventBools("act", false, false),
		Dos:           rd.eventI32("dos", false),
		Sky:           rd.eventI32("sky", false),
		Fluo:          rd.eventU8("fluo", false),
		Itr:           rd.iterI32("itr", false),
		Tic:           rd.iterU64("tic", false),
		Loc:           rd.iterFloats("loc", 3, true),
		Lnc:           rd.iterFloats("lnc", 3, false),
		Eco:           rd.iterI32("eco", true),
		Ecc:           rd.iterI32("ecc", false),
		Efo:           rd.iterFloats("efo", 1, true),
		Efc:           rd.iterFloats("efc", 1, false),
		Sta:           rd.iterI32("sta", false),
		Cfr:           rd.iterFloats("cfr", 1, true),
		Dcr:           rd.iterFloats("dcr", 1, true),
		Ext:           rd.iterFloats("ext", 3, false),
		Gvy:           rd.iterFloats("gvy", 1, false),
		Gvx:           rd.iterFloats("gvx", 1, false),
		Eoy:           rd.iterFloats("eoy", 1, false),
		Eox:           rd.iterFloats("eox", 1, false),
		Dmz:           rd.iterFloats("dmz", 1, false),
		Lcy:           rd.iterFloats("lcy", 1, false),
		Lcx:           rd.iterFloats("lcx", 1, false),
		Lcz:           rd.iterFloats("lcz", 1, false),
		Fbg:           rd.iterFloats("fbg", 1, false),
	}
	if rd.err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(rd.err)
	}

	// Some exports drop the iteration ordinal column, it's implied
	if _, ok := sub["itr"]; !ok {
		for rec := 0; rec < numRec; rec++ {
			for it := 0; it < n; it++ {
				r.Itr[rec*n+it] = int32(it)
			}
		}
	}

	if err := r.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	jobLog.Infof("Read %v revision 1 records, %v iterations per record", numRec, n)

	return &dataset.RawPayload{
		Revision:    dataset.Revision1,
		Raw1:        r,
		Description: fmt.Sprintf("numpy structured array, %v records", numRec),
	}, nil
}

// rev2Reader - extracts whole columns from flat revision 2 rows
type rev2Reader struct {
	data   []byte
	numRow int
	itemSz int
	layout map[string]fieldAt
	err    error
}

func (r *rev2Reader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %v: %v", name, err)
	}
}

func (r *rev2Reader) missing(name string, required bool) bool {
	if required {
		r.fail(name, errors.New("required field is missing"))
	}
	return true
}

// component - element k of a possibly vector-valued field, one value per row
func (r *rev2Reader) component(name string, k int, required bool) []float64 {
	out := make([]float64, r.numRow)
	f, ok := r.layout[name]
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	if k >= shapeCount(f.shape) {
		r.fail(name, fmt.Errorf("component %v out of range, dtype has %v", k, shapeCount(f.shape)))
		return out
	}

	elemSz, err := dtypeItemSize(f.dtype)
	if err != nil {
		r.fail(name, err)
		return out
	}

	for row := 0; row < r.numRow; row++ {
		v, err := readFloatVal(r.data, row*r.itemSz+f.offset+k*elemSz, f.dtype)
		if err != nil {
			r.fail(name, err)
			return out
		}
		out[row] = v
	}
	return out
}

func (r *rev2Reader) floats(name string, required bool) []float64 {
	return r.component(name, 0, required)
}

func (r *rev2Reader) ints(name string, required bool) []int64 {
	out := make([]int64, r.numRow)
	f, ok := r.layout[name]
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	for row := 0; row < r.numRow; row++ {
		v, err := readIntegerVal(r.data, row*r.itemSz+f.offset, f.dtype)
		if err != nil {
			r.fail(name, err)
			return out
		}
		out[row] = v
	}
	return out
}

func (r *rev2Reader) i32(name string, required bool) []int32 {
	vals := r.ints(name, required)
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out
}

func (r *rev2Reader) u32(name string, required bool) []uint32 {
	vals := r.ints(name, required)
	out := make([]uint32, len(vals))
	for i, v := range vals {
		out[i] = uint32(v)
	}
	return out
}

func (r *rev2Reader) u8(name string, required bool) []uint8 {
	vals := r.ints(name, required)
	out := make([]uint8, len(vals))
	for i, v := range vals {
		out[i] = uint8(v)
	}
	return out
}

func (r *rev2Reader) bools(name string, required bool, def bool) []bool {
	out := make([]bool, r.numRow)
	f, ok := r.layout[name]
	if !ok && !required {
		for i := range out {
			out[i] = def
		}
		return out
	}
	if r.err != nil || (!ok && r.missing(name, required)) {
		return out
	}
	for row := 0; row < r.numRow; row++ {
		v, err := readBoolVal(r.data, row*r.itemSz+f.offset, f.dtype)
		if err != nil {
			r.fail(name, err)
			return out
		}
		out[row] = v
	}
	return out
}

func decodeRev2(info headerInfo, payload []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	numRow := info.shape[0]

	itemSz, err := itemSize(info.fields)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}
	if len(payload) != numRow*itemSz {
		return nil, errorwithkind.MakeDecodeFailureError(
			fmt.Errorf("record data: expected %v bytes, got %v", numRow*itemSz, len(payload)))
	}

	layout, err := layoutFields(info.fields)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	rd := &rev2Reader{
		data:   payload,
		numRow: numRow,
		itemSz: itemSz,
		layout: layout,
	}

	r := &dataset.RawRev2{
		Vld:  rd.bools("vld", false, true),
		Fnl:  rd.bools("fnl", false, false),
		Bot:  rd.bools("bot", true, false),
		Eot:  rd.bools("eot", false, false),
		Sta:  rd.u8("sta", false),
		Tim:  rd.floats("tim", true),
		Tid:  rd.u32("tid", true),
		Gri:  rd.u32("gri", false),
		Thi:  rd.u8("thi", false),
		Sqi:  rd.u8("sqi", false),
		Itr:  rd.i32("itr", true),
		X:    rd.component("loc", 0, true),
		Y:    rd.component("loc", 1, true),
		Z:    rd.component("loc", 2, true),
		Lncx: rd.component("lnc", 0, false),
		Lncy: rd.component("lnc", 1, false),
		Lncz: rd.component("lnc", 2, false),
		Eco:  rd.u32("eco", true),
		Ecc:  rd.u32("ecc", false),
		Efo:  rd.floats("efo", true),
		Efc:  rd.floats("efc", false),
		Fbg:  rd.floats("fbg", false),
		Cfr:  rd.floats("cfr", true),
		// dcr is two channels wide, channel 0 is the ratio we keep
		Dcr:  rd.component("dcr", 0, true),
		Fluo: rd.u8("fluo", false),
	}
	if rd.err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(rd.err)
	}

	if err := r.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	jobLog.Infof("Read %v revision 2 iteration rows", numRow)

	return &dataset.RawPayload{
		Revision:    dataset.Revision2,
		Raw2:        r,
		Description: fmt.Sprintf("numpy structured array, %v iteration rows", numRow),
	}, nil
}
