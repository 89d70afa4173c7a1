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

package pmxfile

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/fileversion"
	"github.com/minfluxio/core/core/indexcompression"
)

// ReadHeader - decodes only the first CBOR document, leaving the body
// untouched. This is what format sniffing calls.
func ReadHeader(data []byte) (Header, error) {
	hdr := Header{}

	if len(data) < len(Magic) || !bytes.Equal(data[:len(Magic)], Magic) {
		return hdr, errorwithkind.MakeCorruptHeaderError("missing pmx magic")
	}

	dec := cbor.NewDecoder(bytes.NewReader(data[len(Magic):]))
	if err := dec.Decode(&hdr); err != nil {
		return hdr, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("failed to decode header: %v", err))
	}

	v, err := fileversion.FileVersionFromString(hdr.FileVersion)
	if err != nil {
		return hdr, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("bad file version: %v", err))
	}
	if !isSupportedVersion(v) {
		return hdr, errorwithkind.MakeKindError(
			errorwithkind.KindFormatUnsupported,
			fmt.Errorf("file version %v is not supported, newest supported is %v", hdr.FileVersion, CurrentFileVersion),
		)
	}

	// Files predating 3.0 only ever carried revision 1 tables
	if v.Major < 3 {
		hdr.ReaderVersion = 1
	}
	if hdr.ReaderVersion != 1 && hdr.ReaderVersion != 2 {
		return hdr, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("bad reader version: %v", hdr.ReaderVersion))
	}

	return hdr, nil
}

// Read - decodes a whole .pmx
func Read(data []byte) (*Content, error) {
	hdr, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	dec := cbor.NewDecoder(bytes.NewReader(data[len(Magic):]))
	skip := Header{}
	if err := dec.Decode(&skip); err != nil {
		return nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("failed to decode header: %v", err))
	}

	body := Body{}
	if err := dec.Decode(&body); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("failed to decode body: %v", err))
	}

	content := &Content{
		Header: hdr,
		Params: body.Parameters,
	}

	if body.Raw != nil {
		switch hdr.ReaderVersion {
		case 1:
			content.Raw1, content.RawRows, err = readRev1Section(body.Raw)
		case 2:
			content.Raw2, content.RawRows, err = readRev2Section(body.Raw)
		}
		if err != nil {
			return nil, err
		}
	}

	if body.Processed != nil {
		content.Canonical, content.CanonicalRows, err = readProcessedSection(body.Processed)
		if err != nil {
			return nil, err
		}
	}

	return content, nil
}

// sectionReader - looks up columns by name, unpacks them to the requested
// Go type, and remembers the first failure so callers can read a whole
// section before checking for errors once
type sectionReader struct {
	sec    *TableSection
	byName map[string]ColumnBlob
	err    error
}

func makeSectionReader(sec *TableSection) *sectionReader {
	byName := map[string]ColumnBlob{}
	for _, col := range sec.Columns {
		byName[col.Name] = col
	}
	return &sectionReader{sec: sec, byName: byName}
}

func (s *sectionReader) column(name string) (ColumnBlob, []byte, bool) {
	if s.err != nil {
		return ColumnBlob{}, nil, false
	}
	col, ok := s.byName[name]
	if !ok {
		s.err = fmt.Errorf("column %v is missing", name)
		return ColumnBlob{}, nil, false
	}
	raw, err := openColumn(col, s.sec.NumRows)
	if err != nil {
		s.err = err
		return ColumnBlob{}, nil, false
	}
	return col, raw, true
}

func (s *sectionReader) typeFail(name string, dtype string) {
	s.err = fmt.Errorf("column %v: unexpected dtype %v", name, dtype)
}

// floats - any float width, widened to float64
func (s *sectionReader) floats(name string) []float64 {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	switch col.Dtype {
	case "<f8":
		return unpackF64(raw)
	case "<f4":
		return unpackF32(raw)
	case "<f2":
		return unpackF16(raw)
	}
	s.typeFail(name, col.Dtype)
	return nil
}

func (s *sectionReader) i64(name string) []int64 {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	if col.Dtype != "<i8" {
		s.typeFail(name, col.Dtype)
		return nil
	}
	return unpackI64(raw)
}

func (s *sectionReader) i32(name string) []int32 {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	if col.Dtype != "<i4" {
		s.typeFail(name, col.Dtype)
		return nil
	}
	return unpackI32(raw)
}

func (s *sectionReader) u64(name string) []uint64 {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	if col.Dtype != "<u8" {
		s.typeFail(name, col.Dtype)
		return nil
	}
	return unpackU64(raw)
}

func (s *sectionReader) u32(name string) []uint32 {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	if col.Dtype != "<u4" {
		s.typeFail(name, col.Dtype)
		return nil
	}
	return unpackU32(raw)
}

func (s *sectionReader) u8(name string) []uint8 {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	if col.Dtype != "|u1" {
		s.typeFail(name, col.Dtype)
		return nil
	}
	return unpackU8(raw)
}

func (s *sectionReader) bools(name string) []bool {
	col, raw, ok := s.column(name)
	if !ok {
		return nil
	}
	switch col.Dtype {
	case "|b1", "|i1", "|u1":
		return unpackBool(raw)
	}
	s.typeFail(name, col.Dtype)
	return nil
}

func decodeRowIndex(sec *TableSection) ([]int64, error) {
	rows, err := indexcompression.DecodeIndexList(sec.Index, -1)
	if err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("bad row index: %v", err))
	}
	if int64(len(rows)) != sec.NumRows {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("row index has %v entries for %v rows", len(rows), sec.NumRows))
	}
	return rows, nil
}

func readRev1Section(sec *TableSection) (*dataset.RawRev1, []int64, error) {
	if sec.NumIterations <= 0 {
		return nil, nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("raw section: invalid iteration count %v", sec.NumIterations))
	}

	sr := makeSectionReader(sec)
	r := &dataset.RawRev1{
		NumIterations: sec.NumIterations,
		Sqi:           sr.u32("sqi"),
		Gri:           sr.u32("gri"),
		Tim:           sr.floats("tim"),
		Tid:           sr.i32("tid"),
		Vld:           sr.bools("vld"),
		Act:           sr.bools("act"),
		Dos:           sr.i32("dos"),
		Sky:           sr.i32("sky"),
		Fluo:          sr.u8("fluo"),
		Itr:           sr.i32("itr"),
		Tic:           sr.u64("tic"),
		Loc:           sr.floats("loc"),
		Lnc:           sr.floats("lnc"),
		Eco:           sr.i32("eco"),
		Ecc:           sr.i32("ecc"),
		Efo:           sr.floats("efo"),
		Efc:           sr.floats("efc"),
		Sta:           sr.i32("sta"),
		Cfr:           sr.floats("cfr"),
		Dcr:           sr.floats("dcr"),
		Ext:           sr.floats("ext"),
		Gvy:           sr.floats("gvy"),
		Gvx:           sr.floats("gvx"),
		Eoy:           sr.floats("eoy"),
		Eox:           sr.floats("eox"),
		Dmz:           sr.floats("dmz"),
		Lcy:           sr.floats("lcy"),
		Lcx:           sr.floats("lcx"),
		Lcz:           sr.floats("lcz"),
		Fbg:           sr.floats("fbg"),
	}
	if sr.err != nil {
		return nil, nil, errorwithkind.MakeDecodeFailureError(sr.err)
	}
	if err := r.Validate(); err != nil {
		return nil, nil, errorwithkind.MakeDecodeFailureError(err)
	}

	rows, err := decodeRowIndex(sec)
	if err != nil {
		return nil, nil, err
	}
	return r, rows, nil
}

func readRev2Section(sec *TableSection) (*dataset.RawRev2, []int64, error) {
	sr := makeSectionReader(sec)
	r := &dataset.RawRev2{
		Vld:  sr.bools("vld"),
		Fnl:  sr.bools("fnl"),
		Bot:  sr.bools("bot"),
		Eot:  sr.bools("eot"),
		Sta:  sr.u8("sta"),
		Tim:  sr.floats("tim"),
		Tid:  sr.u32("tid"),
		Gri:  sr.u32("gri"),
		Thi:  sr.u8("thi"),
		Sqi:  sr.u8("sqi"),
		Itr:  sr.i32("itr"),
		X:    sr.floats("x"),
		Y:    sr.floats("y"),
		Z:    sr.floats("z"),
		Lncx: sr.floats("lncx"),
		Lncy: sr.floats("lncy"),
		Lncz: sr.floats("lncz"),
		Eco:  sr.u32("eco"),
		Ecc:  sr.u32("ecc"),
		Efo:  sr.floats("efo"),
		Efc:  sr.floats("efc"),
		Fbg:  sr.floats("fbg"),
		Cfr:  sr.floats("cfr"),
		Dcr:  sr.floats("dcr"),
		Fluo: sr.u8("fluo"),
	}
	if sr.err != nil {
		return nil, nil, errorwithkind.MakeDecodeFailureError(sr.err)
	}
	if err := r.Validate(); err != nil {
		return nil, nil, errorwithkind.MakeDecodeFailureError(err)
	}

	rows, err := decodeRowIndex(sec)
	if err != nil {
		return nil, nil, err
	}
	return r, rows, nil
}

func readProcessedSection(sec *TableSection) (*dataset.CanonicalTable, []int64, error) {
	sr := makeSectionReader(sec)
	t := &dataset.CanonicalTable{
		Tid:   sr.i64("tid"),
		Tim:   sr.floats("tim"),
		X:     sr.floats("x"),
		Y:     sr.floats("y"),
		Z:     sr.floats("z"),
		Efo:   sr.floats("efo"),
		Cfr:   sr.floats("cfr"),
		Eco:   sr.floats("eco"),
		Dcr:   sr.floats("dcr"),
		Dwell: sr.floats("dwell"),
		Fbg:   sr.floats("fbg"),
		Itr:   sr.i32("itr"),
		Fluo:  sr.u8("fluo"),
	}
	if sr.err != nil {
		return nil, nil, errorwithkind.MakeDecodeFailureError(sr.err)
	}

	rows, err := decodeRowIndex(sec)
	if err != nil {
		return nil, nil, err
	}
	return t, rows, nil
}
