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
	"github.com/minfluxio/core/core/indexcompression"
)

// Content - everything one .pmx carries. Exactly one of Raw1/Raw2 is set,
// matching the header's reader_version. Row index arrays map stored rows
// back to row numbers in the source acquisition; nil means sequential.
type Content struct {
	Header Header

	Params Parameters

	Raw1    *dataset.RawRev1
	Raw2    *dataset.RawRev2
	RawRows []int64

	Canonical     *dataset.CanonicalTable
	CanonicalRows []int64
}

// Write - serializes content to .pmx bytes. The emitted file is always
// CurrentFileVersion; reader_version reflects which raw table is present.
func Write(content *Content) ([]byte, error) {
	readerVersion := 1
	if content.Raw2 != nil {
		if content.Raw1 != nil {
			return nil, fmt.Errorf("both raw table revisions set")
		}
		readerVersion = 2
	}

	body := Body{
		Parameters: content.Params,
	}

	var err error
	if content.Raw1 != nil {
		body.Raw, err = makeRev1Section(content.Raw1, content.RawRows)
	} else if content.Raw2 != nil {
		body.Raw, err = makeRev2Section(content.Raw2, content.RawRows)
	}
	if err != nil {
		return nil, err
	}

	if content.Canonical != nil {
		body.Processed, err = makeProcessedSection(content.Canonical, content.CanonicalRows)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.Write(Magic)

	enc := cbor.NewEncoder(&buf)
	if err := enc.Encode(Header{FileVersion: CurrentFileVersion, ReaderVersion: readerVersion}); err != nil {
		return nil, fmt.Errorf("failed to encode header: %v", err)
	}
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode body: %v", err)
	}

	return buf.Bytes(), nil
}

func makeRowIndex(rows []int64, numRows int) ([]int64, error) {
	if rows == nil {
		rows = make([]int64, numRows)
		for i := range rows {
			rows[i] = int64(i)
		}
	}
	if len(rows) != numRows {
		return nil, fmt.Errorf("row index length %v doesn't match %v table rows", len(rows), numRows)
	}
	return indexcompression.EncodeIndexList(rows)
}

// appendColumn - pack+compress one column and record it in the sidecars
func (s *TableSection) appendColumn(name, dtype string, perRow int, raw []byte) error {
	col, err := makeColumn(name, dtype, perRow, raw)
	if err != nil {
		return err
	}
	s.Columns = append(s.Columns, col)
	s.ColumnNames = append(s.ColumnNames, name)
	s.ColumnTypes = append(s.ColumnTypes, dtype)
	return nil
}

func makeRev1Section(r *dataset.RawRev1, rows []int64) (*TableSection, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	n := r.NumIterations
	sec := &TableSection{
		NumRows:       int64(r.NumRows()),
		NumIterations: n,
	}

	cols := []struct {
		name   string
		dtype  string
		perRow int
		raw    []byte
	}{
		{"sqi", "<u4", 1, packU32(r.Sqi)},
		{"gri", "<u4", 1, packU32(r.Gri)},
		{"tim", "<f8", 1, packF64(r.Tim)},
		{"tid", "<i4", 1, packI32(r.Tid)},
		{"vld", "|b1", 1, packBool(r.Vld)},
		{"act", "|b1", 1, packBool(r.Act)},
		{"dos", "<i4", 1, packI32(r.Dos)},
		{"sky", "<i4", 1, packI32(r.Sky)},
		{"fluo", "|u1", 1, packU8(r.Fluo)},
		{"itr", "<i4", n, packI32(r.Itr)},
		{"tic", "<u8", n, packU64(r.Tic)},
		{"loc", "<f8", n * 3, packF64(r.Loc)},
		{"lnc", "<f8", n * 3, packF64(r.Lnc)},
		{"eco", "<i4", n, packI32(r.Eco)},
		{"ecc", "<i4", n, packI32(r.Ecc)},
		{"efo", "<f8", n, packF64(r.Efo)},
		{"efc", "<f8", n, packF64(r.Efc)},
		{"sta", "<i4", n, packI32(r.Sta)},
		{"cfr", "<f8", n, packF64(r.Cfr)},
		{"dcr", "<f8", n, packF64(r.Dcr)},
		{"ext", "<f8", n * 3, packF64(r.Ext)},
		{"gvy", "<f8", n, packF64(r.Gvy)},
		{"gvx", "<f8", n, packF64(r.Gvx)},
		{"eoy", "<f8", n, packF64(r.Eoy)},
		{"eox", "<f8", n, packF64(r.Eox)},
		{"dmz", "<f8", n, packF64(r.Dmz)},
		{"lcy", "<f8", n, packF64(r.Lcy)},
		{"lcx", "<f8", n, packF64(r.Lcx)},
		{"lcz", "<f8", n, packF64(r.Lcz)},
		{"fbg", "<f8", n, packF64(r.Fbg)},
	}
	for _, c := range cols {
		if err := sec.appendColumn(c.name, c.dtype, c.perRow, c.raw); err != nil {
			return nil, err
		}
	}

	var err error
	sec.Index, err = makeRowIndex(rows, r.NumRows())
	if err != nil {
		return nil, err
	}
	return sec, nil
}

func makeRev2Section(r *dataset.RawRev2, rows []int64) (*TableSection, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	sec := &TableSection{
		NumRows: int64(r.NumRows()),
	}

	// Narrow float columns are stored at their acquisition precision
	cols := []struct {
		name  string
		dtype string
		raw   []byte
	}{
		{"vld", "|b1", packBool(r.Vld)},
		{"fnl", "|b1", packBool(r.Fnl)},
		{"bot", "|b1", packBool(r.Bot)},
		{"eot", "|b1", packBool(r.Eot)},
		{"sta", "|u1", packU8(r.Sta)},
		{"tim", "<f8", packF64(r.Tim)},
		{"tid", "<u4", packU32(r.Tid)},
		{"gri", "<u4", packU32(r.Gri)},
		{"thi", "|u1", packU8(r.Thi)},
		{"sqi", "|u1", packU8(r.Sqi)},
		{"itr", "<i4", packI32(r.Itr)},
		{"x", "<f8", packF64(r.X)},
		{"y", "<f8", packF64(r.Y)},
		{"z", "<f8", packF64(r.Z)},
		{"lncx", "<f8", packF64(r.Lncx)},
		{"lncy", "<f8", packF64(r.Lncy)},
		{"lncz", "<f8", packF64(r.Lncz)},
		{"eco", "<u4", packU32(r.Eco)},
		{"ecc", "<u4", packU32(r.Ecc)},
		{"efo", "<f4", packF32(r.Efo)},
		{"efc", "<f4", packF32(r.Efc)},
		{"fbg", "<f4", packF32(r.Fbg)},
		{"cfr", "<f2", packF16(r.Cfr)},
		{"dcr", "<f2", packF16(r.Dcr)},
		{"fluo", "|u1", packU8(r.Fluo)},
	}
	for _, c := range cols {
		if err := sec.appendColumn(c.name, c.dtype, 1, c.raw); err != nil {
			return nil, err
		}
	}

	var err error
	sec.Index, err = makeRowIndex(rows, r.NumRows())
	if err != nil {
		return nil, err
	}
	return sec, nil
}

func makeProcessedSection(t *dataset.CanonicalTable, rows []int64) (*TableSection, error) {
	sec := &TableSection{
		NumRows: int64(t.NumRows()),
	}

	for _, name := range dataset.CanonicalColumns {
		dtype := dataset.CanonicalColumnTypes[name]

		var raw []byte
		switch name {
		case "tid":
			raw = packI64(t.Tid)
		case "itr":
			raw = packI32(t.Itr)
		case "fluo":
			raw = packU8(t.Fluo)
		default:
			vals, err := t.FloatColumn(name)
			if err != nil {
				return nil, err
			}
			raw = packF64(vals)
		}

		if err := sec.appendColumn(name, dtype, 1, raw); err != nil {
			return nil, err
		}
	}

	var err error
	sec.Index, err = makeRowIndex(rows, t.NumRows())
	if err != nil {
		return nil, err
	}
	return sec, nil
}
