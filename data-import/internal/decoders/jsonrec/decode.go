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

// Decodes the textual record-list export. The file is one JSON array of
// record objects; revision 1 records nest an itr array of per-iteration
// objects, revision 2 records are flat rows with a scalar itr ordinal.
// JSON has no NaN so missing measurements travel as null.
package jsonrec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

type Decoder struct {
}

// SniffRevision - reads the opening token and the first record only
func SniffRevision(data []byte) (dataset.SchemaRevision, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return 0, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("not a json record list: %v", err))
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return 0, errorwithkind.MakeCorruptHeaderError("not a json record list")
	}

	if !dec.More() {
		return 0, errorwithkind.MakeKindError(errorwithkind.KindEmptyInput, errors.New("record list is empty"))
	}

	probe := struct {
		Itr json.RawMessage `json:"itr"`
	}{}
	if err := dec.Decode(&probe); err != nil {
		return 0, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("bad first record: %v", err))
	}

	itr := bytes.TrimSpace(probe.Itr)
	if len(itr) > 0 {
		if itr[0] == '[' {
			return dataset.Revision1, nil
		}
		if itr[0] == '-' || (itr[0] >= '0' && itr[0] <= '9') {
			return dataset.Revision2, nil
		}
	}
	return 0, errorwithkind.MakeKindError(
		errorwithkind.KindFormatUnsupported,
		errors.New("record schema is neither revision 1 nor revision 2"),
	)
}

func (d Decoder) Decode(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	rev, err := SniffRevision(data)
	if err != nil {
		return nil, err
	}

	if rev == dataset.Revision2 {
		return decodeRev2(data, jobLog)
	}
	return decodeRev1(data, jobLog)
}

// Null-tolerant value helpers. Absent numeric measurements become NaN,
// absent counters become 0.

func fv(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func vec3(vals []*float64) (float64, float64, float64) {
	v := [3]float64{math.NaN(), math.NaN(), 0}
	for i := 0; i < len(vals) && i < 3; i++ {
		v[i] = fv(vals[i])
	}
	if len(vals) < 3 {
		// 2-d exports drop the z element
		v[2] = 0
	}
	return v[0], v[1], v[2]
}

func bv(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

type rev1Iteration struct {
	Itr *int32     `json:"itr"`
	Tic *uint64    `json:"tic"`
	Loc []*float64 `json:"loc"`
	Lnc []*float64 `json:"lnc"`
	Eco *int32     `json:"eco"`
	Ecc *int32     `json:"ecc"`
	Efo *float64   `json:"efo"`
	Efc *float64   `json:"efc"`
	Sta *int32     `json:"sta"`
	Cfr *float64   `json:"cfr"`
	Dcr *float64   `json:"dcr"`
	Ext []*float64 `json:"ext"`
	Gvy *float64   `json:"gvy"`
	Gvx *float64   `json:"gvx"`
	Eoy *float64   `json:"eoy"`
	Eox *float64   `json:"eox"`
	Dmz *float64   `json:"dmz"`
	Lcy *float64   `json:"lcy"`
	Lcx *float64   `json:"lcx"`
	Lcz *float64   `json:"lcz"`
	Fbg *float64   `json:"fbg"`
}

type rev1Record struct {
	Itr  []rev1Iteration `json:"itr"`
	Sqi  *uint32         `json:"sqi"`
	Gri  *uint32         `json:"gri"`
	Tim  *float64        `json:"tim"`
	Tid  *int32          `json:"tid"`
	Vld  *bool           `json:"vld"`
	Act  *bool           `json:"act"`
	Dos  *int32          `json:"dos"`
	Sky  *int32          `json:"sky"`
	Fluo *uint8          `json:"fluo"`
}

func decodeRev1(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	records := []rev1Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("failed to parse records: %v", err))
	}
	if len(records) == 0 {
		return nil, errorwithkind.MakeKindError(errorwithkind.KindEmptyInput, errors.New("record list is empty"))
	}

	n := len(records[0].Itr)
	if n <= 0 {
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("record 0 has an empty iteration list"))
	}

	r := dataset.MakeRawRev1(n, len(records))
	for recIdx, rec := range records {
		if rec.Tim == nil || rec.Tid == nil {
			return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("record %v is missing tim or tid", recIdx))
		}
		if len(rec.Itr) != n {
			return nil, errorwithkind.MakeDecodeFailureError(
				fmt.Errorf("record %v has %v iterations, expected %v", recIdx, len(rec.Itr), n))
		}

		r.Sqi = append(r.Sqi, u32(rec.Sqi))
		r.Gri = append(r.Gri, u32(rec.Gri))
		r.Tim = append(r.Tim, *rec.Tim)
		r.Tid = append(r.Tid, *rec.Tid)
		r.Vld = append(r.Vld, bv(rec.Vld, true))
		r.Act = append(r.Act, bv(rec.Act, false))
		r.Dos = append(r.Dos, i32(rec.Dos))
		r.Sky = append(r.Sky, i32(rec.Sky))
		r.Fluo = append(r.Fluo, u8(rec.Fluo))

		for itIdx, it := range rec.Itr {
			ord := int32(itIdx)
			if it.Itr != nil {
				ord = *it.Itr
			}
			x, y, z := vec3(it.Loc)
			lx, ly, lz := vec3(it.Lnc)
			ex, ey, ez := vec3(it.Ext)

			r.Itr = append(r.Itr, ord)
			r.Tic = append(r.Tic, u64(it.Tic))
			r.Loc = append(r.Loc, x, y, z)
			r.Lnc = append(r.Lnc, lx, ly, lz)
			r.Eco = append(r.Eco, i32(it.Eco))
			r.Ecc = append(r.Ecc, i32(it.Ecc))
			r.Efo = append(r.Efo, fv(it.Efo))
			r.Efc = append(r.Efc, fv(it.Efc))
			r.Sta = append(r.Sta, i32(it.Sta))
			r.Cfr = append(r.Cfr, fv(it.Cfr))
			r.Dcr = append(r.Dcr, fv(it.Dcr))
			r.Ext = append(r.Ext, ex, ey, ez)
			r.Gvy = append(r.Gvy, fv(it.Gvy))
			r.Gvx = append(r.Gvx, fv(it.Gvx))
			r.Eoy = append(r.Eoy, fv(it.Eoy))
			r.Eox = append(r.Eox, fv(it.Eox))
			r.Dmz = append(r.Dmz, fv(it.Dmz))
			r.Lcy = append(r.Lcy, fv(it.Lcy))
			r.Lcx = append(r.Lcx, fv(it.Lcx))
			r.Lcz = append(r.Lcz, fv(it.Lcz))
			r.Fbg = append(r.Fbg, fv(it.Fbg))
		}
	}

	if err := r.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	jobLog.Infof("Read %v revision 1 records, %v iterations per record", len(records), n)

	return &dataset.RawPayload{
		Revision:    dataset.Revision1,
		Raw1:        r,
		Description: fmt.Sprintf("json record list, %v records", len(records)),
	}, nil
}

type rev2Record struct {
	Vld  *bool           `json:"vld"`
	Fnl  *bool           `json:"fnl"`
	Bot  *bool           `json:"bot"`
	Eot  *bool           `json:"eot"`
	Sta  *uint8          `json:"sta"`
	Tim  *float64        `json:"tim"`
	Tid  *uint32         `json:"tid"`
	Gri  *uint32         `json:"gri"`
	Thi  *uint8          `json:"thi"`
	Sqi  *uint8          `json:"sqi"`
	Itr  *int32          `json:"itr"`
	Loc  []*float64      `json:"loc"`
	Lnc  []*float64      `json:"lnc"`
	Eco  *uint32         `json:"eco"`
	Ecc  *uint32         `json:"ecc"`
	Efo  *float64        `json:"efo"`
	Efc  *float64        `json:"efc"`
	Fbg  *float64        `json:"fbg"`
	Cfr  *float64        `json:"cfr"`
	Dcr  json.RawMessage `json:"dcr"`
	Fluo *uint8          `json:"fluo"`
}

// dcrChannel0 - dcr is a two channel array in newer exports, a plain
// number in older ones
func dcrChannel0(raw json.RawMessage, rowIdx int) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return 0, fmt.Errorf("row %v is missing dcr", rowIdx)
	}

	if trimmed[0] == '[' {
		channels := []*float64{}
		if err := json.Unmarshal(trimmed, &channels); err != nil {
			return 0, fmt.Errorf("row %v: bad dcr: %v", rowIdx, err)
		}
		if len(channels) < 1 {
			return 0, fmt.Errorf("row %v: empty dcr", rowIdx)
		}
		return fv(channels[0]), nil
	}

	v := 0.0
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, fmt.Errorf("row %v: bad dcr: %v", rowIdx, err)
	}
	return v, nil
}

func decodeRev2(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	records := []rev2Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("failed to parse records: %v", err))
	}

	r := dataset.MakeRawRev2(len(records))
	for rowIdx, rec := range records {
		if rec.Tim == nil || rec.Tid == nil || rec.Itr == nil {
			return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("row %v is missing tim, tid or itr", rowIdx))
		}
		if rec.Eco == nil || rec.Efo == nil || rec.Cfr == nil {
			return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("row %v is missing eco, efo or cfr", rowIdx))
		}

		dcr, err := dcrChannel0(rec.Dcr, rowIdx)
		if err != nil {
			return nil, errorwithkind.MakeDecodeFailureError(err)
		}

		x, y, z := vec3(rec.Loc)
		lx, ly, lz := vec3(rec.Lnc)

		r.Vld = append(r.Vld, bv(rec.Vld, true))
		r.Fnl = append(r.Fnl, bv(rec.Fnl, false))
		r.Bot = append(r.Bot, bv(rec.Bot, false))
		r.Eot = append(r.Eot, bv(rec.Eot, false))
		r.Sta = append(r.Sta, u8(rec.Sta))
		r.Tim = append(r.Tim, *rec.Tim)
		r.Tid = append(r.Tid, *rec.Tid)
		r.Gri = append(r.Gri, u32(rec.Gri))
		r.Thi = append(r.Thi, u8(rec.Thi))
		r.Sqi = append(r.Sqi, u8(rec.Sqi))
		r.Itr = append(r.Itr, *rec.Itr)
		r.X = append(r.X, x)
		r.Y = append(r.Y, y)
		r.Z = append(r.Z, z)
		r.Lncx = append(r.Lncx, lx)
		r.Lncy = append(r.Lncy, ly)
		r.Lncz = append(r.Lncz, lz)
		r.Eco = append(r.Eco, *rec.Eco)
		r.Ecc = append(r.Ecc, u32(rec.Ecc))
		r.Efo = append(r.Efo, *rec.Efo)
		r.Efc = append(r.Efc, fv(rec.Efc))
		r.Fbg = append(r.Fbg, fv(rec.Fbg))
		r.Cfr = append(r.Cfr, *rec.Cfr)
		r.Dcr = append(r.Dcr, dcr)
		r.Fluo = append(r.Fluo, u8(rec.Fluo))
	}

	if err := r.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}

	jobLog.Infof("Read %v revision 2 iteration rows", len(records))

	return &dataset.RawPayload{
		Revision:    dataset.Revision2,
		Raw2:        r,
		Description: fmt.Sprintf("json record list, %v iteration rows", len(records)),
	}, nil
}

func i32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func u32(p *uint32) uint32 {
	if p == nil {
		return 0
	}
	return *p
}

func u64(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func u8(p *uint8) uint8 {
	if p == nil {
		return 0
	}
	return *p
}
