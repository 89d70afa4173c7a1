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

// Package msr reads MINFLUX event records out of .msr acquisition files,
// which use the OBF chunked array container. The acquisition software
// saves the raw event stream as a byte stack whose name contains
// "minflux": a rank 2 array of [record size, record count] where each
// record is a packed little endian revision 1 event, a 32 byte event
// header followed by one 112 byte block per iteration.
package msr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
)

const minfluxStackName = "minflux"

const (
	recordHeaderSize = 32
	iterationSize    = 112
)

// SniffRevision - checks the container magic and file header only. The
// chunked store always carries revision 1 event records.
func SniffRevision(data []byte) (dataset.SchemaRevision, error) {
	if _, err := parseFileHeader(data); err != nil {
		return 0, err
	}
	return dataset.Revision1, nil
}

type Decoder struct{}

func (d Decoder) Decode(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	hdr, err := parseFileHeader(data)
	if err != nil {
		return nil, err
	}

	stacks, err := walkStacks(data, hdr)
	if err != nil {
		return nil, err
	}

	var mfx *stackInfo
	for _, s := range stacks {
		if strings.Contains(strings.ToLower(s.name), minfluxStackName) {
			mfx = s
			break
		}
	}
	if mfx == nil {
		return nil, errorwithkind.MakeKindError(
			errorwithkind.KindFormatUnsupported,
			fmt.Errorf("none of the %v stacks holds MINFLUX records", len(stacks)),
		)
	}

	raw, err := stackData(data, mfx)
	if err != nil {
		return nil, err
	}

	table, err := decodeRecords(mfx, raw)
	if err != nil {
		return nil, err
	}

	jobLog.Infof("Read %v revision 1 records, %v iterations per record, from stack %v", table.NumRows(), table.NumIterations, mfx.name)

	return &dataset.RawPayload{
		Revision:    dataset.Revision1,
		Raw1:        table,
		Description: hdr.description,
	}, nil
}

func u32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func u64At(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off:])
}

func f64At(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}

// decodeRecords - unpacks the re-assembled byte stream into an event
// table. The stack dimensions give the record size and count; the
// iteration count follows from the record size.
func decodeRecords(s *stackInfo, raw []byte) (*dataset.RawRev1, error) {
	if s.rank != 2 || len(s.numPixels) != 2 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("stack %v: rank %v cannot hold packed records", s.name, s.rank))
	}
	if s.dataType != obfTypeUint8 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("stack %v: data type %#x cannot hold packed records", s.name, s.dataType))
	}

	itemSize := s.numPixels[0]
	numRec := s.numPixels[1]
	if itemSize < recordHeaderSize+iterationSize || (itemSize-recordHeaderSize)%iterationSize != 0 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("stack %v: record size %v does not match the packed layout", s.name, itemSize))
	}
	if numRec == 0 {
		return nil, errorwithkind.MakeKindError(errorwithkind.KindEmptyInput, errors.New("MINFLUX stack holds no records"))
	}
	if numRec < 0 || len(raw)/itemSize != numRec || len(raw)%itemSize != 0 {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("stack %v: re-assembled %v bytes for %v records of %v bytes", s.name, len(raw), numRec, itemSize))
	}

	n := (itemSize - recordHeaderSize) / iterationSize
	perIter := numRec * n

	table := &dataset.RawRev1{
		NumIterations: n,
		Sqi:           make([]uint32, numRec),
		Gri:           make([]uint32, numRec),
		Tim:           make([]float64, numRec),
		Tid:           make([]int32, numRec),
		Vld:           make([]bool, numRec),
		Act:           make([]bool, numRec),
		Dos:           make([]int32, numRec),
		Sky:           make([]int32, numRec),
		Fluo:          make([]uint8, numRec),
		Itr:           make([]int32, perIter),
		Tic:           make([]uint64, perIter),
		Loc:           make([]float64, perIter*3),
		Lnc:           make([]float64, perIter*3),
		Eco:           make([]int32, perIter),
		Ecc:           make([]int32, perIter),
		Efo:           make([]float64, perIter),
		Efc:           make([]float64, perIter),
		Sta:           make([]int32, perIter),
		Cfr:           make([]float64, perIter),
		Dcr:           make([]float64, perIter),
		Ext:           make([]float64, perIter*3),
		Gvy:           make([]float64, perIter),
		Gvx:           make([]float64, perIter),
		Eoy:           make([]float64, perIter),
		Eox:           make([]float64, perIter),
		Dmz:           make([]float64, perIter),
		Lcy:           make([]float64, perIter),
		Lcx:           make([]float64, perIter),
		Lcz:           make([]float64, perIter),
		Fbg:           make([]float64, perIter),
	}

	for rec := 0; rec < numRec; rec++ {
		base := rec * itemSize
		table.Tim[rec] = f64At(raw, base)
		table.Tid[rec] = int32(u32At(raw, base+8))
		table.Sqi[rec] = u32At(raw, base+12)
		table.Gri[rec] = u32At(raw, base+16)
		table.Vld[rec] = raw[base+20] != 0
		table.Act[rec] = raw[base+21] != 0
		table.Fluo[rec] = raw[base+22]
		table.Dos[rec] = int32(u32At(raw, base+24))
		table.Sky[rec] = int32(u32At(raw, base+28))

		for it := 0; it < n; it++ {
			off := base + recordHeaderSize + it*iterationSize
			idx := rec*n + it

			table.Itr[idx] = int32(u32At(raw, off))
			table.Sta[idx] = int32(u32At(raw, off+4))
			table.Tic[idx] = u64At(raw, off+8)
			for k := 0; k < 3; k++ {
				table.Loc[idx*3+k] = f64At(raw, off+16+k*8)
				table.Lnc[idx*3+k] = f64At(raw, off+40+k*8)
			}
			table.Eco[idx] = int32(u32At(raw, off+64))
			table.Ecc[idx] = int32(u32At(raw, off+68))
			table.Efo[idx] = f64At(raw, off+72)
			table.Efc[idx] = f64At(raw, off+80)
			table.Cfr[idx] = f64At(raw, off+88)
			table.Dcr[idx] = f64At(raw, off+96)
			table.Fbg[idx] = f64At(raw, off+104)
		}
	}

	if err := table.Validate(); err != nil {
		return nil, errorwithkind.MakeDecodeFailureError(err)
	}
	return table, nil
}
