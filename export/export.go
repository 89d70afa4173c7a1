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

// Package export writes a processor's current filtered view out as
// delimited text, a structured numpy array, or the native container.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/idgen"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/pmxfile"
	"github.com/minfluxio/core/core/timestamper"
	"github.com/minfluxio/core/processor"
)

// Exporter - writes filtered views through a FileAccess so callers can
// target local disk or memory the same way
type Exporter struct {
	FS          fileaccess.FileAccess
	IDGen       idgen.IDGenerator
	TimeStamper timestamper.ITimeStamper
	Log         logger.ILogger
}

// Result - what was written and when
type Result struct {
	ExportID    string `json:"exportId"`
	Path        string `json:"path"`
	Format      string `json:"format"`
	NumRows     int    `json:"numRows"`
	NumBytes    int    `json:"numBytes"`
	UnixTimeSec int64  `json:"unixTimeSec"`
}

// ExportFiltered - writes the processor's current filtered view to
// root/path in the given format: "csv", "npy" or "pmx". The npy format
// exports the surviving RAW rows with the acquisition's on-disk dtype;
// csv and pmx export canonical data.
func (e *Exporter) ExportFiltered(ds *dataset.Dataset, proc *processor.Processor, format string, root string, path string) (*Result, error) {
	var data []byte
	var numRows int
	var err error

	switch strings.ToLower(format) {
	case "csv":
		data, numRows, err = e.makeCSV(proc)
	case "npy":
		data, numRows, err = e.makeNpy(ds, proc)
	case "pmx":
		data, numRows, err = e.makePmx(ds, proc)
	default:
		return nil, errorwithkind.MakeKindError(
			errorwithkind.KindFormatUnsupported,
			fmt.Errorf("unknown export format: %v", format),
		)
	}
	if err != nil {
		return nil, err
	}

	if err := e.FS.WriteObject(root, path, data); err != nil {
		return nil, err
	}

	result := &Result{
		ExportID:    e.IDGen.GenObjectID(),
		Path:        path,
		Format:      strings.ToLower(format),
		NumRows:     numRows,
		NumBytes:    len(data),
		UnixTimeSec: e.TimeStamper.GetTimeNowSec(),
	}

	e.Log.Infof("Exported %v rows (%v bytes) to %v as %v", result.NumRows, result.NumBytes, path, result.Format)
	return result, nil
}

func (e *Exporter) makeCSV(proc *processor.Processor) ([]byte, int, error) {
	table := proc.FilteredTable()

	var buf bytes.Buffer
	if err := WriteCSV(table, &buf); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), table.NumRows(), nil
}

// makeNpy - exports the raw records behind the surviving canonical rows.
// For the fixed-cycle revision canonical rows map 1:1 onto records; for
// the variable-length revision each canonical row keeps its whole event
// block, identified through the trace id.
func (e *Exporter) makeNpy(ds *dataset.Dataset, proc *processor.Processor) ([]byte, int, error) {
	var buf bytes.Buffer

	switch {
	case ds.Raw1 != nil:
		// Import drops invalid records, so canonical rows map 1:1 onto
		// the raw records that remain
		keep := make([]bool, ds.Raw1.NumRows())
		for _, r := range proc.FilteredTableRows() {
			if r >= 0 && r < int64(len(keep)) {
				keep[r] = true
			}
		}

		filtered := cloneRev1(ds.Raw1)
		filtered.Filter(keep)
		if err := WriteNpyRev1(filtered, &buf); err != nil {
			return nil, 0, err
		}
		return buf.Bytes(), filtered.NumRows(), nil

	case ds.Raw2 != nil:
		table := proc.FilteredTable()
		keepTids := map[uint32]bool{}
		for _, tid := range table.Tid {
			keepTids[uint32(tid)] = true
		}

		keep := make([]bool, ds.Raw2.NumRows())
		for row := range keep {
			keep[row] = keepTids[ds.Raw2.Tid[row]]
		}

		filtered := cloneRev2(ds.Raw2)
		filtered.Filter(keep)
		if err := WriteNpyRev2(filtered, &buf); err != nil {
			return nil, 0, err
		}
		return buf.Bytes(), filtered.NumRows(), nil
	}

	return nil, 0, errorwithkind.MakeKindError(
		errorwithkind.KindEmptyInput,
		fmt.Errorf("dataset carries no raw table"),
	)
}

// makePmx - persists the full raw table, the full canonical table's
// surviving rows, and the processing parameters needed to resume the
// session
func (e *Exporter) makePmx(ds *dataset.Dataset, proc *processor.Processor) ([]byte, int, error) {
	table := proc.FilteredTable()
	rows := proc.FilteredTableRows()

	applied := proc.AppliedRanges()
	params := pmxfile.Parameters{
		ZScalingFactor:    ds.Params.ZScalingFactor,
		MinTraceLength:    proc.MinTraceLength(),
		NumFluorophores:   proc.NumFluorophores(),
		DwellTimeMs:       ds.Params.DwellTimeMs,
		ScaleBarSizeNm:    ds.Params.ScaleBarSizeNm,
		AppliedEfoRange:   applied.Efo,
		AppliedCfrRange:   applied.Cfr,
		AppliedTrLenRange: applied.TraceLength,
		AppliedTimeRange:  applied.Time,
	}
	if ds.Params.Tracking {
		params.IsTracking = 1
	}
	if ds.Params.PoolDcr {
		params.PoolDcr = 1
	}

	content := &pmxfile.Content{
		Params:        params,
		Raw1:          ds.Raw1,
		Raw2:          ds.Raw2,
		Canonical:     table,
		CanonicalRows: rows,
	}

	data, err := pmxfile.Write(content)
	if err != nil {
		return nil, 0, err
	}
	return data, table.NumRows(), nil
}

func cloneRev1(r *dataset.RawRev1) *dataset.RawRev1 {
	out := *r
	out.Sqi = append([]uint32{}, r.Sqi...)
	out.Gri = append([]uint32{}, r.Gri...)
	out.Tim = append([]float64{}, r.Tim...)
	out.Tid = append([]int32{}, r.Tid...)
	out.Vld = append([]bool{}, r.Vld...)
	out.Act = append([]bool{}, r.Act...)
	out.Dos = append([]int32{}, r.Dos...)
	out.Sky = append([]int32{}, r.Sky...)
	out.Fluo = append([]uint8{}, r.Fluo...)
	out.Itr = append([]int32{}, r.Itr...)
	out.Tic = append([]uint64{}, r.Tic...)
	out.Loc = append([]float64{}, r.Loc...)
	out.Lnc = append([]float64{}, r.Lnc...)
	out.Eco = append([]int32{}, r.Eco...)
	out.Ecc = append([]int32{}, r.Ecc...)
	out.Efo = append([]float64{}, r.Efo...)
	out.Efc = append([]float64{}, r.Efc...)
	out.Sta = append([]int32{}, r.Sta...)
	out.Cfr = append([]float64{}, r.Cfr...)
	out.Dcr = append([]float64{}, r.Dcr...)
	out.Ext = append([]float64{}, r.Ext...)
	out.Gvy = append([]float64{}, r.Gvy...)
	out.Gvx = append([]float64{}, r.Gvx...)
	out.Eoy = append([]float64{}, r.Eoy...)
	out.Eox = append([]float64{}, r.Eox...)
	out.Dmz = append([]float64{}, r.Dmz...)
	out.Lcy = append([]float64{}, r.Lcy...)
	out.Lcx = append([]float64{}, r.Lcx...)
	out.Lcz = append([]float64{}, r.Lcz...)
	out.Fbg = append([]float64{}, r.Fbg...)
	return &out
}

func cloneRev2(r *dataset.RawRev2) *dataset.RawRev2 {
	out := *r
	out.Vld = append([]bool{}, r.Vld...)
	out.Fnl = append([]bool{}, r.Fnl...)
	out.Bot = append([]bool{}, r.Bot...)
	out.Eot = append([]bool{}, r.Eot...)
	out.Sta = append([]uint8{}, r.Sta...)
	out.Tim = append([]float64{}, r.Tim...)
	out.Tid = append([]uint32{}, r.Tid...)
	out.Gri = append([]uint32{}, r.Gri...)
	out.Thi = append([]uint8{}, r.Thi...)
	out.Sqi = append([]uint8{}, r.Sqi...)
	out.Itr = append([]int32{}, r.Itr...)
	out.X = append([]float64{}, r.X...)
	out.Y = append([]float64{}, r.Y...)
	out.Z = append([]float64{}, r.Z...)
	out.Lncx = append([]float64{}, r.Lncx...)
	out.Lncy = append([]float64{}, r.Lncy...)
	out.Lncz = append([]float64{}, r.Lncz...)
	out.Eco = append([]uint32{}, r.Eco...)
	out.Ecc = append([]uint32{}, r.Ecc...)
	out.Efo = append([]float64{}, r.Efo...)
	out.Efc = append([]float64{}, r.Efc...)
	out.Fbg = append([]float64{}, r.Fbg...)
	out.Cfr = append([]float64{}, r.Cfr...)
	out.Dcr = append([]float64{}, r.Dcr...)
	out.Fluo = append([]uint8{}, r.Fluo...)
	return &out
}
