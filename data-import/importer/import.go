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

// Package importer drives one acquisition load end to end: sniff the
// container, decode it, filter to valid records, resolve the iteration
// indices and project the canonical table. Any stage failing aborts the
// load, nothing partial gets out.
package importer

import (
	"math"

	"github.com/pkg/errors"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/data-import/internal/decoders/jsonrec"
	"github.com/minfluxio/core/data-import/internal/decoders/mat"
	"github.com/minfluxio/core/data-import/internal/decoders/msr"
	"github.com/minfluxio/core/data-import/internal/decoders/npy"
	"github.com/minfluxio/core/data-import/internal/decoders/pmx"
	"github.com/minfluxio/core/data-import/projector"
	"github.com/minfluxio/core/data-import/resolver"
	"github.com/minfluxio/core/data-import/sniffer"
)

// Decoder - turns container bytes into a raw record table. One
// implementation per container format, all producing identical field sets
// for a given schema revision, so nothing past this boundary knows which
// container the data came from.
type Decoder interface {
	Decode(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error)
}

// ImportParams - caller knobs for one load. Zero values mean "use the
// default, or whatever the container itself persisted".
type ImportParams struct {
	// ZScalingFactor - scales z during projection, default 1
	ZScalingFactor float64

	// DwellTimeMs - dwell column divisor, default 1
	DwellTimeMs float64

	// UnitScaling - raw position unit to nm, default 1e9 (raw is meters)
	UnitScaling float64

	// Tracking - CFR was measured once per trace, broadcast it
	Tracking bool

	// PoolDcr - replace DCR with the ECO-weighted mean over relocalizations
	PoolDcr bool

	// KeepInvalid - load the invalid records instead of the valid ones,
	// for acquisition QC
	KeepInvalid bool

	// Overrides - explicit iteration index picks, nil accepts the
	// resolver's heuristics
	Overrides *resolver.Overrides
}

// ImportFromLocalFileSystem - loads the acquisition at path into a fully
// projected dataset
func ImportFromLocalFileSystem(path string, params ImportParams, fs fileaccess.FileAccess, jobLog logger.ILogger) (*dataset.Dataset, error) {
	spec, err := sniffer.Sniff(path, fs)
	if err != nil {
		return nil, err
	}
	jobLog.Infof("Importing %v as %v", path, spec)

	data, err := fs.ReadObject("", path)
	if err != nil {
		return nil, errorwithkind.MakeFileNotFoundError(path)
	}

	payload, err := decodeBytes(spec.Format, data, jobLog)
	if err != nil {
		if _, classified := errorwithkind.KindOf(err); classified {
			return nil, err
		}
		return nil, errorwithkind.MakeDecodeFailureError(errors.Wrapf(err, "decoding %v", path))
	}

	ds := &dataset.Dataset{
		SourcePath:  path,
		Format:      spec.Format,
		Revision:    payload.Revision,
		Raw1:        payload.Raw1,
		Raw2:        payload.Raw2,
		Params:      mergeParams(payload.Params, params),
		Filters:     payload.Filters,
		Description: payload.Description,
	}

	kept := applyValidityFilter(ds, params.KeepInvalid, jobLog)
	if kept == 0 {
		return nil, errorwithkind.MakeEmptyInputError(path)
	}

	ds.Indices, err = resolver.Resolve(ds, params.Overrides, jobLog)
	if err != nil {
		return nil, err
	}

	// The native container persists its canonical table; trust it so a
	// round-trip reproduces the stored values bit for bit. Everything else
	// projects fresh.
	if payload.Processed != nil && !params.KeepInvalid {
		ds.Canonical = payload.Processed
		jobLog.Infof("Using %v persisted localizations", ds.Canonical.NumRows())
	} else {
		ds.Canonical, err = projector.Project(ds, jobLog)
		if err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// decodeBytes - closed dispatch over the container formats. The sniffer
// already validated extension and magic.
func decodeBytes(format dataset.ContainerFormat, data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	var decoder Decoder

	switch format {
	case dataset.FormatNpy:
		decoder = npy.Decoder{}
	case dataset.FormatMat:
		decoder = mat.Decoder{}
	case dataset.FormatJSON:
		decoder = jsonrec.Decoder{}
	case dataset.FormatPmx:
		decoder = pmx.Decoder{}
	case dataset.FormatMsr:
		decoder = msr.Decoder{}
	default:
		return nil, errorwithkind.MakeFormatUnsupportedError("", format.String())
	}

	return decoder.Decode(data, jobLog)
}

// mergeParams - persisted container parameters seed the acquisition
// params, explicit caller values win over them
func mergeParams(persisted *dataset.AcquisitionParams, params ImportParams) dataset.AcquisitionParams {
	merged := dataset.DefaultAcquisitionParams()
	if persisted != nil {
		merged = *persisted
	}

	if params.ZScalingFactor != 0 {
		merged.ZScalingFactor = params.ZScalingFactor
	}
	if params.DwellTimeMs != 0 {
		merged.DwellTimeMs = params.DwellTimeMs
	}
	if params.UnitScaling != 0 {
		merged.UnitScalingFactor = params.UnitScaling
	}
	if params.Tracking {
		merged.Tracking = true
	}
	if params.PoolDcr {
		merged.PoolDcr = true
	}

	if merged.ZScalingFactor == 0 || math.IsNaN(merged.ZScalingFactor) {
		merged.ZScalingFactor = 1.0
	}
	if merged.DwellTimeMs == 0 {
		merged.DwellTimeMs = 1.0
	}
	if merged.UnitScalingFactor == 0 {
		merged.UnitScalingFactor = 1e9
	}
	if merged.NumFluorophores <= 0 {
		merged.NumFluorophores = 1
	}

	return merged
}

// applyValidityFilter - compacts the raw table to the valid records (or
// the invalid ones when keepInvalid is set), fills in the counts and
// returns how many records survived
func applyValidityFilter(ds *dataset.Dataset, keepInvalid bool, jobLog logger.ILogger) int {
	var vld []bool
	if ds.Raw1 != nil {
		vld = ds.Raw1.Vld
	} else if ds.Raw2 != nil {
		vld = ds.Raw2.Vld
	}

	ds.NumRecords = len(vld)

	keep := make([]bool, len(vld))
	kept := 0
	numValid := 0
	for i, v := range vld {
		if v {
			numValid++
		}
		keep[i] = v != keepInvalid
		if keep[i] {
			kept++
		}
	}

	if ds.Raw1 != nil {
		ds.Raw1.Filter(keep)
	} else if ds.Raw2 != nil {
		ds.Raw2.Filter(keep)
	}

	ds.NumValid = numValid
	ds.NumInvalid = ds.NumRecords - numValid
	if keepInvalid {
		jobLog.Infof("Keeping %v invalid of %v records for inspection", kept, ds.NumRecords)
	} else {
		jobLog.Infof("%v of %v records are valid", kept, ds.NumRecords)
	}

	return kept
}
