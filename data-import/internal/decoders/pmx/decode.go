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

// Package pmx adapts the .pmx container codec to the decoder interface.
// The heavy lifting lives in core/pmxfile; this package maps the stored
// parameter block onto acquisition parameters and persisted filter
// settings, and carries the processed table through when the file has
// one.
package pmx

import (
	"errors"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/pmxfile"
)

// SniffRevision - decodes the header document only
func SniffRevision(data []byte) (dataset.SchemaRevision, error) {
	hdr, err := pmxfile.ReadHeader(data)
	if err != nil {
		return 0, err
	}
	if hdr.ReaderVersion == 2 {
		return dataset.Revision2, nil
	}
	return dataset.Revision1, nil
}

type Decoder struct{}

func (d Decoder) Decode(data []byte, jobLog logger.ILogger) (*dataset.RawPayload, error) {
	content, err := pmxfile.Read(data)
	if err != nil {
		return nil, err
	}

	payload := &dataset.RawPayload{
		Raw1:      content.Raw1,
		Raw2:      content.Raw2,
		Processed: content.Canonical,
		Params:    acquisitionParams(content.Params),
		Filters:   persistedFilters(content.Params),
	}

	switch {
	case content.Raw1 != nil:
		payload.Revision = dataset.Revision1
		jobLog.Infof("Read %v revision 1 records, %v iterations per record", content.Raw1.NumRows(), content.Raw1.NumIterations)
	case content.Raw2 != nil:
		payload.Revision = dataset.Revision2
		jobLog.Infof("Read %v revision 2 rows", content.Raw2.NumRows())
	default:
		return nil, errorwithkind.MakeDecodeFailureError(errors.New("file carries no raw table"))
	}

	if content.Canonical != nil {
		jobLog.Infof("Read %v processed rows", content.Canonical.NumRows())
	}
	return payload, nil
}

func acquisitionParams(p pmxfile.Parameters) *dataset.AcquisitionParams {
	params := dataset.DefaultAcquisitionParams()
	if p.ZScalingFactor != 0 {
		params.ZScalingFactor = p.ZScalingFactor
	}
	if p.DwellTimeMs != 0 {
		params.DwellTimeMs = p.DwellTimeMs
	}
	if p.NumFluorophores != 0 {
		params.NumFluorophores = p.NumFluorophores
	}
	if p.ScaleBarSizeNm != 0 {
		params.ScaleBarSizeNm = p.ScaleBarSizeNm
	}
	params.Tracking = p.IsTracking != 0
	params.PoolDcr = p.PoolDcr != 0
	return &params
}

func persistedFilters(p pmxfile.Parameters) *dataset.PersistedFilters {
	return &dataset.PersistedFilters{
		MinTraceLength:   p.MinTraceLength,
		EfoRange:         p.AppliedEfoRange,
		CfrRange:         p.AppliedCfrRange,
		TraceLengthRange: p.AppliedTrLenRange,
		TimeRange:        p.AppliedTimeRange,
	}
}
