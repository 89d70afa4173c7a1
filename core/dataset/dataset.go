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

import (
	"fmt"
	"strings"
)

// AcquisitionParams - knobs that shape projection and persistence. These
// ride in explicit structs, nothing reads them from globals.
type AcquisitionParams struct {
	// ZScalingFactor - applied to z exactly once, during projection
	ZScalingFactor float64

	// UnitScalingFactor - raw positions are meters, canonical are nm
	UnitScalingFactor float64

	// DwellTimeMs - divisor for the dwell column
	DwellTimeMs float64

	// Tracking - CFR measured once per trace and broadcast to its events
	Tracking bool

	// PoolDcr - replace per-event DCR with the ECO-weighted mean over the
	// event's relocalized iterations
	PoolDcr bool

	// NumFluorophores - how many fluorophore partitions the data carries
	NumFluorophores int

	// ScaleBarSizeNm - display setting carried through the container
	ScaleBarSizeNm float64
}

// DefaultAcquisitionParams - what a plain load assumes
func DefaultAcquisitionParams() AcquisitionParams {
	return AcquisitionParams{
		ZScalingFactor:    1.0,
		UnitScalingFactor: 1e9,
		DwellTimeMs:       1.0,
		Tracking:          false,
		PoolDcr:           false,
		NumFluorophores:   1,
		ScaleBarSizeNm:    500,
	}
}

// Dataset - everything one load produces: the raw table as decoded, the
// resolved iteration indices, and the canonical projection
type Dataset struct {
	ID         string
	SourcePath string
	Format     ContainerFormat
	Revision   SchemaRevision

	// Exactly one of these is set, matching Revision
	Raw1 *RawRev1
	Raw2 *RawRev2

	Indices   IterationIndices
	Canonical *CanonicalTable

	Params AcquisitionParams

	// Filters - filter state the container stored alongside its tables,
	// nil unless the source was a native container. Callers seed their
	// filtering session from this.
	Filters *PersistedFilters

	// Record counts from decode: before validity filtering, kept, dropped
	NumRecords int
	NumValid   int
	NumInvalid int

	// Description - acquisition metadata the container carried, if any
	Description string

	LoadedUnixSec int64
}

// Summary - the human readable load report the command line tools print
func (d *Dataset) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Source: %v (%v, %v)\n", d.SourcePath, d.Format, d.Revision)
	fmt.Fprintf(&sb, "Records: %v decoded, %v valid, %v invalid\n", d.NumRecords, d.NumValid, d.NumInvalid)
	fmt.Fprintf(&sb, "Iterations: %v\n", d.Indices)

	reloc := d.Indices.NumRelocalizations()
	if reloc > 0 {
		fmt.Fprintf(&sb, "Relocalizations per event: %v\n", reloc)
	}
	if d.Canonical != nil {
		fmt.Fprintf(&sb, "Localizations: %v\n", d.Canonical.NumRows())
	}
	if d.Params.Tracking {
		fmt.Fprintf(&sb, "Acquisition: tracking\n")
	}
	if len(d.Description) > 0 {
		fmt.Fprintf(&sb, "Description: %v\n", d.Description)
	}

	return sb.String()
}

// IsAggregated - single-iteration acquisitions project record for record
func (d *Dataset) IsAggregated() bool {
	return d.Indices.NumIterations == 1
}
