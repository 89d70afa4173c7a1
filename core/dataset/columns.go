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

// The MINFLUX data model: raw acquisition tables for both schema
// revisions, resolved iteration indices, and the canonical localization
// table everything downstream (filtering, statistics, export) works on.
package dataset

import "fmt"

// SchemaRevision - the two acquisition record layouts. This is a closed
// set, all revision handling dispatches on it with a switch.
type SchemaRevision int

const (

	// Revision1 - event-per-record, fixed-length iteration array per event
	Revision1 SchemaRevision = 1

	// Revision2 - iteration-per-record, variable-length traces with
	// begin/end-of-trace markers
	Revision2 SchemaRevision = 2
)

func (r SchemaRevision) String() string {
	switch r {
	case Revision1:
		return "revision 1"
	case Revision2:
		return "revision 2"
	}
	return fmt.Sprintf("revision ?(%v)", int(r))
}

// ContainerFormat - the on-disk containers we can ingest. Closed set, the
// sniffer is the only thing that assigns these.
type ContainerFormat int

const (
	FormatUnknown ContainerFormat = iota

	// FormatNpy - array-based binary (structured array with embedded dtype header)
	FormatNpy

	// FormatMat - tabular numeric binary (MATLAB level 5 container)
	FormatMat

	// FormatJSON - textual record list
	FormatJSON

	// FormatPmx - our own hierarchical container (tables + parameters + index arrays)
	FormatPmx

	// FormatMsr - chunked array store written by the acquisition microscope
	FormatMsr
)

var formatName = map[ContainerFormat]string{
	FormatUnknown: "unknown",
	FormatNpy:     "npy",
	FormatMat:     "mat",
	FormatJSON:    "json",
	FormatPmx:     "pmx",
	FormatMsr:     "msr",
}

func (f ContainerFormat) String() string {
	if name, ok := formatName[f]; ok {
		return name
	}
	return fmt.Sprintf("format ?(%v)", int(f))
}

// CanonicalColumns - column order used everywhere a canonical table is
// enumerated: CSV export, container persistence, API responses
var CanonicalColumns = []string{
	"tid", "tim", "x", "y", "z", "efo", "cfr", "eco", "dcr", "dwell", "fbg", "itr", "fluo",
}

// CanonicalColumnTypes - the dtype string persisted per column, so
// containers round-trip types exactly
var CanonicalColumnTypes = map[string]string{
	"tid":   "<i8",
	"tim":   "<f8",
	"x":     "<f8",
	"y":     "<f8",
	"z":     "<f8",
	"efo":   "<f8",
	"cfr":   "<f8",
	"eco":   "<f8",
	"dcr":   "<f8",
	"dwell": "<f8",
	"fbg":   "<f8",
	"itr":   "<i4",
	"fluo":  "|u1",
}
