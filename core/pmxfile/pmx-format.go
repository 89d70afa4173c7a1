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

// The native .pmx container: raw acquisition table, canonical table,
// processing parameters and explicit row index arrays in one file.
//
// Layout is a CBOR sequence of two documents behind a 3 byte
// self-described-CBOR tag that doubles as the file magic:
//
//	d9 d9 f7 | header doc | body doc
//
// The header document carries only file_version and reader_version, so
// sniffing a .pmx never touches the (potentially large) body document.
// Column data inside the body is little-endian packed and gzip compressed
// per column; row index arrays are run-length encoded.
package pmxfile

import "github.com/minfluxio/core/core/fileversion"

// CurrentFileVersion - what the writer emits
const CurrentFileVersion = "3.0"

// Magic - self-described CBOR tag, the first three bytes of every .pmx
var Magic = []byte{0xd9, 0xd9, 0xf7}

// Versions the reader accepts. 1.0 predates the processed section and most
// parameters, 2.0 predates revision 2 raw tables.
var supportedVersions = []string{"1.0", "2.0", "3.0"}

// Header - the first CBOR document
type Header struct {
	FileVersion   string `cbor:"file_version"`
	ReaderVersion int    `cbor:"reader_version"`
}

// Body - the second CBOR document
type Body struct {
	Parameters Parameters    `cbor:"parameters"`
	Raw        *TableSection `cbor:"raw,omitempty"`
	Processed  *TableSection `cbor:"processed,omitempty"`
}

// TableSection - one stored table: flat numeric column blobs plus the
// column name/type sidecar and the explicit row index array
type TableSection struct {
	ColumnNames []string     `cbor:"column_names"`
	ColumnTypes []string     `cbor:"column_types"`
	NumRows     int64        `cbor:"num_rows"`
	Columns     []ColumnBlob `cbor:"columns"`

	// Index - run-length encoded row indices (see core/indexcompression)
	Index []int64 `cbor:"index"`

	// NumIterations - revision 1 raw tables only: iteration plane width
	NumIterations int `cbor:"num_iterations,omitempty"`
}

// ColumnBlob - one column's packed bytes. PerRow is how many values of
// Dtype each table row owns (iteration planes have PerRow > 1).
type ColumnBlob struct {
	Name   string `cbor:"name"`
	Dtype  string `cbor:"dtype"`
	PerRow int    `cbor:"per_row"`
	Data   []byte `cbor:"data"`
}

// Parameters - acquisition and processing state carried with the tables.
// Flags are int8 to match how the table columns store booleans; threshold
// ranges are nil when that filter was never applied.
type Parameters struct {
	ZScalingFactor    float64     `cbor:"z_scaling_factor"`
	MinTraceLength    int         `cbor:"min_trace_length"`
	NumFluorophores   int         `cbor:"num_fluorophores"`
	DwellTimeMs       float64     `cbor:"dwell_time"`
	IsTracking        int8        `cbor:"is_tracking"`
	PoolDcr           int8        `cbor:"pool_dcr"`
	ScaleBarSizeNm    float64     `cbor:"scale_bar_size"`
	AppliedEfoRange   *[2]float64 `cbor:"applied_efo_thresholds,omitempty"`
	AppliedCfrRange   *[2]float64 `cbor:"applied_cfr_thresholds,omitempty"`
	AppliedTrLenRange *[2]float64 `cbor:"applied_tr_len_thresholds,omitempty"`
	AppliedTimeRange  *[2]float64 `cbor:"applied_time_thresholds,omitempty"`
}

func isSupportedVersion(v fileversion.FileVersion) bool {
	for _, s := range supportedVersions {
		sv, err := fileversion.FileVersionFromString(s)
		if err == nil && sv == v {
			return true
		}
	}
	return false
}
