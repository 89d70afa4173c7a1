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

// RawPayload - what a format decoder hands back: one raw table matching
// Revision, plus whatever state the container persisted beyond it. Only
// the native container carries Params, Filters and a Processed table.
type RawPayload struct {
	Revision SchemaRevision

	Raw1 *RawRev1
	Raw2 *RawRev2

	// Persisted acquisition parameters, nil when the format has none
	Params *AcquisitionParams

	// Persisted processing state, nil when the format has none
	Filters *PersistedFilters

	// Previously computed canonical table, nil when the format has none
	Processed *CanonicalTable

	Description string
}

// PersistedFilters - filter state a container stored alongside its tables.
// Nil ranges mean that filter was never applied.
type PersistedFilters struct {
	MinTraceLength   int
	EfoRange         *[2]float64
	CfrRange         *[2]float64
	TraceLengthRange *[2]float64
	TimeRange        *[2]float64
}
