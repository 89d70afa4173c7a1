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

package endpoints

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minfluxio/core/api/services"
)

// makeAcquisitionJSON - a 2-iteration acquisition: three traces of two
// valid records each plus one invalid record
func makeAcquisitionJSON() string {
	records := []string{}
	for rec := 0; rec < 6; rec++ {
		tid := 10 + rec/2
		records = append(records, fmt.Sprintf(`{
			"itr": [
				{"itr": 0, "loc": [1e-9, 2e-9, 3e-9], "eco": 10, "efo": 10000.0, "cfr": %v, "dcr": 0.3, "fbg": 1.0},
				{"itr": 1, "loc": [2e-9, 3e-9, 4e-9], "eco": 20, "efo": 20000.0, "cfr": 0.0, "dcr": 0.4, "fbg": 2.0}
			],
			"tim": %v, "tid": %v, "vld": true, "fluo": 0
		}`, 0.5+0.01*float64(rec), 0.001*float64(rec), tid))
	}
	records = append(records, `{
		"itr": [
			{"itr": 0, "loc": [1e-9, 2e-9, 3e-9], "eco": 10, "efo": 10000.0, "cfr": 0.5, "dcr": 0.3, "fbg": 1.0},
			{"itr": 1, "loc": [2e-9, 3e-9, 4e-9], "eco": 20, "efo": 20000.0, "cfr": 0.0, "dcr": 0.4, "fbg": 2.0}
		],
		"tim": 9.0, "tid": 999, "vld": false, "fluo": 0
	}`)
	return "[" + strings.Join(records, ",") + "]"
}

func makeTestEndpoints(t *testing.T) *Endpoints {
	svcs := services.MakeMockServices()
	svcs.Config.DataRoot = ""
	if err := svcs.FS.WriteObject("", "run1.json", []byte(makeAcquisitionJSON())); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	return MakeEndpoints(svcs)
}

func post(e *Endpoints, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", bytes.NewReader([]byte(body)))
	resp := httptest.NewRecorder()
	handler(resp, req)
	return resp
}

func get(e *Endpoints, handler http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	resp := httptest.NewRecorder()
	handler(resp, req)
	return resp
}

func loadDataset(t *testing.T, e *Endpoints) DatasetSummary {
	resp := post(e, e.PostDataset, `{"path": "run1.json"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("Load failed with %v: %v", resp.Code, resp.Body.String())
	}

	var summary DatasetSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Bad summary JSON: %v", err)
	}
	return summary
}

func TestPostDataset(t *testing.T) {
	e := makeTestEndpoints(t)
	summary := loadDataset(t, e)

	if summary.ID != "id0001" {
		t.Errorf("Expected generated id, got %v", summary.ID)
	}
	if summary.NumRecords != 7 || summary.NumValid != 6 || summary.NumInvalid != 1 {
		t.Errorf("Unexpected counts: %v/%v/%v", summary.NumRecords, summary.NumValid, summary.NumInvalid)
	}
	if summary.NumLocalizations != 6 || summary.NumFiltered != 6 {
		t.Errorf("Unexpected localization counts: %v/%v", summary.NumLocalizations, summary.NumFiltered)
	}
	if summary.FilterState != "global filtered" {
		t.Errorf("Unexpected filter state: %v", summary.FilterState)
	}
	if summary.LoadedUnixSec != 1700000000 {
		t.Errorf("Expected stamped load time, got %v", summary.LoadedUnixSec)
	}

	// Summary endpoint returns the same thing
	resp := get(e, e.GetSummary)
	if resp.Code != http.StatusOK {
		t.Errorf("Summary failed with %v", resp.Code)
	}
}

func TestSummaryWithoutDataset(t *testing.T) {
	e := makeTestEndpoints(t)
	resp := get(e, e.GetSummary)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with no dataset loaded, got %v", resp.Code)
	}
}

func TestLoadErrors(t *testing.T) {
	e := makeTestEndpoints(t)

	resp := post(e, e.PostDataset, `{"path": "missing.json"}`)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing file, got %v", resp.Code)
	}

	e.Svcs.FS.WriteObject("", "odd.xyz", []byte("?"))
	resp = post(e, e.PostDataset, `{"path": "odd.xyz"}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unsupported extension, got %v", resp.Code)
	}

	e.Svcs.FS.WriteObject("", "broken.json", []byte("this is not json"))
	resp = post(e, e.PostDataset, `{"path": "broken.json"}`)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for a broken payload, got %v", resp.Code)
	}

	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil || body.Kind == "" {
		t.Errorf("Expected a classified error body, got %v", resp.Body.String())
	}

	resp = post(e, e.PostDataset, `{}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing path, got %v", resp.Code)
	}
}

func TestFilterFlow(t *testing.T) {
	e := makeTestEndpoints(t)
	loadDataset(t, e)

	// Open-ended range keeps everything but marks the session ad hoc
	resp := post(e, e.PostRange, `{"column": "efo", "min": 0}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("Range failed with %v: %v", resp.Code, resp.Body.String())
	}
	var summary DatasetSummary
	json.Unmarshal(resp.Body.Bytes(), &summary)
	if summary.NumFiltered != 6 || summary.FilterState != "ad hoc filtered" {
		t.Errorf("Unexpected state after range: %v rows, %v", summary.NumFiltered, summary.FilterState)
	}

	// Unknown column is the caller's mistake
	resp = post(e, e.PostRange, `{"column": "bogus", "min": 0}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown column, got %v", resp.Code)
	}

	// All traces are 2 long
	resp = post(e, e.PostMinTraceLength, `{"minTraceLength": 3}`)
	json.Unmarshal(resp.Body.Bytes(), &summary)
	if summary.NumFiltered != 0 {
		t.Errorf("Expected all traces dropped at min length 3, got %v rows", summary.NumFiltered)
	}

	resp = post(e, e.PostReset, ``)
	if resp.Code != http.StatusOK {
		t.Errorf("Reset failed with %v", resp.Code)
	}
	json.Unmarshal(resp.Body.Bytes(), &summary)
	if summary.NumFiltered != 0 {
		t.Errorf("Expected reset to keep the configured min length, got %v rows", summary.NumFiltered)
	}

	resp = post(e, e.PostMinTraceLength, `{"minTraceLength": 1}`)
	json.Unmarshal(resp.Body.Bytes(), &summary)
	if summary.NumFiltered != 6 || summary.FilterState != "global filtered" {
		t.Errorf("Unexpected state after reset: %v rows, %v", summary.NumFiltered, summary.FilterState)
	}
}

func TestFluorophoreOutOfRange(t *testing.T) {
	e := makeTestEndpoints(t)
	loadDataset(t, e)

	resp := post(e, e.PostFluorophore, `{"id": 5}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an out of range fluorophore, got %v", resp.Code)
	}
}

func TestFilteredCSV(t *testing.T) {
	e := makeTestEndpoints(t)
	loadDataset(t, e)

	resp := get(e, e.GetFilteredCSV)
	if resp.Code != http.StatusOK {
		t.Fatalf("CSV failed with %v", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %v", ct)
	}

	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 7 {
		t.Errorf("Expected header + 6 rows, got %v lines", len(lines))
	}
}

func TestStatisticsAndWeighted(t *testing.T) {
	e := makeTestEndpoints(t)
	loadDataset(t, e)

	resp := get(e, e.GetStatistics)
	if resp.Code != http.StatusOK {
		t.Fatalf("Statistics failed with %v", resp.Code)
	}
	var stats []map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Bad statistics JSON: %v", err)
	}
	if len(stats) != 3 {
		t.Errorf("Expected 3 traces, got %v", len(stats))
	}

	if resp := post(e, e.PostWeightedOptions, `{"weightedByEco": true}`); resp.Code != http.StatusOK {
		t.Errorf("Weighted options failed with %v", resp.Code)
	}
	resp = get(e, e.GetWeighted)
	if resp.Code != http.StatusOK {
		t.Fatalf("Weighted failed with %v", resp.Code)
	}
	var locs []map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &locs); err != nil {
		t.Fatalf("Bad weighted JSON: %v", err)
	}
	if len(locs) != 3 {
		t.Errorf("Expected 3 weighted localizations, got %v", len(locs))
	}
}
