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

// Dataset load and read endpoints. The server holds one acquisition at a
// time; loading replaces the previous session. All handlers serialize on
// the session mutex, the pipeline underneath stays lock free.
package endpoints

import (
	"encoding/json"
	"net/http"
	"path"
	"sync"

	"github.com/minfluxio/core/api/services"
	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/data-import/importer"
	"github.com/minfluxio/core/data-import/resolver"
	"github.com/minfluxio/core/export"
	"github.com/minfluxio/core/processor"
)

// Endpoints - HTTP handlers plus the single loaded session they operate on
type Endpoints struct {
	Svcs *services.APIServices

	mu   sync.Mutex
	ds   *dataset.Dataset
	proc *processor.Processor
}

func MakeEndpoints(svcs *services.APIServices) *Endpoints {
	return &Endpoints{Svcs: svcs}
}

// LoadRequest - POST /dataset body
type LoadRequest struct {
	Path string `json:"path"`

	// Optional acquisition overrides, zero values accept the defaults
	// (or what a native container persisted)
	CfrIndex       *int    `json:"cfrIndex,omitempty"`
	LocIndex       *int    `json:"locIndex,omitempty"`
	MinTraceLength int     `json:"minTraceLength,omitempty"`
	ZScalingFactor float64 `json:"zScalingFactor,omitempty"`
	DwellTimeMs    float64 `json:"dwellTimeMs,omitempty"`
	Tracking       bool    `json:"tracking,omitempty"`
	PoolDcr        bool    `json:"poolDcr,omitempty"`
	KeepInvalid    bool    `json:"keepInvalid,omitempty"`
}

// DatasetSummary - what load and summary requests return
type DatasetSummary struct {
	ID         string `json:"id"`
	SourcePath string `json:"sourcePath"`
	Format     string `json:"format"`
	Revision   string `json:"revision"`

	NumRecords int `json:"numRecords"`
	NumValid   int `json:"numValid"`
	NumInvalid int `json:"numInvalid"`

	NumIterations    int  `json:"numIterations"`
	CfrIndex         int  `json:"cfrIndex"`
	LocIndex         int  `json:"locIndex"`
	LowConfidenceCfr bool `json:"lowConfidenceCfr"`

	NumLocalizations int    `json:"numLocalizations"`
	NumFiltered      int    `json:"numFiltered"`
	MinTraceLength   int    `json:"minTraceLength"`
	FilterState      string `json:"filterState"`

	LoadedUnixSec int64 `json:"loadedUnixSec"`
}

func (e *Endpoints) PostDataset(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	params := importer.ImportParams{
		ZScalingFactor: req.ZScalingFactor,
		DwellTimeMs:    req.DwellTimeMs,
		Tracking:       req.Tracking,
		PoolDcr:        req.PoolDcr,
		KeepInvalid:    req.KeepInvalid,
	}
	if req.CfrIndex != nil || req.LocIndex != nil {
		params.Overrides = &resolver.Overrides{Cfr: req.CfrIndex, Loc: req.LocIndex}
	}

	srcPath := path.Join(e.Svcs.Config.DataRoot, req.Path)
	ds, err := importer.ImportFromLocalFileSystem(srcPath, params, e.Svcs.FS, e.Svcs.Log)
	if err != nil {
		e.writeError(w, err)
		return
	}

	ds.ID = e.Svcs.IDGen.GenObjectID()
	ds.LoadedUnixSec = e.Svcs.TimeStamper.GetTimeNowSec()

	// Explicit request beats what a native container persisted
	minLen := req.MinTraceLength
	if minLen < 1 && ds.Filters != nil {
		minLen = ds.Filters.MinTraceLength
	}

	proc := processor.New(ds.Canonical.Clone(), processor.Config{
		MinTraceLength:  minLen,
		NumFluorophores: ds.Params.NumFluorophores,
	}, e.Svcs.Log)

	e.mu.Lock()
	e.ds = ds
	e.proc = proc
	e.mu.Unlock()

	e.Svcs.Log.Infof("Loaded %v as dataset %v", req.Path, ds.ID)
	e.writeJSON(w, e.summary())
}

func (e *Endpoints) GetSummary(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	e.writeJSON(w, e.summaryLocked())
}

// summary - locks, for handlers that don't hold the mutex yet
func (e *Endpoints) summary() DatasetSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summaryLocked()
}

func (e *Endpoints) summaryLocked() DatasetSummary {
	return DatasetSummary{
		ID:               e.ds.ID,
		SourcePath:       e.ds.SourcePath,
		Format:           e.ds.Format.String(),
		Revision:         e.ds.Revision.String(),
		NumRecords:       e.ds.NumRecords,
		NumValid:         e.ds.NumValid,
		NumInvalid:       e.ds.NumInvalid,
		NumIterations:    e.ds.Indices.NumIterations,
		CfrIndex:         e.ds.Indices.Cfr,
		LocIndex:         e.ds.Indices.Loc,
		LowConfidenceCfr: e.ds.Indices.LowConfidenceCfr,
		NumLocalizations: e.ds.Canonical.NumRows(),
		NumFiltered:      e.proc.NumValues(),
		MinTraceLength:   e.proc.MinTraceLength(),
		FilterState:      e.proc.State().String(),
		LoadedUnixSec:    e.ds.LoadedUnixSec,
	}
}

func (e *Endpoints) GetFilteredCSV(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\"filtered.csv\"")
	if err := export.WriteCSV(e.proc.FilteredTable(), w); err != nil {
		e.Svcs.Log.Errorf("CSV stream failed: %v", err)
	}
}

func (e *Endpoints) GetStatistics(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	e.writeJSON(w, e.proc.TraceStatistics())
}

func (e *Endpoints) GetWeighted(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	e.writeJSON(w, e.proc.WeightedLocalizations())
}
