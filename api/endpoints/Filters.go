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

// Filter mutation endpoints. Every response is the updated summary so the
// frontend refreshes counts without a second request.
package endpoints

import (
	"encoding/json"
	"math"
	"net/http"
)

// ThresholdRequest - POST /filters/threshold body
type ThresholdRequest struct {
	Column    string  `json:"column"`
	Value     float64 `json:"value"`
	KeepAbove bool    `json:"keepAbove"`
}

// RangeRequest - POST /filters/range body. Omitted bounds are open.
type RangeRequest struct {
	Column string   `json:"column"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// Range2DRequest - POST /filters/range2d body
type Range2DRequest struct {
	ColumnX string  `json:"columnX"`
	ColumnY string  `json:"columnY"`
	XMin    float64 `json:"xMin"`
	XMax    float64 `json:"xMax"`
	YMin    float64 `json:"yMin"`
	YMax    float64 `json:"yMax"`
}

// IndicesRequest - POST /filters/indices body; positions of the current
// filtered view
type IndicesRequest struct {
	Indices []int64 `json:"indices"`
}

// FluorophoreRequest - POST /fluorophore body; 0 selects all
type FluorophoreRequest struct {
	ID uint8 `json:"id"`
}

// WeightedOptionsRequest - POST /options/weighted body
type WeightedOptionsRequest struct {
	WeightedByECO bool `json:"weightedByEco"`
}

// MinTraceLengthRequest - POST /filters/minTraceLength body
type MinTraceLengthRequest struct {
	MinTraceLength int `json:"minTraceLength"`
}

func (e *Endpoints) PostThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	if err := e.proc.ApplyThreshold(req.Column, req.Value, req.KeepAbove); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	min := math.NaN()
	max := math.NaN()
	if req.Min != nil {
		min = *req.Min
	}
	if req.Max != nil {
		max = *req.Max
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	if err := e.proc.ApplyRange(req.Column, min, max); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostRange2D(w http.ResponseWriter, r *http.Request) {
	var req Range2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	if err := e.proc.Apply2DRange(req.ColumnX, req.ColumnY, req.XMin, req.XMax, req.YMin, req.YMax); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostIndices(w http.ResponseWriter, r *http.Request) {
	var req IndicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	e.proc.ApplyIndexSelection(req.Indices)
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostReset(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	e.proc.Reset()
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostMinTraceLength(w http.ResponseWriter, r *http.Request) {
	var req MinTraceLengthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	e.proc.SetMinTraceLength(req.MinTraceLength)
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostFluorophore(w http.ResponseWriter, r *http.Request) {
	var req FluorophoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	if int(req.ID) > e.proc.NumFluorophores() {
		http.Error(w, "fluorophore id out of range", http.StatusBadRequest)
		return
	}
	e.proc.SetActiveFluorophore(req.ID)
	e.writeJSON(w, e.summaryLocked())
}

func (e *Endpoints) PostWeightedOptions(w http.ResponseWriter, r *http.Request) {
	var req WeightedOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}

	e.proc.SetWeightedByECO(req.WeightedByECO)
	e.writeJSON(w, e.summaryLocked())
}
