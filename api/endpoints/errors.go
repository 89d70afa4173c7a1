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
	"encoding/json"
	"net/http"

	"github.com/minfluxio/core/core/errorwithkind"
)

// errorResponse - the JSON body error statuses carry
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusForKind - pipeline failure classification to HTTP status. Bad
// source files are 422 (the request was fine, the payload wasn't); bad
// requests are 400.
func statusForKind(kind errorwithkind.ErrorKind) int {
	switch kind {
	case errorwithkind.KindFileNotFound:
		return http.StatusNotFound
	case errorwithkind.KindFormatUnsupported, errorwithkind.KindInvalidIterationSpec:
		return http.StatusBadRequest
	case errorwithkind.KindCorruptHeader, errorwithkind.KindDecodeFailure,
		errorwithkind.KindEmptyInput, errorwithkind.KindNoCompleteIterationsFound:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (e *Endpoints) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	if kind, ok := errorwithkind.KindOf(err); ok {
		status = statusForKind(kind)
		resp.Kind = kind.String()
	}

	if status == http.StatusInternalServerError {
		e.Svcs.Log.Errorf("Request failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (e *Endpoints) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		e.Svcs.Log.Errorf("Response encode failed: %v", err)
	}
}
