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

package apiRouter

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minfluxio/core/api/endpoints"
	"github.com/minfluxio/core/api/services"
)

// MakeRouter - registers all routes and middleware and wraps the result
// in the CORS handler, ready for ListenAndServe
func MakeRouter(svcs *services.APIServices, ep *endpoints.Endpoints) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/dataset", ep.PostDataset).Methods("POST")
	router.HandleFunc("/dataset/summary", ep.GetSummary).Methods("GET")
	router.HandleFunc("/dataset/filtered.csv", ep.GetFilteredCSV).Methods("GET")
	router.HandleFunc("/dataset/statistics", ep.GetStatistics).Methods("GET")
	router.HandleFunc("/dataset/weighted", ep.GetWeighted).Methods("GET")

	router.HandleFunc("/filters/threshold", ep.PostThreshold).Methods("POST")
	router.HandleFunc("/filters/range", ep.PostRange).Methods("POST")
	router.HandleFunc("/filters/range2d", ep.PostRange2D).Methods("POST")
	router.HandleFunc("/filters/indices", ep.PostIndices).Methods("POST")
	router.HandleFunc("/filters/minTraceLength", ep.PostMinTraceLength).Methods("POST")
	router.HandleFunc("/filters/reset", ep.PostReset).Methods("POST")

	router.HandleFunc("/fluorophore", ep.PostFluorophore).Methods("POST")
	router.HandleFunc("/options/weighted", ep.PostWeightedOptions).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	logware := endpoints.LoggerMiddleware{APIServices: svcs}
	router.Use(logware.Middleware, endpoints.PrometheusMiddleware)

	return handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"}),
		handlers.AllowedOrigins([]string{svcs.Config.AllowedOrigin}))(router)
}
