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

// This defines the service bundle the HTTP handlers use. Instead of a
// bunch of global variables we pass this object around, which comes in
// very useful when writing unit tests since everything in it is an
// interface we can swap for a mock.
package services

import (
	"github.com/minfluxio/core/api/config"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/idgen"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/timestamper"
)

// Set during compilation in CI builds
var ApiVersion string
var GitHash string

// APIServices - anything an HTTP handler would want to use
type APIServices struct {
	Config config.APIConfig

	Log logger.ILogger

	// FS - all dataset and export file traffic goes through this
	FS fileaccess.FileAccess

	IDGen idgen.IDGenerator

	TimeStamper timestamper.ITimeStamper
}

// MakeMockServices - in-memory bundle for endpoint tests
func MakeMockServices() *APIServices {
	return &APIServices{
		Config:      config.Default(),
		Log:         &logger.NullLogger{},
		FS:          fileaccess.MakeMemAccess(),
		IDGen:       &idgen.MockIDGenerator{IDs: []string{"id0001", "id0002", "id0003"}},
		TimeStamper: &timestamper.MockTimeNowStamper{QueuedTimeStamps: []int64{1700000000, 1700000100, 1700000200}},
	}
}
