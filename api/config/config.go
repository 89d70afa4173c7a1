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

// API configuration as read from command line flags, and some constants
// defined here also
package config

import (
	"flag"
	"fmt"

	"github.com/minfluxio/core/core/logger"
)

// APIConfig - runtime settings for the localhost API server
type APIConfig struct {
	// BindAddress - host:port the HTTP server listens on
	BindAddress string

	// DataRoot - directory acquisitions are loaded from and exports are
	// written to. Load requests resolve paths relative to this.
	DataRoot string

	// LogLevel - can be changed at runtime, but if the API restarts it
	// goes back to the configured value
	LogLevel logger.LogLevel

	// AllowedOrigin - CORS origin for the viewer frontend
	AllowedOrigin string
}

// Default - what you get with no flags at all
func Default() APIConfig {
	return APIConfig{
		BindAddress:   "127.0.0.1:8085",
		DataRoot:      ".",
		LogLevel:      logger.LogInfo,
		AllowedOrigin: "*",
	}
}

// Init - parses config from the given command line arguments
func Init(args []string) (APIConfig, error) {
	cfg := Default()

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	bind := fs.String("bind", cfg.BindAddress, "Address to listen on")
	dataRoot := fs.String("dataRoot", cfg.DataRoot, "Directory acquisitions are read from")
	logLevel := fs.String("logLevel", logger.GetLogLevelName(cfg.LogLevel), "Log level: DEBUG, INFO or ERROR")
	origin := fs.String("allowedOrigin", cfg.AllowedOrigin, "CORS allowed origin")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	level, err := logger.ParseLogLevel(*logLevel)
	if err != nil {
		return cfg, fmt.Errorf("bad -logLevel: %v", err)
	}

	cfg.BindAddress = *bind
	cfg.DataRoot = *dataRoot
	cfg.LogLevel = level
	cfg.AllowedOrigin = *origin
	return cfg, nil
}
