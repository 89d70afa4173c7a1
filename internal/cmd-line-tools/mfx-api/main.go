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

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/minfluxio/core/api/config"
	"github.com/minfluxio/core/api/endpoints"
	apiRouter "github.com/minfluxio/core/api/router"
	"github.com/minfluxio/core/api/services"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/idgen"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/timestamper"
)

func main() {
	fmt.Println("========================")
	fmt.Println("=  MINFLUX API server  =")
	fmt.Println("========================")
	fmt.Printf("Version %v (%v)\n", services.ApiVersion, services.GitHash)

	cfg, err := config.Init(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ilog := &logger.StdOutLogger{}
	ilog.SetLogLevel(cfg.LogLevel)

	svcs := &services.APIServices{
		Config:      cfg,
		Log:         ilog,
		FS:          &fileaccess.FSAccess{},
		IDGen:       &idgen.IDGen{},
		TimeStamper: &timestamper.UnixTimeNowStamper{},
	}

	ep := endpoints.MakeEndpoints(svcs)
	handler := apiRouter.MakeRouter(svcs, ep)

	ilog.Infof("Serving on %v, data root %v", cfg.BindAddress, cfg.DataRoot)
	log.Fatal(http.ListenAndServe(cfg.BindAddress, handler))
}
