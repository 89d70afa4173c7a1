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
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/idgen"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/core/timestamper"
	"github.com/minfluxio/core/data-import/importer"
	"github.com/minfluxio/core/data-import/resolver"
	"github.com/minfluxio/core/export"
	"github.com/minfluxio/core/processor"
)

// Exit codes per failure classification, so scripts can branch on them
func exitCodeFor(err error) int {
	kind, ok := errorwithkind.KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case errorwithkind.KindFileNotFound:
		return 2
	case errorwithkind.KindFormatUnsupported:
		return 3
	case errorwithkind.KindCorruptHeader, errorwithkind.KindDecodeFailure:
		return 4
	case errorwithkind.KindNoCompleteIterationsFound, errorwithkind.KindInvalidIterationSpec:
		return 5
	case errorwithkind.KindEmptyInput:
		return 6
	}
	return 1
}

func main() {
	fmt.Println("===============================")
	fmt.Println("=  MINFLUX dataset converter  =")
	fmt.Println("===============================")

	var argInput = flag.String("input", "", "Path to the acquisition file (.npy, .mat, .json, .pmx, .msr)")
	var argOutput = flag.String("output", "", "Path to write the converted output to")
	var argFormat = flag.String("format", "csv", "Output format: csv, npy or pmx")
	var argZScale = flag.Float64("z-scale", 0, "Z scaling factor override (0 accepts the default or what the container stored)")
	var argDwellMs = flag.Float64("dwell-ms", 0, "Dwell time in ms for the dwell column (0 accepts the default)")
	var argTracking = flag.Bool("tracking", false, "Tracking acquisition: broadcast per-trace CFR")
	var argPoolDcr = flag.Bool("pool-dcr", false, "Replace DCR with the ECO-weighted mean over relocalized iterations")
	var argKeepInvalid = flag.Bool("keep-invalid", false, "Load the invalid records instead of the valid ones")
	var argCfrIndex = flag.Int("cfr-index", -1, "Iteration index to read CFR from (-1 accepts the heuristic)")
	var argLocIndex = flag.Int("loc-index", -1, "Iteration index to read localizations from (-1 accepts the heuristic)")
	var argMinTrace = flag.Int("min-trace-length", 1, "Drop traces shorter than this")
	var argEfoMin = flag.Float64("efo-min", math.NaN(), "Lower EFO bound in Hz")
	var argEfoMax = flag.Float64("efo-max", math.NaN(), "Upper EFO bound in Hz")
	var argCfrMin = flag.Float64("cfr-min", math.NaN(), "Lower CFR bound")
	var argCfrMax = flag.Float64("cfr-max", math.NaN(), "Upper CFR bound")
	var argFluo = flag.Int("fluorophore", 0, "Fluorophore to export, 0 for all")
	var argLogLevel = flag.String("log-level", "INFO", "Log level: DEBUG, INFO or ERROR")

	flag.Parse()

	if len(*argInput) <= 0 {
		log.Fatalln("No input file specified")
	}
	if len(*argOutput) <= 0 {
		log.Fatalln("No output file specified")
	}

	level, err := logger.ParseLogLevel(*argLogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ilog := logger.MakeStdErrLogger(level)

	params := importer.ImportParams{
		ZScalingFactor: *argZScale,
		DwellTimeMs:    *argDwellMs,
		Tracking:       *argTracking,
		PoolDcr:        *argPoolDcr,
		KeepInvalid:    *argKeepInvalid,
	}
	if *argCfrIndex >= 0 || *argLocIndex >= 0 {
		overrides := &resolver.Overrides{}
		if *argCfrIndex >= 0 {
			overrides.Cfr = argCfrIndex
		}
		if *argLocIndex >= 0 {
			overrides.Loc = argLocIndex
		}
		params.Overrides = overrides
	}

	fs := &fileaccess.FSAccess{}

	ds, err := importer.ImportFromLocalFileSystem(*argInput, params, fs, ilog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	fmt.Println(ds.Summary())

	minTrace := *argMinTrace
	if minTrace <= 1 && ds.Filters != nil && ds.Filters.MinTraceLength > 1 {
		minTrace = ds.Filters.MinTraceLength
	}

	proc := processor.New(ds.Canonical.Clone(), processor.Config{
		MinTraceLength:  minTrace,
		NumFluorophores: ds.Params.NumFluorophores,
	}, ilog)

	if !math.IsNaN(*argEfoMin) || !math.IsNaN(*argEfoMax) {
		if err := proc.ApplyRange("efo", *argEfoMin, *argEfoMax); err != nil {
			log.Fatalf("EFO filter failed: %v", err)
		}
	}
	if !math.IsNaN(*argCfrMin) || !math.IsNaN(*argCfrMax) {
		if err := proc.ApplyRange("cfr", *argCfrMin, *argCfrMax); err != nil {
			log.Fatalf("CFR filter failed: %v", err)
		}
	}
	if *argFluo != 0 {
		proc.SetActiveFluorophore(uint8(*argFluo))
	}

	exp := &export.Exporter{
		FS:          fs,
		IDGen:       &idgen.IDGen{},
		TimeStamper: &timestamper.UnixTimeNowStamper{},
		Log:         ilog,
	}

	result, err := exp.ExportFiltered(ds, proc, *argFormat, "", *argOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	fmt.Printf("Wrote %v localizations (%v bytes) to %v\n", result.NumRows, result.NumBytes, result.Path)
}
