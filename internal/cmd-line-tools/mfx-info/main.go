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

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/pmxfile"
	"github.com/minfluxio/core/data-import/sniffer"
)

// Prints what a file is without decoding its record data. Only pmx gets
// a deeper look because its parameter block sits right in the header
// documents.
func main() {
	fmt.Println("==========================")
	fmt.Println("=  MINFLUX file inspect  =")
	fmt.Println("==========================")

	var argInput = flag.String("input", "", "Path to the file to inspect")

	flag.Parse()

	if len(*argInput) <= 0 {
		log.Fatalln("No input file specified")
	}

	fs := &fileaccess.FSAccess{}

	spec, err := sniffer.Sniff(*argInput, fs)
	if err != nil {
		log.Fatalf("Sniff failed: %v", err)
	}

	fmt.Printf("File:     %v\n", *argInput)
	fmt.Printf("Format:   %v\n", spec.Format)
	fmt.Printf("Revision: %v\n", spec.Revision)

	if spec.Format != dataset.FormatPmx {
		return
	}

	data, err := fs.ReadObject("", *argInput)
	if err != nil {
		log.Fatalf("Read failed: %v", err)
	}

	header, err := pmxfile.ReadHeader(data)
	if err != nil {
		log.Fatalf("Header read failed: %v", err)
	}
	fmt.Printf("Version:  %v (reader %v)\n", header.FileVersion, header.ReaderVersion)

	content, err := pmxfile.Read(data)
	if err != nil {
		log.Fatalf("Body read failed: %v", err)
	}

	p := content.Params
	fmt.Println("Parameters:")
	fmt.Printf("  z scaling factor: %v\n", p.ZScalingFactor)
	fmt.Printf("  min trace length: %v\n", p.MinTraceLength)
	fmt.Printf("  fluorophores:     %v\n", p.NumFluorophores)
	fmt.Printf("  dwell time (ms):  %v\n", p.DwellTimeMs)
	fmt.Printf("  tracking:         %v\n", p.IsTracking != 0)
	fmt.Printf("  pooled dcr:       %v\n", p.PoolDcr != 0)
	printRange("efo range", p.AppliedEfoRange)
	printRange("cfr range", p.AppliedCfrRange)
	printRange("trace len range", p.AppliedTrLenRange)
	printRange("time range", p.AppliedTimeRange)

	if content.Raw1 != nil {
		fmt.Printf("Raw table:       %v records (revision 1)\n", content.Raw1.NumRows())
	}
	if content.Raw2 != nil {
		fmt.Printf("Raw table:       %v records (revision 2)\n", content.Raw2.NumRows())
	}
	if content.Canonical != nil {
		fmt.Printf("Processed table: %v localizations\n", content.Canonical.NumRows())
	}
}

func printRange(name string, r *[2]float64) {
	if r == nil {
		return
	}
	lo, hi := "-inf", "+inf"
	if !math.IsInf(r[0], -1) && !math.IsNaN(r[0]) {
		lo = fmt.Sprintf("%v", r[0])
	}
	if !math.IsInf(r[1], 1) && !math.IsNaN(r[1]) {
		hi = fmt.Sprintf("%v", r[1])
	}
	fmt.Printf("  %-17v [%v, %v)\n", name+":", lo, hi)
}
