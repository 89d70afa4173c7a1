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

package importer

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/logger"
	"github.com/minfluxio/core/data-import/resolver"
)

// makeRev1JSON - a 2-iteration acquisition with numValid valid records and
// one invalid record, traces of two records each
func makeRev1JSON(numValid int) string {
	records := []string{}
	for rec := 0; rec < numValid; rec++ {
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

func TestImportRev1(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	if err := fs.WriteObject("", "run1.json", []byte(makeRev1JSON(6))); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}

	params := ImportParams{ZScalingFactor: 0.7}
	ds, err := ImportFromLocalFileSystem("run1.json", params, fs, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if ds.Format != dataset.FormatJSON || ds.Revision != dataset.Revision1 {
		t.Errorf("Unexpected format/revision: %v %v", ds.Format, ds.Revision)
	}
	if ds.NumRecords != 7 || ds.NumValid != 6 || ds.NumInvalid != 1 {
		t.Errorf("Unexpected counts: %v/%v/%v", ds.NumRecords, ds.NumValid, ds.NumInvalid)
	}
	if ds.Canonical.NumRows() != 6 {
		t.Fatalf("Expected 6 localizations, got %v", ds.Canonical.NumRows())
	}

	// CFR varies at iteration 0 only, localization reads the last iteration
	if ds.Indices.Cfr != 0 || ds.Indices.Loc != 1 {
		t.Errorf("Unexpected indices: %v", ds.Indices)
	}

	// z = 4e-9 m -> 4 nm, scaled by 0.7 exactly once
	if math.Abs(ds.Canonical.Z[0]-4.0*0.7) > 1e-9 {
		t.Errorf("Expected z=%v, got %v", 4.0*0.7, ds.Canonical.Z[0])
	}
}

func TestImportMissingFile(t *testing.T) {
	fs := fileaccess.MakeMemAccess()

	_, err := ImportFromLocalFileSystem("nope.npy", ImportParams{}, fs, &logger.NullLogger{})
	if !errors.Is(err, errorwithkind.ErrFileNotFound) {
		t.Errorf("Expected FileNotFound, got %v", err)
	}
}

func TestImportUnknownExtension(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("", "notes.txt", []byte("hello"))

	_, err := ImportFromLocalFileSystem("notes.txt", ImportParams{}, fs, &logger.NullLogger{})
	if !errors.Is(err, errorwithkind.ErrFormatUnsupported) {
		t.Errorf("Expected FormatUnsupported, got %v", err)
	}
}

func TestImportAllInvalid(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("", "run2.json", []byte(makeRev1JSON(0)))

	_, err := ImportFromLocalFileSystem("run2.json", ImportParams{}, fs, &logger.NullLogger{})
	if !errors.Is(err, errorwithkind.ErrEmptyInput) {
		t.Errorf("Expected EmptyInput, got %v", err)
	}
}

func TestImportKeepInvalid(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("", "run3.json", []byte(makeRev1JSON(4)))

	ds, err := ImportFromLocalFileSystem("run3.json", ImportParams{KeepInvalid: true}, fs, &logger.NullLogger{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if ds.Canonical.NumRows() != 1 {
		t.Errorf("Expected the 1 invalid record, got %v rows", ds.Canonical.NumRows())
	}
	if ds.NumValid != 4 || ds.NumInvalid != 1 {
		t.Errorf("Unexpected counts: %v/%v", ds.NumValid, ds.NumInvalid)
	}
}

func TestImportCfrOverride(t *testing.T) {
	fs := fileaccess.MakeMemAccess()
	fs.WriteObject("", "run4.json", []byte(makeRev1JSON(6)))

	// cfr can never be read after the localization iteration
	bad := 5
	_, err := ImportFromLocalFileSystem("run4.json", ImportParams{
		Overrides: &resolver.Overrides{Cfr: &bad},
	}, fs, &logger.NullLogger{})
	if !errors.Is(err, errorwithkind.ErrInvalidIterationSpec) {
		t.Errorf("Expected InvalidIterationSpec, got %v", err)
	}
}
