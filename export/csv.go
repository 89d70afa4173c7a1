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

package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/minfluxio/core/core/dataset"
)

// WriteCSV - one header row in canonical column order, then one row per
// localization. Floats use the shortest round-trippable representation;
// NaN is written literally.
func WriteCSV(table *dataset.CanonicalTable, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(dataset.CanonicalColumns); err != nil {
		return err
	}

	record := make([]string, len(dataset.CanonicalColumns))
	for row := 0; row < table.NumRows(); row++ {
		record[0] = strconv.FormatInt(table.Tid[row], 10)
		record[1] = formatFloat(table.Tim[row])
		record[2] = formatFloat(table.X[row])
		record[3] = formatFloat(table.Y[row])
		record[4] = formatFloat(table.Z[row])
		record[5] = formatFloat(table.Efo[row])
		record[6] = formatFloat(table.Cfr[row])
		record[7] = formatFloat(table.Eco[row])
		record[8] = formatFloat(table.Dcr[row])
		record[9] = formatFloat(table.Dwell[row])
		record[10] = formatFloat(table.Fbg[row])
		record[11] = strconv.FormatInt(int64(table.Itr[row]), 10)
		record[12] = strconv.FormatInt(int64(table.Fluo[row]), 10)

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
