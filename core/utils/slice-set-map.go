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

// Exposes various utility functions for slices, sets and maps that the
// decoders and the processor lean on when shuffling column data around
package utils

import "golang.org/x/exp/constraints"

// Simple Go helper functions
// stuff that you'd expect to be part of the std lib but aren't

func ItemInSlice[T comparable](a T, list []T) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

func AddItemsToSet[K comparable](keys []K, theSet map[K]bool) {
	for _, key := range keys {
		theSet[key] = true
	}
}

func GetMapKeys[K comparable, V any](theMap map[K]V) []K {
	result := []K{}

	for key := range theMap {
		result = append(result, key)
	}

	return result
}

// Number - any numeric column element type we shovel between containers
type Number interface {
	constraints.Integer | constraints.Float
}

// ConvertSlice - column dtype conversion, eg raw int32 counts to float64
func ConvertSlice[T Number, F Number](from []F) []T {
	res := make([]T, len(from))
	for i, e := range from {
		res[i] = T(e)
	}
	return res
}

// SumSlice - plain accumulation, result in the (wider) destination type
func SumSlice[T Number, F Number](vals []F) T {
	var total T
	for _, v := range vals {
		total += T(v)
	}
	return total
}

// CountTrue - how many entries of a mask are set
func CountTrue(mask []bool) int {
	count := 0
	for _, m := range mask {
		if m {
			count++
		}
	}
	return count
}
