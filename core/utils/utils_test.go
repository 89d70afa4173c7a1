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

package utils

import (
	"fmt"
	"sort"
)

func Example_sliceHelpers() {
	fmt.Println(ItemInSlice("efo", []string{"efo", "cfr", "dcr"}))
	fmt.Println(ItemInSlice("tid", []string{"efo", "cfr", "dcr"}))

	set := map[int32]bool{}
	AddItemsToSet([]int32{4, 8, 4}, set)
	keys := GetMapKeys(set)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	fmt.Println(keys)

	fmt.Println(ConvertSlice[float64]([]int32{1, 2, 3}))
	fmt.Println(SumSlice[int64]([]uint32{10, 20, 12}))
	fmt.Println(CountTrue([]bool{true, false, true, true}))

	// Output:
	// true
	// false
	// [4 8]
	// [1 2 3]
	// 42
	// 3
}
