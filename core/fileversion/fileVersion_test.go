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

package fileversion

import "fmt"

func Example_fileVersionFromString() {
	fmt.Println(FileVersionFromString("1.0"))
	fmt.Println(FileVersionFromString("3.0"))
	fmt.Println(FileVersionFromString("3"))
	fmt.Println(FileVersionFromString("3.0.1"))
	fmt.Println(FileVersionFromString("three.zero"))

	v3, _ := FileVersionFromString("3.0")
	v2, _ := FileVersionFromString("2.0")
	fmt.Println(v3.IsNewerThan(v2), v2.IsNewerThan(v3), v3.IsNewerThan(v3))

	// Output:
	// 1.0 <nil>
	// 3.0 <nil>
	// 0.0 Invalid file version: 3
	// 0.0 Invalid file version: 3.0.1
	// 0.0 Failed to parse version three.zero, part three is not a number
	// true false false
}
