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

import (
	"fmt"
	"strconv"
	"strings"
)

// FileVersion - the Major.Minor version string carried in container headers
type FileVersion struct {
	Major int
	Minor int
}

func FileVersionFromString(v string) (FileVersion, error) {
	result := FileVersion{}

	parts := strings.Split(v, ".")
	if len(parts) != 2 {
		return result, fmt.Errorf("Invalid file version: %v", v)
	}
	nums := []int{}
	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil {
			return result, fmt.Errorf("Failed to parse version %v, part %v is not a number", v, part)
		}
		nums = append(nums, num)
	}

	result.Major = nums[0]
	result.Minor = nums[1]

	return result, nil
}

func (v FileVersion) String() string {
	return fmt.Sprintf("%v.%v", v.Major, v.Minor)
}

// IsNewerThan - strict version ordering
func (v FileVersion) IsNewerThan(other FileVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor > other.Minor
}
