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

// Generic interface for reading/writing acquisition containers and export
// output. The import and export pipelines code against this so tests can
// run fully in memory, and so a remote store could slot in later without
// touching decoders or writers.
package fileaccess

import "strings"

// Paths are split into a root (a directory, or a bucket-like namespace for
// the in-memory implementation) and a path below it.

type FileAccess interface {
	ListObjects(root string, prefix string) ([]string, error)

	ObjectExists(root string, path string) (bool, error)

	ReadObject(root string, path string) ([]byte, error)
	WriteObject(root string, path string, data []byte) error

	DeleteObject(root string, path string) error

	IsNotFoundError(err error) bool
}

// MakeValidObjectName - Strips characters that don't survive all file systems
func MakeValidObjectName(name string) string {
	name = strings.ReplaceAll(name, "?", "")
	name = strings.ReplaceAll(name, "$", "")
	name = strings.ReplaceAll(name, "#", "")
	name = strings.ReplaceAll(name, "!", "")
	name = strings.ReplaceAll(name, "'", "")
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")

	return name
}
