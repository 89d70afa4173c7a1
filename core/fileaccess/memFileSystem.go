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

package fileaccess

import (
	"errors"
	"sort"
	"strings"
)

var errMemObjectNotFound = errors.New("object not found")

// MemAccess - In-memory implementation for tests. Pre-seed Files or write
// through the interface; keys are "root/path".
type MemAccess struct {
	Files map[string][]byte
}

func MakeMemAccess() *MemAccess {
	return &MemAccess{Files: map[string][]byte{}}
}

func (acc *MemAccess) key(root string, path string) string {
	if len(root) <= 0 {
		return path
	}
	return root + "/" + path
}

func (acc *MemAccess) ListObjects(root string, prefix string) ([]string, error) {
	result := []string{}
	lead := acc.key(root, prefix)

	for name := range acc.Files {
		if strings.HasPrefix(name, lead) {
			toSave := name
			if len(root) > 0 {
				toSave = name[len(root)+1:]
			}
			result = append(result, toSave)
		}
	}

	// Map order isn't stable, callers expect listings sorted
	sort.Strings(result)
	return result, nil
}

func (acc *MemAccess) ObjectExists(root string, path string) (bool, error) {
	_, ok := acc.Files[acc.key(root, path)]
	return ok, nil
}

func (acc *MemAccess) ReadObject(root string, path string) ([]byte, error) {
	data, ok := acc.Files[acc.key(root, path)]
	if !ok {
		return nil, errMemObjectNotFound
	}
	return data, nil
}

func (acc *MemAccess) WriteObject(root string, path string, data []byte) error {
	if acc.Files == nil {
		acc.Files = map[string][]byte{}
	}
	acc.Files[acc.key(root, path)] = data
	return nil
}

func (acc *MemAccess) DeleteObject(root string, path string) error {
	name := acc.key(root, path)
	if _, ok := acc.Files[name]; !ok {
		return errMemObjectNotFound
	}
	delete(acc.Files, name)
	return nil
}

func (acc *MemAccess) IsNotFoundError(err error) bool {
	return errors.Is(err, errMemObjectNotFound)
}
