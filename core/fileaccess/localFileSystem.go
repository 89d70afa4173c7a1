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
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Implementation of file access using local file system
type FSAccess struct {
}

func (acc *FSAccess) filePath(root string, filePath string) string {
	if len(root) <= 0 {
		return filePath
	}
	return filepath.Join(root, filePath)
}

func (acc *FSAccess) ListObjects(root string, prefix string) ([]string, error) {
	result := []string{}

	rootOnly := path.Join(root)

	err := filepath.Walk(rootOnly, func(pathFound string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			// Paths are reported relative to root, like a bucket listing
			toSave := pathFound
			if strings.HasPrefix(toSave, rootOnly) {
				toSave = toSave[len(rootOnly)+1:]
			}
			if strings.HasPrefix(toSave, prefix) {
				result = append(result, toSave)
			}
		}
		return nil
	})

	return result, err
}

func (acc *FSAccess) ObjectExists(root string, filePath string) (bool, error) {
	_, err := os.Stat(acc.filePath(root, filePath))
	if err != nil {
		if acc.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (acc *FSAccess) ReadObject(root string, filePath string) ([]byte, error) {
	return os.ReadFile(acc.filePath(root, filePath))
}

func (acc *FSAccess) WriteObject(root string, filePath string, data []byte) error {
	fullPath := acc.filePath(root, filePath)

	// Ensure any subdirs in between are created
	err := os.MkdirAll(filepath.Dir(fullPath), 0777)
	if err != nil {
		return err
	}

	// Write the file out, this will create if needed else truncate and write
	return os.WriteFile(fullPath, data, 0666)
}

func (acc *FSAccess) DeleteObject(root string, filePath string) error {
	return os.Remove(acc.filePath(root, filePath))
}

func (acc *FSAccess) IsNotFoundError(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
