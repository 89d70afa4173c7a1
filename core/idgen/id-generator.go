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

package idgen

import "github.com/google/uuid"

// IDGenerator - Generates ID strings for loaded datasets and export manifests
type IDGenerator interface {
	GenObjectID() string
}

// IDGen - uuid-backed implementation
type IDGen struct {
}

// GenObjectID - Returns a 16 char id string
func (g *IDGen) GenObjectID() string {
	id := uuid.New()

	// Hex without the dashes, clipped. Collisions need 2^64 draws which
	// is far beyond anything a dataset session will see.
	out := make([]byte, 0, 16)
	const hexdig = "0123456789abcdef"
	for _, b := range id[0:8] {
		out = append(out, hexdig[b>>4], hexdig[b&0xf])
	}
	return string(out)
}

// Here we really just expose some test helpers
type MockIDGenerator struct {
	IDs []string
}

func (m *MockIDGenerator) GenObjectID() string {
	if len(m.IDs) > 0 {
		id := m.IDs[0]
		m.IDs = m.IDs[1:]
		return id
	}
	return "NO_ID_DEFINED"
}
