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

// Package sniffer decides which container format and schema revision a
// source file holds. Dispatch goes by file extension first, then the
// magic bytes must agree, then a header-only probe settles the revision.
// Nothing here decodes record data.
package sniffer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minfluxio/core/core/dataset"
	"github.com/minfluxio/core/core/errorwithkind"
	"github.com/minfluxio/core/core/fileaccess"
	"github.com/minfluxio/core/core/pmxfile"
	"github.com/minfluxio/core/data-import/internal/decoders/jsonrec"
	"github.com/minfluxio/core/data-import/internal/decoders/mat"
	"github.com/minfluxio/core/data-import/internal/decoders/msr"
	"github.com/minfluxio/core/data-import/internal/decoders/npy"
	"github.com/minfluxio/core/data-import/internal/decoders/pmx"
)

// FormatSpec - what the sniffer determined about a source file
type FormatSpec struct {
	Format   dataset.ContainerFormat
	Revision dataset.SchemaRevision
}

func (s FormatSpec) String() string {
	return fmt.Sprintf("%v (%v)", s.Format, s.Revision)
}

// Sniff - resolves the container format and schema revision of the file
// at path without decoding it
func Sniff(path string, fs fileaccess.FileAccess) (FormatSpec, error) {
	exists, err := fs.ObjectExists("", path)
	if err != nil || !exists {
		return FormatSpec{}, errorwithkind.MakeFileNotFoundError(path)
	}

	data, err := fs.ReadObject("", path)
	if err != nil {
		return FormatSpec{}, errorwithkind.MakeFileNotFoundError(path)
	}
	return SniffBytes(path, data)
}

// SniffBytes - as Sniff, for callers that already hold the file bytes.
// The path is only consulted for its extension.
func SniffBytes(path string, data []byte) (FormatSpec, error) {
	format := formatForExtension(path)
	if format == dataset.FormatUnknown {
		return FormatSpec{}, errorwithkind.MakeFormatUnsupportedError(path, fmt.Sprintf("unrecognized extension %v", filepath.Ext(path)))
	}

	if !magicMatches(format, data) {
		return FormatSpec{}, errorwithkind.MakeFormatUnsupportedError(path, fmt.Sprintf("not a %v container", format))
	}

	rev, err := probeRevision(format, data)
	if err != nil {
		return FormatSpec{}, err
	}
	return FormatSpec{Format: format, Revision: rev}, nil
}

func formatForExtension(path string) dataset.ContainerFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return dataset.FormatNpy
	case ".mat":
		return dataset.FormatMat
	case ".json":
		return dataset.FormatJSON
	case ".pmx":
		return dataset.FormatPmx
	case ".msr":
		return dataset.FormatMsr
	}
	return dataset.FormatUnknown
}

// magicMatches - does the file even begin like this container? Separates
// "this is some other kind of file" from "this container is damaged".
func magicMatches(format dataset.ContainerFormat, data []byte) bool {
	switch format {
	case dataset.FormatNpy:
		return bytes.HasPrefix(data, []byte("\x93NUMPY"))
	case dataset.FormatMat:
		// The MAT5 discriminator is the endian tag at the end of the
		// 128 byte preamble. Big endian files get that far and are then
		// rejected by the probe.
		return len(data) >= 128 && (string(data[126:128]) == "IM" || string(data[126:128]) == "MI")
	case dataset.FormatJSON:
		trimmed := bytes.TrimLeft(data, " \t\r\n")
		return len(trimmed) > 0 && trimmed[0] == '['
	case dataset.FormatPmx:
		return bytes.HasPrefix(data, pmxfile.Magic)
	case dataset.FormatMsr:
		return bytes.HasPrefix(data, []byte("OMAS_BF\n\xff\xff"))
	}
	return false
}

func probeRevision(format dataset.ContainerFormat, data []byte) (dataset.SchemaRevision, error) {
	switch format {
	case dataset.FormatNpy:
		return npy.SniffRevision(data)
	case dataset.FormatMat:
		return mat.SniffRevision(data)
	case dataset.FormatJSON:
		return jsonrec.SniffRevision(data)
	case dataset.FormatPmx:
		return pmx.SniffRevision(data)
	case dataset.FormatMsr:
		return msr.SniffRevision(data)
	}
	return 0, errorwithkind.MakeKindError(errorwithkind.KindFormatUnsupported, fmt.Errorf("no probe for format %v", format))
}
