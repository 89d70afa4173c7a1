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

package msr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/minfluxio/core/core/errorwithkind"
)

// OBF container walking. The file opens with a 10 byte magic and a small
// header pointing at the first stack. Stacks form a linked list: each has
// a fixed 368 byte header (16 byte magic, dimensions, compression, name
// and description lengths, data length on disk, next stack position),
// followed by its name, description and data region, then a versioned
// footer. Compressed stacks flush the zlib stream at fixed logical
// intervals; the footer's flush point list holds the compressed offset
// where each fresh stream begins, so the data region is a sequence of
// independently inflatable chunks.

const (
	obfMagic   = "OMAS_BF\n\xff\xff"
	stackMagic = "OMAS_BF_STACK\n\xff\xff"

	maxDimensions = 15

	// Cumulative footer byte counts by stack format version
	footerSizeV1A = 128
	footerSizeV2  = 1408
	footerSizeV3  = 1424

	compressionNone = 0
	compressionZlib = 1

	obfTypeUint8 = 0x01
)

type fileHeader struct {
	formatVersion uint32
	firstStackPos uint64
	description   string
}

type stackInfo struct {
	formatVersion   uint32
	rank            int
	numPixels       []int
	dataType        uint32
	compression     uint32
	name            string
	dataStart       int
	dataLen         int
	nextStackPos    uint64
	hasColPositions []bool
	obsoleteMetaLen int
	numFlushPoints  int
	flushBlockSize  int
	flushPoints     []int
}

// cursor - sticky error reader over the file bytes
type cursor struct {
	data []byte
	pos  int
	err  error
}

func (c *cursor) fail(what string) {
	if c.err == nil {
		c.err = fmt.Errorf("truncated %v at offset %v", what, c.pos)
	}
}

func (c *cursor) bytes(n int, what string) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.fail(what)
		return nil
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out
}

func (c *cursor) skip(n int, what string) {
	c.bytes(n, what)
}

func (c *cursor) u32(what string) uint32 {
	b := c.bytes(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) u64(what string) uint64 {
	b := c.bytes(8, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func parseFileHeader(data []byte) (*fileHeader, error) {
	if len(data) < len(obfMagic) || string(data[:len(obfMagic)]) != obfMagic {
		return nil, errorwithkind.MakeCorruptHeaderError("not an OBF container")
	}

	c := &cursor{data: data, pos: len(obfMagic)}
	hdr := &fileHeader{}

	hdr.formatVersion = c.u32("file header")
	if c.err == nil && hdr.formatVersion < 1 {
		return nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("bad OBF format version %v", hdr.formatVersion))
	}

	hdr.firstStackPos = c.u64("file header")
	descrLen := int(c.u32("file header"))
	hdr.description = string(c.bytes(descrLen, "file description"))
	c.u64("file header") // metadata position, not needed here

	if c.err != nil {
		return nil, errorwithkind.MakeCorruptHeaderError(c.err.Error())
	}
	return hdr, nil
}

// parseStack - the stack header at pos, plus the footer fields needed to
// locate its flush points
func parseStack(data []byte, pos int) (*stackInfo, error) {
	c := &cursor{data: data, pos: pos}

	magic := c.bytes(len(stackMagic), "stack header")
	if c.err != nil || string(magic) != stackMagic {
		return nil, fmt.Errorf("no stack header at offset %v", pos)
	}

	s := &stackInfo{}
	s.formatVersion = c.u32("stack header")
	s.rank = int(c.u32("stack header"))
	if s.rank < 1 || s.rank > maxDimensions {
		return nil, fmt.Errorf("stack at offset %v has rank %v", pos, s.rank)
	}

	for i := 0; i < maxDimensions; i++ {
		n := int(c.u32("stack dimensions"))
		if i < s.rank {
			s.numPixels = append(s.numPixels, n)
		}
	}

	// Physical lengths and offsets per dimension
	c.skip(maxDimensions*8*2, "stack geometry")

	s.dataType = c.u32("stack header")
	s.compression = c.u32("stack header")
	c.u32("stack header") // compression level
	nameLen := int(c.u32("stack header"))
	descrLen := int(c.u32("stack header"))
	c.u64("stack header") // reserved
	s.dataLen = int(c.u64("stack header"))
	s.nextStackPos = c.u64("stack header")

	s.name = string(c.bytes(nameLen, "stack name"))
	c.skip(descrLen, "stack description")
	s.dataStart = c.pos

	if c.err != nil {
		return nil, c.err
	}
	if s.dataLen < 0 || s.dataStart+s.dataLen > len(data) {
		return nil, fmt.Errorf("stack %v data runs past the end of the file", s.name)
	}

	if s.formatVersion >= 1 {
		if err := parseStackFooter(data, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseStackFooter(data []byte, s *stackInfo) error {
	footerStart := s.dataStart + s.dataLen
	c := &cursor{data: data, pos: footerStart}

	footerSize := int(c.u32("stack footer"))
	if c.err == nil && footerSize < footerSizeV1A {
		return fmt.Errorf("stack %v footer is only %v bytes", s.name, footerSize)
	}

	for i := 0; i < maxDimensions; i++ {
		p := c.u32("stack footer")
		if i < s.rank {
			s.hasColPositions = append(s.hasColPositions, p != 0)
		}
	}
	c.skip(maxDimensions*4, "stack footer") // column label flags
	s.obsoleteMetaLen = int(c.u32("stack footer"))

	if s.formatVersion >= 3 && footerSize >= footerSizeV3 {
		c.pos = footerStart + footerSizeV2
		s.numFlushPoints = int(c.u64("stack footer"))
		s.flushBlockSize = int(c.u64("stack footer"))
	}
	if c.err != nil {
		return c.err
	}

	// Flush points live in the variable metadata after the footer, behind
	// the axis labels, axis positions and the obsolete metadata block
	if s.numFlushPoints > 0 {
		c.pos = footerStart + footerSize
		for i := 0; i < s.rank; i++ {
			n := int(c.u32("axis label"))
			c.skip(n, "axis label")
		}
		for i := 0; i < s.rank; i++ {
			if s.hasColPositions[i] {
				c.skip(s.numPixels[i]*8, "axis positions")
			}
		}
		c.skip(s.obsoleteMetaLen, "stack metadata")

		for i := 0; i < s.numFlushPoints; i++ {
			s.flushPoints = append(s.flushPoints, int(c.u64("flush point list")))
		}
		if c.err != nil {
			return c.err
		}
	}
	return nil
}

// walkStacks - follows the linked stack list from the file header
func walkStacks(data []byte, hdr *fileHeader) ([]*stackInfo, error) {
	stacks := []*stackInfo{}
	seen := map[int]bool{}

	pos := int(hdr.firstStackPos)
	for pos != 0 {
		if pos < 0 || pos >= len(data) {
			return nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("stack position %v is outside the file", pos))
		}
		if seen[pos] {
			return nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("stack list loops back to offset %v", pos))
		}
		seen[pos] = true

		s, err := parseStack(data, pos)
		if err != nil {
			return nil, errorwithkind.MakeCorruptHeaderError(err.Error())
		}
		stacks = append(stacks, s)
		pos = int(s.nextStackPos)
	}
	return stacks, nil
}

// stackData - the uncompressed data region of a stack. Compressed stacks
// hold one zlib stream per flush interval; every chunk but the last
// inflates to exactly flushBlockSize bytes.
func stackData(data []byte, s *stackInfo) ([]byte, error) {
	region := data[s.dataStart : s.dataStart+s.dataLen]
	if s.compression == compressionNone {
		return region, nil
	}
	if s.compression != compressionZlib {
		return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("stack %v: unsupported compression type %v", s.name, s.compression))
	}

	starts := []int{0}
	starts = append(starts, s.flushPoints...)

	out := []byte{}
	for i, start := range starts {
		end := s.dataLen
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start < 0 || end > s.dataLen || start >= end {
			return nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("stack %v: bad flush point %v", s.name, start))
		}

		chunk, err := inflateChunk(region[start:end])
		if err != nil {
			return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("stack %v: chunk %v: %v", s.name, i, err))
		}
		if i+1 < len(starts) && s.flushBlockSize > 0 && len(chunk) != s.flushBlockSize {
			return nil, errorwithkind.MakeDecodeFailureError(
				fmt.Errorf("stack %v: chunk %v decompressed to %v bytes, expected %v", s.name, i, len(chunk), s.flushBlockSize))
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func inflateChunk(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
