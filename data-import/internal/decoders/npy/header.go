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

package npy

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/minfluxio/core/core/errorwithkind"
)

var npyMagic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// field - one entry of a structured dtype. Leaf fields have a dtype string,
// compound fields have sub. Shape is the per-record repeat, empty for
// scalars.
type field struct {
	name  string
	dtype string
	sub   []field
	shape []int
}

type headerInfo struct {
	fields  []field
	shape   []int
	fortran bool
}

// parseHeader - validates magic+version, reads the header length for the
// file's version, and parses the Python dict literal numpy writes there.
// Returns the parsed header and the record bytes that follow it.
func parseHeader(data []byte) (headerInfo, []byte, error) {
	info := headerInfo{}

	if len(data) < 10 {
		return info, nil, errorwithkind.MakeCorruptHeaderError("file too short for npy header")
	}
	for i, b := range npyMagic {
		if data[i] != b {
			return info, nil, errorwithkind.MakeCorruptHeaderError("bad npy magic")
		}
	}

	major := data[6]
	minor := data[7]

	var headerStart int
	var headerLen int
	switch major {
	case 1:
		headerStart = 10
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
	case 2, 3:
		if len(data) < 12 {
			return info, nil, errorwithkind.MakeCorruptHeaderError("file too short for npy header")
		}
		headerStart = 12
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
	default:
		return info, nil, errorwithkind.MakeKindError(
			errorwithkind.KindFormatUnsupported,
			fmt.Errorf("npy version %v.%v is not supported", major, minor),
		)
	}

	headerEnd := headerStart + headerLen
	if headerEnd > len(data) {
		return info, nil, errorwithkind.MakeCorruptHeaderError("truncated npy header")
	}

	var err error
	info, err = parseHeaderDict(string(data[headerStart:headerEnd]))
	if err != nil {
		return info, nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("bad npy header: %v", err))
	}

	return info, data[headerEnd:], nil
}

// parseHeaderDict - the header is a Python dict literal, eg:
//
//	{'descr': [('tid', '<i4'), ('loc', '<f8', (3,))], 'fortran_order': False, 'shape': (1000,), }
func parseHeaderDict(s string) (headerInfo, error) {
	info := headerInfo{}
	p := &literalParser{s: s}

	if err := p.expect('{'); err != nil {
		return info, err
	}

	sawDescr := false
	sawShape := false
	for {
		p.skipSpace()
		if p.peek() == '}' {
			break
		}

		key, err := p.parseString()
		if err != nil {
			return info, err
		}
		if err := p.expect(':'); err != nil {
			return info, err
		}
		p.skipSpace()

		switch key {
		case "descr":
			if p.peek() != '[' {
				return info, fmt.Errorf("descr is not a structured dtype")
			}
			info.fields, err = p.parseFields()
			sawDescr = true
		case "fortran_order":
			info.fortran, err = p.parseBool()
		case "shape":
			info.shape, err = p.parseIntTuple()
			sawShape = true
		default:
			return info, fmt.Errorf("unexpected header key: %v", key)
		}
		if err != nil {
			return info, err
		}

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
		}
	}

	if !sawDescr || !sawShape {
		return info, fmt.Errorf("header is missing descr or shape")
	}
	return info, nil
}

// literalParser - just enough Python literal parsing for npy headers
type literalParser struct {
	s   string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			break
		}
		p.pos++
	}
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *literalParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %v", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *literalParser) parseString() (string, error) {
	p.skipSpace()
	quote := p.peek()
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("expected string at offset %v", p.pos)
	}
	p.pos++

	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.s) {
		return "", fmt.Errorf("unterminated string at offset %v", start)
	}

	str := p.s[start:p.pos]
	p.pos++
	return str, nil
}

func (p *literalParser) parseBool() (bool, error) {
	p.skipSpace()
	for _, lit := range []string{"True", "False"} {
		if p.pos+len(lit) <= len(p.s) && p.s[p.pos:p.pos+len(lit)] == lit {
			p.pos += len(lit)
			return lit == "True", nil
		}
	}
	return false, fmt.Errorf("expected True or False at offset %v", p.pos)
}

func (p *literalParser) parseInt() (int, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected integer at offset %v", p.pos)
	}
	return strconv.Atoi(p.s[start:p.pos])
}

// parseIntTuple - (), (5,), (3, 2) or a bare integer
func (p *literalParser) parseIntTuple() ([]int, error) {
	p.skipSpace()
	if p.peek() != '(' {
		v, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		return []int{v}, nil
	}
	p.pos++

	vals := []int{}
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return vals, nil
		}

		v, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
		}
	}
}

// parseFields - [field, field, ...]
func (p *literalParser) parseFields() ([]field, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}

	fields := []field{}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			return fields, nil
		}

		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
		}
	}
}

// parseField - ('name', dtype), ('name', dtype, shape) or
// ('name', [subfields], shape)
func (p *literalParser) parseField() (field, error) {
	f := field{}

	if err := p.expect('('); err != nil {
		return f, err
	}

	var err error
	f.name, err = p.parseString()
	if err != nil {
		return f, err
	}
	if err := p.expect(','); err != nil {
		return f, err
	}

	p.skipSpace()
	if p.peek() == '[' {
		f.sub, err = p.parseFields()
	} else {
		f.dtype, err = p.parseString()
	}
	if err != nil {
		return f, err
	}

	p.skipSpace()
	if p.peek() == ',' {
		p.pos++
		p.skipSpace()
		if p.peek() != ')' {
			f.shape, err = p.parseIntTuple()
			if err != nil {
				return f, err
			}
		}
	}

	return f, p.expect(')')
}

func dtypeItemSize(dtype string) (int, error) {
	if dtype == "?" {
		return 1, nil
	}

	// Strip the byte order char if present
	t := dtype
	if len(t) > 0 && (t[0] == '<' || t[0] == '>' || t[0] == '|' || t[0] == '=') {
		if t[0] == '>' {
			return 0, fmt.Errorf("big endian dtype %v is not supported", dtype)
		}
		t = t[1:]
	}
	if len(t) < 2 {
		return 0, fmt.Errorf("unknown dtype: %v", dtype)
	}

	size, err := strconv.Atoi(t[1:])
	if err != nil || size < 1 || size > 8 {
		return 0, fmt.Errorf("unknown dtype: %v", dtype)
	}

	switch t[0] {
	case 'f', 'i', 'u', 'b':
		return size, nil
	}
	return 0, fmt.Errorf("unknown dtype: %v", dtype)
}

func shapeCount(shape []int) int {
	count := 1
	for _, v := range shape {
		count *= v
	}
	return count
}

func fieldSize(f field) (int, error) {
	var unit int
	var err error
	if len(f.sub) > 0 {
		unit, err = itemSize(f.sub)
	} else {
		unit, err = dtypeItemSize(f.dtype)
	}
	if err != nil {
		return 0, err
	}
	return unit * shapeCount(f.shape), nil
}

func itemSize(fields []field) (int, error) {
	total := 0
	for _, f := range fields {
		size, err := fieldSize(f)
		if err != nil {
			return 0, fmt.Errorf("field %v: %v", f.name, err)
		}
		total += size
	}
	return total, nil
}

// fieldAt - a field with its byte offset inside the record (or inside the
// compound item for subfields)
type fieldAt struct {
	field
	offset int
}

func layoutFields(fields []field) (map[string]fieldAt, error) {
	layout := map[string]fieldAt{}
	offset := 0
	for _, f := range fields {
		layout[f.name] = fieldAt{field: f, offset: offset}
		size, err := fieldSize(f)
		if err != nil {
			return nil, fmt.Errorf("field %v: %v", f.name, err)
		}
		offset += size
	}
	return layout, nil
}

func hasField(fields []field, name string) bool {
	for _, f := range fields {
		if f.name == name {
			return true
		}
	}
	return false
}
