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

package mat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"

	"github.com/minfluxio/core/core/errorwithkind"
)

// Level 5 MAT container walking: 128 byte preamble, then a sequence of
// tagged data elements. We support little endian files, numeric and
// logical matrices, 1x1 structs one level deep, and zlib compressed
// elements. That covers everything the instrument writes.

const (
	miInt8       = 1
	miUint8      = 2
	miInt16      = 3
	miUint16     = 4
	miInt32      = 5
	miUint32     = 6
	miSingle     = 7
	miDouble     = 9
	miInt64      = 12
	miUint64     = 13
	miMatrix     = 14
	miCompressed = 15
)

const (
	mxCell   = 1
	mxStruct = 2
	mxObject = 3
	mxChar   = 4
	mxSparse = 5
	mxDouble = 6
	mxSingle = 7
	mxInt8   = 8
	mxUint8  = 9
	mxInt16  = 10
	mxUint16 = 11
	mxInt32  = 12
	mxUint32 = 13
	mxInt64  = 14
	mxUint64 = 15
)

const matHeaderSize = 128

// matVar - one decoded variable. Numeric classes carry vals (widened to
// float64, column-major as stored); structs carry fields.
type matVar struct {
	name   string
	class  int
	dims   []int
	vals   []float64
	fields map[string]*matVar
}

func (v *matVar) count() int {
	count := 1
	for _, d := range v.dims {
		count *= d
	}
	return count
}

func checkPreamble(data []byte) error {
	if len(data) < matHeaderSize {
		return errorwithkind.MakeCorruptHeaderError("file too short for mat header")
	}

	endian := string(data[126:128])
	if endian == "MI" {
		return errorwithkind.MakeKindError(
			errorwithkind.KindFormatUnsupported,
			errors.New("big endian mat files are not supported"),
		)
	}
	if endian != "IM" {
		return errorwithkind.MakeCorruptHeaderError("bad mat endian indicator")
	}

	if binary.LittleEndian.Uint16(data[124:126]) != 0x0100 {
		return errorwithkind.MakeCorruptHeaderError("bad mat version")
	}
	return nil
}

// readElement - one tagged element at pos, handling the packed small
// element format. Returns the element payload and the position of the
// next element.
func readElement(data []byte, pos int) (int, []byte, int, error) {
	if pos+8 > len(data) {
		return 0, nil, 0, fmt.Errorf("truncated element at offset %v", pos)
	}

	first := binary.LittleEndian.Uint32(data[pos:])
	smallLen := int(first >> 16)
	if smallLen != 0 {
		if smallLen > 4 {
			return 0, nil, 0, fmt.Errorf("bad small element at offset %v", pos)
		}
		return int(first & 0xFFFF), data[pos+4 : pos+4+smallLen], pos + 8, nil
	}

	numBytes := int(binary.LittleEndian.Uint32(data[pos+4:]))
	start := pos + 8
	if numBytes < 0 || start+numBytes > len(data) {
		return 0, nil, 0, fmt.Errorf("truncated element at offset %v", pos)
	}

	// Payloads are padded to an 8 byte boundary, except a final element
	// may end with the file
	next := start + (numBytes+7)/8*8
	if next > len(data) {
		next = len(data)
	}
	return int(first), data[start : start+numBytes], next, nil
}

// widenNumeric - unpacks a numeric element payload to float64 values
func widenNumeric(dtype int, payload []byte) ([]float64, error) {
	size := map[int]int{
		miInt8: 1, miUint8: 1, miInt16: 2, miUint16: 2,
		miInt32: 4, miUint32: 4, miSingle: 4, miDouble: 8,
		miInt64: 8, miUint64: 8,
	}[dtype]
	if size == 0 {
		return nil, fmt.Errorf("unsupported numeric element type %v", dtype)
	}
	if len(payload)%size != 0 {
		return nil, fmt.Errorf("numeric element size %v is not a multiple of %v", len(payload), size)
	}

	out := make([]float64, len(payload)/size)
	for i := range out {
		off := i * size
		switch dtype {
		case miInt8:
			out[i] = float64(int8(payload[off]))
		case miUint8:
			out[i] = float64(payload[off])
		case miInt16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(payload[off:])))
		case miUint16:
			out[i] = float64(binary.LittleEndian.Uint16(payload[off:]))
		case miInt32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(payload[off:])))
		case miUint32:
			out[i] = float64(binary.LittleEndian.Uint32(payload[off:]))
		case miSingle:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:])))
		case miDouble:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off:]))
		case miInt64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(payload[off:])))
		case miUint64:
			out[i] = float64(binary.LittleEndian.Uint64(payload[off:]))
		}
	}
	return out, nil
}

// parseMatrixHeader - the flags, dimensions and name subelements that
// open every miMATRIX payload
func parseMatrixHeader(payload []byte) (v *matVar, complexFlag bool, pos int, err error) {
	v = &matVar{}

	dtype, flagsPayload, pos, err := readElement(payload, 0)
	if err != nil {
		return nil, false, 0, err
	}
	if dtype != miUint32 || len(flagsPayload) < 8 {
		return nil, false, 0, errors.New("bad array flags subelement")
	}
	flags := binary.LittleEndian.Uint32(flagsPayload)
	v.class = int(flags & 0xFF)
	complexFlag = flags&0x0800 != 0

	dtype, dimsPayload, pos, err := readElement(payload, pos)
	if err != nil {
		return nil, false, 0, err
	}
	if dtype != miInt32 || len(dimsPayload)%4 != 0 {
		return nil, false, 0, errors.New("bad dimensions subelement")
	}
	for off := 0; off < len(dimsPayload); off += 4 {
		v.dims = append(v.dims, int(int32(binary.LittleEndian.Uint32(dimsPayload[off:]))))
	}

	dtype, namePayload, pos, err := readElement(payload, pos)
	if err != nil {
		return nil, false, 0, err
	}
	if dtype != miInt8 {
		return nil, false, 0, errors.New("bad array name subelement")
	}
	v.name = string(namePayload)

	return v, complexFlag, pos, nil
}

// parseMatrix - a full miMATRIX payload, recursing one level for struct
// fields
func parseMatrix(payload []byte, depth int) (*matVar, error) {
	v, complexFlag, pos, err := parseMatrixHeader(payload)
	if err != nil {
		return nil, err
	}
	if complexFlag {
		return nil, fmt.Errorf("array %v: complex data is not supported", v.name)
	}

	switch v.class {
	case mxDouble, mxSingle, mxInt8, mxUint8, mxInt16, mxUint16, mxInt32, mxUint32, mxInt64, mxUint64:
		dtype, prPayload, _, err := readElement(payload, pos)
		if err != nil {
			return nil, fmt.Errorf("array %v: %v", v.name, err)
		}
		v.vals, err = widenNumeric(dtype, prPayload)
		if err != nil {
			return nil, fmt.Errorf("array %v: %v", v.name, err)
		}
		if len(v.vals) != v.count() {
			return nil, fmt.Errorf("array %v: %v values for dims %v", v.name, len(v.vals), v.dims)
		}

	case mxChar:
		// Labels and comments, nothing we need

	case mxStruct:
		if depth > 0 {
			return nil, fmt.Errorf("array %v: nested structs are not supported", v.name)
		}
		if v.count() != 1 {
			return nil, fmt.Errorf("array %v: struct arrays are not supported", v.name)
		}

		dtype, lenPayload, pos2, err := readElement(payload, pos)
		if err != nil || dtype != miInt32 || len(lenPayload) < 4 {
			return nil, fmt.Errorf("array %v: bad field name length", v.name)
		}
		nameLen := int(int32(binary.LittleEndian.Uint32(lenPayload)))
		if nameLen <= 0 {
			return nil, fmt.Errorf("array %v: bad field name length %v", v.name, nameLen)
		}

		dtype, namesPayload, pos3, err := readElement(payload, pos2)
		if err != nil || dtype != miInt8 || len(namesPayload)%nameLen != 0 {
			return nil, fmt.Errorf("array %v: bad field names", v.name)
		}

		fieldNames := []string{}
		for off := 0; off < len(namesPayload); off += nameLen {
			fieldNames = append(fieldNames, string(bytes.TrimRight(namesPayload[off:off+nameLen], "\x00")))
		}

		v.fields = map[string]*matVar{}
		fieldPos := pos3
		for _, fieldName := range fieldNames {
			dtype, fieldPayload, nextPos, err := readElement(payload, fieldPos)
			if err != nil {
				return nil, fmt.Errorf("array %v: field %v: %v", v.name, fieldName, err)
			}
			if dtype != miMatrix {
				return nil, fmt.Errorf("array %v: field %v is not a matrix", v.name, fieldName)
			}

			fieldVar, err := parseMatrix(fieldPayload, depth+1)
			if err != nil {
				return nil, fmt.Errorf("array %v: field %v: %v", v.name, fieldName, err)
			}
			fieldVar.name = fieldName
			v.fields[fieldName] = fieldVar
			fieldPos = nextPos
		}

	default:
		return nil, fmt.Errorf("array %v: unsupported class %v", v.name, v.class)
	}

	return v, nil
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// inflatePrefix - decompresses only the leading bytes of a compressed
// element, enough to see a contained matrix's name without touching its
// data
func inflatePrefix(payload []byte, limit int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(zr, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// parseVars - walks every top level element and decodes the variables
func parseVars(data []byte) (map[string]*matVar, error) {
	if err := checkPreamble(data); err != nil {
		return nil, err
	}

	vars := map[string]*matVar{}
	pos := matHeaderSize
	for pos < len(data) {
		dtype, payload, next, err := readElement(data, pos)
		if err != nil {
			return nil, errorwithkind.MakeDecodeFailureError(err)
		}

		switch dtype {
		case miCompressed:
			raw, err := inflate(payload)
			if err != nil {
				return nil, errorwithkind.MakeDecodeFailureError(fmt.Errorf("failed to decompress element: %v", err))
			}
			innerType, innerPayload, _, err := readElement(raw, 0)
			if err != nil {
				return nil, errorwithkind.MakeDecodeFailureError(err)
			}
			if innerType == miMatrix {
				v, err := parseMatrix(innerPayload, 0)
				if err != nil {
					return nil, errorwithkind.MakeDecodeFailureError(err)
				}
				vars[v.name] = v
			}

		case miMatrix:
			v, err := parseMatrix(payload, 0)
			if err != nil {
				return nil, errorwithkind.MakeDecodeFailureError(err)
			}
			vars[v.name] = v
		}

		pos = next
	}

	return vars, nil
}

// topLevelNames - variable names only, without reading array data. Used
// by format sniffing.
func topLevelNames(data []byte) (map[string]int, error) {
	if err := checkPreamble(data); err != nil {
		return nil, err
	}

	names := map[string]int{}
	pos := matHeaderSize
	for pos < len(data) {
		dtype, payload, next, err := readElement(data, pos)
		if err != nil {
			return nil, errorwithkind.MakeCorruptHeaderError(err.Error())
		}

		var matrixPayload []byte
		switch dtype {
		case miCompressed:
			head, err := inflatePrefix(payload, 512)
			if err != nil {
				return nil, errorwithkind.MakeCorruptHeaderError(fmt.Sprintf("failed to decompress element: %v", err))
			}
			if len(head) >= 8 && binary.LittleEndian.Uint32(head) == miMatrix {
				matrixPayload = head[8:]
			}
		case miMatrix:
			matrixPayload = payload
		}

		if matrixPayload != nil {
			v, _, _, err := parseMatrixHeader(matrixPayload)
			if err != nil {
				return nil, errorwithkind.MakeCorruptHeaderError(err.Error())
			}
			names[v.name] = v.class
		}

		pos = next
	}

	return names, nil
}
