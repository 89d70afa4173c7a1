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

package pmxfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/x448/float16"
)

// Column packing. Values are packed little-endian per their dtype string,
// then the whole column is gzip compressed. Booleans travel as one byte
// each (0 or 1) under dtype |b1.

func compressBlob(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBlob(blob []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case "|b1", "|i1", "|u1":
		return 1, nil
	case "<f2", "<i2", "<u2":
		return 2, nil
	case "<f4", "<i4", "<u4":
		return 4, nil
	case "<f8", "<i8", "<u8":
		return 8, nil
	}
	return 0, fmt.Errorf("unknown dtype: %v", dtype)
}

func packF64(vals []float64) []byte {
	out := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

// packF32 narrows float64 values that originated as float32
func packF32(vals []float64) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}

// packF16 narrows float64 values that originated as half precision
func packF16(vals []float64) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(float16.Fromfloat32(float32(v))))
	}
	return out
}

func packI64(vals []int64) []byte {
	out := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
	}
	return out
}

func packI32(vals []int32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

func packU64(vals []uint64) []byte {
	out := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

func packU32(vals []uint32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func packU8(vals []uint8) []byte {
	out := make([]byte, len(vals))
	copy(out, vals)
	return out
}

func packBool(vals []bool) []byte {
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v {
			out[i] = 1
		}
	}
	return out
}

func unpackF64(data []byte) []float64 {
	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return out
}

// unpackF32 widens stored float32 values to float64
func unpackF32(data []byte) []float64 {
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return out
}

// unpackF16 widens stored half precision values to float64
func unpackF16(data []byte) []float64 {
	out := make([]float64, len(data)/2)
	for i := range out {
		out[i] = float64(float16.Float16(binary.LittleEndian.Uint16(data[i*2:])).Float32())
	}
	return out
}

func unpackI64(data []byte) []int64 {
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return out
}

func unpackI32(data []byte) []int32 {
	out := make([]int32, len(data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func unpackU64(data []byte) []uint64 {
	out := make([]uint64, len(data)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return out
}

func unpackU32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func unpackU8(data []byte) []uint8 {
	out := make([]uint8, len(data))
	copy(out, data)
	return out
}

func unpackBool(data []byte) []bool {
	out := make([]bool, len(data))
	for i, b := range data {
		out[i] = b != 0
	}
	return out
}

func makeColumn(name, dtype string, perRow int, raw []byte) (ColumnBlob, error) {
	blob, err := compressBlob(raw)
	if err != nil {
		return ColumnBlob{}, fmt.Errorf("failed to compress column %v: %v", name, err)
	}
	return ColumnBlob{Name: name, Dtype: dtype, PerRow: perRow, Data: blob}, nil
}

// openColumn decompresses a column and checks its byte length against the
// expected row count
func openColumn(col ColumnBlob, numRows int64) ([]byte, error) {
	raw, err := decompressBlob(col.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress column %v: %v", col.Name, err)
	}
	size, err := dtypeSize(col.Dtype)
	if err != nil {
		return nil, fmt.Errorf("column %v: %v", col.Name, err)
	}
	perRow := col.PerRow
	if perRow < 1 {
		perRow = 1
	}
	expected := numRows * int64(perRow) * int64(size)
	if int64(len(raw)) != expected {
		return nil, fmt.Errorf("column %v: expected %v bytes, got %v", col.Name, expected, len(raw))
	}
	return raw, nil
}
