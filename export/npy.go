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

package export

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/minfluxio/core/core/dataset"
)

// Structured .npy writer for raw acquisition tables, emitting the same
// field layout the instrument exports so external tooling (and our own
// decoder) can re-read the file.

var npyMagic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// rev1IterDescr - the per-iteration compound, repeated NumIterations
// times per record
const rev1IterDescr = "[('itr', '<i4'), ('tic', '<u8'), ('loc', '<f8', (3,)), ('lnc', '<f8', (3,)), " +
	"('eco', '<i4'), ('ecc', '<i4'), ('efo', '<f8'), ('efc', '<f8'), ('sta', '<i4'), " +
	"('cfr', '<f8'), ('dcr', '<f8'), ('ext', '<f8', (3,)), ('gvy', '<f8'), ('gvx', '<f8'), " +
	"('eoy', '<f8'), ('eox', '<f8'), ('dmz', '<f8'), ('lcy', '<f8'), ('lcx', '<f8'), " +
	"('lcz', '<f8'), ('fbg', '<f8')]"

const rev2Descr = "[('vld', '|b1'), ('fnl', '|b1'), ('bot', '|b1'), ('eot', '|b1'), ('sta', '|u1'), " +
	"('tim', '<f8'), ('tid', '<u4'), ('gri', '<u4'), ('thi', '|u1'), ('sqi', '|u1'), " +
	"('itr', '<i4'), ('loc', '<f8', (3,)), ('lnc', '<f8', (3,)), ('eco', '<u4'), " +
	"('ecc', '<u4'), ('efo', '<f8'), ('efc', '<f8'), ('fbg', '<f8'), ('cfr', '<f8'), " +
	"('dcr', '<f8', (2,)), ('fluo', '|u1')]"

// writeNpyHeader - magic, version and the Python dict literal, padded so
// record data starts on a 64 byte boundary. Version 1.0 unless the header
// needs a 4 byte length field.
func writeNpyHeader(w io.Writer, descr string, numRows int) error {
	dict := fmt.Sprintf("{'descr': %v, 'fortran_order': False, 'shape': (%v,), }", descr, numRows)

	prefixLen := len(npyMagic) + 2 + 2
	major := byte(1)
	if len(dict)+prefixLen+1 > math.MaxUint16 {
		major = 2
		prefixLen = len(npyMagic) + 2 + 4
	}

	padded := len(dict) + 1
	if rem := (prefixLen + padded) % 64; rem != 0 {
		padded += 64 - rem
	}
	dict = dict + strings.Repeat(" ", padded-len(dict)-1) + "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{major, 0}); err != nil {
		return err
	}
	if major == 1 {
		var lenBytes [2]byte
		binary.LittleEndian.PutUint16(lenBytes[:], uint16(len(dict)))
		if _, err := w.Write(lenBytes[:]); err != nil {
			return err
		}
	} else {
		var lenBytes [4]byte
		binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(dict)))
		if _, err := w.Write(lenBytes[:]); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte(dict))
	return err
}

// recordWriter - packs little-endian values into a per-record buffer
type recordWriter struct {
	buf []byte
}

func (rw *recordWriter) f64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	rw.buf = append(rw.buf, b[:]...)
}

func (rw *recordWriter) i32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	rw.buf = append(rw.buf, b[:]...)
}

func (rw *recordWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	rw.buf = append(rw.buf, b[:]...)
}

func (rw *recordWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	rw.buf = append(rw.buf, b[:]...)
}

func (rw *recordWriter) u8(v uint8) {
	rw.buf = append(rw.buf, v)
}

func (rw *recordWriter) boolByte(v bool) {
	if v {
		rw.buf = append(rw.buf, 1)
	} else {
		rw.buf = append(rw.buf, 0)
	}
}

// WriteNpyRev1 - event-per-record structured array with the iteration
// compound first, matching the fixed-cycle instrument export
func WriteNpyRev1(r *dataset.RawRev1, w io.Writer) error {
	descr := fmt.Sprintf("[('itr', %v, (%v,)), ('sqi', '<u4'), ('gri', '<u4'), ('tim', '<f8'), "+
		"('tid', '<i4'), ('vld', '|b1'), ('act', '|b1'), ('dos', '<i4'), ('sky', '<i4'), "+
		"('fluo', '|u1')]", rev1IterDescr, r.NumIterations)

	if err := writeNpyHeader(w, descr, r.NumRows()); err != nil {
		return err
	}

	rw := &recordWriter{}
	for rec := 0; rec < r.NumRows(); rec++ {
		rw.buf = rw.buf[:0]

		for it := 0; it < r.NumIterations; it++ {
			flat := rec*r.NumIterations + it
			rw.i32(r.Itr[flat])
			rw.u64(r.Tic[flat])
			for k := 0; k < 3; k++ {
				rw.f64(r.Loc[flat*3+k])
			}
			for k := 0; k < 3; k++ {
				rw.f64(r.Lnc[flat*3+k])
			}
			rw.i32(r.Eco[flat])
			rw.i32(r.Ecc[flat])
			rw.f64(r.Efo[flat])
			rw.f64(r.Efc[flat])
			rw.i32(r.Sta[flat])
			rw.f64(r.Cfr[flat])
			rw.f64(r.Dcr[flat])
			for k := 0; k < 3; k++ {
				rw.f64(r.Ext[flat*3+k])
			}
			rw.f64(r.Gvy[flat])
			rw.f64(r.Gvx[flat])
			rw.f64(r.Eoy[flat])
			rw.f64(r.Eox[flat])
			rw.f64(r.Dmz[flat])
			rw.f64(r.Lcy[flat])
			rw.f64(r.Lcx[flat])
			rw.f64(r.Lcz[flat])
			rw.f64(r.Fbg[flat])
		}

		rw.u32(r.Sqi[rec])
		rw.u32(r.Gri[rec])
		rw.f64(r.Tim[rec])
		rw.i32(r.Tid[rec])
		rw.boolByte(r.Vld[rec])
		rw.boolByte(r.Act[rec])
		rw.i32(r.Dos[rec])
		rw.i32(r.Sky[rec])
		rw.u8(r.Fluo[rec])

		if _, err := w.Write(rw.buf); err != nil {
			return err
		}
	}

	return nil
}

// WriteNpyRev2 - iteration-per-record structured array. The dcr field is
// two channels wide on disk; channel 0 carries the ratio, channel 1 its
// complement.
func WriteNpyRev2(r *dataset.RawRev2, w io.Writer) error {
	if err := writeNpyHeader(w, rev2Descr, r.NumRows()); err != nil {
		return err
	}

	rw := &recordWriter{}
	for row := 0; row < r.NumRows(); row++ {
		rw.buf = rw.buf[:0]

		rw.boolByte(r.Vld[row])
		rw.boolByte(r.Fnl[row])
		rw.boolByte(r.Bot[row])
		rw.boolByte(r.Eot[row])
		rw.u8(r.Sta[row])
		rw.f64(r.Tim[row])
		rw.u32(r.Tid[row])
		rw.u32(r.Gri[row])
		rw.u8(r.Thi[row])
		rw.u8(r.Sqi[row])
		rw.i32(r.Itr[row])
		rw.f64(r.X[row])
		rw.f64(r.Y[row])
		rw.f64(r.Z[row])
		rw.f64(r.Lncx[row])
		rw.f64(r.Lncy[row])
		rw.f64(r.Lncz[row])
		rw.u32(r.Eco[row])
		rw.u32(r.Ecc[row])
		rw.f64(r.Efo[row])
		rw.f64(r.Efc[row])
		rw.f64(r.Fbg[row])
		rw.f64(r.Cfr[row])
		rw.f64(r.Dcr[row])
		rw.f64(1 - r.Dcr[row])
		rw.u8(r.Fluo[row])

		if _, err := w.Write(rw.buf); err != nil {
			return err
		}
	}

	return nil
}
