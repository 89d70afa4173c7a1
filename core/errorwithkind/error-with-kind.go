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

package errorwithkind

import (
	"errors"
	"fmt"
)

// Failures from loading and processing MINFLUX acquisitions are classified
// so callers (CLI exit codes, API status mapping, tests) can dispatch on
// the failure class without matching message strings.

// ErrorKind - classification of a pipeline failure
type ErrorKind int

const (

	// KindFileNotFound - the source path did not resolve to a file
	KindFileNotFound ErrorKind = iota

	// KindFormatUnsupported - extension/magic matched no known container
	KindFormatUnsupported

	// KindCorruptHeader - a container was recognized but its header is damaged
	KindCorruptHeader

	// KindDecodeFailure - the payload violated the container schema
	KindDecodeFailure

	// KindNoCompleteIterationsFound - no trace was long enough to resolve the iteration layout
	KindNoCompleteIterationsFound

	// KindInvalidIterationSpec - iteration indices out of range or inconsistent
	KindInvalidIterationSpec

	// KindEmptyInput - the container decoded to zero usable records
	KindEmptyInput
)

var kindName = map[ErrorKind]string{
	KindFileNotFound:              "FileNotFound",
	KindFormatUnsupported:         "FormatUnsupported",
	KindCorruptHeader:             "CorruptHeader",
	KindDecodeFailure:             "DecodeFailure",
	KindNoCompleteIterationsFound: "NoCompleteIterationsFound",
	KindInvalidIterationSpec:      "InvalidIterationSpec",
	KindEmptyInput:                "EmptyInput",
}

func (k ErrorKind) String() string {
	if name, ok := kindName[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%v)", int(k))
}

// Error represents a classified pipeline error. It provides a method for
// the failure kind and embeds the built-in error interface.
type Error interface {
	error
	Kind() ErrorKind
}

// KindError - an error with an associated failure classification
type KindError struct {
	K   ErrorKind
	Err error
}

// Allows KindError to satisfy the error interface
func (ke KindError) Error() string {
	return ke.K.String() + ": " + ke.Err.Error()
}

// Kind - Returns our failure classification
func (ke KindError) Kind() ErrorKind {
	return ke.K
}

func (ke KindError) Unwrap() error {
	return ke.Err
}

// Is - errors.Is treats any two KindErrors of the same kind as matching, so
// callers can compare against the sentinel values below
func (ke KindError) Is(target error) bool {
	other, ok := target.(KindError)
	return ok && other.K == ke.K
}

// Sentinels for errors.Is checks
var (
	ErrFileNotFound              = KindError{KindFileNotFound, errors.New("file not found")}
	ErrFormatUnsupported         = KindError{KindFormatUnsupported, errors.New("format unsupported")}
	ErrCorruptHeader             = KindError{KindCorruptHeader, errors.New("corrupt header")}
	ErrDecodeFailure             = KindError{KindDecodeFailure, errors.New("decode failure")}
	ErrNoCompleteIterationsFound = KindError{KindNoCompleteIterationsFound, errors.New("no complete iterations found")}
	ErrInvalidIterationSpec      = KindError{KindInvalidIterationSpec, errors.New("invalid iteration spec")}
	ErrEmptyInput                = KindError{KindEmptyInput, errors.New("empty input")}
)

// Some common constructors
func MakeFileNotFoundError(path string) KindError {
	return KindError{KindFileNotFound, fmt.Errorf("%v not found", path)}
}

func MakeFormatUnsupportedError(path string, detail string) KindError {
	return KindError{KindFormatUnsupported, fmt.Errorf("%v: %v", path, detail)}
}

func MakeCorruptHeaderError(detail string) KindError {
	return KindError{KindCorruptHeader, errors.New(detail)}
}

func MakeDecodeFailureError(err error) KindError {
	return KindError{KindDecodeFailure, err}
}

func MakeNoCompleteIterationsFoundError() KindError {
	return KindError{KindNoCompleteIterationsFound, errors.New("no trace spans a complete iteration cycle")}
}

func MakeInvalidIterationSpecError(detail string) KindError {
	return KindError{KindInvalidIterationSpec, errors.New(detail)}
}

func MakeEmptyInputError(path string) KindError {
	return KindError{KindEmptyInput, fmt.Errorf("%v contains no usable records", path)}
}

// Mainly so we don't get a bunch of errors for not using field names in KindError{}
func MakeKindError(k ErrorKind, err error) KindError {
	return KindError{K: k, Err: err}
}

// KindOf - Extracts the classification from an error chain, ok=false if none present
func KindOf(err error) (ErrorKind, bool) {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.K, true
	}
	return 0, false
}
