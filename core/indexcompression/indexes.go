package indexcompression

import (
	"errors"
	"fmt"
	"sort"
)

// Row index lists (the explicit index arrays persisted alongside tables,
// and index selections sent through the API) compress runs of consecutive
// rows: 4, 5, 6, 7 is stored as 4, -1, 7. Filtered localization tables are
// mostly long surviving runs with holes, so this cuts the stored index
// array down to a handful of values.

// DecodeIndexList - Expands an encoded list back to plain row indexes.
// arraySize is the length of the table the rows point into; pass a negative
// value to skip bounds checking. Errors:
// - A negative value that is not the -1 run marker
// - A run marker at the start or end (no run endpoints)
// - <start>, -1, <end> where end <= start+1
// - Any row >= arraySize
func DecodeIndexList(encoded []int64, arraySize int) ([]int64, error) {
	if len(encoded) <= 0 {
		return []int64{}, nil
	}

	if encoded[0] == -1 {
		// Can't have -1 at the start, we don't have the starting
		// number then!
		return nil, errors.New("indexes start with -1")
	} else if encoded[len(encoded)-1] == -1 {
		// Can't look ahead, we're at the end!
		return nil, errors.New("indexes end with -1")
	}

	result := []int64{}
	for c, idx := range encoded {
		if idx == -1 {
			// Fill the run between the neighbours (both already/soon appended)
			startIdx := encoded[c-1]
			endIdx := encoded[c+1]

			if arraySize >= 0 && endIdx >= int64(arraySize) {
				return nil, fmt.Errorf("index %v out of bounds: %v", endIdx, arraySize)
			}

			if endIdx <= startIdx+1 {
				return nil, fmt.Errorf("invalid range: %v->%v", startIdx, endIdx)
			}

			for iFill := startIdx + 1; iFill < endIdx; iFill++ {
				result = append(result, iFill)
			}
		} else if idx < -1 {
			return nil, fmt.Errorf("invalid index: %v", idx)
		} else {
			if arraySize >= 0 && idx >= int64(arraySize) {
				return nil, fmt.Errorf("index %v out of bounds: %v", idx, arraySize)
			}
			result = append(result, idx)
		}
	}

	return result, nil
}

// EncodeIndexList - SORTS the given rows and encodes runs of consecutive
// values as <start>, -1, <end>. Negative rows are invalid input.
func EncodeIndexList(indexes []int64) ([]int64, error) {
	if len(indexes) == 0 {
		return []int64{}, nil
	}

	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	if indexes[0] < 0 {
		return []int64{}, fmt.Errorf("invalid index: %v", indexes[0])
	}

	result := make([]int64, 0, len(indexes))
	incrCount := 0

	for c, idx := range indexes {
		if c == 0 { // First one is ALWAYS appended!
			result = append(result, idx)
			continue
		}

		diffPrev := idx - indexes[c-1]

		if diffPrev == 1 {
			incrCount++
		}

		// A wall for the last value to pick up (anything > 1 ends a run)
		diffNext := int64(2)
		if c < len(indexes)-1 {
			diffNext = indexes[c+1] - idx
		}

		if diffPrev <= 1 && diffNext > 1 {
			// We're the end of a run of incrementing numbers
			if incrCount > 1 {
				result = append(result, -1)
			}
			result = append(result, idx)
			incrCount = 0
		} else if diffPrev > 1 {
			// Bigger leap than 1, so write this value, as it may
			// be the start of a run of incrementing numbers
			result = append(result, idx)
		}
	}

	return result, nil
}
