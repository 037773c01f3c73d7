package util

import (
	"fmt"
	"sort"
	"strings"
)

func EqualSlices[T any](a, b []T, equal func(x, y T) bool, ignoreOrder bool) bool {
	if len(a) != len(b) {
		return false
	}

	if ignoreOrder {
		aCopy := append([]T(nil), a...)
		bCopy := append([]T(nil), b...)

		sort.Slice(aCopy, func(i, j int) bool {
			return fmt.Sprint(aCopy[i]) < fmt.Sprint(aCopy[j])
		})
		sort.Slice(bCopy, func(i, j int) bool {
			return fmt.Sprint(bCopy[i]) < fmt.Sprint(bCopy[j])
		})

		a, b = aCopy, bCopy
	}

	for i := range a {
		if !equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// EqualStringsFold compares string slices case-insensitively, in order.
func EqualStringsFold(a, b []string) bool {
	return EqualSlices(a, b, strings.EqualFold, false)
}

// Clamp01 bounds v to the [0, 1] range.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
