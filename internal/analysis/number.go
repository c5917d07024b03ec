package analysis

import (
	"math"
	"strconv"
	"strings"
	"unsafe"

	apperrors "github.com/ZanzyTHEbar/trunkstat/internal/errors"
)

// Number is the set of sample types the estimators accept. Every member
// converts to float64 without a runtime type switch.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

const fuzzyEpsilon = 1e-10

// fuzzyEquals compares with a tolerance relative to the larger magnitude,
// falling back to an absolute tolerance near zero.
func fuzzyEquals(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= fuzzyEpsilon*scale
}

func fuzzyZero(a float64) bool {
	return fuzzyEquals(a, 0)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func checkFinite[T Number](values []T, field string) error {
	for _, v := range values {
		if f := float64(v); !isFinite(f) {
			return apperrors.NewInvalidValueError(field, f)
		}
	}
	return nil
}

// formatNumber prints integers exactly and floats at their own precision.
func formatNumber[T Number](v T) string {
	// integer division truncates one half to zero
	if T(1)/2 == 0 {
		if v < 0 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatUint(uint64(v), 10)
	}
	return strconv.FormatFloat(float64(v), 'f', -1, int(unsafe.Sizeof(v))*8)
}

// FormatCSV joins values with commas. Values are numeric so no escaping is needed.
func FormatCSV[T Number](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatNumber(v)
	}
	return strings.Join(parts, ",")
}
