package utils

import (
	"math"
	"strconv"
	"strings"
)

// ToFloat parses s as a number and returns 0 when it is empty, malformed,
// or not finite. Listing attributes are coerced this way on purpose.
func ToFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
