package utils

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// ToInt64Slice converts loosely typed JSON ids (numbers or numeric strings)
// into int64s, skipping anything that does not parse or is not a whole
// number.
func ToInt64Slice(slice []any) []int64 {
	ids := make([]int64, 0, len(slice))
	for _, v := range slice {
		switch n := v.(type) {
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				ids = append(ids, int64(n))
			}
		case int64:
			ids = append(ids, n)
		case int:
			ids = append(ids, int64(n))
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				ids = append(ids, parsed)
			}
		}
	}
	return ids
}

// AllPositive reports whether ids is non-empty and every id is > 0.
func AllPositive(ids []int64) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if id <= 0 {
			return false
		}
	}
	return true
}

// IDSetKey returns an order-independent key for a set of ids.
func IDSetKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
