package person

import "strconv"

// autoNumberCeiling bounds the numbers considered when picking the next
// placeholder document, so real national ids do not push the sequence up.
const autoNumberCeiling = 1_000_000

// NextDocumentNumber picks the document number for an unidentified patient:
// one past the largest numeric document below the ceiling, skipping any value
// already taken. Soft-deleted rows count as taken.
func NextDocumentNumber(used []int64) string {
	taken := make(map[int64]bool, len(used))
	var max int64
	for _, n := range used {
		taken[n] = true
		if n < autoNumberCeiling && n > max {
			max = n
		}
	}
	candidate := max + 1
	for taken[candidate] {
		candidate++
	}
	return strconv.FormatInt(candidate, 10)
}
