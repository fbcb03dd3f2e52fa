package clock

import "strconv"

// Version is the per-key write counter.
type Version int64

// Absent is the version reported for a key a replica does not hold.
const Absent Version = -1

// CompareResult represents the result of comparing two versions.
type CompareResult int

const (
	// Before indicates this version is older than the other.
	Before CompareResult = iota
	// After indicates this version is newer than the other.
	After
	// Equal indicates both versions are the same.
	Equal
)

// String returns the string representation of CompareResult.
func (c CompareResult) String() string {
	switch c {
	case Before:
		return "BEFORE"
	case After:
		return "AFTER"
	case Equal:
		return "EQUAL"
	default:
		return "UNKNOWN"
	}
}

// Next returns the version a coordinator assigns to a write that observed v.
func (v Version) Next() Version {
	return v + 1
}

// IsAbsent reports whether v marks a missing value.
func (v Version) IsAbsent() bool {
	return v < 0
}

// Compare compares two versions. The version number is the sole tiebreaker.
func (v Version) Compare(other Version) CompareResult {
	switch {
	case v < other:
		return Before
	case v > other:
		return After
	default:
		return Equal
	}
}

// Dominates returns true if v is strictly newer than other.
func (v Version) Dominates(other Version) bool {
	return v.Compare(other) == After
}

func (v Version) String() string {
	if v.IsAbsent() {
		return "absent"
	}
	return "v" + strconv.FormatInt(int64(v), 10)
}
