package graph

import (
	"fmt"
	"strings"
)

// Quality describes how far a reading can be trusted.
//
// The numeric values follow the Tango AttrQuality enumeration so that
// qualities can cross the wire unchanged.
type Quality int

// Quality values.
const (
	Valid    Quality = 0
	Invalid  Quality = 1
	Alarm    Quality = 2
	Changing Quality = 3
	Warning  Quality = 4
)

// qualityCount is the number of known quality values.
const qualityCount = 5

var qualityNames = [qualityCount]string{
	Valid:    "VALID",
	Invalid:  "INVALID",
	Alarm:    "ALARM",
	Changing: "CHANGING",
	Warning:  "WARNING",
}

// IsKnown reports whether q is one of the defined quality values.
func (q Quality) IsKnown() bool {
	return q >= 0 && q < qualityCount
}

// String returns the upper-case quality name.
func (q Quality) String() string {
	if !q.IsKnown() {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualityNames[q]
}

// severity ranks q so that lower is worse: INVALID, ALARM, CHANGING,
// WARNING, VALID. It is the cyclic offset (q-1) mod 5.
func (q Quality) severity() int {
	return (int(q) - 1 + qualityCount) % qualityCount
}

// WorseThan reports whether q is more severe than other.
func (q Quality) WorseThan(other Quality) bool {
	return q.severity() < other.severity()
}

// ParseQuality parses a quality name, case-insensitively.
// The "ATTR_" prefix used by Tango is accepted.
func ParseQuality(s string) (Quality, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ATTR_")
	for i, n := range qualityNames {
		if n == name {
			return Quality(i), nil
		}
	}
	return Valid, fmt.Errorf("%w: unknown quality %q", ErrInvalidTriplet, s)
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) {
	if !q.IsKnown() {
		return nil, fmt.Errorf("%w: unknown quality %d", ErrInvalidTriplet, int(q))
	}
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
