package enums

import "fmt"

// CancelStatus is the one-way per-item cancellation flag.
type CancelStatus string

const (
	CancelStatusNotCancelled CancelStatus = "not_cancelled"
	CancelStatusCancelled    CancelStatus = "cancelled"
)

var validCancelStatuses = []CancelStatus{
	CancelStatusNotCancelled,
	CancelStatusCancelled,
}

// String implements fmt.Stringer.
func (c CancelStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelStatus.
func (c CancelStatus) IsValid() bool {
	for _, candidate := range validCancelStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelStatus converts raw input into a CancelStatus.
func ParseCancelStatus(value string) (CancelStatus, error) {
	for _, candidate := range validCancelStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel status %q", value)
}
