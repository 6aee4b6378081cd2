package enums

import "fmt"

// ReturnStatus tracks the per-item return workflow.
type ReturnStatus string

const (
	ReturnStatusNotRequested ReturnStatus = "not_requested"
	ReturnStatusRequested    ReturnStatus = "requested"
	ReturnStatusApproved     ReturnStatus = "approved"
	ReturnStatusRejected     ReturnStatus = "rejected"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusNotRequested,
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusRejected,
}

// String implements fmt.Stringer.
func (r ReturnStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the return decision is final.
func (r ReturnStatus) IsTerminal() bool {
	return r == ReturnStatusApproved || r == ReturnStatusRejected
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
