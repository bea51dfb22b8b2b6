package enums

import "fmt"

// AdjustmentStatus maps to the adjustment_status_enum enum in Postgres.
type AdjustmentStatus string

const (
	AdjustmentStatusPending  AdjustmentStatus = "pending"
	AdjustmentStatusApproved AdjustmentStatus = "approved"
	AdjustmentStatusRejected AdjustmentStatus = "rejected"
)

var validAdjustmentStatuses = []AdjustmentStatus{
	AdjustmentStatusPending,
	AdjustmentStatusApproved,
	AdjustmentStatusRejected,
}

// IsValid reports whether the value matches the canonical adjustment status enum.
func (s AdjustmentStatus) IsValid() bool {
	for _, candidate := range validAdjustmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status allows no further transitions.
func (s AdjustmentStatus) IsTerminal() bool {
	return s == AdjustmentStatusApproved || s == AdjustmentStatusRejected
}

// ParseAdjustmentStatus converts raw input into AdjustmentStatus.
func ParseAdjustmentStatus(value string) (AdjustmentStatus, error) {
	for _, candidate := range validAdjustmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment status %q", value)
}
