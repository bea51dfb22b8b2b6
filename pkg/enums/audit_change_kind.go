package enums

import "fmt"

// AuditChangeKind maps to the audit_change_kind_enum enum in Postgres. One
// value per way a batch quantity can move.
type AuditChangeKind string

const (
	AuditChangeKindReceipt             AuditChangeKind = "receipt"
	AuditChangeKindAllocation          AuditChangeKind = "allocation"
	AuditChangeKindReservation         AuditChangeKind = "reservation"
	AuditChangeKindRelease             AuditChangeKind = "release"
	AuditChangeKindConfirmReserve      AuditChangeKind = "confirm_reserve"
	AuditChangeKindAdjustment          AuditChangeKind = "adjustment"
	AuditChangeKindWriteoff            AuditChangeKind = "writeoff"
	AuditChangeKindTransferOut         AuditChangeKind = "transfer_out"
	AuditChangeKindTransferIn          AuditChangeKind = "transfer_in"
	AuditChangeKindTransferOutReversed AuditChangeKind = "transfer_out_reversed"
	AuditChangeKindReconciliation      AuditChangeKind = "reconciliation"
	AuditChangeKindExpired             AuditChangeKind = "expired"
)

var validAuditChangeKinds = []AuditChangeKind{
	AuditChangeKindReceipt,
	AuditChangeKindAllocation,
	AuditChangeKindReservation,
	AuditChangeKindRelease,
	AuditChangeKindConfirmReserve,
	AuditChangeKindAdjustment,
	AuditChangeKindWriteoff,
	AuditChangeKindTransferOut,
	AuditChangeKindTransferIn,
	AuditChangeKindTransferOutReversed,
	AuditChangeKindReconciliation,
	AuditChangeKindExpired,
}

// IsValid reports whether the value matches the canonical change kind enum.
func (k AuditChangeKind) IsValid() bool {
	for _, candidate := range validAuditChangeKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAuditChangeKind converts raw input into AuditChangeKind.
func ParseAuditChangeKind(value string) (AuditChangeKind, error) {
	for _, candidate := range validAuditChangeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit change kind %q", value)
}
