package enums

import "fmt"

// ReservationReason maps to the reservation_reason_enum enum in Postgres.
type ReservationReason string

const (
	ReservationReasonPendingSale ReservationReason = "pending_sale"
	ReservationReasonQAReview    ReservationReason = "qa_review"
	ReservationReasonHold        ReservationReason = "hold"
)

var validReservationReasons = []ReservationReason{
	ReservationReasonPendingSale,
	ReservationReasonQAReview,
	ReservationReasonHold,
}

// IsValid reports whether the value matches the canonical reservation reason enum.
func (r ReservationReason) IsValid() bool {
	for _, candidate := range validReservationReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReservationReason converts raw input into ReservationReason.
func ParseReservationReason(value string) (ReservationReason, error) {
	for _, candidate := range validReservationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation reason %q", value)
}
